package analyzers

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cuidar-analytics/evaluator/pkg/config"
	"github.com/cuidar-analytics/evaluator/pkg/dataset"
)

func newGeospatial(t *testing.T) *Geospatial {
	t.Helper()
	a, err := NewGeospatial(config.Default(), zap.NewNop())
	require.NoError(t, err)
	return a
}

// coordTable builds n rows of valid Andalusian coordinates
func coordTable(t *testing.T, n int) *dataset.Table {
	lats := make([]dataset.Value, n)
	lons := make([]dataset.Value, n)
	for i := 0; i < n; i++ {
		lats[i] = dataset.Float(37.0 + float64(i%10)*0.01)
		lons[i] = dataset.Float(-5.9 - float64(i%10)*0.01)
	}
	return mustTable(t, []dataset.Column{
		{Name: "latitud", Values: lats},
		{Name: "longitud", Values: lons},
	})
}

func TestGeospatialDirectCoordinates(t *testing.T) {
	table := coordTable(t, 60)

	result, err := newGeospatial(t).Analyze(context.Background(), table)
	require.NoError(t, err)
	r := result.(*GeospatialResult)

	assert.InDelta(t, 1.0, r.Summary.Coverage, 1e-9)
	assert.Equal(t, GeoMethodCoordinates, r.Summary.PrimaryMethod)
	assert.Equal(t, GeoQualityExcellent, r.Summary.Quality)
	assert.True(t, r.Summary.Geocodable)
	assert.True(t, r.Summary.ClusteringFeasible)
	// 90 base + 10 clustering bonus
	assert.InDelta(t, 100.0, r.Summary.Score, 1e-9)

	require.NotNil(t, r.Coordinates)
	assert.Equal(t, 60, r.Coordinates.ValidPairs)
	assert.Empty(t, r.Coordinates.InvalidCoords)
	require.NotNil(t, r.Coordinates.BoundingBox)
	assert.InDelta(t, 37.0, r.Coordinates.BoundingBox.MinLat, 1e-9)

	require.NotNil(t, r.Clustering.SpatialVariation)
	assert.Equal(t, "local", r.Clustering.SpatialVariation.AreaType)
	assert.Contains(t, r.Clustering.RecommendedAlgorithms, "DBSCAN")
	assert.Equal(t, []string{"latitud", "longitud"}, r.RequiredFields)
}

func TestGeospatialInvalidCoordinates(t *testing.T) {
	table := mustTable(t, []dataset.Column{
		{Name: "latitud", Values: []dataset.Value{
			dataset.Float(37.4), dataset.Float(95.0), dataset.Float(0.0), dataset.Null()}},
		{Name: "longitud", Values: []dataset.Value{
			dataset.Float(-5.9), dataset.Float(-5.9), dataset.Float(0.0), dataset.Float(-5.9)}},
	})

	result, err := newGeospatial(t).Analyze(context.Background(), table)
	require.NoError(t, err)
	r := result.(*GeospatialResult)

	require.NotNil(t, r.Coordinates)
	assert.Equal(t, 1, r.Coordinates.ValidPairs)
	assert.InDelta(t, 0.25, r.Coordinates.Coverage, 1e-9)

	require.Len(t, r.Coordinates.InvalidCoords, 2)
	assert.Contains(t, r.Coordinates.InvalidCoords[0].Issue, "fuera de rango")
	assert.Contains(t, r.Coordinates.InvalidCoords[1].Issue, "(0,0)")

	// Coverage below 0.5 means only partial quality
	assert.Equal(t, GeoQualityPartial, r.Summary.Quality)
}

func TestGeospatialAddressFallback(t *testing.T) {
	table := mustTable(t, []dataset.Column{
		{Name: "direccion", Values: []dataset.Value{
			dataset.String("Calle Mayor 12"), dataset.String("Av. Andalucía 3"),
			dataset.String("Plaza Nueva"), dataset.Null()}},
	})

	result, err := newGeospatial(t).Analyze(context.Background(), table)
	require.NoError(t, err)
	r := result.(*GeospatialResult)

	assert.Equal(t, GeoMethodAddresses, r.Summary.PrimaryMethod)
	require.NotNil(t, r.Addresses)
	assert.Equal(t, 3, r.Addresses.NonNullCount)
	assert.Equal(t, 2, r.Addresses.DetailedAddresses)
	assert.Equal(t, 1, r.Addresses.GenericAddresses)
	assert.InDelta(t, 2.0/3.0, r.Addresses.GeocodableEstimate, 1e-9)
	assert.Equal(t, GeoQualityGood, r.Summary.Quality)
}

func TestGeospatialMunicipalFallback(t *testing.T) {
	n := 60
	munis := make([]dataset.Value, n)
	for i := 0; i < n; i++ {
		munis[i] = dataset.String(fmt.Sprintf("Municipio %d", i%8))
	}
	table := mustTable(t, []dataset.Column{{Name: "municipio", Values: munis}})

	result, err := newGeospatial(t).Analyze(context.Background(), table)
	require.NoError(t, err)
	r := result.(*GeospatialResult)

	assert.Equal(t, GeoMethodMunicipal, r.Summary.PrimaryMethod)
	assert.Equal(t, GeoQualityBasic, r.Summary.Quality)
	require.NotNil(t, r.Municipalities)
	assert.Equal(t, 8, r.Municipalities.UniqueMunicipalities)

	// 8 distinct municipalities over 60 rows allow aggregate clustering
	assert.True(t, r.Clustering.Feasible)
	assert.Equal(t, "agregacion_municipal", r.Clustering.Method)
	// 30 basic + 10 clustering bonus
	assert.InDelta(t, 40.0, r.Summary.Score, 1e-9)
}

func TestGeospatialNoGeography(t *testing.T) {
	table := mustTable(t, []dataset.Column{
		{Name: "edad", Values: []dataset.Value{dataset.Int(34), dataset.Int(52)}},
	})

	result, err := newGeospatial(t).Analyze(context.Background(), table)
	require.NoError(t, err)
	r := result.(*GeospatialResult)

	assert.False(t, r.Summary.Geocodable)
	assert.Equal(t, GeoQualityNone, r.Summary.Quality)
	assert.InDelta(t, 0.0, r.Summary.Score, 1e-9)
	assert.Empty(t, r.RequiredFields)

	require.Len(t, r.Recommendations, 1)
	assert.Equal(t, PriorityCritical, r.Recommendations[0].Priority)
}

func TestGeospatialTooFewRowsForClustering(t *testing.T) {
	table := coordTable(t, 10)

	result, err := newGeospatial(t).Analyze(context.Background(), table)
	require.NoError(t, err)
	r := result.(*GeospatialResult)

	assert.False(t, r.Clustering.Feasible)
	assert.False(t, r.Clustering.MinSamplesMet)
	assert.Equal(t, GeoQualityExcellent, r.Summary.Quality)
	assert.InDelta(t, 90.0, r.Summary.Score, 1e-9)
}
