package analyzers

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/cuidar-analytics/evaluator/pkg/columns"
	"github.com/cuidar-analytics/evaluator/pkg/config"
	"github.com/cuidar-analytics/evaluator/pkg/dataset"
)

// Geocoding methods in priority order
const (
	GeoMethodCoordinates = "coordenadas_directas"
	GeoMethodAddresses   = "geocodificacion_direcciones"
	GeoMethodMunicipal   = "geocodificacion_municipal"
	GeoQualityExcellent  = "excelente"
	GeoQualityGood       = "buena"
	GeoQualityPartial    = "parcial"
	GeoQualityBasic      = "basica"
	GeoQualityNone       = "none"
)

// InvalidCoordinate is one out-of-range or null-sentinel coordinate pair
type InvalidCoordinate struct {
	Row   int     `json:"row"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Issue string  `json:"issue"`
}

// BoundingBox is the extent of the valid coordinates
type BoundingBox struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLon float64 `json:"max_lon"`
}

// CoordinatesAnalysis describes the usable coordinate pairs
type CoordinatesAnalysis struct {
	LatitudeColumn  string              `json:"latitude_column"`
	LongitudeColumn string              `json:"longitude_column"`
	TotalRecords    int                 `json:"total_records"`
	ValidPairs      int                 `json:"valid_pairs"`
	Coverage        float64             `json:"coverage"`
	InvalidCoords   []InvalidCoordinate `json:"invalid_coords"`
	BoundingBox     *BoundingBox        `json:"bounding_box"`
}

// AddressAnalysis describes street-level geocodability
type AddressAnalysis struct {
	Column             string  `json:"column"`
	TotalRecords       int     `json:"total_records"`
	NonNullCount       int     `json:"non_null_count"`
	Coverage           float64 `json:"coverage"`
	DetailedAddresses  int     `json:"detailed_addresses"`
	GenericAddresses   int     `json:"generic_addresses"`
	GeocodableEstimate float64 `json:"geocodable_estimate"`
}

// RegionalAnalysis describes the regional distribution when a region column exists
type RegionalAnalysis struct {
	Column        string         `json:"column"`
	UniqueRegions int            `json:"unique_regions"`
	Distribution  map[string]int `json:"distribution"`
}

// MunicipalityAnalysis describes aggregate-level location data
type MunicipalityAnalysis struct {
	Column               string            `json:"column"`
	TotalRecords         int               `json:"total_records"`
	NonNullCount         int               `json:"non_null_count"`
	Coverage             float64           `json:"coverage"`
	UniqueMunicipalities int               `json:"unique_municipalities"`
	TopMunicipalities    map[string]int    `json:"top_municipalities"`
	RegionalAnalysis     *RegionalAnalysis `json:"regional_analysis"`
}

// GeocodingCapability is the best available geocoding path
type GeocodingCapability struct {
	HasCoordinates    bool    `json:"has_coordinates"`
	HasAddresses      bool    `json:"has_addresses"`
	HasMunicipalities bool    `json:"has_municipalities"`
	Coverage          float64 `json:"coverage"`
	Method            string  `json:"method"`
	Quality           string  `json:"quality"`
}

// SpatialVariation characterizes the geographic spread of valid points
type SpatialVariation struct {
	LatRangeDegrees float64 `json:"lat_range_degrees,omitempty"`
	LonRangeDegrees float64 `json:"lon_range_degrees,omitempty"`
	AreaType        string  `json:"area_type,omitempty"`
	UniqueLocations int     `json:"unique_locations,omitempty"`
}

// ClusteringPotential reports whether spatial clustering is feasible
type ClusteringPotential struct {
	Feasible              bool              `json:"feasible"`
	Method                string            `json:"method"`
	MinSamplesMet         bool              `json:"min_samples_met"`
	SpatialVariation      *SpatialVariation `json:"spatial_variation"`
	RecommendedAlgorithms []string          `json:"recommended_algorithms"`
}

// GeospatialSummary is the scorecard of the geospatial analysis
type GeospatialSummary struct {
	Geocodable         bool    `json:"geocodable"`
	Coverage           float64 `json:"coverage"`
	Quality            string  `json:"quality"`
	ClusteringFeasible bool    `json:"clustering_feasible"`
	Score              float64 `json:"score"`
	PrimaryMethod      string  `json:"primary_method"`
}

// GeospatialResult is the full output of the geospatial analyzer
type GeospatialResult struct {
	Summary           GeospatialSummary     `json:"summary"`
	Coordinates       *CoordinatesAnalysis  `json:"coordinates_analysis"`
	Addresses         *AddressAnalysis      `json:"address_analysis"`
	Municipalities    *MunicipalityAnalysis `json:"municipality_analysis"`
	Capability        GeocodingCapability   `json:"geocoding_capability"`
	Clustering        ClusteringPotential   `json:"clustering_potential"`
	RequiredFields    []string              `json:"required_fields"`
	Recommendations   []Recommendation      `json:"recommendations"`
	AnalysisTimestamp string                `json:"analysis_timestamp"`
}

// AnalyzerKind implements Result
func (r *GeospatialResult) AnalyzerKind() Kind { return KindGeospatial }

// IsError implements Result
func (r *GeospatialResult) IsError() bool { return false }

// Geospatial scores geocoding feasibility and spatial clustering viability
type Geospatial struct {
	cfg        *config.Config
	classifier *columns.Classifier
	logger     *zap.Logger
}

// NewGeospatial builds the geospatial analyzer
func NewGeospatial(cfg *config.Config, logger *zap.Logger) (*Geospatial, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Geospatial{
		cfg:        cfg,
		classifier: columns.NewClassifier(cfg.Rules),
		logger:     logger.With(zap.String("analyzer", string(KindGeospatial))),
	}, nil
}

// Kind implements Analyzer
func (a *Geospatial) Kind() Kind { return KindGeospatial }

// Analyze implements Analyzer
func (a *Geospatial) Analyze(ctx context.Context, t *dataset.Table) (Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t == nil || t.IsEmpty() {
		return nil, fmt.Errorf("analyzing geospatial readiness: %w", dataset.ErrEmptyDataset)
	}

	names := t.ColumnNames()
	latCol := a.classifier.Find(names, columns.RoleLatitude)
	lonCol := a.classifier.Find(names, columns.RoleLongitude)
	addrCol := a.classifier.Find(names, columns.RoleAddress)
	muniCol := a.classifier.Find(names, columns.RoleMunicipality)
	regionCol := a.classifier.Find(names, columns.RoleRegion)

	var coords *CoordinatesAnalysis
	if latCol != "" && lonCol != "" {
		coords = analyzeCoordinates(t, latCol, lonCol)
	}
	var addrs *AddressAnalysis
	if addrCol != "" {
		addrs = analyzeAddresses(t, addrCol)
	}
	var munis *MunicipalityAnalysis
	if muniCol != "" {
		munis = analyzeMunicipalities(t, muniCol, regionCol)
	}

	capability := a.assessGeocoding(coords, addrs, munis)
	clustering := a.assessClustering(t.Rows(), coords, munis)

	score := 0.0
	switch capability.Quality {
	case GeoQualityExcellent:
		score = 90
	case GeoQualityGood:
		score = 70
	case GeoQualityPartial:
		score = 50
	case GeoQualityBasic:
		score = 30
	}
	if clustering.Feasible {
		score += 10
	}
	if score > 100 {
		score = 100
	}

	a.logger.Debug("geospatial analysis finished",
		zap.String("method", capability.Method),
		zap.String("quality", capability.Quality),
		zap.Float64("score", score))

	return &GeospatialResult{
		Summary: GeospatialSummary{
			Geocodable:         capability.Coverage > 0,
			Coverage:           capability.Coverage,
			Quality:            capability.Quality,
			ClusteringFeasible: clustering.Feasible,
			Score:              score,
			PrimaryMethod:      capability.Method,
		},
		Coordinates:       coords,
		Addresses:         addrs,
		Municipalities:    munis,
		Capability:        capability,
		Clustering:        clustering,
		RequiredFields:    requiredFields(capability),
		Recommendations:   a.recommendations(capability, clustering, coords, munis),
		AnalysisTimestamp: Timestamp(),
	}, nil
}

func analyzeCoordinates(t *dataset.Table, latCol, lonCol string) *CoordinatesAnalysis {
	lat, _ := t.Column(latCol)
	lon, _ := t.Column(lonCol)

	total := t.Rows()
	validPairs := 0
	var invalid []InvalidCoordinate
	var bbox *BoundingBox

	for i := 0; i < total; i++ {
		latV, latOK := lat.Values[i].Numeric()
		lonV, lonOK := lon.Values[i].Numeric()
		if !latOK || !lonOK {
			continue
		}

		if latV < -90 || latV > 90 || lonV < -180 || lonV > 180 {
			if len(invalid) < 10 {
				invalid = append(invalid, InvalidCoordinate{
					Row: i, Lat: latV, Lon: lonV,
					Issue: "Coordenadas fuera de rango válido",
				})
			}
			continue
		}
		// (0,0) is the usual null sentinel in registries
		if math.Abs(latV) < 0.001 && math.Abs(lonV) < 0.001 {
			if len(invalid) < 10 {
				invalid = append(invalid, InvalidCoordinate{
					Row: i, Lat: latV, Lon: lonV,
					Issue: "Coordenadas en (0,0) - probablemente nulas",
				})
			}
			continue
		}

		validPairs++
		if bbox == nil {
			bbox = &BoundingBox{MinLat: latV, MaxLat: latV, MinLon: lonV, MaxLon: lonV}
		} else {
			bbox.MinLat = math.Min(bbox.MinLat, latV)
			bbox.MaxLat = math.Max(bbox.MaxLat, latV)
			bbox.MinLon = math.Min(bbox.MinLon, lonV)
			bbox.MaxLon = math.Max(bbox.MaxLon, lonV)
		}
	}

	coverage := 0.0
	if total > 0 {
		coverage = float64(validPairs) / float64(total)
	}

	return &CoordinatesAnalysis{
		LatitudeColumn:  latCol,
		LongitudeColumn: lonCol,
		TotalRecords:    total,
		ValidPairs:      validPairs,
		Coverage:        coverage,
		InvalidCoords:   invalid,
		BoundingBox:     bbox,
	}
}

func analyzeAddresses(t *dataset.Table, addrCol string) *AddressAnalysis {
	col, _ := t.Column(addrCol)
	total := t.Rows()

	nonNull, detailed, generic := 0, 0, 0
	for _, v := range col.Values {
		if v.IsNull() {
			continue
		}
		nonNull++
		addr := strings.TrimSpace(v.Text())
		if strings.ContainsAny(addr, "0123456789") {
			detailed++
		} else if len(strings.Fields(addr)) <= 2 {
			generic++
		}
	}

	coverage, geocodable := 0.0, 0.0
	if total > 0 {
		coverage = float64(nonNull) / float64(total)
	}
	if nonNull > 0 {
		geocodable = float64(detailed) / float64(nonNull)
	}

	return &AddressAnalysis{
		Column:             addrCol,
		TotalRecords:       total,
		NonNullCount:       nonNull,
		Coverage:           coverage,
		DetailedAddresses:  detailed,
		GenericAddresses:   generic,
		GeocodableEstimate: geocodable,
	}
}

func analyzeMunicipalities(t *dataset.Table, muniCol, regionCol string) *MunicipalityAnalysis {
	col, _ := t.Column(muniCol)
	total := t.Rows()

	counts := make(map[string]int)
	nonNull := 0
	for _, v := range col.Values {
		if v.IsNull() {
			continue
		}
		nonNull++
		counts[v.Text()]++
	}

	coverage := 0.0
	if total > 0 {
		coverage = float64(nonNull) / float64(total)
	}

	var regional *RegionalAnalysis
	if regionCol != "" {
		rc, _ := t.Column(regionCol)
		regionCounts := make(map[string]int)
		for _, v := range rc.Values {
			if !v.IsNull() {
				regionCounts[v.Text()]++
			}
		}
		regional = &RegionalAnalysis{
			Column:        regionCol,
			UniqueRegions: len(regionCounts),
			Distribution:  topCounts(regionCounts, 10),
		}
	}

	return &MunicipalityAnalysis{
		Column:               muniCol,
		TotalRecords:         total,
		NonNullCount:         nonNull,
		Coverage:             coverage,
		UniqueMunicipalities: len(counts),
		TopMunicipalities:    topCounts(counts, 10),
		RegionalAnalysis:     regional,
	}
}

func topCounts(counts map[string]int, n int) map[string]int {
	type kv struct {
		key string
		n   int
	}
	all := make([]kv, 0, len(counts))
	for k, v := range counts {
		all = append(all, kv{k, v})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].n != all[j].n {
			return all[i].n > all[j].n
		}
		return all[i].key < all[j].key
	})
	if len(all) > n {
		all = all[:n]
	}
	out := make(map[string]int, len(all))
	for _, e := range all {
		out[e.key] = e.n
	}
	return out
}

func (a *Geospatial) assessGeocoding(coords *CoordinatesAnalysis, addrs *AddressAnalysis, munis *MunicipalityAnalysis) GeocodingCapability {
	capability := GeocodingCapability{Quality: GeoQualityNone}

	switch {
	case coords != nil && coords.Coverage > 0:
		capability.HasCoordinates = true
		capability.Coverage = coords.Coverage
		capability.Method = GeoMethodCoordinates
		switch {
		case coords.Coverage >= a.cfg.GeoMinCoverage:
			capability.Quality = GeoQualityExcellent
		case coords.Coverage >= 0.5:
			capability.Quality = GeoQualityGood
		default:
			capability.Quality = GeoQualityPartial
		}
	case addrs != nil && addrs.GeocodableEstimate > 0:
		capability.HasAddresses = true
		capability.Coverage = addrs.GeocodableEstimate
		capability.Method = GeoMethodAddresses
		if addrs.GeocodableEstimate >= 0.6 {
			capability.Quality = GeoQualityGood
		} else {
			capability.Quality = GeoQualityPartial
		}
	case munis != nil && munis.Coverage > 0:
		capability.HasMunicipalities = true
		capability.Coverage = munis.Coverage
		capability.Method = GeoMethodMunicipal
		capability.Quality = GeoQualityBasic
	}

	return capability
}

func (a *Geospatial) assessClustering(rows int, coords *CoordinatesAnalysis, munis *MunicipalityAnalysis) ClusteringPotential {
	potential := ClusteringPotential{RecommendedAlgorithms: []string{}}

	if rows < a.cfg.GeoMinPoints {
		return potential
	}
	potential.MinSamplesMet = true

	switch {
	case coords != nil && coords.Coverage >= 0.5:
		potential.Feasible = true
		potential.Method = "coordenadas_exactas"
		potential.RecommendedAlgorithms = []string{"DBSCAN", "HDBSCAN", "K-means espacial"}
		if coords.BoundingBox != nil {
			latRange := coords.BoundingBox.MaxLat - coords.BoundingBox.MinLat
			lonRange := coords.BoundingBox.MaxLon - coords.BoundingBox.MinLon
			areaType := "amplio"
			if math.Max(latRange, lonRange) < 0.5 {
				areaType = "local"
			} else if math.Max(latRange, lonRange) < 2 {
				areaType = "regional"
			}
			potential.SpatialVariation = &SpatialVariation{
				LatRangeDegrees: latRange,
				LonRangeDegrees: lonRange,
				AreaType:        areaType,
			}
		}
	case munis != nil && munis.UniqueMunicipalities >= 5:
		potential.Feasible = true
		potential.Method = "agregacion_municipal"
		potential.RecommendedAlgorithms = []string{"Agregación por municipio", "Análisis de hotspots"}
		potential.SpatialVariation = &SpatialVariation{
			UniqueLocations: munis.UniqueMunicipalities,
		}
	}

	return potential
}

func requiredFields(capability GeocodingCapability) []string {
	switch {
	case capability.HasCoordinates:
		return []string{"latitud", "longitud"}
	case capability.HasAddresses:
		return []string{"direccion", "municipio", "region"}
	case capability.HasMunicipalities:
		return []string{"municipio", "region"}
	default:
		return []string{}
	}
}

func (a *Geospatial) recommendations(capability GeocodingCapability, clustering ClusteringPotential, coords *CoordinatesAnalysis, munis *MunicipalityAnalysis) []Recommendation {
	var recs []Recommendation

	if capability.Quality == GeoQualityNone {
		return append(recs, Recommendation{
			Priority: PriorityCritical,
			Field:    "geolocalización",
			Issue:    "No hay información geográfica utilizable",
			Action:   "Agregar al menos columna de municipio/localidad en registros futuros",
			Impact:   "Alto - Imposibilita análisis de patrones espaciales y clusters",
		})
	}

	if coords != nil && coords.Coverage < a.cfg.GeoMinCoverage {
		recs = append(recs, Recommendation{
			Priority: PriorityHigh,
			Field:    "coordenadas",
			Issue:    fmt.Sprintf("Solo %.1f%% de registros tienen coordenadas válidas", coords.Coverage*100),
			Action:   "Geocodificar direcciones faltantes o usar servicios de geolocalización",
			Impact:   "Alto - Limita precisión de análisis espaciales",
		})
	}

	if coords != nil && len(coords.InvalidCoords) > 0 {
		recs = append(recs, Recommendation{
			Priority: PriorityMedium,
			Field:    "coordenadas",
			Issue:    fmt.Sprintf("%d registros con coordenadas inválidas", len(coords.InvalidCoords)),
			Action:   "Revisar y corregir coordenadas fuera de rango o en (0,0)",
			Impact:   "Medio - Genera ruido en visualizaciones",
		})
	}

	if !clustering.Feasible && munis != nil {
		recs = append(recs, Recommendation{
			Priority: PriorityLow,
			Field:    "clustering",
			Issue:    "Registros insuficientes o poco variados para clustering robusto",
			Action:   "Acumular más registros o realizar análisis agregado por municipio",
			Impact:   "Bajo - Análisis espaciales serán limitados",
		})
	}

	return recs
}
