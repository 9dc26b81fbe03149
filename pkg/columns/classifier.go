// Package columns detects the semantic role of dataset columns by name.
// Detection is a plain rule table (role -> keyword list) matched by
// case-insensitive substring, so deployments can override the vocabulary
// without touching analyzer code.
package columns

import "strings"

// Role is a semantic column role the analyzers care about
type Role string

const (
	RoleAge          Role = "age"
	RoleDate         Role = "date"
	RoleMethod       Role = "method"
	RoleSex          Role = "sex"
	RoleLatitude     Role = "latitude"
	RoleLongitude    Role = "longitude"
	RoleAddress      Role = "address"
	RoleMunicipality Role = "municipality"
	RoleRegion       Role = "region"
	RoleName         Role = "name"
	RoleIdentifier   Role = "identifier"
	RoleEventType    Role = "event_type"
)

// Rule binds a role to the keywords that identify it. A column matches when
// its lowercased name contains any keyword.
type Rule struct {
	Role     Role     `yaml:"role"`
	Keywords []string `yaml:"keywords"`
}

// Classifier resolves column roles against an ordered rule table
type Classifier struct {
	rules []Rule
}

// DefaultRules returns the built-in vocabulary for Spanish-language health
// registries, with common English aliases.
func DefaultRules() []Rule {
	return []Rule{
		{Role: RoleAge, Keywords: []string{"edad", "age"}},
		{Role: RoleDate, Keywords: []string{"fecha", "date"}},
		{Role: RoleMethod, Keywords: []string{"metodo", "method", "medio"}},
		{Role: RoleSex, Keywords: []string{"sexo", "genero", "gender", "sex"}},
		{Role: RoleLatitude, Keywords: []string{"latitud", "lat", "latitude"}},
		{Role: RoleLongitude, Keywords: []string{"longitud", "lon", "lng", "longitude"}},
		{Role: RoleAddress, Keywords: []string{"direccion", "address", "domicilio", "calle"}},
		{Role: RoleMunicipality, Keywords: []string{"municipio", "comuna", "city", "ciudad", "localidad"}},
		{Role: RoleRegion, Keywords: []string{"region", "provincia", "state", "departamento"}},
		{Role: RoleName, Keywords: []string{"nombre", "apellido", "paciente", "fallecido", "persona"}},
		{Role: RoleIdentifier, Keywords: []string{"dni", "rut", "cedula", "identificacion", "id"}},
		{Role: RoleEventType, Keywords: []string{"tipo_evento", "evento", "event"}},
	}
}

// NewClassifier builds a classifier from the given rules. Nil rules fall
// back to the defaults.
func NewClassifier(rules []Rule) *Classifier {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Classifier{rules: rules}
}

// Find returns the first column name matching the role, or "" when none does
func (c *Classifier) Find(names []string, role Role) string {
	keywords := c.keywords(role)
	for _, name := range names {
		if matchAny(name, keywords) {
			return name
		}
	}
	return ""
}

// FindAll returns every column name matching the role, in input order
func (c *Classifier) FindAll(names []string, role Role) []string {
	keywords := c.keywords(role)
	var out []string
	for _, name := range names {
		if matchAny(name, keywords) {
			out = append(out, name)
		}
	}
	return out
}

// Matches reports whether a single column name carries the role
func (c *Classifier) Matches(name string, role Role) bool {
	return matchAny(name, c.keywords(role))
}

func (c *Classifier) keywords(role Role) []string {
	for _, rule := range c.rules {
		if rule.Role == role {
			return rule.Keywords
		}
	}
	return nil
}

func matchAny(name string, keywords []string) bool {
	lower := strings.ToLower(name)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
