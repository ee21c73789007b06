// Package settings stores flat practice-wide configuration as key/value
// pairs, most importantly the practice's home-base coordinates that every
// route starts from.
package settings

// Setting is a single stored key/value pair.
type Setting struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Keys used by the planner.
const (
	KeyPracticeAddress = "praxis_address"
	KeyPracticeCity    = "praxis_city"
	KeyPracticeLat     = "praxis_lat"
	KeyPracticeLon     = "praxis_lon"
)
