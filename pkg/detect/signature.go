package detect

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// HSVRange is a closed interval in 8-bit HSV (H in half-degrees, 0..179).
type HSVRange struct {
	MinH byte `json:"minH"`
	MaxH byte `json:"maxH"`
	MinS byte `json:"minS"`
	MaxS byte `json:"maxS"`
	MinV byte `json:"minV"`
	MaxV byte `json:"maxV"`
}

// Signature is the reference record for one forest type: where its canopy
// sits in color space, and what carbon it holds per hectare. Signatures are
// read-only during a run.
type Signature struct {
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	Version        string     `json:"version"`
	HSVRanges      []HSVRange `json:"hsvRanges"`
	IndexThreshold float32    `json:"indexThreshold"`    // minimum excess-green for a pixel to count
	CarbonDensity  float64    `json:"carbonDensityTCHa"` // tonnes carbon per hectare
	BiomassDensity float64    `json:"biomassDensityTHa"` // tonnes biomass per hectare
}

func (s *Signature) validate() error {
	if s.Name == "" {
		return fmt.Errorf("signature with empty name")
	}
	if len(s.HSVRanges) == 0 {
		return fmt.Errorf("signature %v: no HSV ranges", s.Name)
	}
	for _, r := range s.HSVRanges {
		if r.MinH > r.MaxH || r.MinS > r.MaxS || r.MinV > r.MaxV {
			return fmt.Errorf("signature %v: inverted HSV range", s.Name)
		}
		if r.MaxH > 179 {
			return fmt.Errorf("signature %v: hue above 179", s.Name)
		}
	}
	if s.CarbonDensity < 0 || s.BiomassDensity < 0 {
		return fmt.Errorf("signature %v: negative density", s.Name)
	}
	return nil
}

// Registry is a validated, name-keyed set of forest-type signatures.
type Registry struct {
	byName  map[string]*Signature
	ordered []*Signature
}

// NewRegistry builds a registry, validating every signature.
func NewRegistry(sigs []Signature) (*Registry, error) {
	r := &Registry{byName: map[string]*Signature{}}
	for i := range sigs {
		s := sigs[i]
		if err := s.validate(); err != nil {
			return nil, err
		}
		if _, dup := r.byName[s.Name]; dup {
			return nil, fmt.Errorf("duplicate signature %v", s.Name)
		}
		r.byName[s.Name] = &s
		r.ordered = append(r.ordered, &s)
	}
	sort.Slice(r.ordered, func(i, j int) bool { return r.ordered[i].Name < r.ordered[j].Name })
	return r, nil
}

// LoadRegistry reads signatures from a JSON file.
func LoadRegistry(filename string) (*Registry, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var sigs []Signature
	if err := json.Unmarshal(b, &sigs); err != nil {
		return nil, fmt.Errorf("parsing signatures %v: %w", filename, err)
	}
	return NewRegistry(sigs)
}

// Get returns the signature with the given name, or nil.
func (r *Registry) Get(name string) *Signature {
	return r.byName[name]
}

// All returns the signatures in name order.
func (r *Registry) All() []*Signature {
	return r.ordered
}

// DefaultRegistry returns the built-in reference set. Carbon and biomass
// densities are per-hectare values for Southeast Asian forest types.
func DefaultRegistry() *Registry {
	r, err := NewRegistry([]Signature{
		{
			Name:           "dense_tropical",
			Description:    "Dense tropical evergreen forest",
			Version:        "1",
			HSVRanges:      []HSVRange{{35, 85, 30, 255, 20, 200}},
			IndexThreshold: 20,
			CarbonDensity:  150,
			BiomassDensity: 320,
		},
		{
			Name:           "evergreen_broadleaf",
			Description:    "Evergreen broadleaf forest",
			Version:        "1",
			HSVRanges:      []HSVRange{{40, 80, 30, 255, 20, 200}},
			IndexThreshold: 25,
			CarbonDensity:  120,
			BiomassDensity: 255,
		},
		{
			Name:           "mangrove",
			Description:    "Mangrove ecosystems",
			Version:        "1",
			HSVRanges:      []HSVRange{{35, 65, 40, 180, 20, 150}},
			IndexThreshold: 15,
			CarbonDensity:  150,
			BiomassDensity: 310,
		},
		{
			Name:           "deciduous",
			Description:    "Deciduous / dry-season forest",
			Version:        "1",
			HSVRanges:      []HSVRange{{25, 70, 20, 200, 30, 220}},
			IndexThreshold: 15,
			CarbonDensity:  80,
			BiomassDensity: 170,
		},
		{
			Name:           "bamboo",
			Description:    "Bamboo forest",
			Version:        "1",
			HSVRanges:      []HSVRange{{30, 75, 25, 220, 40, 255}},
			IndexThreshold: 20,
			CarbonDensity:  60,
			BiomassDensity: 130,
		},
		{
			Name:           "melaleuca",
			Description:    "Melaleuca wetland forest",
			Version:        "1",
			HSVRanges:      []HSVRange{{35, 70, 30, 200, 25, 180}},
			IndexThreshold: 18,
			CarbonDensity:  100,
			BiomassDensity: 210,
		},
		{
			Name:           "acacia",
			Description:    "Acacia plantation",
			Version:        "1",
			HSVRanges:      []HSVRange{{30, 65, 35, 210, 30, 200}},
			IndexThreshold: 20,
			CarbonDensity:  70,
			BiomassDensity: 150,
		},
	})
	if err != nil {
		panic(err) // built-in table is validated by tests
	}
	return r
}
