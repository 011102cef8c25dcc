package carbon

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

var (
	ErrMissingEcosystem = errors.New("ecosystem parameters required for credit calculation")
	ErrNoForestData     = errors.New("no forest data available")
)

// EcosystemParams is the externally supplied reference data for one
// ecosystem. Read-only during a calculation.
type EcosystemParams struct {
	Name string `json:"name"`

	// CarbonDensityFallback is used when a detection carries no type
	// breakdown, in tC/ha.
	CarbonDensityFallback float64 `json:"carbonDensityFallbackTCHa"`

	// MaxBiomassPerHa caps the standing biomass, in t/ha. Zero means no cap.
	MaxBiomassPerHa float64 `json:"maxBiomassPerHa"`

	// BiomassGrowthRate is the logistic growth constant k in 1/years.
	// Zero disables age adjustment.
	BiomassGrowthRate float64 `json:"biomassGrowthRate"`

	// WoodDensity in g/cm3, used by the allometric equations.
	WoodDensity float64 `json:"woodDensity"`

	// AllometricRef names the allometric equation for plot-level stock.
	// Empty selects the pantropical moist-forest default.
	AllometricRef string `json:"allometricRef,omitempty"`
}

func (e *EcosystemParams) Validate() error {
	if e.Name == "" {
		return errors.New("ecosystem has no name")
	}
	if e.CarbonDensityFallback < 0 || e.MaxBiomassPerHa < 0 || e.BiomassGrowthRate < 0 {
		return fmt.Errorf("ecosystem %v has negative parameters", e.Name)
	}
	return nil
}

// LoadEcosystem reads ecosystem parameters from a JSON file.
func LoadEcosystem(filename string) (*EcosystemParams, error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read ecosystem params: %w", err)
	}
	eco := &EcosystemParams{}
	if err := json.Unmarshal(raw, eco); err != nil {
		return nil, fmt.Errorf("failed to parse ecosystem params %v: %w", filename, err)
	}
	if err := eco.Validate(); err != nil {
		return nil, err
	}
	return eco, nil
}

// Methodology holds every constant of the credit methodology as data. The
// tier breakpoints are empirically asserted in the reference methodology, so
// they load from config rather than living as literals in the math.
type Methodology struct {
	Version string `json:"version"`

	// IPCC conversion factors.
	CarbonFraction float64 `json:"carbonFraction"` // carbon mass per dry biomass mass
	CO2PerCarbon   float64 `json:"co2PerCarbon"`   // molar mass ratio, 44/12
	RootShootRatio float64 `json:"rootShootRatio"` // below-ground per above-ground biomass

	// Baseline scenario loss fractions.
	HistoricalLossRate      float64 `json:"historicalLossRate"` // annual deforestation fraction
	BAULossFraction         float64 `json:"bauLossFraction"`    // business-as-usual total loss
	DegradationLossFraction float64 `json:"degradationLossFraction"`

	// Market leakage tiers by project area, plus the fixed activity
	// displacement component. Total is capped.
	LeakageLargeAreaHa    float64 `json:"leakageLargeAreaHa"`
	LeakageLargeFactor    float64 `json:"leakageLargeFactor"`
	LeakageMediumAreaHa   float64 `json:"leakageMediumAreaHa"`
	LeakageMediumFactor   float64 `json:"leakageMediumFactor"`
	LeakageSmallFactor    float64 `json:"leakageSmallFactor"`
	ActivityLeakageFactor float64 `json:"activityLeakageFactor"`
	LeakageCap            float64 `json:"leakageCap"`

	// Buffer pool: base contribution plus a risk adjustment per uncertainty
	// tier and a surcharge for small projects. Total is capped.
	BufferBase         float64 `json:"bufferBase"`
	BufferHighRisk     float64 `json:"bufferHighRisk"`
	BufferMediumRisk   float64 `json:"bufferMediumRisk"`
	BufferLowRisk      float64 `json:"bufferLowRisk"`
	SmallProjectAreaHa float64 `json:"smallProjectAreaHa"`
	SmallProjectRisk   float64 `json:"smallProjectRisk"`
	BufferCap          float64 `json:"bufferCap"`

	// Compliance gates. Failing one flags the result, never blocks it.
	MinProjectAreaHa float64 `json:"minProjectAreaHa"`
	MinConfidence    float64 `json:"minConfidence"`
}

// DefaultMethodology returns the compiled-in VM0007-derived constants.
func DefaultMethodology() *Methodology {
	return &Methodology{
		Version:        "VM0007_v1.6_simplified",
		CarbonFraction: 0.47,
		CO2PerCarbon:   44.0 / 12.0,
		RootShootRatio: 0.26,

		HistoricalLossRate:      0.02,
		BAULossFraction:         0.50,
		DegradationLossFraction: 0.30,

		LeakageLargeAreaHa:    1000,
		LeakageLargeFactor:    0.20,
		LeakageMediumAreaHa:   100,
		LeakageMediumFactor:   0.15,
		LeakageSmallFactor:    0.10,
		ActivityLeakageFactor: 0.15,
		LeakageCap:            0.30,

		BufferBase:         0.10,
		BufferHighRisk:     0.15,
		BufferMediumRisk:   0.10,
		BufferLowRisk:      0.05,
		SmallProjectAreaHa: 100,
		SmallProjectRisk:   0.05,
		BufferCap:          0.30,

		MinProjectAreaHa: 0.5,
		MinConfidence:    0.3,
	}
}

func (m *Methodology) Validate() error {
	if m.Version == "" {
		return errors.New("methodology has no version")
	}
	if m.CarbonFraction <= 0 || m.CarbonFraction > 1 {
		return fmt.Errorf("carbon fraction %.3f out of range", m.CarbonFraction)
	}
	if m.CO2PerCarbon <= 0 {
		return errors.New("CO2/C ratio must be positive")
	}
	if m.LeakageCap < 0 || m.LeakageCap > 1 || m.BufferCap < 0 || m.BufferCap > 1 {
		return errors.New("deduction caps must lie in [0,1]")
	}
	return nil
}

// LoadMethodology reads methodology constants from a JSON file.
func LoadMethodology(filename string) (*Methodology, error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read methodology: %w", err)
	}
	m := &Methodology{}
	if err := json.Unmarshal(raw, m); err != nil {
		return nil, fmt.Errorf("failed to parse methodology %v: %w", filename, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}
