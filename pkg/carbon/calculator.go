package carbon

import (
	"fmt"
	"math"

	"github.com/cyclopcam/logs"

	"github.com/verdantmrv/canopy/pkg/detect"
)

// CalcResultVersion is bumped whenever the Result record layout changes.
const CalcResultVersion = 1

// Calculation method descriptors for audit trails.
const (
	MethodImagery       = "vcs_imagery"
	MethodPlotInventory = "vcs_plot_inventory"
)

// calcState tracks the one-shot calculation pipeline. Every step runs
// exactly once, in order.
type calcState int

const (
	stateInitial calcState = iota
	stateStockComputed
	stateBaselineEstablished
	stateLeakageApplied
	stateUncertaintyApplied
	stateBufferApplied
	stateFinalized
)

var stateNames = map[calcState]string{
	stateInitial:             "Initial",
	stateStockComputed:       "StockComputed",
	stateBaselineEstablished: "BaselineEstablished",
	stateLeakageApplied:      "LeakageApplied",
	stateUncertaintyApplied:  "UncertaintyApplied",
	stateBufferApplied:       "BufferApplied",
	stateFinalized:           "Finalized",
}

// Result is the terminal, immutable output of one credit calculation. All
// intermediate deductions are stored so the final quantity is reproducible
// from the record alone.
type Result struct {
	Version            int      `json:"version"`
	Ecosystem          string   `json:"ecosystem"`
	CalculationMethod  string   `json:"calculationMethod"`
	MethodologyVersion string   `json:"methodologyVersion"`
	Scenario           Scenario `json:"baselineScenario"`
	// ScenarioConservative is true when an unknown scenario name fell back
	// to the no-loss baseline.
	ScenarioConservative bool    `json:"scenarioConservative"`
	AgeYears             float64 `json:"projectAgeYears"`
	GrowthFactor         float64 `json:"growthFactor"`

	AreaHa              float64 `json:"areaHa"`
	WeightedDensityTCHa float64 `json:"weightedCarbonDensityTCHa"`
	ProjectStockTC      float64 `json:"projectCarbonStockTC"`
	BaselineStockTC     float64 `json:"baselineCarbonStockTC"`
	NetBenefitTC        float64 `json:"netCarbonBenefitTC"`

	LeakageFactor          float64 `json:"leakageFactor"`
	LeakageDeductionTC     float64 `json:"leakageDeductionTC"`
	UncertaintyPercent     float64 `json:"uncertaintyPercent"`
	UncertaintyDeductionTC float64 `json:"uncertaintyDeductionTC"`
	BufferFactor           float64 `json:"bufferFactor"`
	BufferContributionTC   float64 `json:"bufferContributionTC"`

	VerifiedTCO2e   float64 `json:"verifiedCarbonUnitsTCO2e"`
	CreditableTCO2e float64 `json:"creditableCarbonUnitsTCO2e"`

	Confidence      float64                `json:"confidence"`
	UncertaintyTier detect.UncertaintyTier `json:"uncertaintyTier"`
	VCSEligible     bool                   `json:"vcsEligible"`
	AreaCompliant   bool                   `json:"areaCompliant"`
	ConfCompliant   bool                   `json:"confidenceCompliant"`
}

// Calculator runs one credit calculation as a strictly sequential, one-shot
// state machine. Construct a new Calculator per calculation.
type Calculator struct {
	log   logs.Log
	meth  *Methodology
	eco   *EcosystemParams
	state calcState

	// Working values, populated as the states advance.
	method          string
	areaHa          float64
	weightedDensity float64 // tC/ha, growth-adjusted
	confidence      float64
	uncertainty     detect.Uncertainty
	ageYears        float64
	growthFactor    float64

	stockTC    float64
	baseline   Baseline
	netTC      float64
	leakageFac float64
	leakageTC  float64
	uncertTC   float64
	bufferFac  float64
	bufferTC   float64
}

func NewCalculator(logger logs.Log, meth *Methodology, eco *EcosystemParams) (*Calculator, error) {
	if eco == nil {
		return nil, ErrMissingEcosystem
	}
	if err := eco.Validate(); err != nil {
		return nil, err
	}
	if meth == nil {
		meth = DefaultMethodology()
	}
	if err := meth.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{log: logger, meth: meth, eco: eco, growthFactor: 1}, nil
}

// advance enforces the one-shot ordering of the pipeline.
func (c *Calculator) advance(from, to calcState) error {
	if c.state != from {
		return fmt.Errorf("calculation step %v invoked in state %v (want %v)",
			stateNames[to], stateNames[c.state], stateNames[from])
	}
	c.state = to
	return nil
}

// ComputeStock derives the project carbon stock from a detection result:
// per-type area times carbon density, age-adjusted by the ecosystem growth
// rate when one is set, capped by the ecosystem's max biomass.
func (c *Calculator) ComputeStock(detection *detect.Result, ageYears float64) error {
	if err := c.advance(stateInitial, stateStockComputed); err != nil {
		return err
	}
	if detection == nil {
		return ErrNoForestData
	}
	c.method = MethodImagery
	c.ageYears = ageYears
	c.areaHa = detection.TotalAreaHa
	c.confidence = detection.Confidence
	c.uncertainty = detection.Uncertainty

	if c.eco.BiomassGrowthRate > 0 {
		c.growthFactor = 1 - math.Exp(-c.eco.BiomassGrowthRate*ageYears)
	}

	densityCap := math.Inf(1)
	if c.eco.MaxBiomassPerHa > 0 {
		densityCap = c.eco.MaxBiomassPerHa * c.meth.CarbonFraction
	}

	stock := 0.0
	for _, t := range detection.Types {
		density := math.Min(t.CarbonDensity*c.growthFactor, densityCap)
		stock += t.AreaHa * density
		c.log.Infof("Forest type %v: %.2f ha x %.1f tC/ha = %.1f tC", t.Type, t.AreaHa, density, t.AreaHa*density)
	}
	if len(detection.Types) == 0 && c.areaHa > 0 {
		// No type breakdown: the ecosystem's fallback density carries the
		// whole area.
		density := math.Min(c.eco.CarbonDensityFallback*c.growthFactor, densityCap)
		stock = c.areaHa * density
		c.log.Warnf("No forest type breakdown, using ecosystem fallback density %.1f tC/ha", density)
	}
	c.stockTC = stock
	// Density is expressed over the total detected area, not just the typed
	// pixels, so that baseline = stock x (1 - loss) holds exactly.
	if c.areaHa > 0 {
		c.weightedDensity = stock / c.areaHa
	}
	c.log.Infof("Project carbon stock: %.1f tC over %.2f ha (growth factor %.3f)", c.stockTC, c.areaHa, c.growthFactor)
	return nil
}

// ComputeStockFromPlots derives the project stock from field plot inventory
// instead of imagery. Plot measurements are direct, so confidence is 1 and
// the uncertainty tier reflects only the area floor.
func (c *Calculator) ComputeStockFromPlots(plots []Plot) error {
	if err := c.advance(stateInitial, stateStockComputed); err != nil {
		return err
	}
	stock, area, err := PlotStock(plots, c.eco, c.meth)
	if err != nil {
		c.state = stateInitial
		return err
	}
	c.method = MethodPlotInventory
	c.stockTC = stock
	c.areaHa = area
	c.confidence = 1
	c.uncertainty = detect.AssessUncertainty(c.confidence, c.areaHa)
	if area > 0 {
		c.weightedDensity = stock / area
	}
	c.log.Infof("Plot inventory stock: %.1f tC over %.2f ha (%v plots)", stock, area, len(plots))
	return nil
}

// EstablishBaseline computes the without-project carbon stock for the chosen
// scenario. An unrecognized scenario fails closed to the conservative
// no-loss baseline with a warning, never to an aggressive one.
func (c *Calculator) EstablishBaseline(scenario Scenario) error {
	if err := c.advance(stateStockComputed, stateBaselineEstablished); err != nil {
		return err
	}
	loss, known := c.meth.lossFraction(scenario)
	if !known {
		c.log.Warnf("Unknown baseline scenario %q, using conservative no-loss baseline", scenario)
	}
	c.baseline = Baseline{
		Scenario:     scenario,
		LossFraction: loss,
		StockTC:      c.areaHa * c.weightedDensity * (1 - loss),
		Conservative: !known,
	}
	c.netTC = math.Max(0, c.stockTC-c.baseline.StockTC)
	c.log.Infof("Baseline %v: %.1f tC, net benefit %.1f tC", scenario, c.baseline.StockTC, c.netTC)
	return nil
}

// ApplyLeakage deducts market leakage (tiered by project area) plus the
// fixed activity displacement factor, capped.
func (c *Calculator) ApplyLeakage() error {
	if err := c.advance(stateBaselineEstablished, stateLeakageApplied); err != nil {
		return err
	}
	market := c.meth.LeakageSmallFactor
	if c.areaHa > c.meth.LeakageLargeAreaHa {
		market = c.meth.LeakageLargeFactor
	} else if c.areaHa > c.meth.LeakageMediumAreaHa {
		market = c.meth.LeakageMediumFactor
	}
	c.leakageFac = math.Min(c.meth.LeakageCap, market+c.meth.ActivityLeakageFactor)
	c.leakageTC = c.netTC * c.leakageFac
	c.log.Infof("Leakage: %.0f%% = %.1f tC", c.leakageFac*100, c.leakageTC)
	return nil
}

// ApplyUncertainty deducts the uncertainty percentage from the detection's
// assessment, applied to the post-leakage benefit.
func (c *Calculator) ApplyUncertainty() error {
	if err := c.advance(stateLeakageApplied, stateUncertaintyApplied); err != nil {
		return err
	}
	c.uncertTC = (c.netTC - c.leakageTC) * c.uncertainty.Percentage / 100
	c.log.Infof("Uncertainty deduction (%v, %.0f%%): %.1f tC", c.uncertainty.Tier, c.uncertainty.Percentage, c.uncertTC)
	return nil
}

// ApplyBuffer withholds the buffer-pool contribution: base percentage plus a
// risk adjustment by uncertainty tier and a small-project surcharge, capped.
func (c *Calculator) ApplyBuffer() error {
	if err := c.advance(stateUncertaintyApplied, stateBufferApplied); err != nil {
		return err
	}
	risk := c.meth.BufferHighRisk
	switch c.uncertainty.Tier {
	case detect.UncertaintyLow:
		risk = c.meth.BufferLowRisk
	case detect.UncertaintyMedium:
		risk = c.meth.BufferMediumRisk
	}
	sizeRisk := 0.0
	if c.areaHa < c.meth.SmallProjectAreaHa {
		sizeRisk = c.meth.SmallProjectRisk
	}
	c.bufferFac = math.Min(c.meth.BufferCap, c.meth.BufferBase+risk+sizeRisk)
	c.bufferTC = (c.netTC - c.leakageTC - c.uncertTC) * c.bufferFac
	c.log.Infof("Buffer pool: %.0f%% = %.1f tC", c.bufferFac*100, c.bufferTC)
	return nil
}

// Finalize converts the remaining benefit to CO2-equivalent and runs the
// compliance gates. Failing a gate flags the result, never discards it.
func (c *Calculator) Finalize() (*Result, error) {
	if err := c.advance(stateBufferApplied, stateFinalized); err != nil {
		return nil, err
	}
	afterLeakage := c.netTC - c.leakageTC
	creditableTC := afterLeakage - c.uncertTC - c.bufferTC

	r := &Result{
		Version:              CalcResultVersion,
		Ecosystem:            c.eco.Name,
		CalculationMethod:    c.method,
		MethodologyVersion:   c.meth.Version,
		Scenario:             c.baseline.Scenario,
		ScenarioConservative: c.baseline.Conservative,
		AgeYears:             c.ageYears,
		GrowthFactor:         c.growthFactor,

		AreaHa:              c.areaHa,
		WeightedDensityTCHa: c.weightedDensity,
		ProjectStockTC:      c.stockTC,
		BaselineStockTC:     c.baseline.StockTC,
		NetBenefitTC:        c.netTC,

		LeakageFactor:          c.leakageFac,
		LeakageDeductionTC:     c.leakageTC,
		UncertaintyPercent:     c.uncertainty.Percentage,
		UncertaintyDeductionTC: c.uncertTC,
		BufferFactor:           c.bufferFac,
		BufferContributionTC:   c.bufferTC,

		VerifiedTCO2e:   afterLeakage * c.meth.CO2PerCarbon,
		CreditableTCO2e: math.Max(0, creditableTC*c.meth.CO2PerCarbon),

		Confidence:      c.confidence,
		UncertaintyTier: c.uncertainty.Tier,
		AreaCompliant:   c.areaHa >= c.meth.MinProjectAreaHa,
		ConfCompliant:   c.confidence >= c.meth.MinConfidence,
	}
	r.VCSEligible = r.AreaCompliant && r.ConfCompliant && c.uncertainty.Assessed
	c.log.Infof("Calculation complete: %.2f tCO2e creditable, %.2f tCO2e verified (eligible: %v)",
		r.CreditableTCO2e, r.VerifiedTCO2e, r.VCSEligible)
	return r, nil
}

// Calculate runs the whole pipeline in one call, from a detection result to
// the final credit record.
func (c *Calculator) Calculate(detection *detect.Result, ageYears float64, scenario Scenario) (*Result, error) {
	if err := c.ComputeStock(detection, ageYears); err != nil {
		return nil, err
	}
	return c.finishFromStock(scenario)
}

// CalculateFromPlots runs the whole pipeline over plot inventory data.
func (c *Calculator) CalculateFromPlots(plots []Plot, scenario Scenario) (*Result, error) {
	if err := c.ComputeStockFromPlots(plots); err != nil {
		return nil, err
	}
	return c.finishFromStock(scenario)
}

func (c *Calculator) finishFromStock(scenario Scenario) (*Result, error) {
	if err := c.EstablishBaseline(scenario); err != nil {
		return nil, err
	}
	if err := c.ApplyLeakage(); err != nil {
		return nil, err
	}
	if err := c.ApplyUncertainty(); err != nil {
		return nil, err
	}
	if err := c.ApplyBuffer(); err != nil {
		return nil, err
	}
	return c.Finalize()
}
