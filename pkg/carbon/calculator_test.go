package carbon

import (
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"

	"github.com/verdantmrv/canopy/pkg/detect"
)

// denseForestDetection fabricates the detection record for 1000 ha of dense
// tropical forest at high confidence.
func denseForestDetection() *detect.Result {
	return &detect.Result{
		Version:     detect.ResultVersion,
		TotalAreaHa: 1000,
		Confidence:  0.96,
		Types: []detect.TypeDetection{
			{Type: "dense_tropical", AreaHa: 1000, Fraction: 1, Confidence: 0.96, CarbonDensity: 150, BiomassDensity: 320},
		},
		WeightedCarbonDensity: 150,
		Uncertainty:           detect.AssessUncertainty(0.96, 1000),
	}
}

func testEcosystem() *EcosystemParams {
	return &EcosystemParams{Name: "tropical_moist", CarbonDensityFallback: 120, WoodDensity: 0.6}
}

func TestCalculateDenseForest(t *testing.T) {
	calc, err := NewCalculator(logs.NewTestingLog(t), nil, testEcosystem())
	require.NoError(t, err)
	result, err := calc.Calculate(denseForestDetection(), 1, ScenarioHistorical)
	require.NoError(t, err)

	// 1000 ha x 150 tC/ha, no growth rate set so no age adjustment.
	require.InDelta(t, 150000, result.ProjectStockTC, 1e-6)
	// Historical baseline: 2% annual loss.
	require.InDelta(t, 147000, result.BaselineStockTC, 1e-6)
	require.InDelta(t, 3000, result.NetBenefitTC, 1e-6)

	// 1000 ha: 15% market leakage + 15% activity displacement, capped at 30%.
	require.InDelta(t, 0.30, result.LeakageFactor, 1e-9)
	require.InDelta(t, 900, result.LeakageDeductionTC, 1e-6)

	// Low uncertainty tier: 10% deduction on the post-leakage benefit.
	require.InDelta(t, 10, result.UncertaintyPercent, 1e-9)
	require.InDelta(t, 210, result.UncertaintyDeductionTC, 1e-6)

	// Buffer: 10% base + 5% low-tier risk, no small-project surcharge.
	require.InDelta(t, 0.15, result.BufferFactor, 1e-9)
	require.InDelta(t, 283.5, result.BufferContributionTC, 1e-6)

	require.InDelta(t, 2100*44.0/12.0, result.VerifiedTCO2e, 1e-6)
	require.InDelta(t, 1606.5*44.0/12.0, result.CreditableTCO2e, 1e-6)
	require.True(t, result.VCSEligible)
	require.LessOrEqual(t, result.CreditableTCO2e, result.VerifiedTCO2e)
}

func TestCalculatePartialTypeCoverage(t *testing.T) {
	// The type breakdown usually covers less than the combined mask. The
	// baseline must scale with the project stock, not overshoot it, or the net
	// benefit collapses to zero.
	detection := denseForestDetection()
	detection.Types[0].AreaHa = 900
	detection.Types[0].Fraction = 0.9
	calc, err := NewCalculator(logs.NewTestingLog(t), nil, testEcosystem())
	require.NoError(t, err)
	result, err := calc.Calculate(detection, 1, ScenarioHistorical)
	require.NoError(t, err)

	require.InDelta(t, 135000, result.ProjectStockTC, 1e-6)
	require.InDelta(t, 135, result.WeightedDensityTCHa, 1e-9)
	// Historical 2% loss over the same stock.
	require.InDelta(t, 132300, result.BaselineStockTC, 1e-6)
	require.InDelta(t, 2700, result.NetBenefitTC, 1e-6)
	require.Greater(t, result.CreditableTCO2e, 0.0)
}

func TestCalculateRoundTrip(t *testing.T) {
	// The final quantity must be reproducible from the stored factors alone.
	calc, err := NewCalculator(logs.NewTestingLog(t), nil, testEcosystem())
	require.NoError(t, err)
	r, err := calc.Calculate(denseForestDetection(), 1, ScenarioHistorical)
	require.NoError(t, err)

	reproduced := r.NetBenefitTC *
		(1 - r.LeakageFactor) *
		(1 - r.UncertaintyPercent/100) *
		(1 - r.BufferFactor) *
		(44.0 / 12.0)
	require.InDelta(t, reproduced, r.CreditableTCO2e, 1e-6)
}

func TestCalculateUncertaintyMonotonic(t *testing.T) {
	// More uncertainty must never yield more creditable units.
	previous := -1.0
	for _, pct := range []float64{45, 35, 20, 10, 0} {
		detection := denseForestDetection()
		detection.Uncertainty.Percentage = pct
		calc, err := NewCalculator(logs.NewTestingLog(t), nil, testEcosystem())
		require.NoError(t, err)
		r, err := calc.Calculate(detection, 1, ScenarioHistorical)
		require.NoError(t, err)
		require.GreaterOrEqual(t, r.CreditableTCO2e, previous)
		previous = r.CreditableTCO2e
	}
}

func TestCalculateSmallAreaNotEligible(t *testing.T) {
	// Below the 0.5 ha floor the numbers still compute, flagged ineligible.
	detection := &detect.Result{
		TotalAreaHa: 0.05,
		Confidence:  0.9,
		Types: []detect.TypeDetection{
			{Type: "dense_tropical", AreaHa: 0.05, Fraction: 1, Confidence: 0.9, CarbonDensity: 150},
		},
		Uncertainty: detect.AssessUncertainty(0.9, 0.05),
	}
	calc, err := NewCalculator(logs.NewTestingLog(t), nil, testEcosystem())
	require.NoError(t, err)
	r, err := calc.Calculate(detection, 1, ScenarioHistorical)
	require.NoError(t, err)
	require.False(t, r.VCSEligible)
	require.False(t, r.AreaCompliant)
	require.True(t, r.ConfCompliant)
	require.Greater(t, r.ProjectStockTC, 0.0)
}

func TestCalculateUnknownScenario(t *testing.T) {
	// Unknown scenario names fall back to the conservative no-loss baseline.
	calc, err := NewCalculator(logs.NewTestingLog(t), nil, testEcosystem())
	require.NoError(t, err)
	r, err := calc.Calculate(denseForestDetection(), 1, Scenario("asteroid_strike"))
	require.NoError(t, err)
	require.True(t, r.ScenarioConservative)
	require.InDelta(t, r.ProjectStockTC, r.BaselineStockTC, 1e-6)
	require.EqualValues(t, 0, r.NetBenefitTC)
	require.EqualValues(t, 0, r.CreditableTCO2e)
}

func TestCalculateScenarioLossFractions(t *testing.T) {
	for _, c := range []struct {
		scenario Scenario
		baseline float64
	}{
		{ScenarioHistorical, 147000},
		{ScenarioBusinessAsUsual, 75000},
		{ScenarioDegradation, 105000},
	} {
		calc, err := NewCalculator(logs.NewTestingLog(t), nil, testEcosystem())
		require.NoError(t, err)
		r, err := calc.Calculate(denseForestDetection(), 1, c.scenario)
		require.NoError(t, err)
		require.InDelta(t, c.baseline, r.BaselineStockTC, 1e-6, "scenario %v", c.scenario)
		require.False(t, r.ScenarioConservative)
	}
}

func TestCalculateGrowthFactor(t *testing.T) {
	eco := testEcosystem()
	eco.BiomassGrowthRate = 0.1
	calc, err := NewCalculator(logs.NewTestingLog(t), nil, eco)
	require.NoError(t, err)
	r, err := calc.Calculate(denseForestDetection(), 10, ScenarioHistorical)
	require.NoError(t, err)
	// 1 - e^(-0.1*10) ~ 0.632
	require.InDelta(t, 0.6321, r.GrowthFactor, 1e-3)
	require.InDelta(t, 150000*r.GrowthFactor, r.ProjectStockTC, 1e-6)
}

func TestCalculateFallbackDensity(t *testing.T) {
	// No type breakdown: the ecosystem's fallback density covers the area.
	detection := &detect.Result{
		TotalAreaHa: 100,
		Confidence:  0.7,
		Uncertainty: detect.AssessUncertainty(0.7, 100),
	}
	calc, err := NewCalculator(logs.NewTestingLog(t), nil, testEcosystem())
	require.NoError(t, err)
	r, err := calc.Calculate(detection, 1, ScenarioHistorical)
	require.NoError(t, err)
	require.InDelta(t, 100*120, r.ProjectStockTC, 1e-6)
}

func TestCalculatorRequiresEcosystem(t *testing.T) {
	_, err := NewCalculator(logs.NewTestingLog(t), nil, nil)
	require.ErrorIs(t, err, ErrMissingEcosystem)
}

func TestCalculatorStateOrder(t *testing.T) {
	calc, err := NewCalculator(logs.NewTestingLog(t), nil, testEcosystem())
	require.NoError(t, err)

	// Steps out of order must fail.
	require.Error(t, calc.EstablishBaseline(ScenarioHistorical))
	require.Error(t, calc.ApplyLeakage())

	require.NoError(t, calc.ComputeStock(denseForestDetection(), 1))
	// Re-entry is not allowed.
	require.Error(t, calc.ComputeStock(denseForestDetection(), 1))
	require.NoError(t, calc.EstablishBaseline(ScenarioHistorical))
	require.Error(t, calc.EstablishBaseline(ScenarioHistorical))
	require.NoError(t, calc.ApplyLeakage())
	require.NoError(t, calc.ApplyUncertainty())
	require.NoError(t, calc.ApplyBuffer())
	result, err := calc.Finalize()
	require.NoError(t, err)
	require.NotNil(t, result)
	_, err = calc.Finalize()
	require.Error(t, err)
}

func TestCalculateZeroForest(t *testing.T) {
	// A detection with no forest yields zero credits without an error.
	detection := &detect.Result{Uncertainty: detect.AssessUncertainty(0, 0)}
	calc, err := NewCalculator(logs.NewTestingLog(t), nil, testEcosystem())
	require.NoError(t, err)
	r, err := calc.Calculate(detection, 1, ScenarioHistorical)
	require.NoError(t, err)
	require.EqualValues(t, 0, r.ProjectStockTC)
	require.EqualValues(t, 0, r.CreditableTCO2e)
	require.False(t, r.VCSEligible)
}

func TestCalculateNilDetection(t *testing.T) {
	calc, err := NewCalculator(logs.NewTestingLog(t), nil, testEcosystem())
	require.NoError(t, err)
	_, err = calc.Calculate(nil, 1, ScenarioHistorical)
	require.ErrorIs(t, err, ErrNoForestData)
}
