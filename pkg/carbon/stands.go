package carbon

import (
	"context"

	"github.com/cyclopcam/logs"

	"github.com/verdantmrv/canopy/pkg/detect"
)

// Stand is one independently calculated forest unit within a project. It
// carries either a detection result or plot inventory data (plots win when
// both are present).
type Stand struct {
	ID        string
	Detection *detect.Result
	Plots     []Plot
	Ecosystem *EcosystemParams
	AgeYears  float64
	Scenario  Scenario
}

const (
	StandSuccess = "Success"
	StandFailed  = "Failed"
)

// StandStatus records the outcome of one stand's calculation.
type StandStatus struct {
	ID     string  `json:"id"`
	Status string  `json:"status"`
	Error  string  `json:"error,omitempty"`
	Result *Result `json:"result,omitempty"`
}

// ProjectResult aggregates per-stand outcomes. Totals cover successful
// stands only.
type ProjectResult struct {
	Stands          []StandStatus `json:"stands"`
	Succeeded       int           `json:"succeeded"`
	Failed          int           `json:"failed"`
	VerifiedTCO2e   float64       `json:"verifiedCarbonUnitsTCO2e"`
	CreditableTCO2e float64       `json:"creditableCarbonUnitsTCO2e"`
}

// CalculateStands runs the credit calculation for every stand independently.
// A stand that fails is recorded with its reason and the remaining stands
// still compute. Cancellation is honored between stands: completed stands
// are kept and the partial result returns alongside the context error.
func CalculateStands(ctx context.Context, logger logs.Log, meth *Methodology, stands []Stand) (*ProjectResult, error) {
	if len(stands) == 0 {
		return nil, ErrNoForestData
	}
	project := &ProjectResult{}
	for _, stand := range stands {
		if err := ctx.Err(); err != nil {
			logger.Warnf("Calculation cancelled after %v of %v stands", len(project.Stands), len(stands))
			return project, err
		}
		result, err := calculateStand(logger, meth, stand)
		if err != nil {
			logger.Errorf("Stand %v failed: %v", stand.ID, err)
			project.Stands = append(project.Stands, StandStatus{ID: stand.ID, Status: StandFailed, Error: err.Error()})
			project.Failed++
			continue
		}
		project.Stands = append(project.Stands, StandStatus{ID: stand.ID, Status: StandSuccess, Result: result})
		project.Succeeded++
		project.VerifiedTCO2e += result.VerifiedTCO2e
		project.CreditableTCO2e += result.CreditableTCO2e
	}
	logger.Infof("Project calculation: %v succeeded, %v failed, %.2f tCO2e creditable",
		project.Succeeded, project.Failed, project.CreditableTCO2e)
	return project, nil
}

func calculateStand(logger logs.Log, meth *Methodology, stand Stand) (*Result, error) {
	calc, err := NewCalculator(logger, meth, stand.Ecosystem)
	if err != nil {
		return nil, err
	}
	if len(stand.Plots) > 0 {
		return calc.CalculateFromPlots(stand.Plots, stand.Scenario)
	}
	return calc.Calculate(stand.Detection, stand.AgeYears, stand.Scenario)
}
