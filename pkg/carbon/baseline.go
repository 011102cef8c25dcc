package carbon

// Scenario names a baseline assumption about what happens to the forest
// without the project.
type Scenario string

const (
	// ScenarioHistorical assumes deforestation continues at the regional
	// historical rate.
	ScenarioHistorical Scenario = "historical_deforestation"
	// ScenarioBusinessAsUsual assumes substantial forest loss without any
	// conservation action.
	ScenarioBusinessAsUsual Scenario = "business_as_usual"
	// ScenarioDegradation assumes partial carbon loss through degradation
	// without complete clearing.
	ScenarioDegradation Scenario = "degradation"
)

// Baseline is the carbon stock assumed absent the project.
type Baseline struct {
	Scenario     Scenario `json:"scenario"`
	LossFraction float64  `json:"lossFraction"` // fraction of the stock assumed lost
	StockTC      float64  `json:"stockTC"`
	Conservative bool     `json:"conservative"` // true when an unknown scenario fell back to no-loss
}

// lossFraction maps a scenario to its assumed stock loss. The second return
// is false for unrecognized scenarios, which fail closed to the conservative
// no-loss baseline.
func (m *Methodology) lossFraction(s Scenario) (float64, bool) {
	switch s {
	case ScenarioHistorical:
		return m.HistoricalLossRate, true
	case ScenarioBusinessAsUsual:
		return m.BAULossFraction, true
	case ScenarioDegradation:
		return m.DegradationLossFraction, true
	}
	return 0, false
}
