package detect

// Uncertainty tiers follow carbon-standard convention: detection confidence
// maps onto a standardized uncertainty percentage, which the credit
// calculator later deducts.

type UncertaintyTier string

const (
	UncertaintyLow    UncertaintyTier = "low"
	UncertaintyMedium UncertaintyTier = "medium"
	UncertaintyHigh   UncertaintyTier = "high"
)

// Uncertainty is the standardized assessment attached to every detection
// result. A numeric estimate is never surfaced without one.
type Uncertainty struct {
	Tier             UncertaintyTier `json:"tier"`
	Percentage       float64         `json:"percentage"`       // 0..100
	BufferMultiplier float64         `json:"bufferMultiplier"` // recommended buffer sizing input
	SmallArea        bool            `json:"smallArea"`        // area below 1 ha forced the high tier
	Assessed         bool            `json:"assessed"`         // always true once computed; compliance gating is the calculator's job
}

// Tier thresholds and percentages.
const (
	uncertaintyLowConfidence    = 0.8
	uncertaintyMediumConfidence = 0.6
	uncertaintyLowPct           = 10.0
	uncertaintyMediumPct        = 20.0
	uncertaintyHighPct          = 35.0
	smallAreaFloorHa            = 1.0
	smallAreaPenaltyPct         = 10.0
	bufferMultiplierFactor      = 1.5
)

// AssessUncertainty maps an overall confidence score and detected area onto
// a tier and percentage. Areas below 1 ha are forced to the high tier with an
// extra penalty, since small-area estimates are inherently noisier.
func AssessUncertainty(confidence, areaHa float64) Uncertainty {
	u := Uncertainty{Assessed: true}
	switch {
	case confidence >= uncertaintyLowConfidence:
		u.Tier = UncertaintyLow
		u.Percentage = uncertaintyLowPct
	case confidence >= uncertaintyMediumConfidence:
		u.Tier = UncertaintyMedium
		u.Percentage = uncertaintyMediumPct
	default:
		u.Tier = UncertaintyHigh
		u.Percentage = uncertaintyHighPct
	}
	if areaHa < smallAreaFloorHa {
		u.Tier = UncertaintyHigh
		if u.Percentage < uncertaintyHighPct {
			u.Percentage = uncertaintyHighPct
		}
		u.Percentage += smallAreaPenaltyPct
		u.SmallArea = true
	}
	u.BufferMultiplier = u.Percentage * bufferMultiplierFactor / 100
	return u
}
