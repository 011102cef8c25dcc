package carbon

import (
	"fmt"
	"math"
)

// AllometricEquation estimates single-tree above-ground biomass in kg as
// A * (WD * DBH^2 * H)^B, with wood density in g/cm3, diameter at breast
// height in cm and height in m.
type AllometricEquation struct {
	Name string
	A    float64
	B    float64
}

// Pantropical equation set. Coefficients follow Chave et al. 2014 for the
// moist and dry fits, with a mangrove-specific fit alongside.
var allometricEquations = map[string]AllometricEquation{
	"chave_2014_moist": {Name: "chave_2014_moist", A: 0.0673, B: 0.976},
	"chave_2014_dry":   {Name: "chave_2014_dry", A: 0.0509, B: 0.976},
	"komiyama_2008":    {Name: "komiyama_2008", A: 0.251, B: 0.88},
}

const defaultAllometricRef = "chave_2014_moist"

// EquationByRef resolves a named allometric equation. Empty ref selects the
// pantropical moist-forest default.
func EquationByRef(ref string) (AllometricEquation, error) {
	if ref == "" {
		ref = defaultAllometricRef
	}
	eq, ok := allometricEquations[ref]
	if !ok {
		return AllometricEquation{}, fmt.Errorf("unknown allometric equation %q", ref)
	}
	return eq, nil
}

// TreeAGBKg returns the above-ground biomass of a single tree in kg.
func (eq AllometricEquation) TreeAGBKg(woodDensity, dbhCm, heightM float64) float64 {
	return eq.A * math.Pow(woodDensity*dbhCm*dbhCm*heightM, eq.B)
}

// SpeciesRecord is one species' field measurements within a plot.
type SpeciesRecord struct {
	Name        string  `json:"name"`
	StemsPerHa  float64 `json:"stemsPerHa"`
	MeanDBHCm   float64 `json:"meanDBHCm"`
	MeanHeightM float64 `json:"meanHeightM"`
	// WoodDensity in g/cm3. Zero falls back to the ecosystem's density.
	WoodDensity float64 `json:"woodDensity,omitempty"`
}

// Plot is a field inventory plot with per-species composition.
type Plot struct {
	ID      string          `json:"id"`
	AreaHa  float64         `json:"areaHa"`
	Species []SpeciesRecord `json:"species"`
}

// PlotAGB returns the plot's total above-ground biomass in tonnes. A species
// with no wood density available anywhere is an error, not a silent skip:
// dropping stems would understate nothing but hide bad inventory data.
func PlotAGB(plot Plot, eco *EcosystemParams) (float64, error) {
	ref := ""
	fallbackWD := 0.0
	if eco != nil {
		ref = eco.AllometricRef
		fallbackWD = eco.WoodDensity
	}
	eq, err := EquationByRef(ref)
	if err != nil {
		return 0, err
	}
	if plot.AreaHa <= 0 {
		return 0, fmt.Errorf("plot %v has non-positive area %.3f ha", plot.ID, plot.AreaHa)
	}
	total := 0.0
	for _, sp := range plot.Species {
		wd := sp.WoodDensity
		if wd == 0 {
			wd = fallbackWD
		}
		if wd <= 0 {
			return 0, fmt.Errorf("plot %v species %v: no wood density available", plot.ID, sp.Name)
		}
		if sp.MeanDBHCm <= 0 || sp.MeanHeightM <= 0 || sp.StemsPerHa <= 0 {
			return 0, fmt.Errorf("plot %v species %v: incomplete measurements", plot.ID, sp.Name)
		}
		perTreeKg := eq.TreeAGBKg(wd, sp.MeanDBHCm, sp.MeanHeightM)
		total += perTreeKg / 1000 * sp.StemsPerHa * plot.AreaHa
	}
	return total, nil
}

// PlotStock converts plot inventories into a carbon stock in tC: AGB from
// allometry, BGB via the root:shoot ratio, biomass to carbon via the carbon
// fraction. Returns total carbon and total area.
func PlotStock(plots []Plot, eco *EcosystemParams, meth *Methodology) (stockTC, areaHa float64, err error) {
	if len(plots) == 0 {
		return 0, 0, ErrNoForestData
	}
	totalAGB := 0.0
	for _, plot := range plots {
		agb, err := PlotAGB(plot, eco)
		if err != nil {
			return 0, 0, err
		}
		totalAGB += agb
		areaHa += plot.AreaHa
	}
	totalBiomass := totalAGB * (1 + meth.RootShootRatio)
	if eco != nil && eco.MaxBiomassPerHa > 0 && areaHa > 0 {
		cap := eco.MaxBiomassPerHa * areaHa
		if totalBiomass > cap {
			totalBiomass = cap
		}
	}
	return totalBiomass * meth.CarbonFraction, areaHa, nil
}
