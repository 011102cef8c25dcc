package carbon

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTreeAGB(t *testing.T) {
	eq, err := EquationByRef("chave_2014_moist")
	require.NoError(t, err)
	// 30 cm DBH, 20 m tall, wood density 0.6: pantropical moist fit.
	agb := eq.TreeAGBKg(0.6, 30, 20)
	expected := 0.0673 * math.Pow(0.6*30*30*20, 0.976)
	require.InDelta(t, expected, agb, 1e-9)
	require.Greater(t, agb, 400.0)
	require.Less(t, agb, 800.0)
}

func TestEquationByRef(t *testing.T) {
	eq, err := EquationByRef("")
	require.NoError(t, err)
	require.Equal(t, "chave_2014_moist", eq.Name)

	_, err = EquationByRef("no_such_equation")
	require.Error(t, err)
}

func TestPlotAGB(t *testing.T) {
	plot := Plot{
		ID:     "p1",
		AreaHa: 2,
		Species: []SpeciesRecord{
			{Name: "dipterocarp", StemsPerHa: 100, MeanDBHCm: 30, MeanHeightM: 20, WoodDensity: 0.6},
		},
	}
	agb, err := PlotAGB(plot, nil)
	require.NoError(t, err)
	eq, _ := EquationByRef("")
	perTree := eq.TreeAGBKg(0.6, 30, 20)
	require.InDelta(t, perTree/1000*100*2, agb, 1e-9)
}

func TestPlotAGBMissingWoodDensity(t *testing.T) {
	plot := Plot{
		ID:     "p2",
		AreaHa: 1,
		Species: []SpeciesRecord{
			{Name: "unidentified", StemsPerHa: 50, MeanDBHCm: 25, MeanHeightM: 15},
		},
	}
	_, err := PlotAGB(plot, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "wood density")

	// The ecosystem's wood density serves as the fallback.
	agb, err := PlotAGB(plot, &EcosystemParams{Name: "mixed", WoodDensity: 0.6})
	require.NoError(t, err)
	require.Greater(t, agb, 0.0)
}

func TestPlotStock(t *testing.T) {
	plots := []Plot{
		{ID: "a", AreaHa: 1, Species: []SpeciesRecord{{Name: "sp", StemsPerHa: 100, MeanDBHCm: 30, MeanHeightM: 20, WoodDensity: 0.6}}},
		{ID: "b", AreaHa: 3, Species: []SpeciesRecord{{Name: "sp", StemsPerHa: 100, MeanDBHCm: 30, MeanHeightM: 20, WoodDensity: 0.6}}},
	}
	meth := DefaultMethodology()
	stock, area, err := PlotStock(plots, nil, meth)
	require.NoError(t, err)
	require.InDelta(t, 4.0, area, 1e-9)

	eq, _ := EquationByRef("")
	agb := eq.TreeAGBKg(0.6, 30, 20) / 1000 * 100 * 4
	require.InDelta(t, agb*1.26*0.47, stock, 1e-6)
}

func TestPlotStockEmpty(t *testing.T) {
	_, _, err := PlotStock(nil, nil, DefaultMethodology())
	require.ErrorIs(t, err, ErrNoForestData)
}

func TestPlotStockBiomassCap(t *testing.T) {
	plots := []Plot{
		{ID: "dense", AreaHa: 1, Species: []SpeciesRecord{{Name: "sp", StemsPerHa: 2000, MeanDBHCm: 50, MeanHeightM: 35, WoodDensity: 0.8}}},
	}
	eco := &EcosystemParams{Name: "capped", MaxBiomassPerHa: 400}
	stock, _, err := PlotStock(plots, eco, DefaultMethodology())
	require.NoError(t, err)
	require.InDelta(t, 400*0.47, stock, 1e-6)
}
