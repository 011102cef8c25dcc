package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/logs"

	"github.com/verdantmrv/canopy/pkg/carbon"
	"github.com/verdantmrv/canopy/pkg/detect"
	"github.com/verdantmrv/canopy/pkg/raster"
	"github.com/verdantmrv/canopy/pkg/render"
)

func check(err error) {
	if err != nil {
		panic(err)
	}
}

type output struct {
	Detection *detect.Result `json:"detection"`
	Credits   *carbon.Result `json:"credits,omitempty"`
}

func main() {
	parser := argparse.NewParser("canopy", "Detect forest cover in an image and quantify carbon credits")
	input := parser.String("i", "input", &argparse.Options{Help: "Input image file (jpeg or png)", Required: true})
	outFile := parser.File("o", "output", os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0664, &argparse.Options{Help: "Output result JSON file", Required: true})
	scale := parser.Float("s", "scale", &argparse.Options{Help: "Ground scale in meters per pixel", Required: true})
	forestType := parser.String("t", "type", &argparse.Options{Help: "Restrict classification to a named forest type", Required: false, Default: ""})
	signaturesFile := parser.String("", "signatures", &argparse.Options{Help: "Forest type signatures JSON file (built-in set if omitted)", Required: false, Default: ""})
	ecosystemFile := parser.String("e", "ecosystem", &argparse.Options{Help: "Ecosystem parameters JSON file; enables credit calculation", Required: false, Default: ""})
	methodologyFile := parser.String("", "methodology", &argparse.Options{Help: "Methodology constants JSON file (VM0007 defaults if omitted)", Required: false, Default: ""})
	age := parser.Float("a", "age", &argparse.Options{Help: "Project age in years", Required: false, Default: 1.0})
	scenario := parser.String("b", "baseline", &argparse.Options{Help: "Baseline scenario (historical_deforestation, business_as_usual, degradation)", Required: false, Default: string(carbon.ScenarioHistorical)})
	overlayPath := parser.String("", "overlay", &argparse.Options{Help: "Write a mask overlay PNG to this path", Required: false, Default: ""})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, _ := logs.NewLog()

	img, err := raster.ReadFile(*input, *scale)
	check(err)

	registry := detect.DefaultRegistry()
	if *signaturesFile != "" {
		registry, err = detect.LoadRegistry(*signaturesFile)
		check(err)
	}

	detector := detect.NewDetector(logger, registry)
	result, err := detector.Detect(context.Background(), img, detect.Options{ForestType: *forestType})
	check(err)

	out := output{Detection: result}

	if *ecosystemFile != "" {
		eco, err := carbon.LoadEcosystem(*ecosystemFile)
		check(err)
		meth := carbon.DefaultMethodology()
		if *methodologyFile != "" {
			meth, err = carbon.LoadMethodology(*methodologyFile)
			check(err)
		}
		calc, err := carbon.NewCalculator(logger, meth, eco)
		check(err)
		credits, err := calc.Calculate(result, *age, carbon.Scenario(*scenario))
		check(err)
		out.Credits = credits
	}

	if *overlayPath != "" {
		check(render.Overlay(img, result.Mask, result, *overlayPath))
	}

	encoder := json.NewEncoder(outFile)
	encoder.SetIndent("", "  ")
	check(encoder.Encode(out))
}
