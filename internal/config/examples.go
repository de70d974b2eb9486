package config

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/VirtualPhotonics/VTS-sub010/internal/database"
	"github.com/VirtualPhotonics/VTS-sub010/internal/detector"
	"github.com/VirtualPhotonics/VTS-sub010/internal/optics"
	"github.com/VirtualPhotonics/VTS-sub010/internal/photon"
	"github.com/VirtualPhotonics/VTS-sub010/internal/source"
	"github.com/VirtualPhotonics/VTS-sub010/internal/tissue"
)

var (
	air    = optics.New(0, 0, 0, 1.0)
	dermis = optics.New(0.01, 1.0, 0.8, 1.4)
	blood  = optics.New(1.0, 1.0, 0.8, 1.4)
)

func slab(thickness float64, ops optics.OpticalProperties) tissue.Input {
	return tissue.Input{
		Kind: tissue.MultiLayerKind,
		Layers: []tissue.RegionInput{
			tissue.LayerInput(math.Inf(-1), 0, air),
			tissue.LayerInput(0, thickness, ops),
			tissue.LayerInput(thickness, math.Inf(1), air),
		},
	}
}

func withDefaults(in SimulationInput) SimulationInput {
	d := Defaults()
	d.OutputName = in.OutputName
	if in.N > 0 {
		d.N = in.N
	}
	if in.Options.AbsorptionWeightingType != "" {
		d.Options.AbsorptionWeightingType = in.Options.AbsorptionWeightingType
	}
	d.Options.Databases = in.Options.Databases
	d.Tissue = in.Tissue
	if in.Source.Kind != "" {
		d.Source = in.Source
	}
	d.Detectors = in.Detectors
	return d
}

// Examples are the templates written by the infile command, keyed by output name.
func Examples() map[string]SimulationInput {
	rho := optics.NewDoubleRange(0, 10, 101)
	ins := []SimulationInput{
		{
			OutputName: "one_layer_ROfRho",
			Tissue:     slab(100, dermis),
			Detectors: []detector.Input{
				{TallyType: detector.RDiffuse},
				{TallyType: detector.RSpecular},
				{TallyType: detector.ROfRho, Rho: rho, TallySecondMoment: true},
				{TallyType: detector.ROfRhoAndTime, Rho: rho, Time: optics.NewDoubleRange(0, 1, 101)},
				{TallyType: detector.ROfFx, Fx: optics.NewDoubleRange(0, 0.5, 51)},
			},
		},
		{
			OutputName: "one_layer_pMC_database",
			N:          100000,
			Options:    Options{Databases: []database.Kind{database.PMCDiffuseReflectance}},
			Tissue:     slab(100, dermis),
			Detectors:  []detector.Input{{TallyType: detector.ROfRho, Rho: rho}},
		},
		{
			OutputName: "ellipsoid_FluenceOfRhoAndZ",
			Tissue: tissue.Input{
				Kind:   tissue.SingleInclusionKind,
				Layers: slab(100, dermis).Layers,
				Inclusion: &tissue.RegionInput{
					Shape:  tissue.Ellipsoid,
					Center: r3.Vec{Z: 5},
					Dx:     1,
					Dy:     1,
					Dz:     1,
					Ops:    optics.InputFrom(blood),
				},
			},
			Detectors: []detector.Input{
				{TallyType: detector.ATotal},
				{TallyType: detector.FluenceOfRhoAndZ, Rho: rho, Z: optics.NewDoubleRange(0, 10, 101)},
			},
		},
		{
			OutputName: "Gaussian_beam_ROfXAndY",
			Options:    Options{AbsorptionWeightingType: photon.Continuous},
			Tissue:     slab(20, dermis),
			Source: source.Input{
				Kind:             source.DirectionalCircular,
				Direction:        r3.Vec{Z: 1},
				Profile:          source.Gaussian,
				OuterRadius:      3,
				BeamDiameterFWHM: 2,
			},
			Detectors: []detector.Input{
				{TallyType: detector.ROfXAndY, X: optics.NewDoubleRange(-10, 10, 101), Y: optics.NewDoubleRange(-10, 10, 101)},
				{TallyType: detector.TDiffuse},
				{TallyType: detector.TOfRho, Rho: rho},
			},
		},
	}
	out := make(map[string]SimulationInput, len(ins))
	for _, in := range ins {
		out[in.OutputName] = withDefaults(in)
	}
	return out
}
