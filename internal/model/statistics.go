package model

import (
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/VirtualPhotonics/VTS-sub010/internal/errs"
	"github.com/VirtualPhotonics/VTS-sub010/internal/photon"
	"github.com/VirtualPhotonics/VTS-sub010/internal/utils"
)

const StatisticsFile = "statistics.toml"

// Statistics counts how photons ended and the weight they carried out.
type Statistics struct {
	Photons                     int64   `toml:"Photons"`
	Reflected                   int64   `toml:"Reflected"`
	Transmitted                 int64   `toml:"Transmitted"`
	BoundingVolume              int64   `toml:"BoundingVolume"`
	Absorbed                    int64   `toml:"Absorbed"`
	KilledRussianRoulette       int64   `toml:"KilledRussianRoulette"`
	KilledOverMaximumPathLength int64   `toml:"KilledOverMaximumPathLength"`
	KilledOverMaximumCollisions int64   `toml:"KilledOverMaximumCollisions"`
	ReflectedWeight             float64 `toml:"ReflectedWeight"`
	TransmittedWeight           float64 `toml:"TransmittedWeight"`
	SpecularWeight              float64 `toml:"SpecularWeight"`
	TotalCollisions             int64   `toml:"TotalCollisions"`
	TotalPathLength             float64 `toml:"TotalPathLength"` // [mm]
}

func (s *Statistics) add(p *photon.Photon) {
	s.Photons++
	s.TotalCollisions += p.NumberOfCollisions
	s.TotalPathLength += p.TotalPathLength
	f := p.DP.StateFlag
	switch {
	case f.Has(photon.PseudoReflectedTissueBoundary):
		s.Reflected++
		s.ReflectedWeight += p.DP.Weight
	case f.Has(photon.PseudoTransmittedTissueBoundary):
		s.Transmitted++
		s.TransmittedWeight += p.DP.Weight
	case f.Has(photon.PseudoBoundingVolumeTissueBoundary):
		s.BoundingVolume++
	case f.Has(photon.Absorbed):
		s.Absorbed++
	case f.Has(photon.KilledRussianRoulette):
		s.KilledRussianRoulette++
	case f.Has(photon.KilledOverMaximumPathLength):
		s.KilledOverMaximumPathLength++
	case f.Has(photon.KilledOverMaximumCollisions):
		s.KilledOverMaximumCollisions++
	}
}

func (s *Statistics) merge(o *Statistics) {
	s.Photons += o.Photons
	s.Reflected += o.Reflected
	s.Transmitted += o.Transmitted
	s.BoundingVolume += o.BoundingVolume
	s.Absorbed += o.Absorbed
	s.KilledRussianRoulette += o.KilledRussianRoulette
	s.KilledOverMaximumPathLength += o.KilledOverMaximumPathLength
	s.KilledOverMaximumCollisions += o.KilledOverMaximumCollisions
	s.ReflectedWeight += o.ReflectedWeight
	s.TransmittedWeight += o.TransmittedWeight
	s.SpecularWeight += o.SpecularWeight
	s.TotalCollisions += o.TotalCollisions
	s.TotalPathLength += o.TotalPathLength
}

func (s *Statistics) Write(dir string) error {
	f, err := utils.OpenFile(dir, StatisticsFile)
	if err != nil {
		return errs.IO(err, "statistics")
	}
	if err := toml.NewEncoder(f).Encode(s); err != nil {
		f.Close()
		return errs.IO(err, "writing %s", filepath.Join(dir, StatisticsFile))
	}
	if err := f.Close(); err != nil {
		return errs.IO(err, "writing %s", filepath.Join(dir, StatisticsFile))
	}
	return nil
}
