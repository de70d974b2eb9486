package photon

import (
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// StateFlag is the bitmask describing the fate of a photon
// and the surfaces it was recorded on.
type StateFlag int32

const (
	Alive StateFlag = 1 << iota
	Absorbed
	KilledRussianRoulette
	KilledOverMaximumPathLength
	KilledOverMaximumCollisions
	PseudoReflectedTissueBoundary
	PseudoTransmittedTissueBoundary
	PseudoSpecularTissueBoundary
	PseudoBoundingVolumeTissueBoundary
	PseudoDiffuseReflectanceVirtualBoundary
	PseudoDiffuseTransmittanceVirtualBoundary
	PseudoSpecularReflectanceVirtualBoundary
	PseudoSurfaceRadianceVirtualBoundary
	PseudoBoundingVolumeVirtualBoundary
	PseudoCollision
	None StateFlag = 0
)

var flagNames = []string{
	"Alive",
	"Absorbed",
	"KilledRussianRoulette",
	"KilledOverMaximumPathLength",
	"KilledOverMaximumCollisions",
	"PseudoReflectedTissueBoundary",
	"PseudoTransmittedTissueBoundary",
	"PseudoSpecularTissueBoundary",
	"PseudoBoundingVolumeTissueBoundary",
	"PseudoDiffuseReflectanceVirtualBoundary",
	"PseudoDiffuseTransmittanceVirtualBoundary",
	"PseudoSpecularReflectanceVirtualBoundary",
	"PseudoSurfaceRadianceVirtualBoundary",
	"PseudoBoundingVolumeVirtualBoundary",
	"PseudoCollision",
}

// Killed groups the flags ending a photon without it leaving the tissue.
const Killed = Absorbed | KilledRussianRoulette | KilledOverMaximumPathLength | KilledOverMaximumCollisions

func (s StateFlag) Has(f StateFlag) bool { return s&f != 0 }

func (s StateFlag) Add(f StateFlag) StateFlag { return s | f }

func (s StateFlag) Remove(f StateFlag) StateFlag { return s &^ f }

func (s StateFlag) String() string {
	if s == None {
		return "None"
	}
	var names []string
	for i, name := range flagNames {
		if s.Has(1 << i) {
			names = append(names, name)
		}
	}
	return strings.Join(names, "|")
}

// DataPoint is a snapshot of a photon.
type DataPoint struct {
	Position  r3.Vec
	Direction r3.Vec
	Weight    float64
	TotalTime float64 // ns
	StateFlag StateFlag
}

func NewDataPoint(position, direction r3.Vec, weight, totalTime float64, flag StateFlag) DataPoint {
	return DataPoint{Position: position, Direction: direction, Weight: weight, TotalTime: totalTime, StateFlag: flag}
}

func (dp DataPoint) Clone() DataPoint { return dp }

// SubRegionCollisionInfo holds the statistics of a photon inside one region.
type SubRegionCollisionInfo struct {
	PathLength         float64
	NumberOfCollisions int64
}

// CollisionInfo is indexed by region.
type CollisionInfo []SubRegionCollisionInfo

func NewCollisionInfo(regions int) CollisionInfo {
	return make(CollisionInfo, regions)
}

func (c CollisionInfo) Clone() CollisionInfo {
	out := make(CollisionInfo, len(c))
	copy(out, c)
	return out
}

func (c CollisionInfo) Reset() {
	clear(c)
}

// TotalPathLength sums the path length over every region.
func (c CollisionInfo) TotalPathLength() float64 {
	var l float64
	for _, s := range c {
		l += s.PathLength
	}
	return l
}
