// Package photon holds the random walk state of a photon packet
// and the elementary transport steps applied to it.
package photon

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/VirtualPhotonics/VTS-sub010/internal/constants"
	"github.com/VirtualPhotonics/VTS-sub010/internal/optics"
	"github.com/VirtualPhotonics/VTS-sub010/internal/phase"
	"github.com/VirtualPhotonics/VTS-sub010/internal/rng"
	"github.com/VirtualPhotonics/VTS-sub010/internal/tissue"
)

// Options tune the transport of every photon of a run.
type Options struct {
	AbsorptionWeighting AbsorptionWeightingType
	WeightThreshold     float64
	ChanceFactor        float64
	MaxPathLength       float64 // 0 disables the check
	MaxCollisions       int64   // 0 disables the check
	TrackHistory        bool
}

// DefaultOptions returns discrete weighting with the default roulette.
func DefaultOptions() Options {
	return Options{
		AbsorptionWeighting: Discrete,
		WeightThreshold:     constants.DefaultWeightThreshold,
		ChanceFactor:        constants.DefaultChanceFactor,
		MaxCollisions:       constants.DefaultMaxCollisions,
	}
}

// History is the sequence of points a photon went through.
// Regions[i] is the region of the segment ending at Points[i].
type History struct {
	Points  []DataPoint
	Regions []int
	AWT     AbsorptionWeightingType
	Ops     []optics.OpticalProperties
}

func (h *History) Add(dp DataPoint, region int) {
	h.Points = append(h.Points, dp)
	h.Regions = append(h.Regions, region)
}

func (h *History) Reset() {
	h.Points = h.Points[:0]
	h.Regions = h.Regions[:0]
}

func (h *History) Len() int { return len(h.Points) }

// AbsorbedWeight is the weight deposited on the segment ending at point i.
func (h *History) AbsorbedWeight(i int) float64 {
	if i < 1 {
		return 0
	}
	return h.AWT.AbsorbedWeight(h.Points[i-1], h.Points[i], h.Ops[h.Regions[i]])
}

// Fluence is the fluence contribution of the segment ending at point i.
func (h *History) Fluence(i int) float64 {
	if i < 1 {
		return 0
	}
	return h.AWT.Fluence(h.Points[i-1], h.Points[i], h.Ops[h.Regions[i]])
}

// Photon is the mutable state of one packet.
// It is confined to the goroutine running its simulation.
type Photon struct {
	DP DataPoint

	// S is the physical length of the current step.
	S float64
	// SLeft is the optical depth still to travel before the next collision.
	SLeft float64

	CurrentRegionIndex int
	CollisionInfo      CollisionInfo
	History            History
	NumberOfCollisions int64
	TotalPathLength    float64

	tissue tissue.Tissue
	ops    []optics.OpticalProperties
	rng    rng.Source
	opts   Options
}

// New places a photon in region with the state of dp.
// ops are the optical properties of every region of t.
func New(dp DataPoint, region int, t tissue.Tissue, ops []optics.OpticalProperties, r rng.Source, opts Options) *Photon {
	dp.StateFlag = dp.StateFlag.Add(Alive)
	p := &Photon{
		DP:                 dp,
		CurrentRegionIndex: region,
		CollisionInfo:      NewCollisionInfo(len(ops)),
		tissue:             t,
		ops:                ops,
		rng:                r,
		opts:               opts,
	}
	if opts.TrackHistory {
		p.History = History{AWT: opts.AbsorptionWeighting, Ops: ops}
		p.History.Add(p.DP, region)
	}
	return p
}

func (p *Photon) Alive() bool { return p.DP.StateFlag.Has(Alive) }

func (p *Photon) Options() Options { return p.opts }

func (p *Photon) regionOps() optics.OpticalProperties { return p.ops[p.CurrentRegionIndex] }

func (p *Photon) kill(f StateFlag) {
	p.DP.StateFlag = p.DP.StateFlag.Add(f).Remove(Alive)
}

// SetStepSize samples a new optical depth when the previous one is used up
// and converts it to a length in the current region.
func (p *Photon) SetStepSize() {
	if p.SLeft == 0 {
		p.SLeft = -math.Log(1. - p.rng.Float64())
	}
	coef := p.opts.AbsorptionWeighting.StepCoefficient(p.regionOps())
	if coef > 0 {
		p.S = p.SLeft / coef
	} else {
		p.S = math.Inf(1)
	}
}

// DistanceToTime converts a path length in mm to ns in a medium of index n.
func DistanceToTime(distance, n float64) float64 {
	return distance / (constants.SpeedOfLight / n)
}

// Move advances the photon along its direction
// and keeps the step bookkeeping consistent.
func (p *Photon) Move(distance float64) {
	ops := p.regionOps()
	p.DP.Position = r3.Add(p.DP.Position, r3.Scale(distance, p.DP.Direction))
	p.DP.TotalTime += DistanceToTime(distance, ops.N())
	p.CollisionInfo[p.CurrentRegionIndex].PathLength += distance
	p.TotalPathLength += distance
	if p.opts.AbsorptionWeighting == Continuous && ops.Mua() > 0 {
		p.DP.Weight *= math.Exp(-ops.Mua() * distance)
	}

	switch {
	case math.IsInf(p.S, 1):
	case distance >= p.S:
		p.SLeft = 0
		p.S = 0
	default:
		p.S -= distance
		p.SLeft = p.S * p.opts.AbsorptionWeighting.StepCoefficient(ops)
	}
}

// CrossRegionOrReflect handles a photon sitting on a region boundary:
// it is reflected with the Fresnel probability, otherwise refracted into
// the neighbouring region. Leaving the tissue kills the photon with
// the matching pseudo flag.
func (p *Photon) CrossRegionOrReflect() {
	from := p.CurrentRegionIndex
	pos, dir := p.DP.Position, p.DP.Direction
	to := p.tissue.NeighborRegionIndex(pos, dir, from)
	if to == from {
		return
	}
	exit := p.tissue.Exit(from, to)
	if exit == tissue.ExitBoundingVolume {
		p.CurrentRegionIndex = to
		p.kill(PseudoBoundingVolumeTissueBoundary)
		return
	}

	normal := p.tissue.Normal(pos, from)
	n1, n2 := p.ops[from].N(), p.ops[to].N()
	reflectance, cosT := tissue.Fresnel(n1, n2, r3.Dot(dir, normal))
	if reflectance >= 1 || (reflectance > 0 && p.rng.Float64() < reflectance) {
		p.DP.Direction = tissue.Reflect(dir, normal)
		return
	}
	p.DP.Direction = tissue.Refract(dir, normal, n1, n2, cosT)
	p.CurrentRegionIndex = to
	switch exit {
	case tissue.ExitTop:
		p.kill(PseudoReflectedTissueBoundary)
	case tissue.ExitBottom:
		p.kill(PseudoTransmittedTissueBoundary)
	}
}

// Leave ends a photon heading to infinity in an ambient region,
// flagged by the side it left the tissue on.
func (p *Photon) Leave() {
	switch p.tissue.Exit(p.CurrentRegionIndex, p.CurrentRegionIndex) {
	case tissue.ExitBottom:
		p.kill(PseudoTransmittedTissueBoundary)
	case tissue.ExitBoundingVolume:
		p.kill(PseudoBoundingVolumeTissueBoundary)
	default:
		p.kill(PseudoReflectedTissueBoundary)
	}
}

// Absorb applies the collision part of the absorption weighting.
// Continuous weighting acts in Move instead.
func (p *Photon) Absorb() {
	ops := p.regionOps()
	if ops.Mut() == 0 {
		return
	}
	switch p.opts.AbsorptionWeighting {
	case Analog:
		if p.rng.Float64() < ops.Mua()/ops.Mut() {
			p.kill(Absorbed)
		}
	case Discrete:
		p.DP.Weight -= p.DP.Weight * ops.Mua() / ops.Mut()
	}
}

// Scatter samples a new direction from the phase function of the current region.
func (p *Photon) Scatter() {
	f := p.tissue.PhaseFunction(p.CurrentRegionIndex)
	p.DP.Direction = phase.Scatter(f, p.DP.Direction, p.rng)
	p.CollisionInfo[p.CurrentRegionIndex].NumberOfCollisions++
	p.NumberOfCollisions++
}

// TestRoulette plays Russian roulette once the weight drops under the threshold:
// the photon survives with probability 1/ChanceFactor and its weight
// is multiplied by ChanceFactor.
func (p *Photon) TestRoulette() {
	if !p.opts.AbsorptionWeighting.UsesRoulette() || !p.Alive() {
		return
	}
	if p.DP.Weight >= p.opts.WeightThreshold {
		return
	}
	if p.DP.Weight > 0 && p.rng.Float64() < 1/p.opts.ChanceFactor {
		p.DP.Weight *= p.opts.ChanceFactor
		return
	}
	p.DP.Weight = 0
	p.kill(KilledRussianRoulette)
}

// TestDeath kills photons over the path length or collision limits.
func (p *Photon) TestDeath() {
	if !p.Alive() {
		return
	}
	switch {
	case p.opts.MaxPathLength > 0 && p.TotalPathLength >= p.opts.MaxPathLength:
		p.kill(KilledOverMaximumPathLength)
	case p.opts.MaxCollisions > 0 && p.NumberOfCollisions >= p.opts.MaxCollisions:
		p.kill(KilledOverMaximumCollisions)
	}
}

// Record appends the current state to the history.
// region is the region of the segment just travelled.
func (p *Photon) Record(region int, extra StateFlag) {
	if !p.opts.TrackHistory {
		return
	}
	dp := p.DP
	dp.StateFlag = dp.StateFlag.Add(extra)
	p.History.Add(dp, region)
}

// Rng is the random source of the photon.
func (p *Photon) Rng() rng.Source { return p.rng }

// Tissue is the tissue the photon travels in.
func (p *Photon) Tissue() tissue.Tissue { return p.tissue }
