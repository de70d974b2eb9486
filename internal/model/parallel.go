package model

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/VirtualPhotonics/VTS-sub010/internal/config"
	"github.com/VirtualPhotonics/VTS-sub010/internal/errs"
)

// ParallelSimulation splits the photons of one input over independent
// simulations, each on its own goroutine with its own random source.
type ParallelSimulation struct {
	input   config.SimulationInput
	workers []*Simulation
}

// WorkerDir is the folder of the databases written by worker i of a parallel run.
func WorkerDir(outputName string, i int) string {
	return filepath.Join(outputName, fmt.Sprintf("worker%d", i))
}

// NewParallel prepares k workers. Worker i is seeded with Seed+i and gets
// N/k photons, the first N%k workers one more.
func NewParallel(in config.SimulationInput, k int) (*ParallelSimulation, error) {
	if k < 1 {
		return nil, errs.Configuration("workers must be at least 1, got %d", k)
	}
	if in.N <= 0 {
		return nil, errs.Configuration("number of photons N must be positive, got %d", in.N)
	}
	k = int(min(int64(k), in.N))
	seed := in.Options.Seed
	if seed < 0 {
		seed = time.Now().UnixNano()
	}
	p := &ParallelSimulation{input: in}
	for i := range k {
		photons := in.N / int64(k)
		if int64(i) < in.N%int64(k) {
			photons++
		}
		dir := in.OutputName
		if k > 1 {
			dir = WorkerDir(in.OutputName, i)
		}
		s, err := newSimulation(in, seed+int64(i), photons, dir)
		if err != nil {
			return nil, err
		}
		s.raw = true
		p.workers = append(p.workers, s)
	}
	return p, nil
}

func (p *ParallelSimulation) Workers() int { return len(p.workers) }

func (p *ParallelSimulation) Cancel() {
	for _, s := range p.workers {
		s.Cancel()
	}
}

type workerResult struct {
	worker int
	out    *Output
	err    error
}

// Run starts every worker, sums their raw tallies in worker order and
// normalises once by the photons launched overall. The first error
// cancels the remaining workers and is returned once they stopped.
func (p *ParallelSimulation) Run() (*Output, error) {
	var computeWg, stateWg sync.WaitGroup

	results := make(chan workerResult, len(p.workers))
	outs := make([]*Output, len(p.workers))
	var firstErr error
	stateWg.Add(1)
	go func() {
		for r := range results {
			if r.err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("worker %d: %w", r.worker, r.err)
					p.Cancel()
				}
				continue
			}
			outs[r.worker] = r.out
		}
		stateWg.Done()
	}()

	for i, s := range p.workers {
		computeWg.Add(1)
		go func() {
			defer computeWg.Done()
			log.Debug().Int("worker", i).Int64("photons", s.photons).Msg("worker started")
			out, err := s.Run()
			results <- workerResult{worker: i, out: out, err: err}
		}()
	}
	computeWg.Wait()
	close(results)
	stateWg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return merge(p.input, outs)
}

func merge(in config.SimulationInput, outs []*Output) (*Output, error) {
	total := outs[0]
	for _, o := range outs[1:] {
		for i, d := range total.Detectors {
			if err := d.Merge(o.Detectors[i]); err != nil {
				return nil, err
			}
		}
		total.PhotonsLaunched += o.PhotonsLaunched
		if total.Statistics != nil {
			total.Statistics.merge(o.Statistics)
		}
	}
	if total.PhotonsLaunched > 0 {
		for _, d := range total.Detectors {
			d.Normalize(total.PhotonsLaunched)
		}
	}
	total.Input = in
	return total, nil
}
