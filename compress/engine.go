package compress

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/youssefsiam38/questlog/storage"
)

// Engine fans a batch of turns out to a fixed pool of workers and collects
// the results in sequence order. Workers share nothing but the cache, whose
// GetOrCompute is the single synchronization point, so two workers can
// never both pay for the same content.
type Engine struct {
	compressor *Compressor
	workers    int
}

// NewEngine creates an Engine backed by the given compressor.
func NewEngine(compressor *Compressor, workers int) *Engine {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Engine{compressor: compressor, workers: workers}
}

// PassResult aggregates one compression pass.
type PassResult struct {
	// Results holds one entry per input turn, in input order.
	Results []Result

	// Compressed counts turns whose content actually changed.
	Compressed int

	// Failed counts turns that errored and were left untouched.
	Failed int

	// CacheHits counts results served from the cache.
	CacheHits int

	// CharsIn and CharsOut measure the pass over the turns that changed.
	CharsIn  int
	CharsOut int

	// Duration is the wall time of the pass.
	Duration time.Duration
}

// Ratio returns CharsOut / CharsIn, or 1 when nothing was compressed.
func (p PassResult) Ratio() float64 {
	if p.CharsIn == 0 {
		return 1
	}
	return float64(p.CharsOut) / float64(p.CharsIn)
}

// Run compresses the batch with the configured worker count and returns
// the results ordered by turn sequence. Every input turn yields exactly
// one result: failures are reported per turn, never by aborting the pass.
func (e *Engine) Run(ctx context.Context, batch []storage.Turn) PassResult {
	start := time.Now()
	pass := PassResult{Results: make([]Result, 0, len(batch))}
	if len(batch) == 0 {
		pass.Duration = time.Since(start)
		return pass
	}

	tasks := make(chan storage.Turn)
	results := make(chan Result, len(batch))

	var wg sync.WaitGroup
	n := e.workers
	if n > len(batch) {
		n = len(batch)
	}
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				results <- e.compressor.CompressTurn(ctx, t)
			}
		}()
	}

	for _, t := range batch {
		tasks <- t
	}
	close(tasks)
	wg.Wait()
	close(results)

	for r := range results {
		pass.Results = append(pass.Results, r)
	}
	sort.Slice(pass.Results, func(i, j int) bool {
		return pass.Results[i].Seq < pass.Results[j].Seq
	})

	for _, r := range pass.Results {
		switch {
		case r.Err != nil:
			pass.Failed++
		case r.Compressed != r.Original:
			pass.Compressed++
			pass.CharsIn += len(r.Original)
			pass.CharsOut += len(r.Compressed)
		}
		if r.FromCache {
			pass.CacheHits++
		}
	}
	pass.Duration = time.Since(start)
	return pass
}
