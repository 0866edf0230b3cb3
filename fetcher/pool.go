package fetcher

import (
	"context"
	"sync"

	"github.com/servpack/servpack/blacklist"
	"github.com/servpack/servpack/modpack"
)

// Progress is a shared completion counter. It is passed to workers
// explicitly instead of living in package state so pools stay
// testable in isolation.
type Progress struct {
	mu      sync.Mutex
	done    int
	failed  int
	skipped int
}

func (p *Progress) add(failed, skipped bool) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case failed:
		p.failed++
	case skipped:
		p.skipped++
	default:
		p.done++
	}
}

// Counts returns the number of completed, failed and skipped mods.
func (p *Progress) Counts() (done, failed, skipped int) {
	if p == nil {
		return 0, 0, 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done, p.failed, p.skipped
}

// Result is the outcome of caching a single mod.
type Result struct {
	Mod     modpack.Mod
	Name    string
	Skipped bool
	Err     error
}

// CacheAll caches every mod using up to workers concurrent
// downloads; workers below 2 run sequentially. Mods whose resolved
// name matches the blacklist are skipped. Failures are collected per
// entry and never abort the remaining downloads. Results are indexed
// like mods.
func (dl *Fetcher) CacheAll(ctx context.Context, mods []modpack.Mod, workers int, bl *blacklist.List, pr *Progress) []Result {
	results := make([]Result, len(mods))
	if len(mods) == 0 {
		return results
	}
	if workers < 1 {
		workers = 1
	}
	if workers > len(mods) {
		workers = len(mods)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for n := 0; n < workers; n++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = dl.cacheOne(mods[i], bl)
				r := results[i]
				pr.add(r.Err != nil, r.Skipped)
			}
		}()
	}

loop:
	for i := range mods {
		if ctx.Err() != nil {
			break
		}
		select {
		case jobs <- i:
		case <-ctx.Done():
			break loop
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		for i := range results {
			if results[i].Name == "" && results[i].Err == nil {
				results[i] = Result{Mod: mods[i], Err: err}
			}
		}
	}
	return results
}

func (dl *Fetcher) cacheOne(m modpack.Mod, bl *blacklist.List) Result {
	name, err := dl.Name(m)
	if err != nil {
		return Result{Mod: m, Err: err}
	}
	if bl.Match(name) {
		return Result{Mod: m, Name: name, Skipped: true}
	}
	if err := dl.Cache(m); err != nil {
		return Result{Mod: m, Name: name, Err: err}
	}
	return Result{Mod: m, Name: name}
}
