// Package scheduler dispatches graph-render jobs across a worker pool
// bounded by the number of online processors, tracking per-graph and
// per-domain wall-clock timings through an append-only stats sink.
package scheduler

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// GraphJob is one unit of scheduled work: render every interval for one
// (domain, host, name) graph.
type GraphJob struct {
	Domain, Host, Name string
	Render             func() error
}

// Scheduler admits graph jobs through a counting semaphore sized to
// runtime.NumCPU(). Jobs are independent; the only shared mutable state
// across workers is the stats sink, which serializes its own writes.
type Scheduler struct {
	sem    *semaphore.Weighted
	logger *logrus.Logger
	stats  *Stats
}

// New creates a Scheduler bounded to runtime.NumCPU() concurrent jobs.
// stats may be nil to disable the stats sink.
func New(logger *logrus.Logger, stats *Stats) *Scheduler {
	return &Scheduler{
		sem:    semaphore.NewWeighted(int64(runtime.NumCPU())),
		logger: logger,
		stats:  stats,
	}
}

// Run sorts jobs by (domain, name), dispatches each to a worker
// goroutine as a semaphore ticket admits it, and waits for every worker
// to finish before returning. The first job error is returned after all
// jobs complete; every other job still runs to completion.
func (s *Scheduler) Run(ctx context.Context, jobs []GraphJob) error {
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].Domain != jobs[j].Domain {
			return jobs[i].Domain < jobs[j].Domain
		}
		return jobs[i].Name < jobs[j].Name
	})

	start := time.Now()
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	lastDomain := ""
	var domainStart time.Time

	for _, job := range jobs {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return fmt.Errorf("scheduler: %w", err)
		}

		if job.Domain != lastDomain {
			if lastDomain != "" && s.stats != nil {
				s.stats.Domain(lastDomain, time.Since(domainStart))
			}
			lastDomain = job.Domain
			domainStart = time.Now()
		}

		wg.Add(1)
		go func(job GraphJob) {
			defer wg.Done()
			defer s.sem.Release(1)

			jobStart := time.Now()
			if err := job.Render(); err != nil {
				s.logger.WithFields(logrus.Fields{
					"domain": job.Domain, "host": job.Host, "graph": job.Name,
				}).Errorf("render failed: %v", err)
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			if s.stats != nil {
				s.stats.Graph(job.Domain, job.Host, job.Name, time.Since(jobStart))
			}
		}(job)
	}

	wg.Wait()

	if lastDomain != "" && s.stats != nil {
		s.stats.Domain(lastDomain, time.Since(domainStart))
	}
	if s.stats != nil {
		s.stats.Total(time.Since(start))
	}

	return firstErr
}
