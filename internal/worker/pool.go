package worker

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/ShayCichocki/huddle/internal/api"
)

// PoolConfig contains configuration options for a Pool.
type PoolConfig struct {
	Store   Store
	Agents  AgentResolver
	Replies api.ReplyGenerator
	// Worker is the template for every worker; IDs are generated per worker
	// from Worker.ID as a prefix.
	Worker      Config
	Concurrency int
	Signals     Signals
	// Reaper, when set, sweeps expired leases alongside the workers.
	Reaper *Reaper
}

// Pool runs several workers in one process against the same store.
type Pool struct {
	cfg PoolConfig

	// workers tracks running workers by ID
	workers map[string]*Worker
	mu      sync.RWMutex

	// ctx and cancel for pool lifecycle
	ctx    context.Context
	cancel context.CancelFunc

	// workerWG tracks running workers; reaperWG tracks the reaper
	workerWG sync.WaitGroup
	reaperWG sync.WaitGroup
}

// NewPool creates a new Pool. Call Start to launch the workers.
func NewPool(parent context.Context, cfg PoolConfig) (*Pool, error) {
	if cfg.Store == nil || cfg.Agents == nil || cfg.Replies == nil {
		return nil, fmt.Errorf("pool needs a store, agents and a reply generator")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}

	ctx, cancel := context.WithCancel(parent)
	return &Pool{
		cfg:     cfg,
		workers: make(map[string]*Worker),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Start launches the workers and, if configured, the reaper.
func (p *Pool) Start() {
	for i := 0; i < p.cfg.Concurrency; i++ {
		wc := p.cfg.Worker
		wc.ID = p.workerID(i)

		var opts []Option
		if p.cfg.Signals != nil {
			opts = append(opts, WithSignals(p.cfg.Signals))
		}
		w := New(p.cfg.Store, p.cfg.Agents, p.cfg.Replies, wc, opts...)

		p.mu.Lock()
		p.workers[w.ID()] = w
		p.mu.Unlock()

		p.workerWG.Add(1)
		go func() {
			defer p.workerWG.Done()
			if err := w.Run(p.ctx); err != nil {
				log.Printf("[pool] worker %s failed: %v", w.ID(), err)
			}
		}()
	}

	if p.cfg.Reaper != nil {
		p.reaperWG.Add(1)
		go func() {
			defer p.reaperWG.Done()
			p.cfg.Reaper.Run(p.ctx)
		}()
	}
}

func (p *Pool) workerID(i int) string {
	prefix := p.cfg.Worker.ID
	if prefix == "" {
		return "worker-" + uuid.New().String()[:8]
	}
	if p.cfg.Concurrency == 1 {
		return prefix
	}
	return fmt.Sprintf("%s-%d", prefix, i+1)
}

// Wait blocks until every worker has exited, either from a kill signal or
// from Stop, then stops the reaper.
func (p *Pool) Wait() {
	p.workerWG.Wait()
	p.cancel()
	p.reaperWG.Wait()
}

// Stop cancels all workers and waits for them to finish their current task.
func (p *Pool) Stop() {
	p.cancel()
	p.Wait()
}

// Count returns the number of workers started.
func (p *Pool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.workers)
}

// Stats sums the counters of every worker.
func (p *Pool) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var total Stats
	for _, w := range p.workers {
		s := w.Stats()
		total.Claimed += s.Claimed
		total.LostRaces += s.LostRaces
		total.Completed += s.Completed
		total.Failed += s.Failed
		total.LeasesLost += s.LeasesLost
		total.Released += s.Released
	}
	return total
}
