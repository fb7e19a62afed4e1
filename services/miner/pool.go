package miner

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/halocoin/halominer/errors"
	"github.com/halocoin/halominer/model"
	"github.com/halocoin/halominer/services/miner/cpuminer"
	"github.com/halocoin/halominer/ulogger"
	"go.uber.org/atomic"
)

// SearchFunc is the loop a pool worker runs. It must return once ctx is done and
// send at most one block to results.
type SearchFunc func(ctx context.Context, candidate *model.Block, results chan<- *model.Block) (uint64, error)

type workerHandle struct {
	id    int
	alive atomic.Bool
}

// Generation is one set of workers racing on the same candidate. Each generation has
// its own result channel, so a block sent by a superseded generation can never be
// read from the current one.
type Generation struct {
	ID        uuid.UUID
	Candidate *model.Block
	results   chan *model.Block
	handles   []*workerHandle
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	stopOnce  sync.Once
	stopErr   error
}

func (g *Generation) Results() <-chan *model.Block {
	return g.results
}

// AllDead reports whether every worker of the generation has exited.
func (g *Generation) AllDead() bool {
	for _, h := range g.handles {
		if h.alive.Load() {
			return false
		}
	}

	return true
}

// stop cancels the workers and waits up to timeout for them to exit. Repeated calls
// return the result of the first one.
func (g *Generation) stop(timeout time.Duration) error {
	g.stopOnce.Do(func() {
		g.cancel()

		done := make(chan struct{})

		go func() {
			g.wg.Wait()
			close(done)
		}()

		timer := time.NewTimer(timeout)
		defer timer.Stop()

		select {
		case <-done:
		case <-timer.C:
			running := 0

			for _, h := range g.handles {
				if h.alive.Load() {
					running++
				}
			}

			g.stopErr = errors.NewServiceError("[WorkerPool] %d workers of generation %s still running after %s", running, g.ID, timeout)
		}
	})

	return g.stopErr
}

type PoolOption func(*WorkerPool)

// WithSearchFunc replaces the worker loop, cpuminer.Search by default.
func WithSearchFunc(search SearchFunc) PoolOption {
	return func(p *WorkerPool) {
		p.search = search
	}
}

// WithStopTimeout bounds how long Stop and Restart wait for cancelled workers.
func WithStopTimeout(timeout time.Duration) PoolOption {
	return func(p *WorkerPool) {
		p.stopTimeout = timeout
	}
}

// WorkerPool owns the current generation of search workers.
type WorkerPool struct {
	logger      ulogger.Logger
	coreCount   int
	stopTimeout time.Duration
	search      SearchFunc
	mu          sync.Mutex
	current     *Generation
	closed      bool
}

// NewWorkerPool creates a pool of coreCount workers per generation. A coreCount of
// zero or less means one worker per CPU.
func NewWorkerPool(logger ulogger.Logger, coreCount int, opts ...PoolOption) *WorkerPool {
	initPrometheusMetrics()

	if coreCount <= 0 {
		coreCount = runtime.NumCPU()
	}

	p := &WorkerPool{
		logger:      logger,
		coreCount:   coreCount,
		stopTimeout: 5 * time.Second,
		search:      cpuminer.Search,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

func (p *WorkerPool) CoreCount() int {
	return p.coreCount
}

// Start spawns the first generation for candidate. It fails when a generation is
// already running, use Restart to replace it.
func (p *WorkerPool) Start(ctx context.Context, candidate *model.Block) (*Generation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, errors.NewServiceUnavailableError("[WorkerPool] pool is closed")
	}

	if p.current != nil {
		return nil, errors.NewProcessingError("[WorkerPool] generation %s is already running", p.current.ID)
	}

	return p.spawn(ctx, candidate), nil
}

// Restart stops the current generation, waiting for its workers to exit, and spawns
// a new one for candidate. The new generation is started even when the old one
// leaked workers. The leak is returned as the error. A closed pool spawns nothing and
// returns a nil generation.
func (p *WorkerPool) Restart(ctx context.Context, candidate *model.Block) (*Generation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var err error

	if p.current != nil {
		err = p.current.stop(p.stopTimeout)
		p.current = nil
	}

	if p.closed {
		if err != nil {
			return nil, errors.NewServiceUnavailableError("[WorkerPool] pool is closed", err)
		}

		return nil, errors.NewServiceUnavailableError("[WorkerPool] pool is closed")
	}

	return p.spawn(ctx, candidate), err
}

// Stop terminates the current generation, if any. It is safe to call repeatedly.
func (p *WorkerPool) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return nil
	}

	err := p.current.stop(p.stopTimeout)
	p.current = nil

	return err
}

// Close stops the current generation and refuses every later Start or Restart. It is
// safe to call repeatedly.
func (p *WorkerPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true

	if p.current == nil {
		return nil
	}

	err := p.current.stop(p.stopTimeout)
	p.current = nil

	return err
}

// Current returns the running generation or nil.
func (p *WorkerPool) Current() *Generation {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.current
}

// AllDead reports whether every worker of the current generation has exited. It is
// false when no generation is running.
func (p *WorkerPool) AllDead() bool {
	g := p.Current()
	if g == nil {
		return false
	}

	return g.AllDead()
}

// Results returns the result channel of the current generation, nil when there is none.
func (p *WorkerPool) Results() <-chan *model.Block {
	g := p.Current()
	if g == nil {
		return nil
	}

	return g.Results()
}

func (p *WorkerPool) spawn(ctx context.Context, candidate *model.Block) *Generation {
	workerCtx, cancel := context.WithCancel(ctx)

	g := &Generation{
		ID:        uuid.New(),
		Candidate: candidate,
		results:   make(chan *model.Block, p.coreCount),
		handles:   make([]*workerHandle, p.coreCount),
		cancel:    cancel,
	}

	for i := range g.handles {
		h := &workerHandle{id: i}
		h.alive.Store(true)
		g.handles[i] = h
	}

	g.wg.Add(len(g.handles))

	for _, h := range g.handles {
		go p.runWorker(workerCtx, g, h)
	}

	p.current = g
	prometheusMinerGenerations.Inc()

	p.logger.Debugf("[WorkerPool] started generation %s with %d workers on block %d", g.ID, len(g.handles), candidate.Height)

	return g
}

func (p *WorkerPool) runWorker(ctx context.Context, g *Generation, h *workerHandle) {
	defer g.wg.Done()
	defer h.alive.Store(false)

	defer func() {
		if r := recover(); r != nil {
			prometheusMinerWorkerPanics.Inc()
			p.logger.Errorf("[WorkerPool] worker %d of generation %s panicked: %v", h.id, g.ID, r)
		}
	}()

	attempts, err := p.search(ctx, g.Candidate, g.results)

	prometheusMinerHashes.Add(float64(attempts))

	if err != nil {
		p.logger.Warnf("[WorkerPool] worker %d of generation %s failed: %v", h.id, g.ID, err)
	}
}
