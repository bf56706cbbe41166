// Package pipeline moves completed traces from the aggregator to rule
// evaluation on a bounded worker pool. All hand-off is via channels;
// the workers share no mutable state.
package pipeline

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/betrace-hq/betrace-sub002/internal/core"
	"github.com/betrace-hq/betrace-sub002/internal/engine"
	"github.com/betrace-hq/betrace-sub002/internal/metrics"
	"github.com/betrace-hq/betrace-sub002/internal/signals"
)

const (
	DefaultWorkers   = 4
	DefaultQueueSize = 256
)

type Pipeline struct {
	manager *engine.Manager
	signals *signals.Service
	opts    engine.Options

	queue   chan core.Trace
	workers int

	wg       sync.WaitGroup
	stopOnce sync.Once
	stop     chan struct{}
}

func New(manager *engine.Manager, sigSvc *signals.Service, workers, queueSize int, opts engine.Options) *Pipeline {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Pipeline{
		manager: manager,
		signals: sigSvc,
		opts:    opts,
		queue:   make(chan core.Trace, queueSize),
		workers: workers,
		stop:    make(chan struct{}),
	}
}

// Start launches the worker pool. Workers run until Stop.
func (p *Pipeline) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	log.Info().Int("workers", p.workers).Msg("evaluation pipeline started")
}

// Stop drains nothing: queued traces still in flight are evaluated,
// new submissions are rejected.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() {
		close(p.stop)
		close(p.queue)
	})
	p.wg.Wait()
}

// Submit queues a completed trace for evaluation. When the queue is
// full the trace is dropped and counted; span ingestion must never
// stall behind a slow evaluation.
func (p *Pipeline) Submit(trace core.Trace) bool {
	select {
	case <-p.stop:
		return false
	default:
	}

	select {
	case p.queue <- trace:
		return true
	default:
		metrics.PipelineDropped.Inc()
		log.Warn().
			Str("trace", trace.TraceID).
			Str("tenant", trace.TenantID).
			Msg("evaluation queue full, dropping trace")
		return false
	}
}

func (p *Pipeline) worker(ctx context.Context) {
	defer p.wg.Done()

	for trace := range p.queue {
		p.evaluate(ctx, trace)
	}
}

func (p *Pipeline) evaluate(ctx context.Context, trace core.Trace) {
	eng := p.manager.EngineFor(trace.TenantID)
	if len(eng.Rules()) == 0 {
		return
	}
	metrics.TracesEvaluated.Inc()

	// The capability value is built fresh per trace and passed
	// explicitly; nothing is stashed in goroutine-ambient state, so a
	// reused worker cannot leak one tenant's capability into the next
	// evaluation.
	caps := p.signals.Emitter(trace)

	outcomes := eng.EvaluateTrace(ctx, trace, caps, p.opts)
	for _, o := range outcomes {
		if o.Err != nil {
			log.Warn().
				Err(o.Err).
				Str("rule", o.Rule.ID).
				Str("trace", trace.TraceID).
				Msg("rule outcome failed")
		}
	}
}
