package analytics

import (
	"sync"
	"sync/atomic"
)

// Pipeline is a bounded queue between player callbacks and the sink.
//
// Feed never blocks: when the sink falls behind, samples are dropped and
// counted. Player event loops must not wait on analytics.
type Pipeline struct {
	ch     chan Sample
	mu     sync.RWMutex
	closed bool

	fed     int64
	dropped int64
	written int64
	failed  int64

	dropThreshold float64
}

// NewPipeline creates a pipeline with the given buffer size (default 1000)
// and drop threshold (default 1%).
func NewPipeline(bufferSize int, dropThreshold float64) *Pipeline {
	if bufferSize < 1 {
		bufferSize = 1000
	}
	if dropThreshold <= 0 {
		dropThreshold = 0.01
	}
	return &Pipeline{
		ch:            make(chan Sample, bufferSize),
		dropThreshold: dropThreshold,
	}
}

// Feed queues a sample. It returns false if the sample was dropped.
func (p *Pipeline) Feed(s Sample) bool {
	atomic.AddInt64(&p.fed, 1)

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		atomic.AddInt64(&p.dropped, 1)
		return false
	}
	select {
	case p.ch <- s:
		return true
	default:
		atomic.AddInt64(&p.dropped, 1)
		return false
	}
}

// Close stops the pipeline. Run drains what is queued and returns.
// Safe to call more than once.
func (p *Pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.ch)
	}
}

// Run writes samples to sink until Close. It must run in its own goroutine.
func (p *Pipeline) Run(sink Sink) {
	for s := range p.ch {
		if err := sink.Write(s); err != nil {
			atomic.AddInt64(&p.failed, 1)
			continue
		}
		atomic.AddInt64(&p.written, 1)
	}
	sink.Flush()
}

// Stats returns pipeline counters.
func (p *Pipeline) Stats() (fed, dropped, written, failed int64) {
	return atomic.LoadInt64(&p.fed),
		atomic.LoadInt64(&p.dropped),
		atomic.LoadInt64(&p.written),
		atomic.LoadInt64(&p.failed)
}

// DropRate returns dropped/fed.
func (p *Pipeline) DropRate() float64 {
	fed := atomic.LoadInt64(&p.fed)
	if fed == 0 {
		return 0
	}
	return float64(atomic.LoadInt64(&p.dropped)) / float64(fed)
}

// Degraded reports whether the drop rate exceeds the threshold.
func (p *Pipeline) Degraded() bool {
	return p.DropRate() > p.dropThreshold
}
