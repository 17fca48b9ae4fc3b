package analytics

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// CollectorConfig configures a Collector.
type CollectorConfig struct {
	Sink          Sink
	BufferSize    int
	DropThreshold float64
	Logger        *slog.Logger

	// NewID overrides impression id generation (tests).
	NewID func() string

	// OnDrop is called for every dropped sample. It must not block.
	OnDrop func()
}

// Collector is the analytics backend: it hands out impressions and ships
// their samples.
type Collector struct {
	pipeline *Pipeline
	sink     Sink
	logger   *slog.Logger
	newID    func() string
	onDrop   func()

	impressions int64
	wg          sync.WaitGroup
	startOnce   sync.Once
	closeOnce   sync.Once
}

// NewCollector creates a collector. Call Start before recording and Close
// when done.
func NewCollector(cfg CollectorConfig) *Collector {
	if cfg.Sink == nil {
		cfg.Sink = DiscardSink{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	return &Collector{
		pipeline: NewPipeline(cfg.BufferSize, cfg.DropThreshold),
		sink:     cfg.Sink,
		logger:   cfg.Logger,
		newID:    cfg.NewID,
		onDrop:   cfg.OnDrop,
	}
}

// Start launches the delivery goroutine.
func (c *Collector) Start() {
	c.startOnce.Do(func() {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.pipeline.Run(c.sink)
		}()
	})
}

// Close flushes queued samples and stops delivery.
func (c *Collector) Close() {
	c.closeOnce.Do(func() {
		c.Start() // so Close drains even if Start was never called
		c.pipeline.Close()
		c.wg.Wait()

		fed, dropped, written, failed := c.pipeline.Stats()
		level := slog.LevelDebug
		if c.pipeline.Degraded() {
			level = slog.LevelWarn
		}
		c.logger.Log(context.Background(), level, "analytics_collector_closed",
			"impressions", atomic.LoadInt64(&c.impressions),
			"samples", fed,
			"dropped", dropped,
			"written", written,
			"failed", failed,
		)
	})
}

// Pipeline exposes the delivery pipeline for health reporting.
func (c *Collector) Pipeline() *Pipeline {
	return c.pipeline
}

// Impressions returns how many impressions were created.
func (c *Collector) Impressions() int64 {
	return atomic.LoadInt64(&c.impressions)
}

// NewImpression starts tracking one playback session for player.
func (c *Collector) NewImpression(player string, cfg Config) *Impression {
	atomic.AddInt64(&c.impressions, 1)
	imp := &Impression{
		id:     c.newID(),
		player: player,
		config: cfg,
		c:      c,
	}
	c.logger.Debug("analytics_impression_created", "impression_id", imp.id, "player", player)
	return imp
}

// Impression is one tracked playback session.
type Impression struct {
	id     string
	player string
	config Config
	c      *Collector

	mu  sync.Mutex
	seq int
}

// ID returns the impression id.
func (i *Impression) ID() string {
	return i.id
}

// Config returns the payload the impression was created with.
func (i *Impression) Config() Config {
	return i.config
}

// Record queues a sample. It never blocks.
func (i *Impression) Record(event string, at time.Time, bitrate int64, errorCode int) {
	i.feed(Sample{Event: event, Time: at, Bitrate: bitrate, ErrorCode: errorCode})
}

// RecordStartup queues the startup sample with the time it took from page
// start to first frame.
func (i *Impression) RecordStartup(at time.Time, startup time.Duration) {
	i.feed(Sample{Event: SampleStartup, Time: at, StartupTime: startup})
}

func (i *Impression) feed(s Sample) {
	i.mu.Lock()
	i.seq++
	s.Sequence = i.seq
	i.mu.Unlock()

	s.ImpressionID = i.id
	s.Player = i.player
	s.Config = i.config
	if ok := i.c.pipeline.Feed(s); !ok && i.c.onDrop != nil {
		i.c.onDrop()
	}
}
