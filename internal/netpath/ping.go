// Package netpath measures the network path to a target before a run:
// ICMP ping statistics and an optional traceroute.
package netpath

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

const (
	// DefaultPingCount is the number of echo requests per ping.
	DefaultPingCount = 11

	// DefaultPingTimeout is how long to wait for each reply.
	DefaultPingTimeout = 2 * time.Second

	// pingInterval is the gap between echo requests.
	pingInterval = time.Second
)

// PingConfig describes one ping run.
type PingConfig struct {
	Target  string
	Count   int
	Timeout time.Duration // per reply
}

// withDefaults fills unset fields.
func (c PingConfig) withDefaults() PingConfig {
	if c.Count <= 0 {
		c.Count = DefaultPingCount
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultPingTimeout
	}
	return c
}

// PingResult is the outcome of a ping. Err is set when the ping
// could not run; partial statistics are kept.
type PingResult struct {
	Target     string
	Addr       string
	Count      int
	Timeout    time.Duration
	Sent       int
	Received   int
	Duplicates int
	Loss       float64 // percent
	MinRTT     time.Duration
	AvgRTT     time.Duration
	MaxRTT     time.Duration
	StdDevRTT  time.Duration
	RTTs       []time.Duration
	Started    time.Time
	Finished   time.Time
	Err        string
}

// pinger is the part of *probing.Pinger that Ping drives.
type pinger interface {
	RunWithContext(ctx context.Context) error
	Statistics() *probing.Statistics
}

// Config configures a Checker.
type Config struct {
	// Privileged sends raw ICMP instead of unprivileged datagram pings.
	Privileged bool

	// TracerouteBinary defaults to "traceroute" on PATH.
	TracerouteBinary string

	Logger *slog.Logger
}

// Checker runs pings and traceroutes.
type Checker struct {
	cfg    Config
	logger *slog.Logger

	newPinger func(cfg PingConfig, privileged bool) (pinger, error)
	run       func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// New creates a Checker.
func New(cfg Config) *Checker {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.TracerouteBinary == "" {
		cfg.TracerouteBinary = "traceroute"
	}
	return &Checker{
		cfg:       cfg,
		logger:    cfg.Logger,
		newPinger: newICMPPinger,
		run:       runCommand,
	}
}

func newICMPPinger(cfg PingConfig, privileged bool) (pinger, error) {
	p, err := probing.NewPinger(cfg.Target)
	if err != nil {
		return nil, err
	}
	p.Count = cfg.Count
	p.Interval = pingInterval
	p.Timeout = time.Duration(cfg.Count)*pingInterval + cfg.Timeout
	p.SetPrivileged(privileged)
	return p, nil
}

// Ping sends cfg.Count echo requests to cfg.Target and reports the
// statistics. It blocks until the count is reached, the timeout expires or
// ctx is done.
func (c *Checker) Ping(ctx context.Context, cfg PingConfig) PingResult {
	cfg = cfg.withDefaults()
	res := PingResult{
		Target:  cfg.Target,
		Count:   cfg.Count,
		Timeout: cfg.Timeout,
		Started: time.Now(),
	}

	pg, err := c.newPinger(cfg, c.cfg.Privileged)
	if err != nil {
		res.Finished = time.Now()
		res.Err = fmt.Sprintf("resolve %s: %v", cfg.Target, err)
		c.logger.Warn("ping_failed", "target", cfg.Target, "error", err)
		return res
	}

	runErr := pg.RunWithContext(ctx)
	res.Finished = time.Now()
	if st := pg.Statistics(); st != nil {
		res.Addr = st.Addr
		if st.IPAddr != nil {
			res.Addr = st.IPAddr.String()
		}
		res.Sent = st.PacketsSent
		res.Received = st.PacketsRecv
		res.Duplicates = st.PacketsRecvDuplicates
		res.Loss = st.PacketLoss
		res.MinRTT = st.MinRtt
		res.AvgRTT = st.AvgRtt
		res.MaxRTT = st.MaxRtt
		res.StdDevRTT = st.StdDevRtt
		res.RTTs = append([]time.Duration(nil), st.Rtts...)
	}
	if runErr != nil {
		res.Err = runErr.Error()
		c.logger.Warn("ping_failed", "target", cfg.Target, "error", runErr)
		return res
	}

	c.logger.Debug("ping_finished",
		"target", cfg.Target,
		"addr", res.Addr,
		"received", res.Received,
		"sent", res.Sent,
		"avg_rtt", res.AvgRTT.String(),
	)
	return res
}
