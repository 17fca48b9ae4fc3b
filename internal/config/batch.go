package config

import (
	"fmt"
	"os"
	"time"

	"github.com/randomizedcoder/go-abr-harness/internal/engine"
	"github.com/randomizedcoder/go-abr-harness/internal/experiment"
)

// LoadBatch returns the runs to execute: the batch file when set, a single
// run when --player is set, otherwise the built-in matrix.
func LoadBatch(cfg *Config) (experiment.Batch, error) {
	switch {
	case cfg.BatchFile != "":
		f, err := os.Open(cfg.BatchFile)
		if err != nil {
			return experiment.Batch{}, fmt.Errorf("open batch: %w", err)
		}
		defer f.Close()
		b, err := experiment.LoadBatch(f)
		if err != nil {
			return experiment.Batch{}, fmt.Errorf("%s: %w", cfg.BatchFile, err)
		}
		if cfg.Randomize {
			b.Randomize = true
			b.Seed = cfg.Seed
		}
		networkDefaults(&b.Defaults, cfg)
		return b, nil

	case cfg.Player != "":
		b := experiment.Batch{Runs: []experiment.RunSpec{{
			Player:         cfg.Player,
			ABR:            cfg.ABR,
			CDNProvider:    cfg.CDNProvider,
			ExperimentName: cfg.ExperimentName,
			Title:          cfg.Title,
			UserID:         cfg.UserID,
			VideoID:        cfg.VideoID,
		}}}
		networkDefaults(&b.Defaults, cfg)
		return b, nil

	default:
		b := experiment.DefaultBatch()
		b.Defaults.CDNProvider = cfg.CDNProvider
		b.Defaults.ExperimentName = cfg.ExperimentName
		b.Defaults.Title = cfg.Title
		b.Defaults.UserID = cfg.UserID
		b.Defaults.VideoID = cfg.VideoID
		b.Randomize = cfg.Randomize
		b.Seed = cfg.Seed
		networkDefaults(&b.Defaults, cfg)
		return b, nil
	}
}

// networkDefaults fills the batch defaults for ping and traceroute from the
// flags. Values set in a batch file win.
func networkDefaults(d *experiment.RunSpec, cfg *Config) {
	if d.PingTarget == "" {
		d.PingTarget = cfg.PingTarget
	}
	if d.PingCount == 0 {
		d.PingCount = cfg.PingCount
	}
	if d.PingTimeout == 0 {
		d.PingTimeout = cfg.PingTimeout
	}
	if d.TracerouteTarget == "" {
		d.TracerouteTarget = cfg.TracerouteTarget
	}
}

// EngineConfig builds the engine settings for harness mode.
func EngineConfig(cfg *Config) (engine.Config, error) {
	link, err := engine.ParseProfile(cfg.LinkProfile, cfg.LinkLoop)
	if err != nil {
		return engine.Config{}, err
	}
	if cfg.LinkRTT > 0 {
		link = withRTT(link, cfg.LinkRTT)
	}

	return engine.Config{
		Loader:      engine.NewHTTPLoader(cfg.Timeout, cfg.UserAgent),
		Link:        link,
		MaxBuffer:   cfg.MaxBuffer,
		Speed:       cfg.Speed,
		MaxPlayback: cfg.Duration,
	}, nil
}

func withRTT(l engine.Link, rtt time.Duration) engine.Link {
	switch v := l.(type) {
	case engine.ConstantLink:
		v.RTT = rtt
		return v
	case *engine.ProfileLink:
		v.RTT = rtt
		return v
	default:
		return l
	}
}
