// Package config provides configuration management for go-abr-harness.
package config

import "time"

// Run modes.
const (
	ModeHarness = "harness" // in-process adapters against the engine
	ModeBrowser = "browser" // deployed player pages in headless Chrome
)

// Config holds all configuration options for a batch of experiment runs.
type Config struct {
	// Experiment
	Mode             string `json:"mode"`
	BatchFile        string `json:"batch_file"`
	Player           string `json:"player"` // single run when set
	ABR              string `json:"abr"`
	CDNProvider      string `json:"cdn_provider"`
	ExperimentName   string `json:"experiment_name"`
	Title            string `json:"title"`
	UserID           string `json:"user_id"`
	VideoID          string `json:"video_id"`
	ContainerVersion string `json:"container_version"`
	Randomize        bool   `json:"randomize"`
	Seed             int64  `json:"seed"`
	Repeat           int    `json:"repeat"`

	// Playback
	ManifestURL     string        `json:"manifest_url"`
	Duration        time.Duration `json:"duration"` // per run
	TimeBetweenRuns time.Duration `json:"time_between_runs"`
	RunJitter       time.Duration `json:"run_jitter"`
	LicenseKey      string        `json:"license_key"`

	// Engine
	Speed       float64       `json:"speed"` // 0 = as fast as possible
	LinkProfile string        `json:"link_profile"`
	LinkLoop    bool          `json:"link_loop"`
	LinkRTT     time.Duration `json:"link_rtt"`
	MaxBuffer   time.Duration `json:"max_buffer"`
	Timeout     time.Duration `json:"timeout"`
	UserAgent   string        `json:"user_agent"`

	// Browser mode
	PageStub   string `json:"page_stub"`
	ChromePath string `json:"chrome_path"`
	Headless   bool   `json:"headless"`
	DebugURL   string `json:"chrome_debug_url"` // attach to a running Chrome instead

	// Network path checks, run before each run's player is loaded
	PingTarget       string        `json:"ping_target"` // empty = no ping
	PingCount        int           `json:"ping_count"`
	PingTimeout      time.Duration `json:"ping_timeout"`
	PingPrivileged   bool          `json:"ping_privileged"`
	TracerouteTarget string        `json:"traceroute_target"` // empty = no traceroute

	// Analytics
	AnalyticsOut           string  `json:"analytics_out"` // "", "-" (stdout) or a path
	AnalyticsBufferSize    int     `json:"analytics_buffer_size"`
	AnalyticsDropThreshold float64 `json:"analytics_drop_threshold"`

	// Run summaries
	Summary   bool   `json:"summary"`
	DataID    string `json:"data_id"`
	NodeID    string `json:"node_id"`
	Interface string `json:"interface"`

	// Observability
	MetricsAddr string `json:"metrics_addr"`
	MetricsDump bool   `json:"metrics_dump"`
	TUIEnabled  bool   `json:"tui_enabled"`
	Verbose     bool   `json:"verbose"`
	LogFormat   string `json:"log_format"` // json, text

	// Diagnostic modes
	Check         bool `json:"check"`
	SkipPreflight bool `json:"skip_preflight"`
}

// DefaultConfig returns a Config with the experiment driver's defaults.
func DefaultConfig() *Config {
	return &Config{
		// Experiment
		Mode:             ModeHarness,
		ContainerVersion: "v0.5",
		Seed:             1,
		Repeat:           1,

		// Playback
		ManifestURL:     "https://cdn.bitmovin.com/analytics/test_assets/cise/Amazon-BBB-15bitrates-full/stream.mpd",
		Duration:        60 * time.Second,
		TimeBetweenRuns: 5 * time.Second,
		RunJitter:       500 * time.Millisecond,

		// Engine
		Speed:       1,
		LinkProfile: "8000",
		LinkRTT:     40 * time.Millisecond,
		MaxBuffer:   30 * time.Second,
		Timeout:     15 * time.Second,
		UserAgent:   "go-abr-harness/1.0",

		// Browser mode
		PageStub:   "http://localhost/players",
		ChromePath: "",
		Headless:   true,

		// Network path
		PingCount:   11,
		PingTimeout: 2 * time.Second,

		// Analytics
		AnalyticsBufferSize:    1024,
		AnalyticsDropThreshold: 0.01,

		// Summaries
		DataID:    "MONROE.EXP.VBIM",
		NodeID:    "0",
		Interface: "eth0",

		// Observability
		MetricsAddr: "",
		LogFormat:   "json",
	}
}
