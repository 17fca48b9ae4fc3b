package experiment

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultContainerVersion is written to customData4 when nothing else is configured.
const DefaultContainerVersion = "v0.5"

// RunSpec describes one run of a batch: which player to load and which
// experiment dimensions to send with it.
type RunSpec struct {
	Player         string `yaml:"player" json:"player"`
	ABR            string `yaml:"abr,omitempty" json:"abr,omitempty"`
	CDNProvider    string `yaml:"cdn_provider,omitempty" json:"cdn_provider,omitempty"`
	ExperimentName string `yaml:"experiment_name,omitempty" json:"experiment_name,omitempty"`
	Title          string `yaml:"title,omitempty" json:"title,omitempty"`
	UserID         string `yaml:"user_id,omitempty" json:"user_id,omitempty"`
	VideoID        string `yaml:"video_id,omitempty" json:"video_id,omitempty"`

	// Ping and traceroute run before the player is loaded. Empty targets
	// skip them.
	PingTarget       string        `yaml:"ping_target,omitempty" json:"ping_target,omitempty"`
	PingCount        int           `yaml:"ping_count,omitempty" json:"ping_count,omitempty"`
	PingTimeout      time.Duration `yaml:"ping_timeout,omitempty" json:"ping_timeout,omitempty"`
	TracerouteTarget string        `yaml:"traceroute_target,omitempty" json:"traceroute_target,omitempty"`
}

// EffectiveABR returns the value reported as customData2. Players without a
// strategy switch report their own name instead of the requested algorithm.
func (r RunSpec) EffectiveABR() string {
	switch r.Player {
	case "bitmovin", "bitdash":
		return "bitmovin"
	case "shaka":
		return "shaka"
	default:
		return r.ABR
	}
}

// Params builds the inbound parameter set for this run.
func (r RunSpec) Params(tag, containerVersion string) map[string]string {
	if containerVersion == "" {
		containerVersion = DefaultContainerVersion
	}
	return map[string]string{
		ParamTitle:          r.Title,
		ParamUserID:         r.UserID,
		ParamVideoID:        r.VideoID,
		ParamCustomData1:    r.CDNProvider,
		ParamCustomData2:    r.EffectiveABR(),
		ParamCustomData3:    r.ExperimentName,
		ParamCustomData4:    containerVersion,
		ParamCustomData5:    tag,
		ParamCDNProvider:    r.CDNProvider,
		ParamExperimentName: r.ExperimentName,
	}
}

// merge fills empty fields of r from defaults.
func (r RunSpec) merge(defaults RunSpec) RunSpec {
	fill := func(v *string, d string) {
		if *v == "" {
			*v = d
		}
	}
	fill(&r.Player, defaults.Player)
	fill(&r.ABR, defaults.ABR)
	fill(&r.CDNProvider, defaults.CDNProvider)
	fill(&r.ExperimentName, defaults.ExperimentName)
	fill(&r.Title, defaults.Title)
	fill(&r.UserID, defaults.UserID)
	fill(&r.VideoID, defaults.VideoID)
	fill(&r.PingTarget, defaults.PingTarget)
	fill(&r.TracerouteTarget, defaults.TracerouteTarget)
	if r.PingCount == 0 {
		r.PingCount = defaults.PingCount
	}
	if r.PingTimeout == 0 {
		r.PingTimeout = defaults.PingTimeout
	}
	return r
}

// Batch is a set of runs executed one after another.
type Batch struct {
	Defaults  RunSpec   `yaml:"defaults"`
	Runs      []RunSpec `yaml:"runs"`
	Randomize bool      `yaml:"randomize"`
	Seed      int64     `yaml:"seed"`
}

// ErrEmptyBatch is returned when a batch has no runs.
var ErrEmptyBatch = errors.New("batch has no runs")

// DefaultBatch returns the standard comparison: every player once, and the
// dash.js player once per ABR algorithm.
func DefaultBatch() Batch {
	return Batch{
		Runs: []RunSpec{
			{Player: "bitmovin"},
			{Player: "dashjs", ABR: "abrBola"},
			{Player: "dashjs", ABR: "abrDynamic"},
			{Player: "dashjs", ABR: "abrThroughput"},
			{Player: "shaka"},
		},
	}
}

// LoadBatch decodes a YAML batch. Unknown fields are rejected.
func LoadBatch(r io.Reader) (Batch, error) {
	var b Batch
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&b); err != nil {
		if errors.Is(err, io.EOF) {
			return Batch{}, ErrEmptyBatch
		}
		return Batch{}, fmt.Errorf("decode batch: %w", err)
	}
	if len(b.Runs) == 0 {
		return Batch{}, ErrEmptyBatch
	}
	for i, run := range b.Runs {
		if run.merge(b.Defaults).Player == "" {
			return Batch{}, fmt.Errorf("run %d: player is required", i)
		}
	}
	return b, nil
}

// Expand returns the runs with defaults applied, shuffled when Randomize is
// set. The same seed always yields the same order.
func (b Batch) Expand() []RunSpec {
	runs := make([]RunSpec, len(b.Runs))
	for i, r := range b.Runs {
		runs[i] = r.merge(b.Defaults)
	}
	if b.Randomize {
		rng := rand.New(rand.NewSource(b.Seed))
		rng.Shuffle(len(runs), func(i, j int) {
			runs[i], runs[j] = runs[j], runs[i]
		})
	}
	return runs
}
