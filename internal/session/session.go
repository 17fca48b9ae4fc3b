// Package session binds an experiment to a player adapter's analytics and
// tracks what happens during playback.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/randomizedcoder/go-abr-harness/internal/analytics"
	"github.com/randomizedcoder/go-abr-harness/internal/experiment"
	"github.com/randomizedcoder/go-abr-harness/internal/player"
)

// ErrNotAttached is returned by CorrelationID when no analytics channel has
// been attached to the adapter.
var ErrNotAttached = errors.New("session: analytics not attached")

// Payload builds the analytics payload for cfg. The five experiment
// dimensions go to customData1..5 and the top-level mirrors are carried
// as-is.
func Payload(cfg experiment.Config, key string) analytics.Config {
	return analytics.Config{
		Key:            key,
		Title:          cfg.Title,
		UserID:         cfg.UserID,
		VideoID:        cfg.VideoID,
		CustomData1:    cfg.CDNProvider,
		CustomData2:    cfg.ABRAlgorithm,
		CustomData3:    cfg.ExperimentName,
		CustomData4:    cfg.ContainerVersion,
		CustomData5:    cfg.ProbeUUID,
		CDNProvider:    cfg.CDNProviderMirror,
		ExperimentName: cfg.ExperimentNameMirror,
	}
}

// Attach binds an analytics channel carrying cfg to the adapter and returns
// the session state for it. Calling Attach twice on one adapter opens two
// independent channels; the adapter then reports the newer id.
func Attach(adapter player.Adapter, cfg experiment.Config, key string) (*AnalyticsSession, error) {
	if err := adapter.AttachAnalytics(Payload(cfg, key)); err != nil {
		return nil, fmt.Errorf("session: attach %s analytics: %w", adapter.Backend(), err)
	}
	id, err := CorrelationID(adapter)
	if err != nil {
		return nil, err
	}
	return NewAnalyticsSession(id), nil
}

// CorrelationID returns the adapter's impression id, or ErrNotAttached when
// it has none yet.
func CorrelationID(adapter player.Adapter) (string, error) {
	id := adapter.CorrelationID()
	if id == "" {
		return "", ErrNotAttached
	}
	return id, nil
}

// AnalyticsSession is the per-session playback record. It is written by the
// Monitor and read through accessors, which return copies.
type AnalyticsSession struct {
	impressionID string

	mu                 sync.Mutex
	startTime          time.Time
	qualitySwitchCount int
	stallEvents        []time.Time
}

// NewAnalyticsSession returns an empty session for impressionID. The switch
// count starts at -1 so the initial rendition selection brings it to 0.
func NewAnalyticsSession(impressionID string) *AnalyticsSession {
	return &AnalyticsSession{
		impressionID:       impressionID,
		qualitySwitchCount: -1,
	}
}

// ImpressionID returns the analytics correlation id.
func (s *AnalyticsSession) ImpressionID() string {
	return s.impressionID
}

// StartTime returns the time of the first play event and whether one has
// happened.
func (s *AnalyticsSession) StartTime() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startTime, !s.startTime.IsZero()
}

// QualitySwitchCount returns the number of rendition switches after the
// initial selection, or -1 before any quality event.
func (s *AnalyticsSession) QualitySwitchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.qualitySwitchCount
}

// StallEvents returns the stall start times in order.
func (s *AnalyticsSession) StallEvents() []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Time, len(s.stallEvents))
	copy(out, s.stallEvents)
	return out
}

// Snapshot is a point-in-time copy of a session.
type Snapshot struct {
	ImpressionID       string      `json:"impressionId"`
	StartTime          time.Time   `json:"startTime"`
	QualitySwitchCount int         `json:"qualitySwitchCount"`
	StallEvents        []time.Time `json:"stallEvents"`
}

// Snapshot copies the session.
func (s *AnalyticsSession) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	stalls := make([]time.Time, len(s.stallEvents))
	copy(stalls, s.stallEvents)
	return Snapshot{
		ImpressionID:       s.impressionID,
		StartTime:          s.startTime,
		QualitySwitchCount: s.qualitySwitchCount,
		StallEvents:        stalls,
	}
}

func (s *AnalyticsSession) recordQualityChange() {
	s.mu.Lock()
	s.qualitySwitchCount++
	s.mu.Unlock()
}

func (s *AnalyticsSession) recordPlay(at time.Time) {
	s.mu.Lock()
	if s.startTime.IsZero() {
		s.startTime = at
	}
	s.mu.Unlock()
}

func (s *AnalyticsSession) recordStall(at time.Time) {
	s.mu.Lock()
	s.stallEvents = append(s.stallEvents, at)
	s.mu.Unlock()
}
