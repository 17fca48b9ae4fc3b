package session

import (
	"errors"
	"sync"

	"github.com/randomizedcoder/go-abr-harness/internal/player"
)

// ErrAlreadySubscribed is returned by a second Monitor.Subscribe.
var ErrAlreadySubscribed = errors.New("session: monitor already subscribed")

// Monitor feeds an adapter's playback events into an AnalyticsSession. Its
// observers run on the engine's event goroutine and only touch the session.
type Monitor struct {
	session *AnalyticsSession

	mu  sync.Mutex
	sub *player.Subscription
}

// NewMonitor creates a monitor that owns s.
func NewMonitor(s *AnalyticsSession) *Monitor {
	return &Monitor{session: s}
}

// Session returns the monitored session.
func (m *Monitor) Session() *AnalyticsSession {
	return m.session
}

// Subscribe registers the quality, play and stall observers on adapter.
func (m *Monitor) Subscribe(adapter player.Adapter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sub != nil {
		return ErrAlreadySubscribed
	}

	s := m.session
	sub, err := adapter.Subscribe(player.Handlers{
		OnQualityChange: func(player.QualityChange) { s.recordQualityChange() },
		OnPlayStart:     s.recordPlay,
		OnStall:         s.recordStall,
	})
	if err != nil {
		return err
	}
	m.sub = sub
	return nil
}

// Unsubscribe removes the observers. The session keeps what it recorded.
func (m *Monitor) Unsubscribe() {
	m.mu.Lock()
	sub := m.sub
	m.mu.Unlock()
	sub.Unsubscribe()
}
