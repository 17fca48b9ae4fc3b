package engine

import (
	"context"
	"time"
)

// playback is the state of one run of the playback loop. It is only touched
// by the loop goroutine.
type playback struct {
	e   *Engine
	m   *Manifest
	ctx context.Context

	origin   time.Time
	now      time.Duration // virtual time since Play
	playhead time.Duration
	buffer   time.Duration
	current  int

	started bool
	stalled bool

	est *throughputEstimator
}

func (e *Engine) run(m *Manifest) {
	defer e.finish()

	p := &playback{
		e:       e,
		m:       m,
		ctx:     e.ctx,
		origin:  e.cfg.Now(),
		current: -1,
		est:     newThroughputEstimator(),
	}
	if err := p.loop(); err != nil {
		e.cfg.Logger.Debug("engine_playback_stopped", "reason", err.Error())
	}
}

func (p *playback) emit(ev Event, at time.Duration) {
	ev.Time = p.origin.Add(at)
	ev.MediaTime = p.playhead
	ev.Buffer = p.buffer
	p.e.dispatch(ev)
}

func (p *playback) startThreshold() time.Duration {
	if t := p.e.cfg.StartThreshold; t > 0 {
		return t
	}
	return p.m.SegmentDuration
}

func (p *playback) limitReached() bool {
	limit := p.e.cfg.MaxPlayback
	return limit > 0 && p.now >= limit
}

// advance moves virtual time forward by d, draining the buffer while
// playing. Running dry mid-presentation starts a stall.
func (p *playback) advance(d time.Duration) error {
	if d <= 0 {
		return p.ctx.Err()
	}
	if speed := p.e.cfg.Speed; speed > 0 {
		timer := time.NewTimer(time.Duration(float64(d) / speed))
		select {
		case <-p.ctx.Done():
			timer.Stop()
			return p.ctx.Err()
		case <-timer.C:
		}
	} else if err := p.ctx.Err(); err != nil {
		return err
	}

	if p.started && !p.stalled {
		consume := d
		if consume > p.buffer {
			consume = p.buffer
		}
		p.buffer -= consume
		p.playhead += consume
		if consume < d && p.playhead < p.m.Duration {
			p.stalled = true
			p.emit(Event{Type: EventStallStarted}, p.now+consume)
		}
	}
	p.now += d
	return nil
}

func (p *playback) loop() error {
	cfg := p.e.cfg
	seg := p.m.SegmentDuration
	reps := p.m.Representations

	for idx := 0; idx < p.m.SegmentCount(); idx++ {
		// Wait for room in the buffer.
		if over := p.buffer + seg - cfg.MaxBuffer; p.started && over > 0 {
			if err := p.advance(over); err != nil {
				return err
			}
		}
		if p.limitReached() {
			p.emit(Event{Type: EventEnded}, p.now)
			return nil
		}

		next := p.e.Rule().Choose(RuleInput{
			Representations: reps,
			Current:         p.current,
			Buffer:          p.buffer,
			MaxBuffer:       cfg.MaxBuffer,
			Throughput:      p.est.estimate(),
		})
		if next < 0 || next >= len(reps) {
			next = 0
		}
		if next != p.current {
			ev := Event{
				Type:        EventQualityChanged,
				To:          reps[next],
				FromIndex:   p.current,
				ToIndex:     next,
				InitialPick: p.current < 0,
			}
			if p.current >= 0 {
				ev.From = reps[p.current]
			}
			p.current = next
			p.emit(ev, p.now)
		}

		size := reps[p.current].Bandwidth * int64(seg) / int64(time.Second) / 8
		dt := TransferTime(cfg.Link, p.now, size)
		if err := p.advance(dt); err != nil {
			return err
		}
		p.buffer += seg
		p.est.sample(dt, size)

		switch {
		case !p.started && p.buffer >= p.startThreshold():
			p.started = true
			p.emit(Event{Type: EventPlay}, p.now)
		case p.stalled && p.buffer >= p.startThreshold():
			p.stalled = false
			p.emit(Event{Type: EventStallEnded}, p.now)
		}
	}

	// Everything is downloaded; play out the buffer.
	if !p.started {
		p.started = true
		p.emit(Event{Type: EventPlay}, p.now)
	}
	if p.stalled {
		p.stalled = false
		p.emit(Event{Type: EventStallEnded}, p.now)
	}
	remaining := p.buffer
	if limit := cfg.MaxPlayback; limit > 0 && p.now+remaining > limit {
		remaining = limit - p.now
	}
	if err := p.advance(remaining); err != nil {
		return err
	}
	p.emit(Event{Type: EventEnded}, p.now)
	return nil
}
