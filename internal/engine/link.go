package engine

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Link models the network between the player and the CDN.
type Link interface {
	// BitsPerSecond returns the available bandwidth at virtual time at.
	BitsPerSecond(at time.Duration) int64

	// Latency is added once per request.
	Latency() time.Duration
}

// ConstantLink has fixed bandwidth.
type ConstantLink struct {
	Bandwidth int64
	RTT       time.Duration
}

// BitsPerSecond implements Link.
func (l ConstantLink) BitsPerSecond(time.Duration) int64 { return l.Bandwidth }

// Latency implements Link.
func (l ConstantLink) Latency() time.Duration { return l.RTT }

// Step is one segment of a bandwidth profile.
type Step struct {
	Duration  time.Duration
	Bandwidth int64
}

// ProfileLink replays a bandwidth profile. After the last step it either
// loops or holds the last value.
type ProfileLink struct {
	Steps []Step
	Loop  bool
	RTT   time.Duration
}

// BitsPerSecond implements Link.
func (l *ProfileLink) BitsPerSecond(at time.Duration) int64 {
	if len(l.Steps) == 0 {
		return 0
	}
	var total time.Duration
	for _, s := range l.Steps {
		total += s.Duration
	}
	if l.Loop && total > 0 {
		at %= total
	}
	for _, s := range l.Steps {
		if at < s.Duration {
			return s.Bandwidth
		}
		at -= s.Duration
	}
	return l.Steps[len(l.Steps)-1].Bandwidth
}

// Latency implements Link.
func (l *ProfileLink) Latency() time.Duration { return l.RTT }

// ParseProfile parses a bandwidth profile in kbit/s. A single number gives a
// constant link; otherwise a comma separated list of kbps:duration steps,
// e.g. "5000:20s,800:10s,5000:30s".
func ParseProfile(s string, loop bool) (Link, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty bandwidth profile")
	}
	if !strings.Contains(s, ":") {
		kbps, err := strconv.ParseInt(s, 10, 64)
		if err != nil || kbps <= 0 {
			return nil, fmt.Errorf("invalid bandwidth %q", s)
		}
		return ConstantLink{Bandwidth: kbps * 1000}, nil
	}

	p := &ProfileLink{Loop: loop}
	for _, part := range strings.Split(s, ",") {
		rate, dur, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			return nil, fmt.Errorf("invalid profile step %q: want kbps:duration", part)
		}
		kbps, err := strconv.ParseInt(rate, 10, 64)
		if err != nil || kbps <= 0 {
			return nil, fmt.Errorf("invalid profile step %q: bad rate", part)
		}
		d, err := time.ParseDuration(dur)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid profile step %q: bad duration", part)
		}
		p.Steps = append(p.Steps, Step{Duration: d, Bandwidth: kbps * 1000})
	}
	return p, nil
}

// minBandwidth keeps transfers finite on a link that reports no capacity.
const minBandwidth = 8000

// transferSlice is the integration step for variable links.
const transferSlice = 100 * time.Millisecond

// TransferTime returns how long it takes to move size bytes over l when
// the request is issued at virtual time at.
func TransferTime(l Link, at time.Duration, size int64) time.Duration {
	elapsed := l.Latency()
	bits := float64(size * 8)
	t := at + elapsed
	for bits > 0 {
		bw := l.BitsPerSecond(t)
		if bw < minBandwidth {
			bw = minBandwidth
		}
		sliceBits := float64(bw) * transferSlice.Seconds()
		if sliceBits >= bits {
			elapsed += time.Duration(bits / float64(bw) * float64(time.Second))
			break
		}
		bits -= sliceBits
		elapsed += transferSlice
		t += transferSlice
	}
	return elapsed
}
