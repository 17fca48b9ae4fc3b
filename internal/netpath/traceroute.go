package netpath

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// DefaultTracerouteTimeout bounds a traceroute run.
const DefaultTracerouteTimeout = 60 * time.Second

// TraceConfig describes one traceroute run.
type TraceConfig struct {
	Target  string
	Timeout time.Duration
}

// Hop is one line of traceroute output. Only the first responder of a hop
// is kept; Timeouts counts the packets that got no answer.
type Hop struct {
	TTL      int
	Host     string
	Addr     string
	AS       string
	RTTs     []time.Duration
	Timeouts int
}

// TraceResult is the outcome of a traceroute.
type TraceResult struct {
	Target   string
	Hops     []Hop
	Raw      string
	Started  time.Time
	Finished time.Time
	Err      string
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Traceroute runs "traceroute -A target" and parses its hops.
func (c *Checker) Traceroute(ctx context.Context, cfg TraceConfig) TraceResult {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTracerouteTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	res := TraceResult{Target: cfg.Target, Started: time.Now()}
	out, err := c.run(ctx, c.cfg.TracerouteBinary, "-A", cfg.Target)
	res.Finished = time.Now()
	res.Raw = string(out)
	res.Hops = ParseTraceroute(res.Raw)

	switch {
	case err != nil:
		res.Err = fmt.Sprintf("%s: %v", c.cfg.TracerouteBinary, err)
		c.logger.Warn("traceroute_failed", "target", cfg.Target, "error", err)
	case len(res.Hops) == 0:
		res.Err = "no traceroute output"
		c.logger.Warn("traceroute_failed", "target", cfg.Target, "error", res.Err)
	default:
		c.logger.Debug("traceroute_finished", "target", cfg.Target, "hops", len(res.Hops))
	}
	return res
}

// ParseTraceroute parses the hop lines of traceroute output such as
//
//	1  _gateway (192.168.1.1) [*]  0.456 ms  0.412 ms  0.398 ms
//	2  * * *
//
// The header and anything that does not start with a TTL are skipped.
func ParseTraceroute(out string) []Hop {
	var hops []Hop
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		ttl, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}

		hop := Hop{TTL: ttl}
		for i := 1; i < len(fields); i++ {
			f := fields[i]
			switch {
			case f == "*":
				hop.Timeouts++
			case f == "ms":
			case strings.HasPrefix(f, "(") && strings.HasSuffix(f, ")"):
				if hop.Addr == "" {
					hop.Addr = strings.Trim(f, "()")
				}
			case strings.HasPrefix(f, "["):
				if hop.AS == "" {
					hop.AS = strings.Trim(f, "[]")
				}
			case i+1 < len(fields) && fields[i+1] == "ms":
				if v, err := strconv.ParseFloat(f, 64); err == nil {
					hop.RTTs = append(hop.RTTs, time.Duration(v*float64(time.Millisecond)))
				}
			case strings.HasPrefix(f, "!"):
				// ICMP annotation such as !H
			default:
				if hop.Host == "" {
					hop.Host = f
				}
			}
		}
		hops = append(hops, hop)
	}
	return hops
}
