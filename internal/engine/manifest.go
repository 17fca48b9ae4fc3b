// Package engine is a headless DASH playback engine. It loads an MPD
// manifest, runs a buffer model against a simulated network link in virtual
// time, picks renditions with a pluggable ABR rule and emits player events
// from its own goroutine.
//
// The vendor-shaped facades in engine/bitmovin, engine/dashjs and
// engine/shaka wrap it with the API each player SDK exposes.
package engine

import (
	"encoding/xml"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DefaultSegmentDuration is used when the manifest carries no SegmentTemplate.
const DefaultSegmentDuration = 4 * time.Second

// Representation is one video rendition of the manifest.
type Representation struct {
	ID        string
	Bandwidth int64 // bits per second
	Width     int
	Height    int
}

// String returns a short label such as "1080p@4300k".
func (r Representation) String() string {
	if r.Height > 0 {
		return fmt.Sprintf("%dp@%dk", r.Height, r.Bandwidth/1000)
	}
	return fmt.Sprintf("%s@%dk", r.ID, r.Bandwidth/1000)
}

// Manifest is the subset of a DASH MPD the engine plays.
type Manifest struct {
	URI             string
	Duration        time.Duration
	SegmentDuration time.Duration

	// Representations are sorted by ascending bandwidth.
	Representations []Representation
}

// SegmentCount returns the number of media segments in the presentation.
func (m *Manifest) SegmentCount() int {
	if m.SegmentDuration <= 0 {
		return 0
	}
	n := int(m.Duration / m.SegmentDuration)
	if m.Duration%m.SegmentDuration != 0 {
		n++
	}
	return n
}

// --- MPD XML model ---

type mpdXML struct {
	XMLName                   xml.Name    `xml:"MPD"`
	MediaPresentationDuration string      `xml:"mediaPresentationDuration,attr"`
	Periods                   []periodXML `xml:"Period"`
}

type periodXML struct {
	Duration       string             `xml:"duration,attr"`
	AdaptationSets []adaptationSetXML `xml:"AdaptationSet"`
}

type adaptationSetXML struct {
	MimeType        string              `xml:"mimeType,attr"`
	ContentType     string              `xml:"contentType,attr"`
	SegmentTemplate *segmentTemplateXML `xml:"SegmentTemplate"`
	Representations []representationXML `xml:"Representation"`
}

type representationXML struct {
	ID              string              `xml:"id,attr"`
	Bandwidth       int64               `xml:"bandwidth,attr"`
	Width           int                 `xml:"width,attr"`
	Height          int                 `xml:"height,attr"`
	MimeType        string              `xml:"mimeType,attr"`
	SegmentTemplate *segmentTemplateXML `xml:"SegmentTemplate"`
}

type segmentTemplateXML struct {
	Duration  int64 `xml:"duration,attr"`
	Timescale int64 `xml:"timescale,attr"`
}

func (s *segmentTemplateXML) segmentDuration() time.Duration {
	if s == nil || s.Duration <= 0 {
		return 0
	}
	ts := s.Timescale
	if ts <= 0 {
		ts = 1
	}
	return time.Duration(s.Duration) * time.Second / time.Duration(ts)
}

func (a adaptationSetXML) isVideo() bool {
	if strings.HasPrefix(a.MimeType, "video/") || a.ContentType == "video" {
		return true
	}
	for _, r := range a.Representations {
		if strings.HasPrefix(r.MimeType, "video/") {
			return true
		}
	}
	return a.MimeType == "" && a.ContentType == "" && len(a.Representations) > 0 && a.Representations[0].Width > 0
}

// ParseMPD parses a DASH manifest and returns its video renditions.
// Errors are *LoadError of KindDecode or KindUnsupported.
func ParseMPD(data []byte, uri string) (*Manifest, error) {
	var doc mpdXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, &LoadError{Kind: KindDecode, URI: uri, Err: err}
	}

	m := &Manifest{URI: uri}

	if doc.MediaPresentationDuration != "" {
		d, err := ParseISODuration(doc.MediaPresentationDuration)
		if err != nil {
			return nil, &LoadError{Kind: KindDecode, URI: uri, Err: err}
		}
		m.Duration = d
	}

	for _, p := range doc.Periods {
		if m.Duration == 0 && p.Duration != "" {
			if d, err := ParseISODuration(p.Duration); err == nil {
				m.Duration = d
			}
		}
		for _, as := range p.AdaptationSets {
			if !as.isVideo() {
				continue
			}
			for _, r := range as.Representations {
				if r.Bandwidth <= 0 {
					continue
				}
				m.Representations = append(m.Representations, Representation{
					ID:        r.ID,
					Bandwidth: r.Bandwidth,
					Width:     r.Width,
					Height:    r.Height,
				})
				if m.SegmentDuration == 0 {
					m.SegmentDuration = r.SegmentTemplate.segmentDuration()
				}
			}
			if m.SegmentDuration == 0 {
				m.SegmentDuration = as.SegmentTemplate.segmentDuration()
			}
		}
		// Only the first period is played.
		break
	}

	if len(m.Representations) == 0 {
		return nil, &LoadError{Kind: KindUnsupported, URI: uri, Err: fmt.Errorf("no video representations")}
	}
	if m.Duration <= 0 {
		return nil, &LoadError{Kind: KindUnsupported, URI: uri, Err: fmt.Errorf("live or unbounded presentations are not supported")}
	}
	if m.SegmentDuration == 0 {
		m.SegmentDuration = DefaultSegmentDuration
	}

	sort.SliceStable(m.Representations, func(i, j int) bool {
		return m.Representations[i].Bandwidth < m.Representations[j].Bandwidth
	})
	return m, nil
}

// ParseISODuration parses an xs:duration value such as "PT9M56.46S" or
// "P0Y0M0DT0H1M0.000S". Years and months count as 365 and 30 days.
func ParseISODuration(s string) (time.Duration, error) {
	if !strings.HasPrefix(s, "P") {
		return 0, fmt.Errorf("invalid duration %q", s)
	}

	var total float64
	inTime := false
	num := ""
	for _, c := range s[1:] {
		switch {
		case c == 'T':
			inTime = true
		case (c >= '0' && c <= '9') || c == '.':
			num += string(c)
		default:
			if num == "" {
				return 0, fmt.Errorf("invalid duration %q", s)
			}
			v, err := strconv.ParseFloat(num, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid duration %q: %w", s, err)
			}
			num = ""

			var unit float64
			switch {
			case c == 'Y' && !inTime:
				unit = 365 * 24 * 3600
			case c == 'M' && !inTime:
				unit = 30 * 24 * 3600
			case c == 'W' && !inTime:
				unit = 7 * 24 * 3600
			case c == 'D' && !inTime:
				unit = 24 * 3600
			case c == 'H' && inTime:
				unit = 3600
			case c == 'M' && inTime:
				unit = 60
			case c == 'S' && inTime:
				unit = 1
			default:
				return 0, fmt.Errorf("invalid duration %q: unexpected %q", s, c)
			}
			total += v * unit
		}
	}
	if num != "" {
		return 0, fmt.Errorf("invalid duration %q: trailing number", s)
	}
	return time.Duration(math.Round(total * float64(time.Second))), nil
}
