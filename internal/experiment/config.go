// Package experiment resolves inbound experiment parameters into a typed
// configuration and builds the parameter sets the driver hands to players.
package experiment

import (
	"net/url"
)

// Inbound parameter names. customData1..5 carry the five custom dimensions;
// cdnProvider and experimentName are older top-level mirrors of 1 and 3.
const (
	ParamTitle          = "title"
	ParamUserID         = "userId"
	ParamVideoID        = "videoId"
	ParamCustomData1    = "customData1"
	ParamCustomData2    = "customData2"
	ParamCustomData3    = "customData3"
	ParamCustomData4    = "customData4"
	ParamCustomData5    = "customData5"
	ParamCDNProvider    = "cdnProvider"
	ParamExperimentName = "experimentName"
)

// ParamNames lists every recognised inbound parameter in a stable order.
var ParamNames = []string{
	ParamTitle,
	ParamUserID,
	ParamVideoID,
	ParamCustomData1,
	ParamCustomData2,
	ParamCustomData3,
	ParamCustomData4,
	ParamCustomData5,
	ParamCDNProvider,
	ParamExperimentName,
}

// Config is the resolved experiment configuration for one session.
// Every field is a plain string; an absent parameter resolves to "".
// A Config is built once by Resolve and never mutated afterwards.
type Config struct {
	// Session identity
	Title   string `json:"title"`
	UserID  string `json:"userId"`
	VideoID string `json:"videoId"`

	// Custom dimensions (customData1..5)
	CDNProvider      string `json:"customData1"`
	ABRAlgorithm     string `json:"customData2"`
	ExperimentName   string `json:"customData3"`
	ContainerVersion string `json:"customData4"`
	ProbeUUID        string `json:"customData5"`

	// Top-level mirrors kept for older analytics dashboards
	CDNProviderMirror    string `json:"cdnProvider"`
	ExperimentNameMirror string `json:"experimentName"`
}

// Resolve builds a Config from raw parameters. It never fails: missing keys
// become empty strings and unknown keys are ignored.
func Resolve(raw map[string]string) Config {
	get := func(k string) string {
		if raw == nil {
			return ""
		}
		return raw[k]
	}
	return Config{
		Title:                get(ParamTitle),
		UserID:               get(ParamUserID),
		VideoID:              get(ParamVideoID),
		CDNProvider:          get(ParamCustomData1),
		ABRAlgorithm:         get(ParamCustomData2),
		ExperimentName:       get(ParamCustomData3),
		ContainerVersion:     get(ParamCustomData4),
		ProbeUUID:            get(ParamCustomData5),
		CDNProviderMirror:    get(ParamCDNProvider),
		ExperimentNameMirror: get(ParamExperimentName),
	}
}

// ResolveValues resolves from a query string. The first value of a repeated
// key wins.
func ResolveValues(v url.Values) Config {
	raw := make(map[string]string, len(ParamNames))
	for _, name := range ParamNames {
		raw[name] = v.Get(name)
	}
	return Resolve(raw)
}

// Params returns the configuration as an inbound parameter mapping.
// Resolve(c.Params()) == c.
func (c Config) Params() map[string]string {
	return map[string]string{
		ParamTitle:          c.Title,
		ParamUserID:         c.UserID,
		ParamVideoID:        c.VideoID,
		ParamCustomData1:    c.CDNProvider,
		ParamCustomData2:    c.ABRAlgorithm,
		ParamCustomData3:    c.ExperimentName,
		ParamCustomData4:    c.ContainerVersion,
		ParamCustomData5:    c.ProbeUUID,
		ParamCDNProvider:    c.CDNProviderMirror,
		ParamExperimentName: c.ExperimentNameMirror,
	}
}

// HasExperimentSignal reports whether any custom dimension is set.
func (c Config) HasExperimentSignal() bool {
	return c.CDNProvider != "" || c.ABRAlgorithm != "" || c.ExperimentName != "" ||
		c.ContainerVersion != "" || c.ProbeUUID != ""
}
