// Package analytics is the analytics subsystem the player adapters report
// to. It assigns impression ids, turns player events into samples and ships
// them to a sink without ever blocking a player's event loop.
//
// Flow:
//
//	Impression.Record -> Pipeline (bounded, drops when full) -> Sink
package analytics

// Config is the analytics payload attached to a player: the license key,
// session identity and the five custom dimensions, plus top-level mirrors of
// the CDN provider and experiment name.
type Config struct {
	Key     string `json:"key"`
	Title   string `json:"title"`
	UserID  string `json:"userId"`
	VideoID string `json:"videoId"`

	CustomData1 string `json:"customData1"`
	CustomData2 string `json:"customData2"`
	CustomData3 string `json:"customData3"`
	CustomData4 string `json:"customData4"`
	CustomData5 string `json:"customData5"`

	CDNProvider    string `json:"cdnProvider"`
	ExperimentName string `json:"experimentName"`
}
