package analytics

import (
	"time"

	"github.com/francoispqt/gojay"
)

// Sample event names.
const (
	SampleStartup       = "startup"
	SampleQualityChange = "quality_change"
	SampleStall         = "stall"
	SampleStallEnd      = "stall_end"
	SampleEnded         = "ended"
	SampleError         = "error"
)

// Sample is one analytics record for an impression.
type Sample struct {
	ImpressionID string
	Sequence     int
	Event        string
	Time         time.Time
	Player       string
	Bitrate      int64 // bits per second, quality changes only
	ErrorCode    int
	StartupTime  time.Duration // startup samples only
	Config       Config
}

var _ gojay.MarshalerJSONObject = Sample{}

// IsNil implements gojay.MarshalerJSONObject.
func (s Sample) IsNil() bool { return false }

// MarshalJSONObject implements gojay.MarshalerJSONObject.
func (s Sample) MarshalJSONObject(enc *gojay.Encoder) {
	enc.StringKey("impressionId", s.ImpressionID)
	enc.IntKey("sequence", s.Sequence)
	enc.StringKey("event", s.Event)
	enc.Int64Key("time", s.Time.UnixMilli())
	enc.StringKeyOmitEmpty("player", s.Player)
	enc.Int64KeyOmitEmpty("videoBitrate", s.Bitrate)
	enc.IntKeyOmitEmpty("errorCode", s.ErrorCode)
	enc.Int64KeyOmitEmpty("startupTime", s.StartupTime.Milliseconds())
	enc.ObjectKey("customData", customData(s.Config))
}

// customData encodes the dimensions carried on every sample.
type customData Config

func (c customData) IsNil() bool { return false }

func (c customData) MarshalJSONObject(enc *gojay.Encoder) {
	enc.StringKeyOmitEmpty("title", c.Title)
	enc.StringKeyOmitEmpty("userId", c.UserID)
	enc.StringKeyOmitEmpty("videoId", c.VideoID)
	enc.StringKeyOmitEmpty("customData1", c.CustomData1)
	enc.StringKeyOmitEmpty("customData2", c.CustomData2)
	enc.StringKeyOmitEmpty("customData3", c.CustomData3)
	enc.StringKeyOmitEmpty("customData4", c.CustomData4)
	enc.StringKeyOmitEmpty("customData5", c.CustomData5)
	enc.StringKeyOmitEmpty("cdnProvider", c.CDNProvider)
	enc.StringKeyOmitEmpty("experimentName", c.ExperimentName)
}
