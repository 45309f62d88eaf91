package ffmpeg

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cast"

	"github.com/vertextoedge/media-frame-cache/internal/reader"
)

// probeStream is the subset of an ffprobe stream entry we need.
type probeStream struct {
	Index        int         `json:"index"`
	CodecName    string      `json:"codec_name"`
	CodecType    string      `json:"codec_type"`
	Width        int         `json:"width"`
	Height       int         `json:"height"`
	NbFrames     interface{} `json:"nb_frames"`
	RFrameRate   string      `json:"r_frame_rate"`
	AvgFrameRate string      `json:"avg_frame_rate"`
	Duration     interface{} `json:"duration"`
}

type probeFormat struct {
	Filename   string      `json:"filename"`
	FormatName string      `json:"format_name"`
	Duration   interface{} `json:"duration"`
}

type probeOutput struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

// ParseProbe converts ffprobe JSON output into MovieInfo.
// The frame count comes from nb_frames when present, otherwise from
// duration multiplied by the frame rate.
func ParseProbe(data string) (*reader.MovieInfo, error) {
	var out probeOutput
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	var video *probeStream
	for i := range out.Streams {
		if out.Streams[i].CodecType == "video" {
			video = &out.Streams[i]
			break
		}
	}
	if video == nil {
		return nil, fmt.Errorf("no video stream found")
	}

	info := &reader.MovieInfo{
		Width:  video.Width,
		Height: video.Height,
		Codec:  video.CodecName,
	}

	info.FrameRate = parseRate(video.AvgFrameRate)
	if info.FrameRate == 0 {
		info.FrameRate = parseRate(video.RFrameRate)
	}

	if n, err := cast.ToIntE(video.NbFrames); err == nil && n > 0 {
		info.FrameCount = n
	} else {
		duration, err := cast.ToFloat64E(video.Duration)
		if err != nil || duration <= 0 {
			duration, _ = cast.ToFloat64E(out.Format.Duration)
		}
		if duration > 0 && info.FrameRate > 0 {
			info.FrameCount = int(math.Round(duration * info.FrameRate))
		}
	}

	if info.FrameCount <= 0 {
		return nil, fmt.Errorf("unable to determine frame count")
	}
	if info.Width <= 0 || info.Height <= 0 {
		return nil, fmt.Errorf("invalid video dimensions %dx%d", info.Width, info.Height)
	}
	return info, nil
}

// parseRate parses "num/den" or a plain number. Returns 0 when unknown.
func parseRate(s string) float64 {
	if s == "" {
		return 0
	}
	num, den, found := strings.Cut(s, "/")
	if !found {
		return cast.ToFloat64(num)
	}
	d := cast.ToFloat64(den)
	if d == 0 {
		return 0
	}
	return cast.ToFloat64(num) / d
}
