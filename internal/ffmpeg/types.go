package ffmpeg

import (
	"fmt"
	"time"
)

// VideoInfo contains metadata about a video file
type VideoInfo struct {
	FilePath   string
	Duration   time.Duration
	Width      int
	Height     int
	FPS        float64
	Bitrate    int64
	VideoCodec string
	HasAudio   bool
	AudioCodec string
}

// RunOptions configures ffmpeg execution
type RunOptions struct {
	Args       []string
	LogHandler func(line string)
}

// Default encoding settings
const (
	DefaultCRF        = 23
	DefaultPreset     = "medium"
	DefaultVideoCodec = "libx264"
	NvencVideoCodec   = "h264_nvenc"
	DefaultAudioCodec = "aac"
)

// Encoder is the codec selection for a re-encoding operation.
type Encoder struct {
	VideoCodec string
	AudioCodec string
	Preset     string
	CRF        int
}

// CPUEncoder returns software encoding settings.
func CPUEncoder(preset string) Encoder {
	if preset == "" {
		preset = DefaultPreset
	}
	return Encoder{
		VideoCodec: DefaultVideoCodec,
		AudioCodec: DefaultAudioCodec,
		Preset:     preset,
		CRF:        DefaultCRF,
	}
}

// NvencEncoder returns NVIDIA hardware encoding settings.
func NvencEncoder() Encoder {
	return Encoder{
		VideoCodec: NvencVideoCodec,
		AudioCodec: DefaultAudioCodec,
		Preset:     "p4",
		CRF:        DefaultCRF,
	}
}

// Args renders the encoder as ffmpeg output arguments. NVENC rejects
// -crf, so quality flags are only emitted for software encoding.
func (enc Encoder) Args() []string {
	out := []string{"-c:v", enc.VideoCodec, "-preset", enc.Preset}
	if enc.VideoCodec == DefaultVideoCodec {
		out = append(out, "-crf", fmt.Sprintf("%d", enc.CRF))
	}
	return append(out, "-c:a", enc.AudioCodec)
}
