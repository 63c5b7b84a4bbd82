package ffmpeg

import (
	"fmt"
	"strings"
)

// FilterBuilder helps construct complex ffmpeg filter chains
type FilterBuilder struct {
	filters []string
}

// NewFilterBuilder creates a new filter builder
func NewFilterBuilder() *FilterBuilder {
	return &FilterBuilder{
		filters: make([]string, 0),
	}
}

// Scale adds a scale filter
func (fb *FilterBuilder) Scale(width, height int) *FilterBuilder {
	if width == 0 || height == 0 {
		// Return self without adding filter - allows chaining to continue
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf("scale=%d:%d", width, height))
	return fb
}

// ScaleFill scales to cover the target box while preserving aspect
// ratio, then crops the overflow. Used for the blurred short background.
func (fb *FilterBuilder) ScaleFill(width, height int) *FilterBuilder {
	if width <= 0 || height <= 0 {
		return fb
	}
	fb.filters = append(fb.filters,
		fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase", width, height),
		fmt.Sprintf("crop=%d:%d", width, height))
	return fb
}

// Crop adds a crop filter
func (fb *FilterBuilder) Crop(width, height, x, y int) *FilterBuilder {
	if width <= 0 || height <= 0 {
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf("crop=%d:%d:%d:%d", width, height, x, y))
	return fb
}

// Boxblur adds a boxblur filter with the given radius and passes.
func (fb *FilterBuilder) Boxblur(radius, passes int) *FilterBuilder {
	if radius <= 0 {
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf("boxblur=%d:%d", radius, passes))
	return fb
}

// Alpha forces an rgba pixel format and multiplies the alpha channel.
// Values at or above 1 leave the frame opaque.
func (fb *FilterBuilder) Alpha(opacity float64) *FilterBuilder {
	if opacity <= 0 || opacity >= 1 {
		return fb
	}
	fb.filters = append(fb.filters, "format=rgba", fmt.Sprintf("colorchannelmixer=aa=%.2f", opacity))
	return fb
}

// FPS adds an fps filter
func (fb *FilterBuilder) FPS(fps float64) *FilterBuilder {
	if fps <= 0 {
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf("fps=%f", fps))
	return fb
}

// Subtitles burns a subtitle file into the stream.
func (fb *FilterBuilder) Subtitles(path string) *FilterBuilder {
	if path == "" {
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf("subtitles=%s", escapeSubtitlePath(path)))
	return fb
}

// Custom adds a custom filter string
func (fb *FilterBuilder) Custom(filter string) *FilterBuilder {
	fb.filters = append(fb.filters, filter)
	return fb
}

// Build returns the complete filter string joined with commas
func (fb *FilterBuilder) Build() string {
	if len(fb.filters) == 0 {
		return ""
	}
	return strings.Join(fb.filters, ",")
}

// BuildAll returns all filters as a slice
func (fb *FilterBuilder) BuildAll() []string {
	return fb.filters
}
