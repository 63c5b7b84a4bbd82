package shorts

import (
	"strings"
	"testing"

	"github.com/keagan/fragcannon/internal/config"
)

func TestBuildFilterGraphBase(t *testing.T) {
	graph := BuildFilterGraph(Options{})

	for _, want := range []string{
		"split=2",
		"scale=1080:1920:force_original_aspect_ratio=increase",
		"crop=1080:1920",
		"boxblur=20:5",
		"scale=1080:-2",
		"overlay=0:(H-h)/2[base]",
		"[vout]",
	} {
		if !strings.Contains(graph, want) {
			t.Errorf("graph missing %q:\n%s", want, graph)
		}
	}
	if strings.Contains(graph, "[cam]") || strings.Contains(graph, "[feed]") {
		t.Errorf("bare graph should not contain overlay crops:\n%s", graph)
	}
}

func TestBuildFilterGraphWebcam(t *testing.T) {
	graph := BuildFilterGraph(Options{
		Webcam: &config.CropRect{X: 10, Y: 700, Width: 320, Height: 240},
	})

	if !strings.Contains(graph, "split=3") {
		t.Errorf("webcam should add a split branch:\n%s", graph)
	}
	if !strings.Contains(graph, "crop=320:240:10:700") {
		t.Errorf("webcam crop missing:\n%s", graph)
	}
	if !strings.Contains(graph, "[base][cam]overlay=0:0[withcam]") {
		t.Errorf("webcam overlay missing:\n%s", graph)
	}
}

func TestBuildFilterGraphKillFeed(t *testing.T) {
	graph := BuildFilterGraph(Options{
		KillFeed: &config.CropRect{X: 1500, Y: 60, Width: 400, Height: 300},
	})

	if !strings.Contains(graph, "crop=400:300:1500:60") {
		t.Errorf("kill feed crop missing:\n%s", graph)
	}
	// 45% of the 1080 canvas
	if !strings.Contains(graph, "scale=486:-2") {
		t.Errorf("kill feed scale missing:\n%s", graph)
	}
	if !strings.Contains(graph, "colorchannelmixer=aa=0.60") {
		t.Errorf("kill feed opacity missing:\n%s", graph)
	}
	if !strings.Contains(graph, "overlay=W-w-24:24[withfeed]") {
		t.Errorf("kill feed placement missing:\n%s", graph)
	}
}

func TestBuildFilterGraphFullComposition(t *testing.T) {
	graph := BuildFilterGraph(Options{
		Webcam:       &config.CropRect{X: 0, Y: 0, Width: 100, Height: 100},
		KillFeed:     &config.CropRect{X: 0, Y: 0, Width: 100, Height: 100},
		SubtitleFile: "/tmp/captions.srt",
	})

	if !strings.Contains(graph, "split=4") {
		t.Errorf("full composition needs 4 source branches:\n%s", graph)
	}
	if !strings.Contains(graph, "subtitles=") {
		t.Errorf("subtitle burn-in missing:\n%s", graph)
	}
	// kill feed composites over the webcam layer
	if !strings.Contains(graph, "[withcam][feed]") {
		t.Errorf("layer order wrong:\n%s", graph)
	}
	if !strings.HasSuffix(graph, "[vout]") {
		t.Errorf("graph must end in [vout]:\n%s", graph)
	}
}
