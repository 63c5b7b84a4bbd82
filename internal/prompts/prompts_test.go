package prompts

import (
	"strings"
	"testing"
)

func TestRenderSubstitutesParams(t *testing.T) {
	got, err := Render(GameCS2, Params{Username: "rifler_jane", MinHighlightDurationSec: 10})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(got, "rifler_jane") {
		t.Error("rendered prompt missing username")
	}
	if !strings.Contains(got, "10 seconds") {
		t.Error("rendered prompt missing minimum duration")
	}
	if !strings.Contains(got, "timestamp_start_seconds") {
		t.Error("rendered prompt missing response format hint")
	}
}

func TestRenderAllRegisteredGames(t *testing.T) {
	for _, game := range Games() {
		if _, err := Render(game, Params{Username: "u", MinHighlightDurationSec: 5}); err != nil {
			t.Errorf("Render(%s) failed: %v", game, err)
		}
	}
}

func TestRenderUnknownGame(t *testing.T) {
	if _, err := Render(GameType("pong"), Params{}); err == nil {
		t.Error("expected error for unregistered game type")
	}
}

func TestKnown(t *testing.T) {
	if !Known(GameKills) {
		t.Error("kills should be registered")
	}
	if Known(GameType("tetris")) {
		t.Error("tetris should not be registered")
	}
}
