// Package prompts holds the per-game analysis prompt registry. Templates
// are parameterized by the player's username and the minimum highlight
// duration; the analyzer treats the rendered result as an opaque blob.
package prompts

import (
	"bytes"
	"fmt"
	"sort"
	"text/template"
)

// GameType selects the analysis prompt for a title.
type GameType string

const (
	GameCS2       GameType = "cs2"
	GameOverwatch GameType = "overwatch2"
	GameTheFinals GameType = "the_finals"
	GameLeague    GameType = "league_of_legends"
	GameSplitgate GameType = "splitgate2"
	GameKills     GameType = "kills"
	GameCustom    GameType = "custom"
)

// Params fill a prompt template.
type Params struct {
	Username                string
	MinHighlightDurationSec int
}

var registry = map[GameType]*template.Template{}

func register(game GameType, text string) {
	registry[game] = template.Must(template.New(string(game)).Parse(text))
}

func init() {
	register(GameCS2, `You are reviewing a Counter-Strike 2 gameplay recording of the player "{{.Username}}".
Find every moment where {{.Username}} gets one or more kills, wins a clutch round,
or makes a play worth showing off. Report each as a highlight covering the full
engagement. Each highlight must be at least {{.MinHighlightDurationSec}} seconds long.
Return JSON with a "highlights" array of objects containing
timestamp_start_seconds, timestamp_end_seconds and description.`)

	register(GameOverwatch, `You are reviewing an Overwatch 2 gameplay recording of the player "{{.Username}}".
Find multi-kills, big ultimate plays, and fight-winning moments by {{.Username}}.
Each highlight must be at least {{.MinHighlightDurationSec}} seconds long.
Return JSON with a "highlights" array of objects containing
timestamp_start_seconds, timestamp_end_seconds and description.`)

	register(GameTheFinals, `You are reviewing a THE FINALS gameplay recording of the player "{{.Username}}".
Find eliminations, cashout steals, and destructive plays by {{.Username}}.
Each highlight must be at least {{.MinHighlightDurationSec}} seconds long.
Return JSON with a "highlights" array of objects containing
timestamp_start_seconds, timestamp_end_seconds and description.`)

	register(GameLeague, `You are reviewing a League of Legends gameplay recording of the player "{{.Username}}".
Find kills, outplays, objective steals, and teamfight wins involving {{.Username}}.
Each highlight must be at least {{.MinHighlightDurationSec}} seconds long.
Return JSON with a "highlights" array of objects containing
timestamp_start_seconds, timestamp_end_seconds and description.`)

	register(GameSplitgate, `You are reviewing a Splitgate 2 gameplay recording of the player "{{.Username}}".
Find portal plays, multi-kills, and clutch moments by {{.Username}}.
Each highlight must be at least {{.MinHighlightDurationSec}} seconds long.
Return JSON with a "highlights" array of objects containing
timestamp_start_seconds, timestamp_end_seconds and description.`)

	register(GameKills, `You are reviewing a gameplay recording of the player "{{.Username}}".
Find every kill {{.Username}} gets. Group kills that happen within a few seconds
of each other into one highlight covering the whole sequence. Each highlight must
be at least {{.MinHighlightDurationSec}} seconds long.
Return JSON with a "highlights" array of objects containing
timestamp_start_seconds, timestamp_end_seconds and description.`)

	register(GameCustom, `You are reviewing a gameplay recording of the player "{{.Username}}".
Find the most entertaining, impressive, or funny moments. Each highlight must be
at least {{.MinHighlightDurationSec}} seconds long.
Return JSON with a "highlights" array of objects containing
timestamp_start_seconds, timestamp_end_seconds and description.`)
}

// Known reports whether a prompt template exists for the game type.
func Known(game GameType) bool {
	_, ok := registry[game]
	return ok
}

// Games lists the registered game types in stable order.
func Games() []GameType {
	out := make([]GameType, 0, len(registry))
	for g := range registry {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Render produces the analysis prompt for a game. Unknown game types are
// rejected; config validation maps them to the custom prompt up front.
func Render(game GameType, p Params) (string, error) {
	tmpl, ok := registry[game]
	if !ok {
		return "", fmt.Errorf("no prompt registered for game type %q", game)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, p); err != nil {
		return "", fmt.Errorf("render prompt for %q: %w", game, err)
	}
	return buf.String(), nil
}
