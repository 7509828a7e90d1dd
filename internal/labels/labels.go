// Package labels turns raw label input into normalized label tokens and
// computes label aggregates over account collections.
package labels

import (
	"encoding/json"
	"strings"

	"github.com/atinyakov/AccountKeeper/internal/models"
)

// Separator splits the legacy single-string form of labels.
const Separator = ";"

// JoinSeparator joins label texts for display and length checks.
const JoinSeparator = "; "

// Parse normalizes raw label input into an ordered slice of labels.
//
// raw may be a legacy ";"-separated string, a []models.Label, a []string or
// the []any shape produced by decoding JSON (strings or {"text": ...}
// objects). Every token is trimmed and empty tokens are dropped. Input of
// any other shape yields an empty slice.
func Parse(raw any) []models.Label {
	out := []models.Label{}
	switch v := raw.(type) {
	case string:
		for _, piece := range strings.Split(v, Separator) {
			out = appendText(out, piece)
		}
	case []models.Label:
		for _, l := range v {
			out = appendText(out, l.Text)
		}
	case []string:
		for _, s := range v {
			out = appendText(out, s)
		}
	case []any:
		for _, el := range v {
			switch e := el.(type) {
			case string:
				out = appendText(out, e)
			case map[string]any:
				if text, ok := e["text"].(string); ok {
					out = appendText(out, text)
				}
			}
		}
	}
	return out
}

// ParseJSON decodes labels stored either as a JSON string or as a JSON list.
// Malformed input yields an empty slice.
func ParseJSON(data json.RawMessage) []models.Label {
	if len(data) == 0 {
		return []models.Label{}
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return []models.Label{}
	}
	return Parse(raw)
}

func appendText(out []models.Label, text string) []models.Label {
	text = strings.TrimSpace(text)
	if text == "" {
		return out
	}
	return append(out, models.Label{Text: text})
}

// Join returns the label texts joined with JoinSeparator.
func Join(ls []models.Label) string {
	texts := make([]string, len(ls))
	for i, l := range ls {
		texts[i] = l.Text
	}
	return strings.Join(texts, JoinSeparator)
}

// All concatenates the labels of every account in account order.
func All(accounts []models.Account) []models.Label {
	out := []models.Label{}
	for _, acc := range accounts {
		out = append(out, acc.Labels...)
	}
	return out
}

// Unique returns each distinct label text once, in order of first appearance.
func Unique(accounts []models.Account) []models.Label {
	seen := make(map[string]struct{})
	out := []models.Label{}
	for _, l := range All(accounts) {
		if _, ok := seen[l.Text]; ok {
			continue
		}
		seen[l.Text] = struct{}{}
		out = append(out, l)
	}
	return out
}
