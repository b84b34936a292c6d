// Package transcription splits stored call transcripts into display lines.
package transcription

import (
	"regexp"
	"strings"
)

const emptyTranscript = "No transcript available"

var speakerLine = regexp.MustCompile(`^([^:]+):\s*(.*)`)

// Line is one transcript line. Speaker is empty when the line has no
// "speaker:" prefix.
type Line struct {
	Speaker string `json:"speaker,omitempty"`
	Text    string `json:"text"`
}

// Parse splits text on newlines and pulls the speaker out of each line that
// has one. A blank transcript yields a single placeholder line.
func Parse(text string) []Line {
	if text == "" {
		text = emptyTranscript
	}
	raw := strings.Split(text, "\n")
	lines := make([]Line, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimSuffix(l, "\r")
		if m := speakerLine.FindStringSubmatch(l); m != nil {
			lines = append(lines, Line{Speaker: m[1], Text: m[2]})
			continue
		}
		lines = append(lines, Line{Text: l})
	}
	return lines
}

// Speakers returns the distinct speakers in order of first appearance.
func Speakers(lines []Line) []string {
	seen := map[string]bool{}
	var out []string
	for _, l := range lines {
		if l.Speaker == "" || seen[l.Speaker] {
			continue
		}
		seen[l.Speaker] = true
		out = append(out, l.Speaker)
	}
	return out
}
