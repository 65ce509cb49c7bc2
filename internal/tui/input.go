package tui

import (
	"strings"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"
)

// maxInputLen is the maximum number of runes allowed in single-line fields.
const maxInputLen = 2000

// maxCodeLen is the maximum number of runes typed or pasted into the code area.
const maxCodeLen = 200000

// editRune processes a keystroke for inline text editing.
// Handles backspace (rune-aware) and single printable characters.
// Returns the text unchanged for non-printable keys (enter, esc, etc.).
// Input is clamped to maxInputLen runes.
func editRune(text string, key string) string {
	return editText(text, key, maxInputLen)
}

func editText(text, key string, limit int) string {
	switch key {
	case "backspace":
		if len(text) > 0 {
			runes := []rune(text)
			return string(runes[:len(runes)-1])
		}
		return text
	default:
		if utf8.RuneCountInString(key) == 1 {
			if utf8.RuneCountInString(text) >= limit {
				return text
			}
			return text + key
		}
		return text
	}
}

// applyKey edits text for msg. Typed and bracketed-paste runes are inserted
// up to limit; space and backspace are handled; other keys are ignored.
func applyKey(text string, msg tea.KeyMsg, limit int) string {
	switch msg.Type {
	case tea.KeyRunes:
		room := limit - utf8.RuneCountInString(text)
		if room <= 0 {
			return text
		}
		runes := msg.Runes
		if len(runes) > room {
			runes = runes[:room]
		}
		return text + normalizeNewlines(string(runes))
	case tea.KeySpace:
		return editText(text, " ", limit)
	case tea.KeyBackspace:
		return editText(text, "backspace", limit)
	}
	return text
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

// truncateToHeight limits output to maxLines newline-delimited lines.
// Returns the original string if it fits or maxLines is <= 0.
func truncateToHeight(s string, maxLines int) string {
	if maxLines <= 0 {
		return s
	}
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			n++
			if n >= maxLines {
				return s[:i+1]
			}
		}
	}
	return s
}

// tailLines returns the last n lines of s, so the cursor end of a long code
// buffer stays visible.
func tailLines(s string, n int) string {
	if n <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}

// truncStr truncates a string to maxLen runes, appending an ellipsis if needed.
func truncStr(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen-1]) + "…"
}
