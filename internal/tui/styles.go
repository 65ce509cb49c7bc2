package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/naveenspark/diagrama/pkg/domain"
)

// Shimmer animation for the DIAGRAMA logo; also drives the spinner.
type shimmerTickMsg time.Time

func shimmerTickCmd() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg {
		return shimmerTickMsg(t)
	})
}

// renderShimmerLogo renders "DIAGRAMA" as a flowing wave of indigo light.
// Deep indigo (#23235a) -> bright periwinkle (#a5b4fc).
func renderShimmerLogo(frame int) string {
	const text = "DIAGRAMA"
	n := len(text)
	t := float64(frame)

	var out strings.Builder
	for i := 0; i < n; i++ {
		x := float64(i) / float64(n-1)

		// One smooth wave advancing through the text, gently speed-modulated.
		phase := t*0.1 - x*3.0 + math.Sin(t*0.023)*2.0
		b := math.Pow(math.Sin(phase)*0.5+0.5, 1.3)
		b = b*0.75 + math.Sin(t*0.035)*0.12 + 0.18
		b = math.Max(0.05, math.Min(1.0, b))

		r := clampByte(35 + b*(165-35))
		g := clampByte(35 + b*(180-35))
		bl := clampByte(90 + b*(252-90))

		s := lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(fmt.Sprintf("#%02X%02X%02X", r, g, bl)))
		out.WriteString(s.Render(string(text[i])))

		if i < n-1 {
			out.WriteString("  ")
		}
	}
	return out.String()
}

func clampByte(v float64) int {
	if v > 255 {
		return 255
	}
	if v < 0 {
		return 0
	}
	return int(v)
}

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// spinner returns the spinner glyph for an animation frame.
func spinner(frame int) string {
	if frame < 0 {
		frame = -frame
	}
	return accentStyle.Render(spinnerFrames[frame%len(spinnerFrames)])
}

var (
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8890a0"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#e4e4ec")).
			Bold(true)

	normalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#c0c4d0"))

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#505868"))

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8890a0"))

	helpLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#505868"))

	accentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#818cf8"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ade80"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#e06060"))

	linkStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#60a0e0")).
			Underline(true)

	sectionHeaderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#606878")).
				Bold(true)

	inputPromptStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#818cf8")).
				Bold(true)

	inputPlaceholderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#343c4a"))

	codeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#c0c4d0"))

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#1e1e2a")).
			Padding(0, 1)

	focusedPanelStyle = panelStyle.
				BorderForeground(lipgloss.Color("#4f46e5"))

	typeColors = map[domain.DiagramType]lipgloss.Color{
		domain.DiagramFlowchart: lipgloss.Color("#818cf8"),
		domain.DiagramSequence:  lipgloss.Color("#3ecce4"),
		domain.DiagramClass:     lipgloss.Color("#b080d0"),
		domain.DiagramER:        lipgloss.Color("#f0944a"),
		domain.DiagramAWS:       lipgloss.Color("#d4a844"),
		domain.DiagramNetwork:   lipgloss.Color("#4ade80"),
	}
)

// TypeStyle returns a bold style colored for the given diagram type.
func TypeStyle(t domain.DiagramType) lipgloss.Style {
	if c, ok := typeColors[t]; ok {
		return lipgloss.NewStyle().Foreground(c).Bold(true)
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("#606878")).Bold(true)
}

// helpEntry renders a single "key label" pair for help bars.
func helpEntry(key, label string) string {
	return helpKeyStyle.Render(key) + " " + helpLabelStyle.Render(label)
}

// helpBar joins key/label pairs into a help line.
func helpBar(pairs ...string) string {
	var parts []string
	for i := 0; i+1 < len(pairs); i += 2 {
		parts = append(parts, helpEntry(pairs[i], pairs[i+1]))
	}
	return " " + strings.Join(parts, "  ")
}
