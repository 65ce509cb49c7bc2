package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/naveenspark/diagrama/internal/session"
	"github.com/naveenspark/diagrama/pkg/domain"
)

type view int

const (
	viewAuth view = iota
	viewEditor
)

// AuthGateway registers and signs in users.
type AuthGateway interface {
	Register(ctx context.Context, creds domain.Credentials) (*domain.AuthResponse, error)
	Login(ctx context.Context, creds domain.Credentials) (*domain.AuthResponse, error)
}

// DiagramSender runs the network phase of a generation.
type DiagramSender interface {
	Send(ctx context.Context, payload json.RawMessage, kind domain.DiagramType) (*domain.DiagramResult, error)
}

// TextSource produces a new code string from a file, the clipboard or a URL.
type TextSource interface {
	FromFile(path string) (string, error)
	FromClipboard() (string, error)
	FromURL(ctx context.Context, rawURL string) (string, error)
}

// Exporter writes the displayed diagram to disk.
type Exporter interface {
	Export(ctx context.Context, res *domain.DiagramResult, format domain.ExportFormat) (string, error)
}

// Deps is everything the TUI talks to.
type Deps struct {
	Session  *session.Holder
	Auth     AuthGateway
	Diagrams DiagramSender
	Sources  TextSource
	Exporter Exporter
	Open     func(url string) error
	Logger   *slog.Logger
}

// loggedInMsg is emitted by the auth view once the backend handed out a token.
type loggedInMsg struct {
	resp *domain.AuthResponse
}

// loggedOutMsg is emitted by the editor on ctrl+l.
type loggedOutMsg struct{}

// App is the root Bubbletea model. It shows the auth view until the session
// holds a token, then the editor.
type App struct {
	deps    Deps
	view    view
	auth    authModel
	editor  editorModel
	version string
	notice  string
	width   int
	height  int
	frame   int // logo shimmer animation frame
}

// NewApp creates a new TUI application. deps.Session must not be nil.
func NewApp(deps Deps, version string) App {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	a := App{
		deps:    deps,
		auth:    newAuthModel(deps.Auth),
		editor:  newEditorModel(deps),
		version: version,
	}
	if deps.Session != nil && deps.Session.Authenticated() {
		a.view = viewEditor
	}
	return a
}

func (a App) Init() tea.Cmd {
	return shimmerTickCmd()
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		// Chrome: header(2) + status(1) + help(1) = 4 lines
		bodyMsg := tea.WindowSizeMsg{Width: msg.Width, Height: msg.Height - 4}
		a.auth, _ = a.auth.Update(bodyMsg)
		a.editor, _ = a.editor.Update(bodyMsg)
		return a, nil

	case shimmerTickMsg:
		a.frame++
		a.editor.frame = a.frame
		return a, shimmerTickCmd()

	case loggedInMsg:
		return a.login(msg.resp)

	case loggedOutMsg:
		return a.logout()

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		a.notice = ""
	}

	var cmd tea.Cmd
	switch a.view {
	case viewAuth:
		a.auth, cmd = a.auth.Update(msg)
	case viewEditor:
		a.editor, cmd = a.editor.Update(msg)
	}
	return a, cmd
}

func (a App) login(resp *domain.AuthResponse) (tea.Model, tea.Cmd) {
	if resp == nil {
		return a, nil
	}
	if err := a.deps.Session.Login(resp.Account(), resp.Token); err != nil {
		a.deps.Logger.Error("persist session", "error", err)
		a.auth.submitting = false
		a.auth.notice = "could not save the session: " + err.Error()
		a.auth.failed = true
		return a, nil
	}
	a.deps.Logger.Info("signed in", "user", resp.Account().Username)
	a.auth = newAuthModel(a.deps.Auth)
	a.editor = newEditorModel(a.deps)
	a.editor.width, a.editor.height = a.width, a.height-4
	a.view = viewEditor
	return a, nil
}

func (a App) logout() (tea.Model, tea.Cmd) {
	if err := a.deps.Session.Logout(); err != nil {
		a.deps.Logger.Warn("remove session file", "error", err)
		a.notice = "signed out, but the session file could not be removed"
	}
	a.deps.Logger.Info("signed out")
	a.auth = newAuthModel(a.deps.Auth)
	a.auth.width, a.auth.height = a.width, a.height-4
	a.view = viewAuth
	return a, nil
}

func (a App) View() string {
	logo := renderShimmerLogo(a.frame)
	logoPad := (a.width - lipgloss.Width(logo)) / 2
	if logoPad < 0 {
		logoPad = 0
	}
	header := strings.Repeat(" ", logoPad) + logo

	var sub string
	if a.view == viewEditor {
		if u := a.deps.Session.User(); u != nil && u.Username != "" {
			sub = "signed in as " + u.Username
		} else {
			sub = "signed in"
		}
	} else {
		sub = "diagrams from JSON"
	}
	if a.version != "" {
		sub += " . " + a.version
	}
	sub = metaStyle.Render(sub)
	subPad := (a.width - lipgloss.Width(sub)) / 2
	if subPad < 0 {
		subPad = 0
	}
	header += "\n" + strings.Repeat(" ", subPad) + sub

	var body, help string
	switch a.view {
	case viewAuth:
		body = a.auth.View()
		help = a.auth.helpKeys()
	case viewEditor:
		body = a.editor.View()
		help = a.editor.helpKeys()
	}

	status := ""
	if a.notice != "" {
		status = " " + errorStyle.Render(a.notice)
	}

	// Chrome budget: header(2) + status(1) + help(1) = 4 lines + body
	body = strings.TrimRight(truncateToHeight(body, a.height-4), "\n")

	return fmt.Sprintf("%s\n%s\n%s\n%s", header, body, status, help)
}
