package tui

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/naveenspark/diagrama/pkg/client"
	"github.com/naveenspark/diagrama/pkg/domain"
)

type authMode int

const (
	modeLogin authMode = iota
	modeRegister
)

func (m authMode) String() string {
	if m == modeRegister {
		return "register"
	}
	return "sign in"
}

type authField int

const (
	authUsername authField = iota
	authEmail
	authPassword
	numAuthFields
)

type authModel struct {
	gateway    AuthGateway
	mode       authMode
	fields     [numAuthFields]string
	focus      authField
	submitting bool
	notice     string
	failed     bool
	width      int
	height     int
}

type authResultMsg struct {
	mode authMode
	resp *domain.AuthResponse
	err  error
}

func newAuthModel(gw AuthGateway) authModel {
	return authModel{gateway: gw}
}

// visibleFields lists the fields shown in the current mode, in tab order.
func (m authModel) visibleFields() []authField {
	if m.mode == modeRegister {
		return []authField{authUsername, authEmail, authPassword}
	}
	return []authField{authUsername, authPassword}
}

func (m authModel) Update(msg tea.Msg) (authModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case authResultMsg:
		return m.handleResult(msg)

	case tea.KeyMsg:
		if m.submitting {
			return m, nil
		}
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m authModel) handleResult(msg authResultMsg) (authModel, tea.Cmd) {
	m.submitting = false
	if msg.err != nil {
		m.failed = true
		m.notice = authNotice(msg.mode, msg.err)
		m.fields[authPassword] = ""
		return m, nil
	}
	if msg.resp == nil || msg.resp.Token == "" {
		if msg.mode == modeRegister {
			// Account exists but the backend did not sign it in.
			m.mode = modeLogin
			m.focus = authPassword
			m.fields[authPassword] = ""
			m.failed = false
			m.notice = "account created, sign in to continue"
			return m, nil
		}
		m.failed = true
		m.notice = "sign in failed: no token in response"
		return m, nil
	}
	resp := msg.resp
	return m, func() tea.Msg { return loggedInMsg{resp: resp} }
}

func authNotice(mode authMode, err error) string {
	switch {
	case client.IsStatus(err, http.StatusUnauthorized), client.IsStatus(err, http.StatusForbidden):
		return "invalid username or password"
	case client.IsStatus(err, http.StatusConflict):
		return "that account already exists"
	}
	if code := client.StatusOf(err); code != 0 {
		var he *client.HTTPError
		if errors.As(err, &he) && he.Message != "" {
			return fmt.Sprintf("%s failed: %s", mode, he.Message)
		}
		return fmt.Sprintf("%s failed: server returned %d", mode, code)
	}
	return fmt.Sprintf("%s failed: server unreachable", mode)
}

func (m authModel) updateKeys(msg tea.KeyMsg) (authModel, tea.Cmd) {
	fields := m.visibleFields()
	switch msg.String() {
	case "ctrl+t":
		if m.mode == modeLogin {
			m.mode = modeRegister
		} else {
			m.mode = modeLogin
			if m.focus == authEmail {
				m.focus = authUsername
			}
		}
		m.notice = ""
		m.failed = false
		return m, nil
	case "tab", "down":
		m.focus = fields[(indexOf(fields, m.focus)+1)%len(fields)]
		return m, nil
	case "shift+tab", "up":
		m.focus = fields[(indexOf(fields, m.focus)-1+len(fields))%len(fields)]
		return m, nil
	case "enter", "ctrl+s":
		if msg.String() == "enter" && m.focus != fields[len(fields)-1] {
			m.focus = fields[indexOf(fields, m.focus)+1]
			return m, nil
		}
		return m.submit()
	}
	m.fields[m.focus] = applyKey(m.fields[m.focus], msg, maxInputLen)
	return m, nil
}

func indexOf(fields []authField, f authField) int {
	for i, v := range fields {
		if v == f {
			return i
		}
	}
	return 0
}

func (m authModel) submit() (authModel, tea.Cmd) {
	creds := domain.Credentials{
		Username: strings.TrimSpace(m.fields[authUsername]),
		Password: m.fields[authPassword],
	}
	if m.mode == modeRegister {
		creds.Email = strings.TrimSpace(m.fields[authEmail])
	}

	switch {
	case creds.Username == "":
		m.failed, m.notice = true, "username is required"
		return m, nil
	case creds.Password == "":
		m.failed, m.notice = true, "password is required"
		return m, nil
	case m.mode == modeRegister && creds.Email == "":
		m.failed, m.notice = true, "email is required"
		return m, nil
	}

	m.submitting = true
	m.notice = ""
	m.failed = false
	gw, mode := m.gateway, m.mode
	return m, func() tea.Msg {
		var (
			resp *domain.AuthResponse
			err  error
		)
		if mode == modeRegister {
			resp, err = gw.Register(context.Background(), creds)
		} else {
			resp, err = gw.Login(context.Background(), creds)
		}
		return authResultMsg{mode: mode, resp: resp, err: err}
	}
}

func (m authModel) View() string {
	var b strings.Builder

	title := "Sign in"
	toggle := "no account? ctrl+t to register"
	if m.mode == modeRegister {
		title = "Create an account"
		toggle = "have an account? ctrl+t to sign in"
	}
	b.WriteString("\n " + sectionHeaderStyle.Render(title) + "\n\n")

	labels := [numAuthFields]string{"username", "email", "password"}
	for _, f := range m.visibleFields() {
		value := m.fields[f]
		if f == authPassword {
			value = strings.Repeat("•", len([]rune(value)))
		}
		cursor := " "
		style := metaStyle
		if f == m.focus {
			cursor = inputPromptStyle.Render(">")
			style = selectedStyle
			value += "█"
		}
		fmt.Fprintf(&b, " %s %s %s\n", cursor, style.Render(fmt.Sprintf("%-9s", labels[f])), normalStyle.Render(value))
	}

	b.WriteString("\n")
	switch {
	case m.submitting:
		b.WriteString(" " + dimStyle.Render(m.mode.String()+"..."))
	case m.notice != "" && m.failed:
		b.WriteString(" " + errorStyle.Render(m.notice))
	case m.notice != "":
		b.WriteString(" " + successStyle.Render(m.notice))
	default:
		b.WriteString(" " + dimStyle.Render(toggle))
	}
	b.WriteString("\n")
	return b.String()
}

func (m authModel) helpKeys() string {
	return helpBar("tab", "next", "enter", "submit", "ctrl+t", "login/register", "ctrl+c", "quit")
}
