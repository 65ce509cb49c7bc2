package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/naveenspark/diagrama/internal/diagram"
	"github.com/naveenspark/diagrama/internal/export"
	"github.com/naveenspark/diagrama/internal/source"
	"github.com/naveenspark/diagrama/pkg/domain"
)

type editorField int

const (
	fieldType editorField = iota
	fieldCode
	fieldPath
	fieldURL
	numEditorFields
)

type editorModel struct {
	deps      Deps
	ed        diagram.Editor
	focus     editorField
	path      string
	url       string
	loading   bool
	exporting bool
	status    string
	statusErr bool
	frame     int
	width     int
	height    int
}

// codeLoadedMsg carries a code string read from a file, the clipboard or a URL.
type codeLoadedMsg struct {
	origin string
	code   string
	err    error
}

type generatedMsg struct {
	res *domain.DiagramResult
	err error
}

type exportedMsg struct {
	format domain.ExportFormat
	path   string
	err    error
}

func newEditorModel(deps Deps) editorModel {
	return editorModel{deps: deps, ed: diagram.NewEditor(), focus: fieldCode}
}

func (m editorModel) Update(msg tea.Msg) (editorModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case codeLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.deps.Logger.Warn("load code", "origin", msg.origin, "error", msg.err)
			m.setStatus(sourceNotice(msg.err), true)
			return m, nil
		}
		m.ed = m.ed.SetCode(msg.code)
		m.setStatus(fmt.Sprintf("loaded %d bytes from %s", len(msg.code), msg.origin), false)
		return m, nil

	case generatedMsg:
		m.ed = m.ed.Complete(msg.res, msg.err)
		m.status = ""
		return m, nil

	case exportedMsg:
		m.exporting = false
		if msg.err != nil {
			m.deps.Logger.Warn("export diagram", "format", msg.format, "error", msg.err)
			m.setStatus(exportNotice(msg.err), true)
			return m, nil
		}
		m.setStatus("saved "+msg.path, false)
		return m, nil

	case tea.KeyMsg:
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m *editorModel) setStatus(s string, isErr bool) {
	m.status = s
	m.statusErr = isErr
}

func (m editorModel) updateKeys(msg tea.KeyMsg) (editorModel, tea.Cmd) {
	switch msg.String() {
	case "tab":
		m.focus = (m.focus + 1) % numEditorFields
		return m, nil
	case "shift+tab":
		m.focus = (m.focus - 1 + numEditorFields) % numEditorFields
		return m, nil
	case "ctrl+s":
		return m.generate()
	case "ctrl+o":
		return m.loadFile()
	case "ctrl+g":
		return m.loadURL()
	case "ctrl+v":
		return m.paste()
	case "ctrl+e":
		return m.export(domain.ExportSVG)
	case "ctrl+p":
		return m.export(domain.ExportPNG)
	case "ctrl+b":
		return m.openResult()
	case "ctrl+l":
		return m, func() tea.Msg { return loggedOutMsg{} }
	}

	switch m.focus {
	case fieldType:
		switch msg.String() {
		case "l", "right", "down", "enter":
			m.ed = m.ed.SetType(m.ed.Type.Next())
		case "h", "left", "up":
			m.ed = m.ed.SetType(m.ed.Type.Prev())
		}
	case fieldCode:
		code := m.ed.Code
		if msg.Type == tea.KeyEnter {
			code = editText(code, "\n", maxCodeLen)
		} else {
			code = applyKey(code, msg, maxCodeLen)
		}
		if code != m.ed.Code {
			m.ed = m.ed.SetCode(code)
		}
	case fieldPath:
		if msg.Type == tea.KeyEnter {
			return m.loadFile()
		}
		m.path = applyKey(m.path, msg, maxInputLen)
	case fieldURL:
		if msg.Type == tea.KeyEnter {
			return m.loadURL()
		}
		m.url = applyKey(m.url, msg, maxInputLen)
	}
	return m, nil
}

func (m editorModel) generate() (editorModel, tea.Cmd) {
	next, pending, ok := m.ed.Begin()
	m.ed = next
	if !ok {
		return m, nil
	}
	m.status = ""
	sender := m.deps.Diagrams
	return m, func() tea.Msg {
		res, err := sender.Send(context.Background(), pending.Payload, pending.Type)
		return generatedMsg{res: res, err: err}
	}
}

func (m editorModel) loadFile() (editorModel, tea.Cmd) {
	path := strings.TrimSpace(m.path)
	if path == "" {
		m.focus = fieldPath
		m.setStatus("type a file path first", true)
		return m, nil
	}
	m.loading = true
	m.status = ""
	src := m.deps.Sources
	return m, func() tea.Msg {
		code, err := src.FromFile(path)
		return codeLoadedMsg{origin: path, code: code, err: err}
	}
}

func (m editorModel) loadURL() (editorModel, tea.Cmd) {
	if strings.TrimSpace(m.url) == "" {
		m.focus = fieldURL
		m.setStatus("type a GitHub URL first", true)
		return m, nil
	}
	m.loading = true
	m.status = ""
	src, u := m.deps.Sources, m.url
	return m, func() tea.Msg {
		code, err := src.FromURL(context.Background(), u)
		return codeLoadedMsg{origin: "url", code: code, err: err}
	}
}

func (m editorModel) paste() (editorModel, tea.Cmd) {
	m.loading = true
	m.status = ""
	src := m.deps.Sources
	return m, func() tea.Msg {
		code, err := src.FromClipboard()
		return codeLoadedMsg{origin: "clipboard", code: code, err: err}
	}
}

func (m editorModel) export(format domain.ExportFormat) (editorModel, tea.Cmd) {
	if m.ed.State != diagram.StateDisplayed || m.ed.Result == nil {
		m.setStatus(export.ErrNoResult.Error(), true)
		return m, nil
	}
	if m.exporting {
		return m, nil
	}
	m.exporting = true
	m.status = ""
	exp, res := m.deps.Exporter, m.ed.Result
	return m, func() tea.Msg {
		path, err := exp.Export(context.Background(), res, format)
		return exportedMsg{format: format, path: path, err: err}
	}
}

func (m editorModel) openResult() (editorModel, tea.Cmd) {
	if m.ed.Result == nil {
		m.setStatus(export.ErrNoResult.Error(), true)
		return m, nil
	}
	if m.deps.Open == nil {
		return m, nil
	}
	if err := m.deps.Open(m.ed.Result.URL); err != nil {
		m.setStatus("could not open the browser: "+err.Error(), true)
		return m, nil
	}
	m.setStatus("opened in browser", false)
	return m, nil
}

func sourceNotice(err error) string {
	switch {
	case errors.Is(err, source.ErrNotPlainText):
		return source.ErrNotPlainText.Error()
	case errors.Is(err, source.ErrClipboard):
		return source.ErrClipboard.Error()
	case errors.Is(err, source.ErrFetch):
		return source.ErrFetch.Error()
	}
	return "error reading the file"
}

func exportNotice(err error) string {
	for _, known := range []error{export.ErrNoResult, export.ErrVectorUnavailable, export.ErrDecodeTimeout, export.ErrEmptyImage} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "export failed: " + err.Error()
}

func (m editorModel) codeHeight() int {
	// type(2) + code border(2) + path/url(3) + status(2) + result(2)
	h := m.height - 11
	if h < 3 {
		h = 3
	}
	return h
}

func (m editorModel) View() string {
	var b strings.Builder

	label := func(f editorField, name string) string {
		if f == m.focus {
			return inputPromptStyle.Render(">") + " " + selectedStyle.Render(fmt.Sprintf("%-5s", name))
		}
		return "  " + metaStyle.Render(fmt.Sprintf("%-5s", name))
	}

	// Type selector
	typeLabel := TypeStyle(m.ed.Type).Render(m.ed.Type.Label())
	if m.focus == fieldType {
		typeLabel = dimStyle.Render("‹ ") + typeLabel + dimStyle.Render(" ›")
	}
	fmt.Fprintf(&b, " %s %s\n\n", label(fieldType, "type"), typeLabel)

	// Code area
	code := m.ed.Code
	if code == "" && m.focus != fieldCode {
		code = inputPlaceholderStyle.Render(`{"nodes": [...], "edges": [...]}`)
	} else {
		code = codeStyle.Render(tailLines(code, m.codeHeight()))
		if m.focus == fieldCode {
			code += "█"
		}
	}
	panel := panelStyle
	if m.focus == fieldCode {
		panel = focusedPanelStyle
	}
	if m.width > 4 {
		panel = panel.Width(m.width - 4)
	}
	b.WriteString(" " + label(fieldCode, "code") + "\n")
	b.WriteString(panel.Render(code) + "\n")

	// Sources
	path := m.path
	if m.focus == fieldPath {
		path += "█"
	} else if path == "" {
		path = inputPlaceholderStyle.Render("path/to/diagram.txt")
	}
	fmt.Fprintf(&b, " %s %s\n", label(fieldPath, "file"), path)
	u := m.url
	if m.focus == fieldURL {
		u += "█"
	} else if u == "" {
		u = inputPlaceholderStyle.Render("https://github.com/owner/repo/blob/main/diagram.json")
	}
	fmt.Fprintf(&b, " %s %s\n\n", label(fieldURL, "url"), truncStr(u, max(m.width-10, 20)))

	// Status
	switch {
	case m.ed.Generating():
		b.WriteString(" " + spinner(m.frame) + " " + dimStyle.Render("generating diagram..."))
	case m.loading:
		b.WriteString(" " + spinner(m.frame) + " " + dimStyle.Render("loading..."))
	case m.exporting:
		b.WriteString(" " + spinner(m.frame) + " " + dimStyle.Render("exporting..."))
	case m.ed.Notice != "":
		b.WriteString(" " + errorStyle.Render(m.ed.Notice))
	case m.status != "" && m.statusErr:
		b.WriteString(" " + errorStyle.Render(m.status))
	case m.status != "":
		b.WriteString(" " + successStyle.Render(m.status))
	}
	b.WriteString("\n")

	// Result
	if m.ed.State == diagram.StateDisplayed && m.ed.Result != nil {
		res := m.ed.Result
		fmt.Fprintf(&b, " %s %s\n", TypeStyle(res.Type).Render(res.Type.Label()), linkStyle.Render(res.URL))
	}

	return b.String()
}

func (m editorModel) helpKeys() string {
	switch m.focus {
	case fieldType:
		return helpBar("h/l", "type", "tab", "next", "ctrl+s", "generate", "ctrl+l", "logout", "ctrl+c", "quit")
	case fieldPath:
		return helpBar("enter", "load file", "tab", "next", "ctrl+s", "generate", "ctrl+c", "quit")
	case fieldURL:
		return helpBar("enter", "fetch", "tab", "next", "ctrl+s", "generate", "ctrl+c", "quit")
	}
	if m.ed.State == diagram.StateDisplayed {
		return helpBar("ctrl+s", "generate", "ctrl+e", "svg", "ctrl+p", "png", "ctrl+b", "browser", "ctrl+v", "paste", "ctrl+l", "logout")
	}
	return helpBar("tab", "next", "ctrl+s", "generate", "ctrl+v", "paste", "ctrl+o", "file", "ctrl+g", "url", "ctrl+l", "logout")
}
