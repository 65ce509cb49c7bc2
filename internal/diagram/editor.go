package diagram

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/naveenspark/diagrama/pkg/domain"
)

// State is the editor's generation state.
type State int

const (
	StateIdle State = iota
	StateGenerating
	StateDisplayed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateGenerating:
		return "generating"
	case StateDisplayed:
		return "displayed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Pending is a request accepted by Begin and waiting for its network phase.
type Pending struct {
	Payload json.RawMessage
	Type    domain.DiagramType
}

// Editor holds the code string, the selected type and the outcome of the last
// generation. It is a value type; every transition returns the next Editor.
type Editor struct {
	Code   string
	Type   domain.DiagramType
	State  State
	Result *domain.DiagramResult
	Notice string
}

// NewEditor returns an idle editor with the default diagram type.
func NewEditor() Editor {
	return Editor{Type: domain.DiagramFlowchart}
}

// Generating reports whether a request is in flight.
func (e Editor) Generating() bool {
	return e.State == StateGenerating
}

// CanGenerate is false while a request is in flight or the code is blank.
func (e Editor) CanGenerate() bool {
	return !e.Generating() && strings.TrimSpace(e.Code) != ""
}

// SetCode replaces the code string. A failed editor returns to idle and any
// notice is dropped.
func (e Editor) SetCode(code string) Editor {
	e.Code = code
	if e.State == StateFailed {
		e.State = StateIdle
	}
	if !e.Generating() {
		e.Notice = ""
	}
	return e
}

// SetType changes the selected type. A request already in flight keeps the
// type it was started with.
func (e Editor) SetType(t domain.DiagramType) Editor {
	if domain.ValidDiagramType(t) {
		e.Type = t
	}
	return e
}

// Request snapshots the code and type for one generation attempt.
func (e Editor) Request() domain.DiagramRequest {
	return domain.DiagramRequest{RawText: e.Code, Type: e.Type}
}

// Begin starts a generation. Blank code and in-flight requests are refused
// without any change. Code that is not JSON leaves the editor idle with a
// notice and never reaches the network phase.
func (e Editor) Begin() (Editor, Pending, bool) {
	if e.Generating() {
		return e, Pending{}, false
	}
	req := e.Request()
	payload, err := Parse(req.RawText)
	if errors.Is(err, ErrEmptyCode) {
		return e, Pending{}, false
	}
	if err != nil {
		e.State = StateIdle
		e.Notice = Notice(err)
		return e, Pending{}, false
	}
	e.State = StateGenerating
	e.Notice = ""
	e.Result = nil
	return e, Pending{Payload: payload, Type: req.Type}, true
}

// Complete records the outcome of the request started by Begin. It always
// clears the generating state.
func (e Editor) Complete(res *domain.DiagramResult, err error) Editor {
	if !e.Generating() {
		return e
	}
	if err == nil && res == nil {
		err = ErrNoURL
	}
	switch {
	case err == nil:
		e.State = StateDisplayed
		e.Result = res
		e.Notice = ""
	case errors.Is(err, ErrForbidden):
		e.State = StateIdle
		e.Notice = ""
	default:
		e.State = StateFailed
		e.Notice = Notice(err)
	}
	return e
}
