package domain

import "fmt"

// DiagramType is the diagram kind selected in the editor. It labels the
// result locally and is never sent to the generation service.
type DiagramType string

const (
	DiagramFlowchart DiagramType = "flowchart"
	DiagramSequence  DiagramType = "sequence"
	DiagramClass     DiagramType = "class"
	DiagramER        DiagramType = "er"
	DiagramAWS       DiagramType = "aws"
	DiagramNetwork   DiagramType = "network"
)

// DiagramTypes lists the selectable types in display order.
var DiagramTypes = []DiagramType{
	DiagramFlowchart,
	DiagramSequence,
	DiagramClass,
	DiagramER,
	DiagramAWS,
	DiagramNetwork,
}

var diagramLabels = map[DiagramType]string{
	DiagramFlowchart: "Flowchart",
	DiagramSequence:  "Sequence Diagram",
	DiagramClass:     "Class Diagram",
	DiagramER:        "ER Diagram",
	DiagramAWS:       "AWS Architecture",
	DiagramNetwork:   "Network Diagram",
}

// ValidDiagramType reports whether t is one of DiagramTypes.
func ValidDiagramType(t DiagramType) bool {
	_, ok := diagramLabels[t]
	return ok
}

// ParseDiagramType converts a flag or config value into a DiagramType.
func ParseDiagramType(s string) (DiagramType, error) {
	t := DiagramType(s)
	if !ValidDiagramType(t) {
		return "", fmt.Errorf("unknown diagram type %q", s)
	}
	return t, nil
}

// Label returns the human-readable name shown in the selector.
func (t DiagramType) Label() string {
	if l, ok := diagramLabels[t]; ok {
		return l
	}
	return string(t)
}

// Next returns the type after t, wrapping around.
func (t DiagramType) Next() DiagramType {
	return t.shift(1)
}

// Prev returns the type before t, wrapping around.
func (t DiagramType) Prev() DiagramType {
	return t.shift(-1)
}

func (t DiagramType) shift(d int) DiagramType {
	idx := 0
	for i, dt := range DiagramTypes {
		if dt == t {
			idx = i
			break
		}
	}
	n := len(DiagramTypes)
	return DiagramTypes[(idx+d+n)%n]
}

// DiagramRequest is the editor input for one generation attempt.
type DiagramRequest struct {
	RawText string
	Type    DiagramType
}

// DiagramResult is a generated diagram. URL references the rendered image;
// its content is fetched when exporting.
type DiagramResult struct {
	URL  string      `json:"url"`
	Type DiagramType `json:"type"`
}

// ExportFormat selects the file written by an export.
type ExportFormat string

const (
	ExportSVG ExportFormat = "svg"
	ExportPNG ExportFormat = "png"
)

// FileName returns the fixed download name for the format.
func (f ExportFormat) FileName() string {
	return "diagram." + string(f)
}

// ParseExportFormat converts a flag value into an ExportFormat.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch ExportFormat(s) {
	case ExportSVG, ExportPNG:
		return ExportFormat(s), nil
	}
	return "", fmt.Errorf("unknown export format %q (want svg or png)", s)
}
