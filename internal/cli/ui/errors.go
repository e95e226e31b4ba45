package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Level is the severity of a message
type Level int

const (
	LevelError Level = iota
	LevelWarning
)

// Message is a formatted CLI error or warning
type Message struct {
	Level       Level
	Context     string
	Problem     string
	Suggestions []string
	Hints       []string
	NoColor     bool
}

// Format renders the message:
//
//	error UNKNOWN CONNECTION: mian
//	   Did you mean: main?
//	   → daoctl ping
func (m Message) Format() string {
	var b strings.Builder

	head := color.New(color.FgRed, color.Bold)
	label := "error"
	if m.Level == LevelWarning {
		head = color.New(color.FgYellow, color.Bold)
		label = "warning"
	}
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)
	if m.NoColor {
		head.DisableColor()
		yellow.DisableColor()
		cyan.DisableColor()
	}

	if m.Context != "" {
		head.Fprintf(&b, "%s %s: %s\n", label, strings.ToUpper(m.Context), m.Problem)
	} else {
		head.Fprintf(&b, "%s %s\n", label, m.Problem)
	}
	if len(m.Suggestions) > 0 {
		yellow.Fprintf(&b, "   Did you mean: %s?\n", strings.Join(m.Suggestions, ", "))
	}
	for _, h := range m.Hints {
		cyan.Fprintf(&b, "   → %s\n", h)
	}
	return b.String()
}

// Write writes the formatted message to w
func (m Message) Write(w io.Writer) {
	fmt.Fprint(w, m.Format())
}

// UnknownConnection reports a logical connection missing from the
// configuration, suggesting close names.
func UnknownConnection(name string, known []string, noColor bool) Message {
	return Message{
		Context:     "unknown connection",
		Problem:     name,
		Suggestions: Suggest(name, known),
		Hints:       []string{"list connections: daoctl ping"},
		NoColor:     noColor,
	}
}

// UnknownTable reports a table the database does not have
func UnknownTable(name string, known []string, noColor bool) Message {
	return Message{
		Context:     "unknown table",
		Problem:     name,
		Suggestions: Suggest(name, known),
		NoColor:     noColor,
	}
}

// Success writes a green check line
func Success(w io.Writer, message string, noColor bool) {
	c := color.New(color.FgGreen, color.Bold)
	if noColor {
		c.DisableColor()
	}
	c.Fprintf(w, "✓ %s\n", message)
}
