package compiler

import (
	"fmt"

	"github.com/tliron/commonlog"
)

// ---------------------------------------------------------------------------
// Diagnostics: source locations, user-facing messages, and the sink they
// travel through.
// ---------------------------------------------------------------------------

// Position identifies a single point in a source file. It is 1-based: the
// first character of a file is {Line: 1, Column: 1}, and the column
// following a newline resets to 1.
type Position struct {
	File   string
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// Chunk is one run of a Message, optionally rendered bold by a sink that
// understands styling.
type Chunk struct {
	Text string
	Bold bool
}

// Message is either a plain string or a sequence of styled chunks.
type Message struct {
	Chunks []Chunk
}

// Text builds a plain, unstyled Message.
func Text(s string) Message {
	return Message{Chunks: []Chunk{{Text: s}}}
}

// Textf builds a plain, unstyled Message from a format string.
func Textf(format string, args ...interface{}) Message {
	return Text(fmt.Sprintf(format, args...))
}

// String renders the message as plain text, discarding styling.
func (m Message) String() string {
	var s string
	for _, c := range m.Chunks {
		s += c.Text
	}
	return s
}

// Severity classifies a Diagnostic.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarn
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarn:
		return "WARN"
	case SeverityError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Diagnostic is one unit of feedback about a compilation: a warning, an
// internal-error notice, or (wrapped as an InputError instead, see below)
// a user error.
type Diagnostic struct {
	Severity Severity
	Message  Message
	Pos      *Position // nil when the diagnostic has no associated location
}

// Sink is where diagnostics go. Diagnostics never alter control flow; only
// a returned InputError does.
type Sink interface {
	Emit(Diagnostic)
}

// CommonLogSink mirrors every diagnostic to a github.com/tliron/commonlog
// logger, in addition to whatever a caller does with Diagnostics directly.
// This is the sink nitroc and nitro-lsp both install, so CLI runs and editor
// sessions end up on one logging backend.
type CommonLogSink struct {
	Diagnostics []Diagnostic
}

// NewCommonLogSink returns a Sink that records every diagnostic (for the
// caller to inspect or render) and forwards it to commonlog.
func NewCommonLogSink() *CommonLogSink {
	return &CommonLogSink{}
}

func (s *CommonLogSink) Emit(d Diagnostic) {
	s.Diagnostics = append(s.Diagnostics, d)

	text := d.Message.String()
	if d.Pos != nil {
		text = fmt.Sprintf("%s: %s", d.Pos, text)
	}

	switch d.Severity {
	case SeverityWarn:
		commonlog.NewWarningMessage(0, text)
	case SeverityError:
		commonlog.NewErrorMessage(0, text)
	default:
		commonlog.NewInfoMessage(0, text)
	}
}

// InputError is a user-facing compilation failure at a known source
// location: a malformed token, an invalid statement, an unresolved
// identifier, and so on. The first InputError raised by any stage aborts
// the pipeline.
type InputError struct {
	Message Message
	Pos     Position
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Message)
}

// NewInputError builds an InputError with a plain-text message.
func NewInputError(pos Position, format string, args ...interface{}) *InputError {
	return &InputError{Message: Textf(format, args...), Pos: pos}
}
