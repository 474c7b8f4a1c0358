package schema

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// Syntax is the protobuf language revision a schema is written in.
type Syntax string

const (
	SyntaxProto2 Syntax = "proto2"
	SyntaxProto3 Syntax = "proto3"
)

// ParseSyntax validates a syntax name. The empty string is proto2.
func ParseSyntax(s string) (Syntax, error) {
	switch Syntax(s) {
	case "", SyntaxProto2:
		return SyntaxProto2, nil
	case SyntaxProto3:
		return SyntaxProto3, nil
	default:
		return "", fmt.Errorf("unsupported syntax %q (want proto2 or proto3)", s)
	}
}

// DefaultIndentSize is the number of spaces per nesting level.
const DefaultIndentSize = 2

// SchemaWriter accumulates IDL text. It only appends: blocks are opened,
// lines written at the current depth, and blocks closed.
type SchemaWriter struct {
	buf        bytes.Buffer
	indent     int
	indentSize int
	syntax     Syntax
}

// WriterOption configures a SchemaWriter.
type WriterOption func(*SchemaWriter)

// WithIndentSize sets the number of spaces per nesting level.
func WithIndentSize(n int) WriterOption {
	return func(w *SchemaWriter) {
		if n > 0 {
			w.indentSize = n
		}
	}
}

// WithSyntax sets the syntax that field emission follows.
func WithSyntax(s Syntax) WriterOption {
	return func(w *SchemaWriter) {
		w.syntax = s
	}
}

// NewSchemaWriter creates an empty writer
func NewSchemaWriter(opts ...WriterOption) *SchemaWriter {
	w := &SchemaWriter{
		indentSize: DefaultIndentSize,
		syntax:     SyntaxProto2,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Syntax returns the syntax the writer was configured with.
func (w *SchemaWriter) Syntax() Syntax {
	return w.syntax
}

// Depth returns the number of open blocks.
func (w *SchemaWriter) Depth() int {
	return w.indent
}

// Line writes text at the current indentation, followed by a newline.
func (w *SchemaWriter) Line(text string) {
	w.writeIndent()
	w.buf.WriteString(text)
	w.buf.WriteByte('\n')
}

// Linef formats and writes a line.
func (w *SchemaWriter) Linef(format string, args ...any) {
	w.Line(fmt.Sprintf(format, args...))
}

// Blank writes an empty line.
func (w *SchemaWriter) Blank() {
	w.buf.WriteByte('\n')
}

// Comment writes text as // comment lines, one per input line.
func (w *SchemaWriter) Comment(text string) {
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			w.Line("//")
			continue
		}
		w.Line("// " + line)
	}
}

// OpenBlock writes "header {" and increases the indentation.
func (w *SchemaWriter) OpenBlock(header string) {
	w.Line(header + " {")
	w.indent++
}

// CloseBlock decreases the indentation and writes "}".
// Closing more blocks than were opened is a programming error and panics.
func (w *SchemaWriter) CloseBlock() {
	if w.indent == 0 {
		panic("schema: CloseBlock without matching OpenBlock")
	}
	w.indent--
	w.Line("}")
}

// String returns the text written so far.
func (w *SchemaWriter) String() string {
	return w.buf.String()
}

// Bytes returns the text written so far.
func (w *SchemaWriter) Bytes() []byte {
	return w.buf.Bytes()
}

// WriteTo writes the accumulated text to out.
func (w *SchemaWriter) WriteTo(out io.Writer) (int64, error) {
	n, err := out.Write(w.buf.Bytes())
	return int64(n), err
}

func (w *SchemaWriter) writeIndent() {
	if w.indent > 0 {
		w.buf.WriteString(strings.Repeat(" ", w.indent*w.indentSize))
	}
}
