package dsl

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var (
	dslLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Whitespace", Pattern: `[ \t\r]+`},
		{Name: "Newline", Pattern: `\n+`},
		{Name: "BlockComment", Pattern: `/\*[^*]*\*+(?:[^/*][^*]*\*+)*/`},
		{Name: "LineComment", Pattern: `//[^\n]*`},
		{Name: "HashComment", Pattern: `#[^\n]*`},
		{Name: "Number", Pattern: `(?:\d+\.\d+|\d+)(?:px)?`},
		{Name: "String", Pattern: `"(?:\\.|[^"])*"`},
		{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_-]*`},
		{Name: "Symbol", Pattern: `[][,;:]`},
		{Name: "LBrace", Pattern: `{`},
		{Name: "RBrace", Pattern: `}`},
	})

	jobParser = participle.MustBuild[Document](
		participle.Lexer(dslLexer),
		participle.Elide("Whitespace", "LineComment", "BlockComment", "HashComment"),
	)
)

// Document is the root AST node of a `.sheet` job file:
//
//	sheet Report {
//	  root: "test_dir"
//	  images: ["test.bmp", "red.bmp"]
//	  cell-width: 88px
//	}
type Document struct {
	Pos     lexer.Position `parser:"" json:"-"`
	Name    string         `parser:"Newline* 'sheet' @Ident"`
	Entries []*Entry       `parser:"'{' Newline* ( @@ ( ';' | Newline )* )* '}' Newline*"`
}

// Entry is a single `key: value` assignment.
type Entry struct {
	Pos   lexer.Position `parser:"" json:"-"`
	Key   string         `parser:"@Ident ':'"`
	Value *Value         `parser:"@@"`
}

// Value represents an entry value.
type Value struct {
	String *StringLiteral `parser:"  @String"`
	Number *string        `parser:"| @Number"`
	Ident  *string        `parser:"| @Ident"`
	List   *ListValue     `parser:"| @@"`
}

// ListValue captures `[ ... ]` expressions.
type ListValue struct {
	Values []*Value `parser:"'[' Newline* ( @@ ( (',' | Newline+) Newline* @@ )* )? Newline* ']'"`
}

// StringLiteral unquotes Go-style strings on capture.
type StringLiteral string

// Capture implements participle.Capture.
func (s *StringLiteral) Capture(values []string) error {
	if len(values) == 0 {
		return fmt.Errorf("string literal capture requires value")
	}
	val, err := strconv.Unquote(values[0])
	if err != nil {
		return err
	}
	*s = StringLiteral(val)
	return nil
}

// Parse parses a job file from an io.Reader.
func Parse(r io.Reader) (*Document, error) {
	return jobParser.Parse("", r)
}

// ParseString parses a job file from a string.
func ParseString(input string) (*Document, error) {
	return jobParser.ParseString("", input)
}

// Lookup returns the last entry with the given key, or nil.
func (d *Document) Lookup(key string) *Entry {
	var found *Entry
	for _, e := range d.Entries {
		if e.Key == key {
			found = e
		}
	}
	return found
}

// Kind returns a short description of the value's type.
func (v *Value) Kind() string {
	switch {
	case v == nil:
		return "empty"
	case v.String != nil:
		return "string"
	case v.Number != nil:
		return "number"
	case v.Ident != nil:
		return "ident"
	case v.List != nil:
		return "list"
	default:
		return "empty"
	}
}

// Text returns the value as a string. Strings, identifiers and numbers are
// accepted; lists are not.
func (v *Value) Text() (string, error) {
	switch {
	case v == nil:
		return "", fmt.Errorf("missing value")
	case v.String != nil:
		return string(*v.String), nil
	case v.Ident != nil:
		return *v.Ident, nil
	case v.Number != nil:
		return *v.Number, nil
	default:
		return "", fmt.Errorf("expected string, got %s", v.Kind())
	}
}

// Int returns the value as an integer. A trailing "px" unit is accepted and
// fractional values are truncated.
func (v *Value) Int() (int, error) {
	if v == nil || v.Number == nil {
		return 0, fmt.Errorf("expected number, got %s", v.Kind())
	}
	raw := strings.TrimSuffix(*v.Number, "px")
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

// Strings returns the value as a list of strings. A single scalar is treated
// as a one-element list.
func (v *Value) Strings() ([]string, error) {
	if v != nil && v.List != nil {
		out := make([]string, 0, len(v.List.Values))
		for _, item := range v.List.Values {
			s, err := item.Text()
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
		return out, nil
	}
	s, err := v.Text()
	if err != nil {
		return nil, err
	}
	return []string{s}, nil
}
