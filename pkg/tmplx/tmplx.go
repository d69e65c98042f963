package tmplx

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"math"
	"strconv"
	"unicode/utf8"

	"github.com/spf13/cast"
)

var (
	ErrRenderTemplate = errors.New("tmplx: render error")
	ErrParseTemplate  = errors.New("tmplx: parse error")
	ErrCheckTemplate  = errors.New("tmplx: check failed")
)

// Set is a group of named HTML templates sharing one function map. Output
// is escaped by html/template.
type Set struct {
	root *template.Template
}

type CheckFunc func(*bytes.Buffer) error

type check struct {
	name string
	data any
	fn   CheckFunc
}

type options struct {
	funcs  template.FuncMap
	checks []check
}

type Option func(*options)

func funcs() template.FuncMap {
	return template.FuncMap{
		"price":      price,
		"discounted": discounted,
		"truncate":   truncate,
		"default":    defaultValue,
	}
}

// WithFunc adds or overrides a template function.
func WithFunc(name string, fn any) Option {
	return func(o *options) {
		o.funcs[name] = fn
	}
}

// WithCheck renders name with data once at parse time and hands the output
// to fn. Parsing fails if rendering or fn fails.
func WithCheck(name string, data any, fn CheckFunc) Option {
	return func(o *options) {
		o.checks = append(o.checks, check{name: name, data: data, fn: fn})
	}
}

// Parse builds a Set from inline text. The text itself is named "".
func Parse(text string, opts ...Option) (*Set, error) {
	o := buildOptions(opts)
	root, err := template.New("").Option("missingkey=zero").Funcs(o.funcs).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParseTemplate, err)
	}
	return newSet(root, o)
}

func MustParse(text string, opts ...Option) *Set {
	s, err := Parse(text, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// ParseFS parses every file matching patterns. Templates declared with
// {{define}} are addressed by their defined name.
func ParseFS(fsys fs.FS, patterns []string, opts ...Option) (*Set, error) {
	o := buildOptions(opts)
	root, err := template.New("").Option("missingkey=zero").Funcs(o.funcs).ParseFS(fsys, patterns...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParseTemplate, err)
	}
	return newSet(root, o)
}

func buildOptions(opts []Option) *options {
	o := &options{funcs: funcs()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func newSet(root *template.Template, o *options) (*Set, error) {
	s := &Set{root: root}
	for _, c := range o.checks {
		buf, err := s.Render(c.name, c.data)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrCheckTemplate, c.name, err)
		}
		if err := c.fn(buf); err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrCheckTemplate, c.name, err)
		}
	}
	return s, nil
}

func (s *Set) Has(name string) bool {
	return s.root.Lookup(name) != nil
}

func (s *Set) Render(name string, data any) (*bytes.Buffer, error) {
	buf := new(bytes.Buffer)
	if err := s.root.ExecuteTemplate(buf, name, data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRenderTemplate, err)
	}
	return buf, nil
}

// price drops the fraction for whole amounts: 549 -> "549", 12.5 -> "12.50".
func price(v any) string {
	f := cast.ToFloat64(v)
	if f == math.Trunc(f) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', 2, 64)
}

// discounted applies a percentage discount, rounded to cents.
func discounted(amount, percent any) float64 {
	f := cast.ToFloat64(amount) * (1 - cast.ToFloat64(percent)/100)
	return math.Round(f*100) / 100
}

// truncate shortens s to n runes, marking the cut with an ellipsis.
func truncate(n int, s string) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "…"
}

func defaultValue(def, value any) any {
	if value == nil || cast.ToString(value) == "" {
		return def
	}
	return value
}
