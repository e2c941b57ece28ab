package render

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/cbroglie/mustache"
)

var (
	ErrTemplateNotFound = errors.New("template not found")
	ErrTemplateRead     = errors.New("template unreadable")
	ErrTemplateParse    = errors.New("template parse failed")
	ErrTemplateRender   = errors.New("template render failed")
)

// TemplateError names the template a failure belongs to.
type TemplateError struct {
	Name string
	Err  error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template %q: %v", e.Name, e.Err)
}

func (e *TemplateError) Unwrap() error { return e.Err }

// TemplateStore loads Mustache templates from a directory. Templates are read
// on every Load so edits take effect without a restart.
type TemplateStore struct {
	dir string
}

func NewTemplateStore(dir string) *TemplateStore {
	return &TemplateStore{dir: dir}
}

func (s *TemplateStore) Dir() string {
	return s.dir
}

type Template struct {
	name string
	tmpl *mustache.Template
}

func (t *Template) Name() string {
	return t.name
}

// Load reads and parses the named template. Partials are resolved from the
// same directory.
func (s *TemplateStore) Load(name string) (*Template, error) {
	if name == "" || !filepath.IsLocal(name) {
		return nil, &TemplateError{Name: name, Err: fmt.Errorf("%w: invalid name", ErrTemplateNotFound)}
	}

	path := filepath.Join(s.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &TemplateError{Name: name, Err: fmt.Errorf("%w: %s", ErrTemplateNotFound, path)}
		}
		return nil, &TemplateError{Name: name, Err: fmt.Errorf("%w: %v", ErrTemplateRead, err)}
	}
	if !utf8.Valid(data) {
		return nil, &TemplateError{Name: name, Err: fmt.Errorf("%w: not UTF-8 encoded", ErrTemplateRead)}
	}

	partials := &mustache.FileProvider{
		Paths:      []string{s.dir},
		Extensions: []string{"", ".mustache", ".xml"},
	}
	tmpl, err := mustache.ParseStringPartials(string(data), partials)
	if err != nil {
		return nil, &TemplateError{Name: name, Err: fmt.Errorf("%w: %v", ErrTemplateParse, err)}
	}

	return &Template{name: name, tmpl: tmpl}, nil
}

// Render executes the template against ctx.
func (t *Template) Render(ctx Context) ([]byte, error) {
	out, err := t.tmpl.Render(ctx)
	if err != nil {
		return nil, &TemplateError{Name: t.name, Err: fmt.Errorf("%w: %v", ErrTemplateRender, err)}
	}
	return []byte(out), nil
}
