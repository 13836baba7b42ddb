package templates

import (
	"bytes"
	"embed"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"text/template"

	"finsight/pkg/errors"
)

//go:embed assets/*/*.tmpl
var assets embed.FS

const ext = ".tmpl"

// Registry holds report templates parsed once at load time, keyed by their
// slash path without extension ("reports/analysis"). It is read-only after
// construction and safe for concurrent use.
type Registry struct {
	byID map[string]*template.Template
}

// Load parses every *.tmpl file under fsys
func Load(fsys fs.FS) (*Registry, error) {
	r := &Registry{byID: make(map[string]*template.Template)}

	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || path.Ext(p) != ext {
			return err
		}
		raw, err := fs.ReadFile(fsys, p)
		if err != nil {
			return errors.Wrapf(err, "read template %s", p)
		}
		id := strings.TrimSuffix(p, ext)
		parsed, err := template.New(id).Funcs(FuncMap()).Option("missingkey=zero").Parse(string(raw))
		if err != nil {
			return errors.Wrapf(errors.ErrInvalidInput, "parse template %s: %v", id, err)
		}
		r.byID[id] = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// LoadDir parses templates from a directory on disk
func LoadDir(dir string) (*Registry, error) {
	return Load(os.DirFS(dir))
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the registry over the templates compiled into the binary.
// Embedded templates are part of the build, so a parse failure panics.
func Default() *Registry {
	defaultOnce.Do(func() {
		sub, err := fs.Sub(assets, "assets")
		if err == nil {
			defaultRegistry, err = Load(sub)
		}
		if err != nil {
			panic("embedded report templates: " + err.Error())
		}
	})
	return defaultRegistry
}

// Render executes the template id with data
func (r *Registry) Render(id string, data any) (string, error) {
	tmpl, ok := r.byID[id]
	if !ok {
		return "", errors.NotFound("template", id)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", errors.Wrapf(err, "render template %s", id)
	}
	return buf.String(), nil
}

// Has reports whether a template id is loaded
func (r *Registry) Has(id string) bool {
	_, ok := r.byID[id]
	return ok
}

// IDs lists the loaded template ids in sorted order
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
