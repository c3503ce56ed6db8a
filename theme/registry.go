package theme

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/structura/horosafe"
)

// Rendered is a theme's stylesheet with its entity tag.
type Rendered struct {
	CSS  string
	ETag string
}

// Registry holds the builtin themes plus any loaded from disk, and caches
// their rendered stylesheets. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	order    []string
	themes   map[string]Theme
	builtin  map[string]bool
	rendered map[string]Rendered
	version  map[string]uint64

	// afterRender runs between rendering and caching a stylesheet (tests).
	afterRender func(id string)
}

// NewRegistry returns a registry seeded with Builtin.
func NewRegistry() *Registry {
	r := &Registry{
		themes:   make(map[string]Theme),
		builtin:  make(map[string]bool),
		rendered: make(map[string]Rendered),
		version:  make(map[string]uint64),
	}
	for _, t := range Builtin() {
		r.order = append(r.order, t.ID)
		r.themes[t.ID] = t
		r.builtin[t.ID] = true
	}
	return r
}

// Add registers a custom theme, replacing an earlier custom theme with the
// same id. Builtin themes cannot be replaced.
func (r *Registry) Add(t Theme) error {
	if err := horosafe.ValidateIdentifier(t.ID); err != nil {
		return fmt.Errorf("theme %q: %w", t.ID, err)
	}
	if err := ValidateTokens(t.Tokens); err != nil {
		return fmt.Errorf("theme %q: %w", t.ID, err)
	}
	if t.Name == "" {
		t.Name = t.ID
	}
	t.Tokens = t.Tokens.Clone()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.builtin[t.ID] {
		return fmt.Errorf("theme %q: builtin themes cannot be replaced", t.ID)
	}
	if _, ok := r.themes[t.ID]; !ok {
		r.order = append(r.order, t.ID)
	}
	r.themes[t.ID] = t
	r.version[t.ID]++
	delete(r.rendered, t.ID)
	return nil
}

// Get returns the theme registered under id.
func (r *Registry) Get(id string) (Theme, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.themes[id]
	if !ok {
		return Theme{}, fmt.Errorf("%w: %q", ErrUnknownTheme, id)
	}
	t.Tokens = t.Tokens.Clone()
	return t, nil
}

// List returns all themes, builtins first, then custom themes in the order
// they were added.
func (r *Registry) List() []Theme {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Theme, 0, len(r.order))
	for _, id := range r.order {
		t := r.themes[id]
		t.Tokens = t.Tokens.Clone()
		out = append(out, t)
	}
	return out
}

// Stylesheet renders the theme's CSS, memoised per id. A render that raced
// with Add for the same id is returned but not cached.
func (r *Registry) Stylesheet(id string) (Rendered, error) {
	r.mu.RLock()
	out, ok := r.rendered[id]
	t, known := r.themes[id]
	version := r.version[id]
	r.mu.RUnlock()
	if ok {
		return out, nil
	}
	if !known {
		return Rendered{}, fmt.Errorf("%w: %q", ErrUnknownTheme, id)
	}

	sheet, err := t.Sheet()
	if err != nil {
		return Rendered{}, err
	}
	css := sheet.CSS()
	sum := sha256.Sum256([]byte(css))
	out = Rendered{CSS: css, ETag: `"` + hex.EncodeToString(sum[:8]) + `"`}

	if r.afterRender != nil {
		r.afterRender(id)
	}

	r.mu.Lock()
	if r.version[id] == version {
		r.rendered[id] = out
	}
	r.mu.Unlock()
	return out, nil
}

// LoadDir adds every *.yaml and *.yml theme file in dir, in name order.
// A missing directory is not an error.
func (r *Registry) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var names []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !e.IsDir() && (ext == ".yaml" || ext == ".yml") {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	for i, name := range names {
		t, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			return i, err
		}
		if err := r.Add(t); err != nil {
			return i, fmt.Errorf("%s: %w", name, err)
		}
	}
	return len(names), nil
}

type themeFile struct {
	ID     string            `yaml:"id"`
	Name   string            `yaml:"name"`
	Tokens map[string]string `yaml:"tokens"`
}

// LoadFile reads one theme from YAML. Token keys may be written as
// "main-bg", "main_bg" or "--main-bg". The id defaults to the file name.
func LoadFile(path string) (Theme, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Theme{}, fmt.Errorf("read theme: %w", err)
	}
	var f themeFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Theme{}, fmt.Errorf("parse theme %s: %w", path, err)
	}
	if f.ID == "" {
		f.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	t := Theme{ID: f.ID, Name: f.Name, Tokens: make(TokenSet, len(f.Tokens))}
	for k, v := range f.Tokens {
		n, ok := ParseTokenName(k)
		if !ok {
			return Theme{}, fmt.Errorf("%w: %s: unknown token %q", ErrInvalidToken, path, k)
		}
		t.Tokens[n] = v
	}
	return t, nil
}
