package layout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/schollz/closestmatch"
	"github.com/spf13/viper"

	"github.com/dvloznov/statement-reconciler/internal/domain"
	"github.com/dvloznov/statement-reconciler/internal/logger"
)

var descriptorExts = map[string]bool{".json": true, ".yaml": true, ".yml": true}

// Registry is the set of known layouts. It is read-mostly; Save is the only
// writer and is serialised by the lock.
type Registry struct {
	mu       sync.RWMutex
	dir      string
	layouts  []*BankLayout
	builtins []*BankLayout
}

// NewRegistry returns a registry over dir without loading it.
func NewRegistry(dir string) *Registry {
	return &Registry{dir: dir}
}

// NewRegistryWith returns an in-memory registry holding the given layouts.
func NewRegistryWith(layouts ...*BankLayout) (*Registry, error) {
	r := &Registry{}
	for _, l := range layouts {
		if err := l.Validate(); err != nil {
			return nil, fmt.Errorf("NewRegistryWith: %w", err)
		}
		r.layouts = append(r.layouts, l)
	}
	return r, nil
}

// Dir returns the descriptor directory.
func (r *Registry) Dir() string { return r.dir }

// Load reads every descriptor in the registry directory in file name order.
// Any invalid descriptor fails the whole load. When the directory is missing
// or empty the built-in descriptors are used.
func (r *Registry) Load(ctx context.Context) error {
	log := logger.FromContext(ctx)

	layouts, err := readDir(r.dir)
	if err != nil {
		return fmt.Errorf("Load: %w", err)
	}
	var builtins []*BankLayout
	if len(layouts) == 0 {
		log.Warn().Str("dir", r.dir).Msg("No layout descriptors found, using built-in layouts")
		builtins = Defaults()
		for _, l := range builtins {
			if err := l.Validate(); err != nil {
				return fmt.Errorf("Load: built-in layout: %w", err)
			}
		}
		layouts = builtins
	}

	r.mu.Lock()
	r.layouts = layouts
	r.builtins = builtins
	r.mu.Unlock()

	log.Info().Int("count", len(layouts)).Str("dir", r.dir).Msg("Loaded bank layouts")
	return nil
}

func readDir(dir string) ([]*BankLayout, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("readDir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && descriptorExts[strings.ToLower(filepath.Ext(e.Name()))] {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var out []*BankLayout
	for _, name := range names {
		l, err := ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

// ReadFile decodes and validates one descriptor file.
func ReadFile(path string) (*BankLayout, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, &domain.ConfigError{Path: path, Reason: err.Error()}
	}
	l := &BankLayout{HasBalanceCleanup: true}
	if err := v.Unmarshal(l); err != nil {
		return nil, &domain.ConfigError{Path: path, Reason: err.Error()}
	}
	if err := l.Validate(); err != nil {
		var cfgErr *domain.ConfigError
		if errors.As(err, &cfgErr) {
			cfgErr.Path = path
		}
		return nil, err
	}
	return l, nil
}

// Detect returns the first layout whose keywords all occur in text, or nil.
// Overlapping descriptors are logged so their authors can disambiguate them.
func (r *Registry) Detect(ctx context.Context, text string) *BankLayout {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found *BankLayout
	var names []string
	for _, l := range r.layouts {
		if l.Matches(text) {
			if found == nil {
				found = l
			}
			names = append(names, l.Name)
		}
	}
	if len(names) > 1 {
		log := logger.FromContext(ctx)
		log.Warn().Strs("layouts", names).Str("chosen", found.Name).Msg("Multiple layouts match statement")
	}
	return found
}

// Save validates the layout, writes it to the registry directory and
// refreshes the in-memory set.
func (r *Registry) Save(ctx context.Context, l *BankLayout) (string, error) {
	if err := l.Validate(); err != nil {
		return "", fmt.Errorf("Save: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.dir == "" {
		r.layouts = append(r.layouts, l)
		return "", nil
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("Save: creating %s: %w", r.dir, err)
	}
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return "", fmt.Errorf("Save: encoding layout: %w", err)
	}
	path := filepath.Join(r.dir, l.Slug()+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("Save: writing %s: %w", path, err)
	}

	layouts, err := readDir(r.dir)
	if err != nil {
		return "", fmt.Errorf("Save: reloading: %w", err)
	}
	r.layouts = append(layouts, r.builtins...)

	log := logger.FromContext(ctx)
	log.Info().Str("layout", l.Name).Str("path", path).Msg("Saved layout descriptor")
	return path, nil
}

// List returns the loaded layouts in detection order.
func (r *Registry) List() []*BankLayout {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*BankLayout, len(r.layouts))
	copy(out, r.layouts)
	return out
}

// Find looks a layout up by name, falling back to the closest name.
func (r *Registry) Find(name string) *BankLayout {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.layouts))
	for _, l := range r.layouts {
		if strings.EqualFold(l.Name, name) {
			return l
		}
		names = append(names, l.Name)
	}
	if len(names) == 0 || strings.TrimSpace(name) == "" {
		return nil
	}
	closest := closestmatch.New(names, []int{2, 3}).Closest(name)
	for _, l := range r.layouts {
		if l.Name == closest {
			return l
		}
	}
	return nil
}
