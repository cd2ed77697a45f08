package config

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/alfredjeanlab/plantlog/internal/model"
)

// SeedFile is the YAML document listing event types to create at start.
//
//	event_types:
//	  - name: watered
//	    kind: date_time
//	  - name: light
//	    kind: custom_enum
//	    options: [shade, partial, sun]
//	    unique: true
type SeedFile struct {
	EventTypes []SeedEventType `yaml:"event_types"`
}

// SeedEventType is one entry of a seed file.
type SeedEventType struct {
	Name       string   `yaml:"name"`
	Kind       string   `yaml:"kind"`
	Options    []string `yaml:"options"`
	Unique     bool     `yaml:"unique"`
	Deletable  *bool    `yaml:"deletable"`
	Modifiable *bool    `yaml:"modifiable"`
}

// NewEventTypes converts the seed entries. Deletable and modifiable default
// to true.
func (f *SeedFile) NewEventTypes() []model.NewEventType {
	out := make([]model.NewEventType, 0, len(f.EventTypes))
	for _, s := range f.EventTypes {
		out = append(out, model.NewEventType{
			Name:       s.Name,
			Kind:       model.EventDataKind{Type: model.KindTag(s.Kind), Options: s.Options},
			Deletable:  boolOr(s.Deletable, true),
			Modifiable: boolOr(s.Modifiable, true),
			IsUnique:   s.Unique,
		})
	}
	return out
}

func boolOr(b *bool, fallback bool) bool {
	if b == nil {
		return fallback
	}
	return *b
}

// SeedLoader reads a seed file and watches it for changes.
type SeedLoader struct {
	path     string
	logger   *slog.Logger
	mu       sync.RWMutex
	current  *SeedFile
	onChange []func(*SeedFile)
}

// NewSeedLoader creates a SeedLoader and performs the initial load.
func NewSeedLoader(path string, logger *slog.Logger) (*SeedLoader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	l := &SeedLoader{path: path, logger: logger}
	f, err := l.load()
	if err != nil {
		return nil, err
	}
	l.current = f
	return l, nil
}

// Seed returns the latest successfully parsed seed file.
func (l *SeedLoader) Seed() *SeedFile {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// OnChange registers a callback invoked whenever the file reloads.
func (l *SeedLoader) OnChange(fn func(*SeedFile)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

// Watch hot-reloads the seed file on writes until stop is called. A file
// that fails to parse is logged and the previous contents are kept.
func (l *SeedLoader) Watch() (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("seed watcher: %w", err)
	}
	if err := w.Add(l.path); err != nil {
		w.Close()
		return nil, fmt.Errorf("seed watcher add %s: %w", l.path, err)
	}

	done := make(chan struct{})
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					if _, err := l.Reload(); err != nil {
						l.logger.Warn("seed reload failed, keeping previous seed", "path", l.path, "error", err)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				l.logger.Warn("seed watcher error", "path", l.path, "error", err)
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }, nil
}

// Reload forces an immediate re-read of the seed file.
func (l *SeedLoader) Reload() (*SeedFile, error) {
	f, err := l.load()
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.current = f
	callbacks := make([]func(*SeedFile), len(l.onChange))
	copy(callbacks, l.onChange)
	l.mu.Unlock()
	for _, fn := range callbacks {
		fn(f)
	}
	return f, nil
}

func (l *SeedLoader) load() (*SeedFile, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read seed %s: %w", l.path, err)
	}
	var f SeedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed %s: %w", l.path, err)
	}
	return &f, nil
}
