package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alfredjeanlab/plantlog/internal/model"
)

const seedYAML = `
event_types:
  - name: watered
    kind: date_time
  - name: light
    kind: custom_enum
    options: [shade, partial, sun]
    unique: true
  - name: display-name
    kind: string
    unique: true
    deletable: false
`

func writeSeed(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "seed.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSeedLoader_Parse(t *testing.T) {
	l, err := NewSeedLoader(writeSeed(t, t.TempDir(), seedYAML), nil)
	if err != nil {
		t.Fatalf("NewSeedLoader: %v", err)
	}
	types := l.Seed().NewEventTypes()
	if len(types) != 3 {
		t.Fatalf("got %d seed types, want 3", len(types))
	}
	light := types[1]
	if light.Kind.Type != model.KindCustomEnum || len(light.Kind.Options) != 3 || !light.IsUnique {
		t.Errorf("light = %+v", light)
	}
	if !types[0].Deletable || !types[0].Modifiable {
		t.Errorf("watered should default to deletable and modifiable: %+v", types[0])
	}
	if types[2].Deletable {
		t.Errorf("display-name deletable = true, want explicit false")
	}
}

func TestSeedLoader_Errors(t *testing.T) {
	if _, err := NewSeedLoader(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := NewSeedLoader(writeSeed(t, t.TempDir(), "event_types: [unterminated"), nil); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestSeedLoader_WatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := writeSeed(t, dir, "event_types:\n  - name: watered\n    kind: date_time\n")
	l, err := NewSeedLoader(path, nil)
	if err != nil {
		t.Fatal(err)
	}

	changed := make(chan *SeedFile, 4)
	l.OnChange(func(f *SeedFile) { changed <- f })
	stop, err := l.Watch()
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer stop()

	if err := os.WriteFile(path, []byte(seedYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case f := <-changed:
			if len(f.EventTypes) == 3 {
				if got := len(l.Seed().EventTypes); got != 3 {
					t.Errorf("Seed() has %d types after reload", got)
				}
				return
			}
		case <-deadline:
			t.Fatal("seed change not observed")
		}
	}
}

func TestSeedLoader_ReloadKeepsPreviousOnError(t *testing.T) {
	dir := t.TempDir()
	path := writeSeed(t, dir, seedYAML)
	l, err := NewSeedLoader(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	writeSeed(t, dir, "event_types: [")
	if _, err := l.Reload(); err == nil {
		t.Fatal("expected reload error")
	}
	if got := len(l.Seed().EventTypes); got != 3 {
		t.Errorf("Seed() has %d types, want previous 3", got)
	}
}
