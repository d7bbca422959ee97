package ai

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"

	"github.com/qri-io/jsonschema"
)

//go:embed schemas/*.json
var schemaFS embed.FS

//go:embed prompts/*.tmpl
var promptFS embed.FS

// Loader loads and caches compiled JSON schemas keyed by version. A file named
// summary_v1.json is cached as "v1".
type Loader struct {
	fsys  fs.FS
	mu    sync.RWMutex
	cache map[string]*jsonschema.Schema
}

// NewLoader reads schemas from fsys. A nil fsys uses the embedded schemas.
func NewLoader(ctx context.Context, fsys fs.FS) (*Loader, error) {
	if fsys == nil {
		fsys = schemaFS
	}
	l := &Loader{
		fsys:  fsys,
		cache: make(map[string]*jsonschema.Schema),
	}
	if err := l.Reload(ctx); err != nil {
		return nil, err
	}

	return l, nil
}

// GetSchema returns a compiled schema for a version.
func (l *Loader) GetSchema(version string) (*jsonschema.Schema, bool) {
	l.mu.RLock()
	s, ok := l.cache[version]
	l.mu.RUnlock()

	return s, ok
}

// Reload re-reads and compiles every schema file.
func (l *Loader) Reload(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	files, err := fs.Glob(l.fsys, "schemas/*.json")
	if err != nil {
		return fmt.Errorf("list schemas: %w", err)
	}

	newCache := make(map[string]*jsonschema.Schema)
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		b, err := fs.ReadFile(l.fsys, f)
		if err != nil {
			return fmt.Errorf("read schema %s: %w", f, err)
		}

		name := strings.TrimSuffix(path.Base(f), ".json")
		version := name
		if i := strings.LastIndex(name, "_"); i >= 0 {
			version = name[i+1:]
		}

		rs := &jsonschema.Schema{}
		if err := json.Unmarshal(b, rs); err != nil {
			return fmt.Errorf("compile schema %s: %w", version, err)
		}
		newCache[version] = rs
	}

	l.cache = newCache
	return nil
}

func defaultPrompt(version string) (string, error) {
	b, err := promptFS.ReadFile("prompts/summary_" + version + ".tmpl")
	if err != nil {
		return "", fmt.Errorf("prompt %s: %w", version, err)
	}
	return string(b), nil
}
