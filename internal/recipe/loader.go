package recipe

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/clusterinfer/orchestrator/internal/apierr"
	"github.com/clusterinfer/orchestrator/internal/logging"
)

// Loader reads recipe files from a hierarchical catalog rooted at Root and
// caches parsed recipes. Read-mostly; protected by a read/write lock per
// spec §5.
type Loader struct {
	root string
	log  *logging.Logger

	mu    sync.RWMutex
	cache map[string]Recipe // id -> recipe

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
}

// NewLoader constructs a Loader rooted at root. If watch is true, the catalog
// directory is watched with fsnotify and changed files are re-parsed into
// the cache as they land; spec.md does not require this within a single run,
// so it stays opt-in.
func NewLoader(root string, watch bool) (*Loader, error) {
	l := &Loader{
		root:  root,
		log:   logging.With("recipe-loader"),
		cache: make(map[string]Recipe),
	}
	if err := l.loadAll(); err != nil {
		return nil, err
	}
	if watch {
		if err := l.startWatch(); err != nil {
			l.log.Warnf("recipe catalog watch disabled: %v", err)
		}
	}
	return l, nil
}

func (l *Loader) startWatch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create recipe watcher: %w", err)
	}
	if err := filepath.Walk(l.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return w.Add(path)
		}
		return nil
	}); err != nil {
		w.Close()
		return fmt.Errorf("watch recipe catalog: %w", err)
	}

	l.watcher = w
	l.stopCh = make(chan struct{})
	go l.watchLoop()
	return nil
}

func (l *Loader) watchLoop() {
	for {
		select {
		case <-l.stopCh:
			return
		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, ".yaml") && !strings.HasSuffix(event.Name, ".yml") {
				continue
			}
			if err := l.loadAll(); err != nil {
				l.log.Warnf("recipe catalog reload failed after change to %s: %v", event.Name, err)
			} else {
				l.log.Infof("recipe catalog reloaded after change to %s", event.Name)
			}
		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			l.log.Warnf("recipe watcher error: %v", err)
		}
	}
}

// Close stops the catalog watcher, if any.
func (l *Loader) Close() error {
	if l.watcher == nil {
		return nil
	}
	close(l.stopCh)
	return l.watcher.Close()
}

func (l *Loader) loadAll() error {
	found := make(map[string]Recipe)

	err := filepath.Walk(l.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if !strings.HasSuffix(path, ".yaml") && !strings.HasSuffix(path, ".yml") {
			return nil
		}

		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return readErr
		}

		var spec Spec
		if unmarshalErr := yaml.Unmarshal(data, &spec); unmarshalErr != nil {
			return fmt.Errorf("parse recipe %s: %w", path, unmarshalErr)
		}

		rel, relErr := filepath.Rel(l.root, path)
		if relErr != nil {
			rel = path
		}
		id := recipeIDFromPath(rel)
		if spec.Name == "" {
			spec.Name = id
		}

		found[id] = Recipe{ID: id, Spec: spec}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			l.mu.Lock()
			l.cache = found
			l.mu.Unlock()
			return nil
		}
		return fmt.Errorf("walk recipe catalog %s: %w", l.root, err)
	}

	l.mu.Lock()
	l.cache = found
	l.mu.Unlock()
	return nil
}

func recipeIDFromPath(rel string) string {
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	return filepath.ToSlash(rel)
}

// ListAll returns every recipe currently in the catalog.
func (l *Loader) ListAll() []Recipe {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Recipe, 0, len(l.cache))
	for _, r := range l.cache {
		out = append(out, r)
	}
	return out
}

// Load returns the recipe identified by "category/name", or RecipeNotFound.
func (l *Loader) Load(id string) (Recipe, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	r, ok := l.cache[id]
	if !ok {
		return Recipe{}, apierr.New(apierr.KindRecipeNotFound, fmt.Sprintf("recipe not found: %s", id))
	}
	return r, nil
}

// GetRecipePort returns the primary (first) port for a recipe, or an error
// if the recipe has no declared ports.
func (l *Loader) GetRecipePort(id string) (int, error) {
	r, err := l.Load(id)
	if err != nil {
		return 0, err
	}
	port, ok := r.Spec.PrimaryPort()
	if !ok {
		return 0, apierr.New(apierr.KindValidation, fmt.Sprintf("recipe %s declares no ports", id))
	}
	return port, nil
}

// Marshal serializes a recipe's Spec back to YAML, used by the
// load-then-serialize round-trip property (spec §8).
func Marshal(spec Spec) ([]byte, error) {
	return yaml.Marshal(spec)
}
