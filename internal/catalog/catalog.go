// Package catalog keeps the scene store in sync with a directory of
// background images. Every image dropped into the directory becomes a scene
// with default keying settings, named after the file.
package catalog

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/ayusman/virtualset/internal/chroma"
	"github.com/ayusman/virtualset/internal/store"
)

// Watcher monitors a backgrounds directory and registers scenes for the
// images it finds.
type Watcher struct {
	dir     string
	store   *store.Store
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher creates a watcher for the given backgrounds directory.
func NewWatcher(dir string, s *store.Store) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating filesystem watcher: %w", err)
	}

	return &Watcher{
		dir:     dir,
		store:   s,
		watcher: fw,
		done:    make(chan struct{}),
	}, nil
}

// Start scans the directory once, then begins watching it for new images.
func (w *Watcher) Start() error {
	if err := w.scan(); err != nil {
		return err
	}

	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	log.Printf("watching backgrounds directory: %s", w.dir)

	go w.processEvents()
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	close(w.done)
	return w.watcher.Close()
}

// scan registers every image already present in the directory.
func (w *Watcher) scan() error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("reading backgrounds directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(w.dir, entry.Name())
		if !isBackgroundImage(path) {
			continue
		}
		if err := w.register(path); err != nil {
			log.Printf("catalog: failed to register %s: %v", path, err)
		}
	}
	return nil
}

// processEvents handles filesystem events for the backgrounds directory.
func (w *Watcher) processEvents() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if !isBackgroundImage(event.Name) {
				continue
			}

			switch {
			case event.Op&fsnotify.Create == fsnotify.Create:
				if err := w.register(event.Name); err != nil {
					log.Printf("catalog: failed to register %s: %v", event.Name, err)
				}
			case event.Op&fsnotify.Remove == fsnotify.Remove,
				event.Op&fsnotify.Rename == fsnotify.Rename:
				if err := w.unregister(event.Name); err != nil {
					log.Printf("catalog: failed to unregister %s: %v", event.Name, err)
				}
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("catalog: watcher error: %v", err)

		case <-w.done:
			return
		}
	}
}

// register creates a scene for the image unless one with the same name
// already exists.
func (w *Watcher) register(path string) error {
	name := sceneName(path)

	if _, err := w.store.Scenes().GetByName(name); err == nil {
		return nil // already registered
	}

	defaults := chroma.DefaultSettings()
	scene := &store.Scene{
		ID:            uuid.New().String(),
		Name:          name,
		BackgroundRef: path,
		KeyColor:      store.FormatKeyColor(defaults.KeyColor),
		Threshold:     defaults.Threshold,
		Smoothing:     defaults.Smoothing,
		Feathering:    defaults.Feathering,
		AntiAlias:     defaults.AntiAlias,
	}
	if err := w.store.Scenes().Create(scene); err != nil {
		return err
	}

	log.Printf("catalog: registered scene %q for %s", name, path)
	return nil
}

// unregister deletes the scene registered for a removed image.
func (w *Watcher) unregister(path string) error {
	scene, err := w.store.Scenes().GetByName(sceneName(path))
	if err != nil {
		return nil // nothing to remove
	}
	// Leave scenes alone that were re-pointed at other backgrounds.
	if scene.BackgroundRef != path {
		return nil
	}

	if err := w.store.Scenes().Delete(scene.ID); err != nil {
		return err
	}
	log.Printf("catalog: removed scene %q", scene.Name)
	return nil
}

// sceneName derives a scene name from the image filename.
func sceneName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// isBackgroundImage reports whether the file is an image the background
// loader can decode.
func isBackgroundImage(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png":
		return true
	default:
		return false
	}
}
