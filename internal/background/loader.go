// Package background loads and tracks the scene background image used by
// the compositor engine.
package background

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"os"
	"strings"
	"time"
)

// Loader resolves background references into decoded images. A reference is
// either a filesystem path or an http(s) URL.
type Loader struct {
	client *http.Client
}

// NewLoader creates a Loader with a bounded HTTP timeout so a slow remote
// background can never wedge a load goroutine indefinitely.
func NewLoader() *Loader {
	return &Loader{
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// Load fetches and decodes the referenced image.
func (l *Loader) Load(ref string) (image.Image, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return l.loadURL(ref)
	}
	return l.loadFile(ref)
}

func (l *Loader) loadURL(url string) (image.Image, error) {
	resp, err := l.client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch background %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch background %s: status %d", url, resp.StatusCode)
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode background %s: %w", url, err)
	}
	return img, nil
}

func (l *Loader) loadFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open background %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode background %s: %w", path, err)
	}
	return img, nil
}
