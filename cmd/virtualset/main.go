package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/ayusman/virtualset/internal/background"
	"github.com/ayusman/virtualset/internal/capture"
	"github.com/ayusman/virtualset/internal/catalog"
	"github.com/ayusman/virtualset/internal/engine"
	"github.com/ayusman/virtualset/internal/server"
	"github.com/ayusman/virtualset/internal/store"
	"github.com/ayusman/virtualset/internal/tray"
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	cameraID := flag.Int("camera", 0, "camera device ID")
	dataDir := flag.String("data", "", "data directory (default ~/.virtualset)")
	backgroundsDir := flag.String("backgrounds", "", "backgrounds directory to watch (default <data>/backgrounds)")
	fps := flag.Int("fps", 30, "compositing frame rate")
	flag.Parse()

	fmt.Println("Virtual Set - Real-Time Chroma-Key Compositor")

	// Resolve the data directory
	dir := *dataDir
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			log.Fatalf("Failed to get home directory: %v", err)
		}
		dir = filepath.Join(homeDir, ".virtualset")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	st, err := store.New(filepath.Join(dir, "virtualset.db"))
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	// Assemble the compositing pipeline
	eng := engine.New(engine.NewRefreshScheduler(*fps), background.NewLoader())
	sink := server.NewFrameSink()

	camera := capture.NewCamera(*cameraID)
	if err := camera.Open(); err != nil {
		log.Fatalf("Failed to open camera %d: %v", *cameraID, err)
	}
	defer camera.Close()
	camera.SetFPS(*fps)

	if err := eng.Initialize(camera, sink); err != nil {
		log.Fatalf("Failed to initialize engine: %v", err)
	}

	// Restore the previously active scene, if any
	if id, err := st.Settings().Get(store.KeyActiveScene); err == nil {
		if scene, err := st.Scenes().GetByID(id); err == nil {
			if settings, err := scene.Settings(); err == nil {
				eng.SetSettings(settings)
				eng.SetBackground(scene.BackgroundRef)
				log.Printf("restored active scene %q", scene.Name)
			}
		}
	}

	if err := eng.Start(); err != nil {
		log.Fatalf("Failed to start engine: %v", err)
	}
	defer eng.Stop()

	// Watch the backgrounds directory
	bgDir := *backgroundsDir
	if bgDir == "" {
		bgDir = filepath.Join(dir, "backgrounds")
	}
	if err := os.MkdirAll(bgDir, 0755); err != nil {
		log.Fatalf("Failed to create backgrounds directory: %v", err)
	}
	watcher, err := catalog.NewWatcher(bgDir, st)
	if err != nil {
		log.Fatalf("Failed to create catalog watcher: %v", err)
	}
	if err := watcher.Start(); err != nil {
		log.Fatalf("Failed to start catalog watcher: %v", err)
	}
	defer watcher.Stop()

	// Find web directory
	webDir := findWebDir()
	if webDir != "" {
		fmt.Printf("Serving static files from: %s\n", webDir)
	}

	srv := server.New(server.Config{
		StaticDir: webDir,
		Store:     st,
		Engine:    eng,
		Sink:      sink,
	})
	defer srv.Close()

	go func() {
		fmt.Printf("Starting server on %s\n", *addr)
		if err := srv.ListenAndServe(*addr); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// The tray owns the main goroutine; Run blocks until Quit.
	t := tray.New()
	t.OnToggle(func(enabled bool) {
		if enabled {
			if err := eng.Start(); err != nil {
				log.Printf("failed to resume compositing: %v", err)
			}
		} else {
			eng.Stop()
		}
	})
	t.OnQuit(func() {
		eng.Stop()
	})
	t.Run()
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.virtualset/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	// Check relative paths from current working directory
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	// Check home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	homeWebDir := filepath.Join(homeDir, ".virtualset", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}
