package server

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/saiakki/jiradash/internal/logger"
)

// Watcher reloads the in-memory cache when the snapshot files change on
// disk, so a one-shot `jiradash fetch` run next to a serving instance shows
// up without waiting for the next refresh tick. The digest check in
// LoadFromStore makes the server's own writes a no-op here.
type Watcher struct {
	fw  *fsnotify.Watcher
	srv *Server

	stopCh chan struct{}
	done   chan struct{}
}

// NewWatcher watches the data directory for snapshot file changes.
func NewWatcher(dataDir string, srv *Server) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dataDir); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{
		fw:     fw,
		srv:    srv,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go w.loop()

	logger.Info("Watching data directory", logger.F("dir", dataDir))
	return w, nil
}

func (w *Watcher) loop() {
	defer close(w.done)

	for {
		select {
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			name := filepath.Base(event.Name)
			if name != issuesFileBase && name != projectFileBase {
				continue
			}
			if changed, err := w.srv.LoadFromStore(); err != nil {
				logger.Warn("Failed to reload data after file change",
					logger.F("file", name), logger.F("error", err))
			} else if changed {
				logger.Info("Reloaded data after external change", logger.F("file", name))
			}
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			logger.Warn("File watcher error", logger.F("error", err))
		case <-w.stopCh:
			return
		}
	}
}

const (
	issuesFileBase  = "issues.json"
	projectFileBase = "project.json"
)

// Stop closes the watcher and waits for the loop to exit.
func (w *Watcher) Stop() {
	close(w.stopCh)
	w.fw.Close()
	<-w.done
}
