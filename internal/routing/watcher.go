package routing

import (
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// Loader owns a Table plus the file paths it was built from, and can watch
// both for changes the same way internal/config.ConfigManager watches the
// main config file.
type Loader struct {
	RoutingPath  string
	BackendsPath string
	Table        *Table

	stopCh chan struct{}
}

// NewLoader loads both YAML files once and returns a ready Loader. Either
// path may be empty, in which case that half of the table stays empty and
// Resolve falls back to the model-family heuristic / no backend defs.
func NewLoader(routingPath, backendsPath string) (*Loader, error) {
	l := &Loader{RoutingPath: routingPath, BackendsPath: backendsPath, Table: NewTable(), stopCh: make(chan struct{})}
	if err := l.reload(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Loader) reload() error {
	var routingFile *RoutingFile
	var backendsFile *BackendsFile

	if l.RoutingPath != "" {
		rf, err := LoadRoutingFile(l.RoutingPath)
		if err != nil {
			return err
		}
		routingFile = rf
	}
	if l.BackendsPath != "" {
		bf, err := LoadBackendsFile(l.BackendsPath)
		if err != nil {
			return err
		}
		backendsFile = bf
	}
	l.Table.Reload(routingFile, backendsFile)
	return nil
}

// Watch starts an fsnotify watch on both configured files, reloading the
// table on write/create events and logging (but not failing) reload
// errors, matching internal/config.ConfigManager.startWatcher's tolerance
// for a momentarily-invalid file mid-write.
func (l *Loader) Watch() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.WithError(err).Warn("routing: failed to create file watcher, routing YAML hot-reload disabled")
		return
	}

	for _, p := range []string{l.RoutingPath, l.BackendsPath} {
		if p == "" {
			continue
		}
		if err := watcher.Add(p); err != nil {
			log.WithError(err).WithField("path", p).Warn("routing: failed to watch file")
		}
	}

	go func() {
		defer watcher.Close()
		var debounce *time.Timer
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(100*time.Millisecond, func() {
					if err := l.reload(); err != nil {
						log.WithError(err).Warn("routing: failed to reload routing/backend YAML")
					} else {
						log.Info("routing: reloaded routing/backend YAML")
					}
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.WithError(err).Warn("routing: file watcher error")
			case <-l.stopCh:
				if debounce != nil {
					debounce.Stop()
				}
				return
			}
		}
	}()
}

// Stop ends the watcher goroutine started by Watch.
func (l *Loader) Stop() {
	close(l.stopCh)
}
