package sigma

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/SushanthKS06/IsoLog/internal/logging"
)

// WatchDir reloads m from dir whenever a *.yml/*.yaml file under dir is
// created, written, or removed, recovering the hot-reload behavior
// `original_source/IsoLog/backend/detection/sigma/matcher.py` drove off
// SIGHUP/interval. Grounded on filewatch.Watcher's own fsnotify-with-
// polling-fallback shape: best-effort notification, degrading to a
// fixed poll interval if the watcher can't be established, never fatal
// to the caller either way.
func WatchDir(dir string, m *Matcher, log *logging.Logger, stop <-chan struct{}) {
	if log == nil {
		log = logging.NewDiscard()
	}
	reload := func() {
		rules, errs := LoadDir(dir)
		for _, err := range errs {
			log.Warnf("sigma rule load error: %v", err)
		}
		m.Reload(rules)
		log.Infof("sigma rules reloaded from %s: %d active", dir, len(rules))
	}
	reload()

	nw, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warnf("sigma rule watcher unavailable, falling back to 30s poll: %v", err)
		pollReload(dir, reload, stop)
		return
	}
	defer nw.Close()
	if err := nw.Add(dir); err != nil {
		log.Warnf("sigma rule watch of %s failed, falling back to 30s poll: %v", dir, err)
		pollReload(dir, reload, stop)
		return
	}

	for {
		select {
		case <-stop:
			return
		case ev, ok := <-nw.Events:
			if !ok {
				return
			}
			if isRuleFile(ev.Name) && ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				reload()
			}
		case err, ok := <-nw.Errors:
			if !ok {
				return
			}
			log.Warnf("sigma rule watcher error: %v", err)
		}
	}
}

func isRuleFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yml" || ext == ".yaml"
}

func pollReload(dir string, reload func(), stop <-chan struct{}) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			reload()
		}
	}
}
