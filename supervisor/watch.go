package supervisor

import (
	"log"
	"os"

	"github.com/fsnotify/fsnotify"

	"github.com/arachnesearch/arachne/config"
)

// WatchConfig watches configPath for writes and re-decodes it into a
// Site list on each change, calling s.Reconcile with the result.
// A single fsnotify watcher goroutine feeds a channel select loop,
// watching the configuration file itself rather than a tree of served
// content directories.
//
// The returned stop function closes the underlying watcher; it does
// not itself call s.Stop.
func WatchConfig(s *Supervisor, configPath string) (stop func(), err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(configPath); err != nil {
		watcher.Close()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				reloadConfig(s, configPath)
			case werr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("supervisor: config watch error: %v", werr)
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		watcher.Close()
	}, nil
}

func reloadConfig(s *Supervisor, configPath string) {
	f, err := os.Open(configPath)
	if err != nil {
		log.Printf("supervisor: reload %s: %v", configPath, err)
		return
	}
	defer f.Close()

	cfg, err := config.Decode(f)
	if err != nil {
		log.Printf("supervisor: reload %s: %v", configPath, err)
		return
	}
	sites, err := config.ToSites(cfg)
	if err != nil {
		log.Printf("supervisor: reload %s: %v", configPath, err)
		return
	}
	if err := s.Reconcile(sites); err != nil {
		log.Printf("supervisor: reconcile after reload: %v", err)
	}
}
