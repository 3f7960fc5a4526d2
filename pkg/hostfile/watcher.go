// Copyright The PRRTE-Go Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package hostfile watches a hostfile or rankfile on disk and reloads
// the node pool / rankfile it feeds whenever the file changes, so an
// operator can edit host or rank assignments without restarting the
// planner. Grounded on the teacher's pkg/kubernetes/watch file watcher
// (same fsnotify-on-parent-directory idiom, to tolerate editors that
// replace-via-rename rather than write in place), repointed from
// Kubernetes runtime.Object decoding to parsing a node-pool or rankfile
// document.
package hostfile

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/awlauria/prrte/internal/logging"
)

var log = logging.NewLogger("hostfile")

// Decoder turns raw file content into the caller's target type, e.g.
// job.ParseRankfile or nodepool config YAML unmarshaling.
type Decoder func(data []byte) (interface{}, error)

// Event is one reload notification: either a freshly decoded value, or
// an error describing why the reload failed (the previous value, if
// any, is left in place by the caller).
type Event struct {
	Value interface{}
	Err   error
}

// Watcher reloads one file's content on every create/write and
// publishes the decoded result.
type Watcher struct {
	dir  string
	file string
	dec  Decoder

	fsw    *fsnotify.Watcher
	events chan Event

	stopOnce sync.Once
	stopC    chan struct{}
	doneC    chan struct{}
}

// Watch starts watching path, decoding its initial content (if present)
// and every subsequent create/write with dec. Watch fails only if the
// fsnotify watch itself cannot be established; a missing or malformed
// file at startup is reported as an Event on the returned channel
// instead, so a hostfile that appears later is picked up.
func Watch(path string, dec Decoder) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("hostfile: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("hostfile: %w", err)
	}
	if err := fsw.Add(filepath.Dir(absPath)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("hostfile: watching %s: %w", filepath.Dir(absPath), err)
	}

	w := &Watcher{
		dir:    filepath.Dir(absPath),
		file:   filepath.Base(absPath),
		dec:    dec,
		fsw:    fsw,
		events: make(chan Event, 4),
		stopC:  make(chan struct{}),
		doneC:  make(chan struct{}),
	}

	w.reload()
	go w.run()
	return w, nil
}

// Events returns the channel of reload results. Closed once Stop returns.
func (w *Watcher) Events() <-chan Event { return w.events }

// Stop stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopC)
		<-w.doneC
		close(w.events)
	})
}

func (w *Watcher) run() {
	defer close(w.doneC)
	defer w.fsw.Close()
	for {
		select {
		case <-w.stopC:
			return
		case e, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(e.Name) != w.file {
				continue
			}
			if e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				log.Debug("%s: reload triggered by %s", w.path(), e.Op)
				w.reload()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Warn("%s: fsnotify error: %v", w.path(), err)
		}
	}
}

func (w *Watcher) reload() {
	data, err := os.ReadFile(filepath.Join(w.dir, w.file))
	if err != nil {
		w.publish(Event{Err: fmt.Errorf("hostfile: reading %s: %w", w.path(), err)})
		return
	}
	val, err := w.dec(data)
	if err != nil {
		w.publish(Event{Err: fmt.Errorf("hostfile: decoding %s: %w", w.path(), err)})
		return
	}
	w.publish(Event{Value: val})
}

func (w *Watcher) publish(e Event) {
	select {
	case w.events <- e:
	default:
		log.Warn("%s: reload event dropped, channel full", w.path())
	}
}

func (w *Watcher) path() string { return filepath.Join(w.dir, w.file) }
