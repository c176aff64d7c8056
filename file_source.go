package refract

import (
	"context"
	"os"
	"reflect"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FileSource watches a settings document on disk and emits one Event per
// changed key. It turns a file that holds the full flat settings payload
// into the same per-setting notifications an embedded editor would
// dispatch, which makes it useful for driving a Bridge outside a host
// editor, for example in development tooling.
//
// The first successful read establishes the baseline snapshot and emits
// nothing; subsequent writes are decoded, diffed against the previous
// snapshot, and each added, removed, or modified key produces an Event
// carrying the full new settings map. Unreadable or undecodable writes
// are skipped and the previous snapshot is retained.
type FileSource struct {
	path  string
	codec Codec
}

// NewFileSource creates a FileSource for the given path. Pass a nil codec
// to decode the file as JSON.
func NewFileSource(path string, codec Codec) *FileSource {
	if codec == nil {
		codec = JSONCodec{}
	}
	return &FileSource{path: path, codec: codec}
}

// Subscribe starts watching the file and forwarding change events to fn.
// The cancel function stops the watch. If the file cannot be watched at
// subscribe time the subscription is inert and cancel is still safe to
// call.
func (s *FileSource) Subscribe(fn Handler) (cancel func()) {
	done := make(chan struct{})
	var once sync.Once
	cancel = func() {
		once.Do(func() { close(done) })
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return cancel
	}
	if err := watcher.Add(s.path); err != nil {
		watcher.Close()
		return cancel
	}

	go s.watch(watcher, done, fn)

	return cancel
}

func (s *FileSource) watch(watcher *fsnotify.Watcher, done <-chan struct{}, fn Handler) {
	defer watcher.Close()

	// Baseline snapshot. A missing or malformed file means the first
	// decodable write becomes the baseline instead.
	prev, _ := s.read()

	for {
		select {
		case <-done:
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			curr, err := s.read()
			if err != nil {
				continue
			}
			if prev == nil {
				prev = curr
				continue
			}

			for _, key := range changedKeys(prev, curr) {
				fn(context.Background(), Event{
					Setting:  key,
					Settings: curr,
					Value:    curr[key],
				})
			}
			prev = curr

		case _, ok := <-watcher.Errors:
			if !ok {
				return
			}
			// Keep watching despite errors.
		}
	}
}

func (s *FileSource) read() (map[string]any, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	var settings map[string]any
	if err := s.codec.Unmarshal(data, &settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// changedKeys returns every key whose value differs between snapshots,
// including keys present in only one of them.
func changedKeys(prev, curr map[string]any) []string {
	var keys []string
	for k, v := range curr {
		if old, ok := prev[k]; !ok || !reflect.DeepEqual(old, v) {
			keys = append(keys, k)
		}
	}
	for k := range prev {
		if _, ok := curr[k]; !ok {
			keys = append(keys, k)
		}
	}
	return keys
}
