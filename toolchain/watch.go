package toolchain

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/howeyc/fsnotify"
	"go.uber.org/zap"

	"libsmce-go/sketch"
)

// WatchDebounce is how long Watch waits for changes to settle.
var WatchDebounce = 100 * time.Millisecond

// Watch compiles sk once, then again after every change to its source,
// reporting each result to onBuild. It returns when ctx is done.
// A directory source is watched as a whole; a file source by name.
func (t *Toolchain) Watch(ctx context.Context, sk *sketch.Sketch, onBuild func(Result)) error {
	src := filepath.Clean(sk.Source())
	dir := filepath.Dir(src)
	isDir := false
	if fi, err := os.Stat(src); err == nil && fi.IsDir() {
		dir, isDir = src, true
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Watch(dir); err != nil {
		return err
	}

	relevant := func(name string) bool {
		name = filepath.Clean(name)
		if isDir {
			return strings.HasPrefix(name, dir) && !strings.HasPrefix(filepath.Base(name), ".")
		}
		return name == src
	}

	run := time.After(time.Millisecond)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-run:
			run = nil
			t.log.Info("watch: build", zap.String("source", src))
			onBuild(t.Compile(ctx, sk))
		case ev := <-watcher.Event:
			if relevant(ev.Name) && !ev.IsAttrib() {
				run = time.After(WatchDebounce)
			}
		case err := <-watcher.Error:
			t.log.Warn("watch: watcher", zap.Error(err))
		}
	}
}
