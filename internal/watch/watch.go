// Package watch mirrors the project asset directory into the frontend public
// directory and keeps it in sync while the dev server runs.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	logging "github.com/ipfs/go-log/v2"

	"github.com/jeanhaley32/reflexctl/internal/constants"
)

var log = logging.Logger("watch")

// AssetWatcher copies files from Src to Dst.
type AssetWatcher struct {
	Src string
	Dst string
}

// New creates an AssetWatcher for the project rooted at root.
func New(root string) *AssetWatcher {
	return &AssetWatcher{
		Src: filepath.Join(root, constants.AppAssetsDir),
		Dst: filepath.Join(root, constants.WebPublicDir),
	}
}

// Sync copies the whole asset tree. A missing asset directory is not an error.
func (w *AssetWatcher) Sync() error {
	if _, err := os.Stat(w.Src); errors.Is(err, fs.ErrNotExist) {
		log.Debugf("no asset directory at %s", w.Src)
		return nil
	}
	return copyTree(w.Src, w.Dst)
}

// Start registers watches on every directory under Src and mirrors changes
// until ctx is cancelled. Watches are in place when Start returns.
func (w *AssetWatcher) Start(ctx context.Context) error {
	if _, err := os.Stat(w.Src); errors.Is(err, fs.ErrNotExist) {
		log.Debugf("no asset directory at %s, not watching", w.Src)
		return nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := addRecursive(fw, w.Src); err != nil {
		fw.Close()
		return err
	}

	go func() {
		defer fw.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-fw.Events:
				if !ok {
					return
				}
				if err := w.handle(fw, ev); err != nil {
					log.Warnf("failed to mirror %s: %s", ev.Name, err)
				}
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				log.Warnf("asset watcher error: %s", err)
			}
		}
	}()
	return nil
}

func (w *AssetWatcher) handle(fw *fsnotify.Watcher, ev fsnotify.Event) error {
	rel, err := filepath.Rel(w.Src, ev.Name)
	if err != nil {
		return err
	}
	dst := filepath.Join(w.Dst, rel)

	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		log.Debugw("removing asset", "path", rel)
		return os.RemoveAll(dst)
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		info, err := os.Stat(ev.Name)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		log.Debugw("copying asset", "path", rel)
		if info.IsDir() {
			if err := addRecursive(fw, ev.Name); err != nil {
				return err
			}
			return copyTree(ev.Name, dst)
		}
		return copyFile(ev.Name, dst, info.Mode())
	}
	return nil
}

func addRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := fw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, constants.DirPermissions)
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return copyFile(path, target, info.Mode())
	})
}

func copyFile(src, dst string, mode fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), constants.DirPermissions); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
