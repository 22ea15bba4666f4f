package directory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/autopeer-io/cartwin/internal/twin/core"
	"github.com/autopeer-io/cartwin/internal/twin/core/model"
	"github.com/autopeer-io/cartwin/pkg/log"
)

// Document is the YAML layout of a directory file.
type Document struct {
	Devices     []model.Device     `yaml:"devices"`
	Assignments []model.Assignment `yaml:"assignments"`
}

// File serves a directory loaded from a YAML document. A failed reload keeps
// the previous contents.
type File struct {
	path    string
	current atomic.Pointer[Memory]
}

var _ core.DeviceDirectory = (*File)(nil)

// NewFile loads path.
func NewFile(path string) (*File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	f := &File{path: abs}
	if err := f.Reload(); err != nil {
		return nil, err
	}
	return f, nil
}

// Parse builds an in-memory directory from a YAML document.
func Parse(data []byte) (*Memory, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse directory: %w", err)
	}

	m := NewMemory()
	for _, d := range doc.Devices {
		if err := m.PutDevice(d); err != nil {
			return nil, err
		}
	}
	for _, a := range doc.Assignments {
		if err := m.record(a); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Reload reads the file again and swaps the contents in.
func (f *File) Reload() error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return fmt.Errorf("read directory file: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return fmt.Errorf("%s: %w", f.path, err)
	}
	f.current.Store(m)
	log.Info("Loaded device directory", "path", f.path, "devices", len(m.Devices()))
	return nil
}

// Watch reloads the file whenever it changes until ctx is cancelled.
func (f *File) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Editors replace files atomically, so watch the directory.
	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		return fmt.Errorf("watch %s: %w", f.path, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != f.path || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			if err := f.Reload(); err != nil {
				log.Error(err, "Failed to reload device directory, keeping previous contents")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error(err, "Device directory watcher error")
		}
	}
}

// Memory returns the directory currently served.
func (f *File) Memory() *Memory {
	return f.current.Load()
}

func (f *File) LookupDeviceByRoutingKey(ctx context.Context, key string) (*model.Device, error) {
	return f.current.Load().LookupDeviceByRoutingKey(ctx, key)
}

func (f *File) ActiveAssignment(ctx context.Context, deviceID string) (*model.Assignment, error) {
	return f.current.Load().ActiveAssignment(ctx, deviceID)
}
