package ics

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	appLog "remhind/internal/log"
	"remhind/internal/model"
)

// Registrar receives parsed components together with their source path.
type Registrar interface {
	Add(c model.Component, source string) error
}

// LoadStats summarizes one load pass.
type LoadStats struct {
	Files      int // files parsed
	Unchanged  int // files skipped because they did not change
	Components int // components registered
	Rejected   int // components the registrar refused
}

type fileStamp struct {
	modTime time.Time
	size    int64
}

// Loader scans calendar directories for *.ics files and registers their
// components. Files whose modification time and size did not change since
// the previous pass are skipped. A Loader is not safe for concurrent use.
type Loader struct {
	fs   afero.Fs
	seen map[string]fileStamp
}

func NewLoader(fs afero.Fs) *Loader {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Loader{fs: fs, seen: make(map[string]fileStamp)}
}

// LoadDirs walks every directory. Unreadable directories and files are
// logged and reported in the joined error; the remaining ones still load.
func (l *Loader) LoadDirs(dirs []string, reg Registrar) (LoadStats, error) {
	var (
		stats LoadStats
		errs  []error
	)

	for _, dir := range dirs {
		walkErr := afero.Walk(l.fs, dir, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				errs = append(errs, err)
				appLog.Error("ics loader: walk failed", err, "path", path)
				return nil
			}
			if info.IsDir() || !strings.EqualFold(filepath.Ext(path), ".ics") {
				return nil
			}

			stamp := fileStamp{modTime: info.ModTime(), size: info.Size()}
			if prev, ok := l.seen[path]; ok && prev == stamp {
				stats.Unchanged++
				return nil
			}

			n, rejected, err := l.loadFile(path, reg)
			if err != nil {
				errs = append(errs, err)
				appLog.Error("ics loader: file failed", err, "path", path)
				return nil
			}
			l.seen[path] = stamp
			stats.Files++
			stats.Components += n
			stats.Rejected += rejected
			return nil
		})
		if walkErr != nil {
			errs = append(errs, walkErr)
		}
	}

	appLog.Debug("ics loader: pass completed",
		"files", stats.Files,
		"unchanged", stats.Unchanged,
		"components", stats.Components,
		"rejected", stats.Rejected,
	)
	return stats, errors.Join(errs...)
}

func (l *Loader) loadFile(path string, reg Registrar) (registered, rejected int, err error) {
	body, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return 0, 0, fmt.Errorf("ics loader: read %s: %w", path, err)
	}
	comps, err := Parse(path, body)
	if err != nil {
		return 0, 0, err
	}
	for _, c := range comps {
		if err := reg.Add(c, path); err != nil {
			rejected++
			continue
		}
		registered++
	}
	return registered, rejected, nil
}
