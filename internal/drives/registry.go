// Package drives provides the in-memory registry of known storage volumes.
//
// The registry is an ordered list of volume identifiers loaded from a
// line-delimited file. The first entry is the primary volume, every other entry
// is a secondary. Readers always work on an immutable Snapshot, so a sync run
// sees one consistent list even if the registry is reloaded underneath it.
package drives

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/spf13/afero"
)

// ErrDuplicateVolume is returned when the drive list names a volume twice
var ErrDuplicateVolume = errors.New("duplicate volume identifier")

// Snapshot is an immutable, ordered view of the registered volumes
type Snapshot struct {
	volumes []string
}

// NewSnapshot builds a snapshot from the given identifiers, preserving order
func NewSnapshot(volumes ...string) Snapshot {
	return Snapshot{volumes: slices.Clone(volumes)}
}

// Len returns the number of registered volumes
func (s Snapshot) Len() int {
	return len(s.volumes)
}

// Volumes returns a copy of the identifiers in registry order
func (s Snapshot) Volumes() []string {
	return slices.Clone(s.volumes)
}

// Primary returns the first volume, or false when the snapshot is empty
func (s Snapshot) Primary() (string, bool) {
	if len(s.volumes) == 0 {
		return "", false
	}
	return s.volumes[0], true
}

// Secondaries returns every volume after the primary, in registry order
func (s Snapshot) Secondaries() []string {
	if len(s.volumes) < 2 {
		return nil
	}
	return slices.Clone(s.volumes[1:])
}

// Registry holds the current snapshot of the drive list.
// It is safe for concurrent use.
type Registry struct {
	fs      afero.Fs
	path    string
	current atomic.Pointer[Snapshot]
}

// NewRegistry creates a registry backed by the drive list at path on fs.
// The registry is empty until Load is called.
func NewRegistry(fs afero.Fs, path string) *Registry {
	r := &Registry{fs: fs, path: path}
	empty := NewSnapshot()
	r.current.Store(&empty)
	return r
}

// NewStaticRegistry creates a registry with a fixed list and no backing file
func NewStaticRegistry(volumes ...string) *Registry {
	r := &Registry{}
	snap := NewSnapshot(volumes...)
	r.current.Store(&snap)
	return r
}

// Path returns the drive list path, empty for static registries
func (r *Registry) Path() string {
	return r.path
}

// Snapshot returns the current immutable view of the registry
func (r *Registry) Snapshot() Snapshot {
	return *r.current.Load()
}

// Load reads the drive list file and replaces the current snapshot.
// A missing file is returned as an error; the previous snapshot is kept.
func (r *Registry) Load() (Snapshot, error) {
	if r.fs == nil || r.path == "" {
		return r.Snapshot(), fmt.Errorf("registry has no backing drive list")
	}

	f, err := r.fs.Open(r.path)
	if err != nil {
		return r.Snapshot(), fmt.Errorf("failed to open drive list %s: %w", r.path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			slog.Warn("Failed to close drive list", "path", r.path, "error", closeErr)
		}
	}()

	volumes, err := ParseDriveList(f)
	if err != nil {
		return r.Snapshot(), fmt.Errorf("failed to parse drive list %s: %w", r.path, err)
	}

	snap := Snapshot{volumes: volumes}
	r.current.Store(&snap)
	return snap, nil
}

// Reload is Load with a log line describing the change
func (r *Registry) Reload() (Snapshot, error) {
	before := r.Snapshot().Len()
	snap, err := r.Load()
	if err != nil {
		return snap, err
	}
	slog.Info("Reloaded drive list", "path", r.path, "previous_count", before, "count", snap.Len())
	return snap, nil
}

// ParseDriveList reads one volume identifier per line. Surrounding whitespace is
// trimmed and blank lines are skipped. Identifiers must be unique.
func ParseDriveList(rd io.Reader) ([]string, error) {
	var volumes []string
	seen := make(map[string]int)

	scanner := bufio.NewScanner(rd)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		volume := strings.TrimSpace(scanner.Text())
		if volume == "" {
			continue
		}
		if prev, ok := seen[volume]; ok {
			return nil, fmt.Errorf("%w %q on lines %d and %d", ErrDuplicateVolume, volume, prev, lineNo)
		}
		seen[volume] = lineNo
		volumes = append(volumes, volume)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return volumes, nil
}
