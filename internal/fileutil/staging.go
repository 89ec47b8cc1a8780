package fileutil

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
)

// Sentinel errors for staging operations.
var (
	ErrTooLarge      = errors.New("input exceeds maximum size")
	ErrScopeClosed   = errors.New("staging scope already closed")
	ErrReleased      = errors.New("artifact already released")
	ErrStagingFailed = errors.New("failed to stage artifact")
)

// DefaultMemoryLimit is the size up to which staged inputs stay in memory.
const DefaultMemoryLimit = 8 << 20

// Manager hands out staging scopes and keeps a process-wide count of
// artifacts that have been staged but not yet released.
type Manager struct {
	dir      string
	memLimit int64
	live     atomic.Int64
}

// NewManager creates a Manager spooling to dir (os.TempDir() when empty).
// Inputs larger than memLimit bytes are spooled to disk; memLimit <= 0 uses
// DefaultMemoryLimit.
func NewManager(dir string, memLimit int64) *Manager {
	if memLimit <= 0 {
		memLimit = DefaultMemoryLimit
	}
	return &Manager{dir: dir, memLimit: memLimit}
}

// Live returns the number of artifacts currently held by all scopes.
func (m *Manager) Live() int {
	return int(m.live.Load())
}

// NewScope opens a scope for one conversion. The id is embedded in spool
// file names so a leaked file can be traced back to its request.
func (m *Manager) NewScope(id string) *Scope {
	return &Scope{manager: m, id: sanitizeID(id)}
}

// Scope owns every artifact staged for a single conversion.
// Close releases all of them; it is safe to call more than once.
type Scope struct {
	manager   *Manager
	id        string
	mu        sync.Mutex
	artifacts []*Artifact
	closed    bool
}

// Stage reads r fully and keeps the content as a single-use artifact.
// Content beyond the manager's memory limit is spooled to a temp file.
// Reading more than maxBytes (when maxBytes > 0) fails with ErrTooLarge and
// leaves nothing behind.
func (s *Scope) Stage(name string, r io.Reader, maxBytes int64) (*Artifact, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrScopeClosed
	}
	s.mu.Unlock()

	art, err := s.stage(name, r, maxBytes)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		_ = art.Release()
		return nil, ErrScopeClosed
	}
	s.artifacts = append(s.artifacts, art)
	return art, nil
}

func (s *Scope) stage(name string, r io.Reader, maxBytes int64) (*Artifact, error) {
	limit := s.manager.memLimit
	if maxBytes > 0 && maxBytes < limit {
		limit = maxBytes
	}

	// Read one byte past the limit to learn whether the input spills over.
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrStagingFailed, name, err)
	}
	if n <= limit {
		return s.newArtifact(name, buf.Bytes(), "", n), nil
	}
	if maxBytes > 0 && n > maxBytes {
		return nil, fmt.Errorf("%w: %s (max %d bytes)", ErrTooLarge, name, maxBytes)
	}

	return s.spool(name, &buf, r, maxBytes)
}

// spool writes head followed by the rest of r into a temp file.
func (s *Scope) spool(name string, head *bytes.Buffer, r io.Reader, maxBytes int64) (*Artifact, error) {
	f, err := os.CreateTemp(s.manager.dir, tempPrefix+s.id+"-*."+extensionOf(name))
	if err != nil {
		return nil, fmt.Errorf("%w: creating spool file: %v", ErrStagingFailed, err)
	}
	path := f.Name()

	fail := func(err error) (*Artifact, error) {
		_ = f.Close()
		_ = removeIfExists(path)
		return nil, err
	}

	written, err := head.WriteTo(f)
	if err != nil {
		return fail(fmt.Errorf("%w: writing spool file: %v", ErrStagingFailed, err))
	}

	rest := r
	if maxBytes > 0 {
		rest = io.LimitReader(r, maxBytes-written+1)
	}
	copied, err := io.Copy(f, rest)
	if err != nil {
		return fail(fmt.Errorf("%w: writing spool file: %v", ErrStagingFailed, err))
	}
	total := written + copied
	if maxBytes > 0 && total > maxBytes {
		return fail(fmt.Errorf("%w: %s (max %d bytes)", ErrTooLarge, name, maxBytes))
	}

	if err := f.Close(); err != nil {
		_ = removeIfExists(path)
		return nil, fmt.Errorf("%w: closing spool file: %v", ErrStagingFailed, err)
	}

	return s.newArtifact(name, nil, path, total), nil
}

func (s *Scope) newArtifact(name string, data []byte, path string, size int64) *Artifact {
	s.manager.live.Add(1)
	return &Artifact{manager: s.manager, name: name, data: data, path: path, size: size}
}

// Live returns the number of artifacts of this scope not yet released.
func (s *Scope) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, a := range s.artifacts {
		if !a.isReleased() {
			n++
		}
	}
	return n
}

// Close releases every artifact in the scope and rejects further staging.
// Returns an aggregated error if some spool files could not be removed.
func (s *Scope) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	artifacts := s.artifacts
	s.artifacts = nil
	s.mu.Unlock()

	var errs []error
	for _, a := range artifacts {
		if err := a.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Artifact is a staged byte stream, held in memory or in a spool file.
type Artifact struct {
	manager  *Manager
	name     string
	data     []byte
	path     string
	size     int64
	mu       sync.Mutex
	released bool
}

// Name returns the name the artifact was staged under.
func (a *Artifact) Name() string { return a.name }

// Size returns the number of staged bytes.
func (a *Artifact) Size() int64 { return a.size }

// OnDisk reports whether the artifact was spooled to a temp file.
func (a *Artifact) OnDisk() bool { return a.path != "" }

// Bytes returns the staged content.
func (a *Artifact) Bytes() ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.released {
		return nil, fmt.Errorf("%w: %s", ErrReleased, a.name)
	}
	if a.path == "" {
		return a.data, nil
	}
	data, err := os.ReadFile(a.path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading spool file: %v", ErrStagingFailed, err)
	}
	return data, nil
}

// Release drops the content and removes the spool file, if any.
// Safe to call more than once.
func (a *Artifact) Release() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.released {
		return nil
	}
	a.released = true
	a.data = nil
	a.manager.live.Add(-1)

	if a.path == "" {
		return nil
	}
	if err := removeIfExists(a.path); err != nil {
		return fmt.Errorf("%w: removing spool file: %v", ErrStagingFailed, err)
	}
	return nil
}

func (a *Artifact) isReleased() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.released
}

// extensionOf returns a temp-file-safe extension derived from name.
func extensionOf(name string) string {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	if ValidateExtension(ext) != nil {
		return "bin"
	}
	return strings.ToLower(ext)
}

// sanitizeID keeps only characters safe inside a file name.
func sanitizeID(id string) string {
	var b strings.Builder
	for _, r := range id {
		if r == '-' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "scope"
	}
	return b.String()
}
