package fsx

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
)

// MemFS is an in-memory implementation of every capability, for tests.
// Failure injection: set FailCopy, FailDelete, FailRead, or FailAppend to map
// a path to the error its operation should return. DeleteLog records every
// path handed to Delete, including failed attempts.
type MemFS struct {
	mu    sync.Mutex
	files map[string][]byte
	dirs  map[string]bool

	FailCopy   map[string]error // keyed by destination path
	FailDelete map[string]error
	FailRead   map[string]error
	FailAppend map[string]error

	DeleteLog []string
}

// NewMemFS returns an empty in-memory filesystem with "/" present.
func NewMemFS() *MemFS {
	return &MemFS{
		files: make(map[string][]byte),
		dirs:  map[string]bool{"/": true},
	}
}

// Capabilities returns the full capability bag backed by this MemFS.
func (m *MemFS) Capabilities() Capabilities {
	return Capabilities{
		Reader:   m,
		Writer:   m,
		Appender: m,
		Creator:  m,
		Checker:  m,
		Copier:   m,
		Deleter:  m,
	}
}

// Seed writes a file without going through the Writer capability.
func (m *MemFS) Seed(p string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[p] = append([]byte(nil), data...)
	m.mkdirAllLocked(path.Dir(p))
}

// Bytes returns the current contents of a file, or nil if absent.
func (m *MemFS) Bytes(p string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[p]
	if !ok {
		return nil
	}
	return append([]byte(nil), data...)
}

// Exists reports whether a file is present.
func (m *MemFS) Exists(p string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[p]
	return ok
}

// Paths returns all file paths, sorted.
func (m *MemFS) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	paths := make([]string, 0, len(m.files))
	for p := range m.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func (m *MemFS) mkdirAllLocked(p string) {
	for p != "/" && p != "." && p != "" {
		m.dirs[p] = true
		p = path.Dir(p)
	}
}

func (m *MemFS) ReadFile(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.FailRead[p]; ok {
		return nil, err
	}
	data, ok := m.files[p]
	if !ok {
		return nil, fmt.Errorf("read %s: %w", p, ErrNotExists)
	}
	return append([]byte(nil), data...), nil
}

func (m *MemFS) WriteFile(ctx context.Context, p string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[p] = append([]byte(nil), data...)
	m.mkdirAllLocked(path.Dir(p))
	return nil
}

func (m *MemFS) AppendFile(ctx context.Context, p string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.FailAppend[p]; ok {
		return err
	}
	existing, ok := m.files[p]
	if !ok {
		return fmt.Errorf("append %s: %w", p, ErrNotExists)
	}
	m.files[p] = append(existing, data...)
	return nil
}

func (m *MemFS) CreateFile(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[p]; !ok {
		m.files[p] = []byte{}
	}
	m.mkdirAllLocked(path.Dir(p))
	return nil
}

func (m *MemFS) MkdirAll(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mkdirAllLocked(p)
	return nil
}

func (m *MemFS) TempDir(ctx context.Context, pattern string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	name := "/tmp/" + strings.ReplaceAll(pattern, "*", fmt.Sprintf("%06d", len(m.dirs)))
	m.mkdirAllLocked(name)
	return name, nil
}

func (m *MemFS) Check(ctx context.Context, p string) (*ExistingFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[p]; !ok {
		return nil, fmt.Errorf("%s: %w", p, ErrNotExists)
	}
	return newExistingFile(p), nil
}

func (m *MemFS) Copy(ctx context.Context, src *ExistingFile, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.FailCopy[dst]; ok {
		return err
	}
	data, ok := m.files[src.Path()]
	if !ok {
		return fmt.Errorf("copy %s: %w", src.Path(), ErrNotExists)
	}
	m.files[dst] = append([]byte(nil), data...)
	m.mkdirAllLocked(path.Dir(dst))
	return nil
}

func (m *MemFS) Delete(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteLog = append(m.DeleteLog, p)
	if err, ok := m.FailDelete[p]; ok {
		return err
	}
	if _, ok := m.files[p]; !ok {
		return fmt.Errorf("delete %s: %w", p, ErrNotExists)
	}
	delete(m.files, p)
	return nil
}
