package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

// ErrInvalidRecord is returned when a PID record exists but does not hold a positive integer
var ErrInvalidRecord = errors.New("invalid PID record")

// Store persists one PID per service name
type Store interface {
	Load(service string) (pid int, found bool, err error)
	Save(service string, pid int) error
	// Delete is idempotent: deleting a missing record is not an error
	Delete(service string) error
}

// FileStore keeps each record in its own file; paths maps service name to file path
type FileStore struct {
	fs    afero.Fs
	paths map[string]string
}

func NewFileStore(fs afero.Fs, paths map[string]string) *FileStore {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &FileStore{fs: fs, paths: paths}
}

// Path returns the PID file of service
func (s *FileStore) Path(service string) (string, error) {
	p, ok := s.paths[service]
	if !ok || p == "" {
		return "", fmt.Errorf("no PID file configured for service %s", service)
	}
	return p, nil
}

func (s *FileStore) Load(service string) (int, bool, error) {
	path, err := s.Path(service)
	if err != nil {
		return 0, false, err
	}
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, false, nil
		}
		return 0, false, err
	}
	text := strings.TrimSpace(string(data))
	pid, err := strconv.Atoi(text)
	if err != nil || pid <= 0 {
		return 0, true, fmt.Errorf("%w in %s: %q", ErrInvalidRecord, path, text)
	}
	return pid, true, nil
}

func (s *FileStore) Save(service string, pid int) error {
	path, err := s.Path(service)
	if err != nil {
		return err
	}
	if err := s.fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return afero.WriteFile(s.fs, path, []byte(strconv.Itoa(pid)+"\n"), 0644)
}

func (s *FileStore) Delete(service string) error {
	path, err := s.Path(service)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// MemoryStore is an in-process Store used by tests and dry runs
type MemoryStore struct {
	mu   sync.Mutex
	pids map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{pids: make(map[string]int)}
}

func (m *MemoryStore) Load(service string) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pid, ok := m.pids[service]
	return pid, ok, nil
}

func (m *MemoryStore) Save(service string, pid int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pids[service] = pid
	return nil
}

func (m *MemoryStore) Delete(service string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pids, service)
	return nil
}
