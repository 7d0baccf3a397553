package services

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"handv-deploy/internal/config"

	"github.com/spf13/afero"
)

const followInterval = 500 * time.Millisecond

// LogService reads the log files the launcher writes for each service
type LogService struct {
	fs  afero.Fs
	cfg *config.AppConfig
}

/**
 * Create new log service instance
 * @param {afero.Fs} fs - filesystem holding the logs
 * @param {*config.AppConfig} cfg - configuration, log paths are resolved against the root
 * @returns {*LogService}
 */
func NewLogService(fs afero.Fs, cfg *config.AppConfig) *LogService {
	return &LogService{fs: fs, cfg: cfg}
}

// Path returns the absolute log file of a service
func (ls *LogService) Path(service string) (string, error) {
	svc, err := ls.cfg.Service(service)
	if err != nil {
		return "", fmt.Errorf("service %s: %w", service, err)
	}
	return ls.cfg.Path(svc.LogFile), nil
}

/**
 * Read the last lines of a service log
 * @param {string} service - service name
 * @param {int} n - number of lines, all lines when <= 0
 * @returns {([]string, error)} lines without trailing newlines
 */
func (ls *LogService) Tail(service string, n int) ([]string, error) {
	path, err := ls.Path(service)
	if err != nil {
		return nil, err
	}
	f, err := ls.fs.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("log file does not exist: %s", path)
		}
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if n > 0 && len(lines) > n {
			lines = lines[1:]
		}
	}
	return lines, scanner.Err()
}

/**
 * Copy data appended to a service log into w until ctx ends
 * @param {context.Context} ctx - stops following
 * @param {string} service - service name
 * @param {io.Writer} w - destination
 * @description
 * - starts at the current end of file
 * - a truncated file (service restarted) is read again from the beginning
 */
func (ls *LogService) Follow(ctx context.Context, service string, w io.Writer) error {
	path, err := ls.Path(service)
	if err != nil {
		return err
	}
	var offset int64
	if info, err := ls.fs.Stat(path); err == nil {
		offset = info.Size()
	}
	ticker := time.NewTicker(followInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		info, err := ls.fs.Stat(path)
		if err != nil {
			continue
		}
		if info.Size() < offset {
			offset = 0
		}
		if info.Size() == offset {
			continue
		}
		n, err := ls.copyFrom(path, offset, w)
		offset += n
		if err != nil {
			return err
		}
	}
}

func (ls *LogService) copyFrom(path string, offset int64, w io.Writer) (int64, error) {
	f, err := ls.fs.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return 0, err
	}
	return io.Copy(w, f)
}
