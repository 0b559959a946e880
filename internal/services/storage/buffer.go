package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"qrscan/internal/export"
	"qrscan/internal/logger"
	"qrscan/internal/scan"
)

// BufferService collects finished scan results and writes them to the export
// directory as JSON documents, in batches.
type BufferService struct {
	exportDir   string
	results     []scan.Result
	bufferLimit int
	logger      *logger.Logger
	mu          sync.Mutex
}

func NewBufferService(exportDir string, bufferLimit int, log *logger.Logger) *BufferService {
	if log == nil {
		log = logger.NewNop()
	}
	if bufferLimit <= 0 {
		bufferLimit = 1
	}
	return &BufferService{
		exportDir:   exportDir,
		bufferLimit: bufferLimit,
		results:     make([]scan.Result, 0, bufferLimit),
		logger:      log,
	}
}

// Run flushes on every interval tick and once more when ctx ends.
func (s *BufferService) Run(ctx context.Context, flushInterval time.Duration) {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if _, err := s.FlushResults(); err != nil {
				s.logger.Error("Final export flush failed: %v", err)
			}
			return
		case <-ticker.C:
			if _, err := s.FlushResults(); err != nil {
				s.logger.Error("Export flush failed: %v", err)
			}
		}
	}
}

// AddResult buffers r. A full buffer is flushed first.
func (s *BufferService) AddResult(r scan.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.results) >= s.bufferLimit {
		if _, err := s.flushLocked(); err != nil {
			s.logger.Error("Export flush on full buffer failed: %v", err)
		}
	}

	s.results = append(s.results, r)
	s.logger.Debug("Export buffer size: %d/%d", len(s.results), s.bufferLimit)
}

// Pending is the number of buffered results.
func (s *BufferService) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

// FlushResults writes every buffered result and returns the paths written.
func (s *BufferService) FlushResults() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

func (s *BufferService) flushLocked() ([]string, error) {
	if len(s.results) == 0 {
		return nil, nil
	}

	if err := os.MkdirAll(s.exportDir, 0755); err != nil {
		return nil, fmt.Errorf("create export directory: %w", err)
	}

	written := make([]string, 0, len(s.results))
	for _, r := range s.results {
		path, err := WriteResult(s.exportDir, r)
		if err != nil {
			s.logger.Error("Error exporting result from %s: %v", r.Timestamp.Format(time.RFC3339), err)
			continue
		}
		written = append(written, path)
	}

	s.logger.Info("Flushed %d results to %s", len(written), s.exportDir)
	s.results = s.results[:0]
	return written, nil
}

// WriteResult writes r into dir under its export filename. Results from the
// same second get a numeric suffix instead of overwriting each other.
func WriteResult(dir string, r scan.Result) (string, error) {
	data, err := export.Marshal(r)
	if err != nil {
		return "", err
	}

	name := export.Filename(r.Timestamp)
	base := strings.TrimSuffix(name, filepath.Ext(name))
	for i := 1; ; i++ {
		path := filepath.Join(dir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if os.IsExist(err) {
			name = fmt.Sprintf("%s-%d.json", base, i)
			continue
		}
		if err != nil {
			return "", err
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return "", err
		}
		return path, f.Close()
	}
}
