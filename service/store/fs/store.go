package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/grovekit/grove/service/store"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/storage"
	"github.com/viant/afs/url"
)

// Service implements a filesystem-backed output store. Records are persisted
// as JSON under <baseURL>/<nodeID>/<iteration>.json, so any afs scheme
// (file, mem, s3, gs, ...) can hold a run's outputs for post-run inspection.
// Durability is best-effort; the engine's correctness only relies on the
// read-your-writes contract within a single run.
type Service struct {
	baseURL string
	fs      afs.Service
	options []storage.Option
	mu      sync.RWMutex
}

// New creates a filesystem-backed output store rooted at baseURL.
func New(baseURL string, options ...storage.Option) (*Service, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	return &Service{
		baseURL: url.Normalize(baseURL, file.Scheme),
		fs:      afs.New(),
		options: options,
	}, nil
}

// Write stores or overwrites the record for (nodeID, iteration).
func (s *Service) Write(ctx context.Context, nodeID string, iteration int, payload map[string]interface{}) error {
	record := &store.Record{
		NodeID:    nodeID,
		Iteration: iteration,
		Payload:   payload,
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record %s/%d: %w", nodeID, iteration, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	location := s.recordURL(nodeID, iteration)
	if err = s.fs.Upload(ctx, location, file.DefaultFileOsMode, bytes.NewReader(data), s.options...); err != nil {
		return fmt.Errorf("failed to persist record to %s: %w", location, err)
	}
	return nil
}

// Read returns the record for (nodeID, iteration), or nil when absent.
func (s *Service) Read(ctx context.Context, nodeID string, iteration int) (*store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.load(ctx, s.recordURL(nodeID, iteration))
}

// ReadLatest returns the record with the highest persisted iteration.
func (s *Service) ReadLatest(ctx context.Context, nodeID string) (*store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nodeURL := url.Join(s.baseURL, nodeID)
	objects, err := s.fs.List(ctx, nodeURL, s.options...)
	if err != nil {
		// an unlisted node directory means nothing was produced yet
		return nil, nil
	}
	latest := -1
	for _, object := range objects {
		if object.IsDir() {
			continue
		}
		name := object.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		iteration, err := strconv.Atoi(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		if iteration > latest {
			latest = iteration
		}
	}
	if latest < 0 {
		return nil, nil
	}
	return s.load(ctx, s.recordURL(nodeID, latest))
}

// History returns a restartable iterator over nodeID's records in ascending
// iteration order, stopping at the first absent iteration.
func (s *Service) History(ctx context.Context, nodeID string) store.Iterator {
	iteration := 0
	return func() (*store.Record, bool) {
		record, err := s.Read(ctx, nodeID, iteration)
		if err != nil || record == nil {
			return nil, false
		}
		iteration++
		return record, true
	}
}

func (s *Service) load(ctx context.Context, location string) (*store.Record, error) {
	exists, err := s.fs.Exists(ctx, location, s.options...)
	if err != nil || !exists {
		return nil, nil
	}
	data, err := s.fs.DownloadWithURL(ctx, location, s.options...)
	if err != nil {
		return nil, fmt.Errorf("failed to read record from %s: %w", location, err)
	}
	record := &store.Record{}
	if err = json.Unmarshal(data, record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record from %s: %w", location, err)
	}
	return record, nil
}

func (s *Service) recordURL(nodeID string, iteration int) string {
	return url.Join(s.baseURL, nodeID, fmt.Sprintf("%d.json", iteration))
}

var _ store.Service = (*Service)(nil)
