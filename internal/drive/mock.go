package drive

import (
	"context"
	"fmt"
	"sync"

	"github.com/yontaro/kakeibo/internal/service"
)

// MockListing is an in-memory implementation of service.SourceListing
// for testing.
type MockListing struct {
	Files         []service.SourceFile
	Contents      map[string][][]string // keyed by file ID
	DownloadErrs  map[string]error
	DownloadCalls []string
	mu            sync.Mutex
}

// NewMockListing creates an empty mock source listing.
func NewMockListing() *MockListing {
	return &MockListing{
		Contents:     make(map[string][][]string),
		DownloadErrs: make(map[string]error),
	}
}

// List implements service.SourceListing.
func (m *MockListing) List(_ context.Context) ([]service.SourceFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]service.SourceFile(nil), m.Files...), nil
}

// Download implements service.SourceListing.
func (m *MockListing) Download(_ context.Context, file service.SourceFile) ([][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DownloadCalls = append(m.DownloadCalls, file.Name)
	if err, ok := m.DownloadErrs[file.ID]; ok {
		return nil, err
	}
	rows, ok := m.Contents[file.ID]
	if !ok {
		return nil, fmt.Errorf("no content registered for %s", file.ID)
	}
	return rows, nil
}
