package github

import (
	"context"
	"sync"
)

// MockHost is a canned RepoHost for tests.
type MockHost struct {
	mu sync.Mutex

	Status        *PRStatus
	StatusErr     error
	Threads       []Thread
	ThreadsErr    error
	CommentsList  []*Comment
	CommentsErr   error
	MergeErr      error
	mergedNumbers []int
	statusCalls   int
}

var _ RepoHost = (*MockHost)(nil)

func (m *MockHost) PRStatus(ctx context.Context, number int) (*PRStatus, error) {
	m.mu.Lock()
	m.statusCalls++
	m.mu.Unlock()
	if m.StatusErr != nil {
		return nil, m.StatusErr
	}
	if m.Status == nil {
		return &PRStatus{Status: StatusUnknown}, nil
	}
	return m.Status, nil
}

func (m *MockHost) UnresolvedThreads(ctx context.Context, number int) ([]Thread, error) {
	return m.Threads, m.ThreadsErr
}

func (m *MockHost) Comments(ctx context.Context, number int) ([]*Comment, error) {
	return m.CommentsList, m.CommentsErr
}

func (m *MockHost) Merge(ctx context.Context, number int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MergeErr != nil {
		return m.MergeErr
	}
	m.mergedNumbers = append(m.mergedNumbers, number)
	return nil
}

// Merged returns the PR numbers merged so far.
func (m *MockHost) Merged() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, len(m.mergedNumbers))
	copy(out, m.mergedNumbers)
	return out
}

// StatusCalls reports how many times PRStatus ran.
func (m *MockHost) StatusCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusCalls
}
