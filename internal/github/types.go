// Package github talks to the source host through the gh CLI. The work loop
// only ever uses it for status display; control flow is driven by the state
// the agent writes, never by anything fetched here.
package github

import "context"

// Aggregate CI status for a pull request.
const (
	StatusPassing = "passing"
	StatusFailing = "failing"
	StatusPending = "pending"
	StatusUnknown = "unknown"
)

// Check is a single CI check run.
type Check struct {
	Name   string `json:"name"`
	State  string `json:"state"`
	Bucket string `json:"bucket"`
}

// PRStatus summarizes CI for one pull request.
type PRStatus struct {
	Status string
	Checks []Check
}

// Thread is an unresolved review thread, reduced to its opening comment.
type Thread struct {
	ID     string
	Author string
	Body   string
	Path   string
	Line   int
}

// RepoHost is the hosting integration consumed by the loop and the CLI.
type RepoHost interface {
	PRStatus(ctx context.Context, number int) (*PRStatus, error)
	UnresolvedThreads(ctx context.Context, number int) ([]Thread, error)
	Comments(ctx context.Context, number int) ([]*Comment, error)
	Merge(ctx context.Context, number int) error
}
