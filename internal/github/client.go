package github

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/sebyx07/claude-task-master/internal/logging"
)

// runFunc executes a gh invocation and returns its combined output. On a
// nonzero exit both the captured output and an error are returned, since gh
// signals domain states (failing checks) through its exit code while still
// printing the payload. Tests substitute a fixture-backed implementation.
type runFunc func(ctx context.Context, args ...string) ([]byte, error)

// Client implements RepoHost on top of the gh CLI. gh resolves the target
// repository from the working directory's git remote and handles auth itself.
type Client struct {
	timeout time.Duration
	logger  *logging.Logger
	run     runFunc
}

var _ RepoHost = (*Client)(nil)

// NewClient returns a Client with a 30-second per-call timeout.
func NewClient() *Client {
	c := &Client{
		timeout: 30 * time.Second,
		logger:  logging.With("component", "github"),
	}
	c.run = c.runGH
	return c
}

// WithTimeout returns a copy of the client using the given per-call timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	out := *c
	out.timeout = timeout
	out.run = out.runGH
	return &out
}

func (c *Client) runGH(ctx context.Context, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.logger.Debug("running gh", "args", strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, "gh", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return output, fmt.Errorf("gh %s: %w: %s", args[0], err, strings.TrimSpace(string(output)))
	}
	return output, nil
}

func (c *Client) runJSON(ctx context.Context, result interface{}, args ...string) error {
	output, err := c.run(ctx, args...)
	if err != nil {
		return err
	}
	if len(output) == 0 {
		return nil
	}
	if err := json.Unmarshal(output, result); err != nil {
		return fmt.Errorf("parse gh output: %w", err)
	}
	return nil
}

// PRStatus aggregates the check runs for a pull request. Any failed check
// makes the whole PR failing; otherwise any pending check makes it pending.
func (c *Client) PRStatus(ctx context.Context, number int) (*PRStatus, error) {
	output, err := c.run(ctx, "pr", "checks", strconv.Itoa(number), "--json", "name,state,bucket")
	var checks []Check
	if len(output) > 0 && json.Unmarshal(output, &checks) == nil {
		// gh pr checks exits nonzero on failing or pending checks while
		// still printing the JSON payload, so a parsed payload wins.
		err = nil
	}
	if err != nil {
		return nil, err
	}

	status := StatusUnknown
	if len(checks) > 0 {
		status = StatusPassing
		for _, ch := range checks {
			switch ch.Bucket {
			case "fail":
				status = StatusFailing
			case "pending":
				if status != StatusFailing {
					status = StatusPending
				}
			}
		}
	}
	return &PRStatus{Status: status, Checks: checks}, nil
}

// reviewThreadsQuery pulls resolution state alongside the comments, which
// the REST comment listing does not expose.
const reviewThreadsQuery = `
query($owner: String!, $repo: String!, $number: Int!) {
  repository(owner: $owner, name: $repo) {
    pullRequest(number: $number) {
      reviewThreads(first: 100) {
        nodes {
          id
          isResolved
          comments(first: 50) {
            nodes {
              id
              body
              path
              line
              startLine
              createdAt
              updatedAt
              url
              author { login }
            }
          }
        }
      }
    }
  }
}`

type threadsResponse struct {
	Data struct {
		Repository struct {
			PullRequest struct {
				ReviewThreads struct {
					Nodes []struct {
						ID         string `json:"id"`
						IsResolved bool   `json:"isResolved"`
						Comments   struct {
							Nodes []threadComment `json:"nodes"`
						} `json:"comments"`
					} `json:"nodes"`
				} `json:"reviewThreads"`
			} `json:"pullRequest"`
		} `json:"repository"`
	} `json:"data"`
}

type threadComment struct {
	ID        string    `json:"id"`
	Body      string    `json:"body"`
	Path      string    `json:"path"`
	Line      int       `json:"line"`
	StartLine int       `json:"startLine"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	URL       string    `json:"url"`
	Author    struct {
		Login string `json:"login"`
	} `json:"author"`
}

func (c *Client) fetchThreads(ctx context.Context, number int) (*threadsResponse, error) {
	var resp threadsResponse
	err := c.runJSON(ctx, &resp,
		"api", "graphql",
		"-F", "owner={owner}", "-F", "repo={repo}", "-F", fmt.Sprintf("number=%d", number),
		"-f", "query="+reviewThreadsQuery)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// UnresolvedThreads returns the open review threads, each reduced to its
// first comment.
func (c *Client) UnresolvedThreads(ctx context.Context, number int) ([]Thread, error) {
	resp, err := c.fetchThreads(ctx, number)
	if err != nil {
		return nil, err
	}
	var threads []Thread
	for _, node := range resp.Data.Repository.PullRequest.ReviewThreads.Nodes {
		if node.IsResolved || len(node.Comments.Nodes) == 0 {
			continue
		}
		first := node.Comments.Nodes[0]
		threads = append(threads, Thread{
			ID:     node.ID,
			Author: first.Author.Login,
			Body:   first.Body,
			Path:   first.Path,
			Line:   first.Line,
		})
	}
	return threads, nil
}

// Comments returns every review comment on the pull request with thread
// resolution carried onto each comment.
func (c *Client) Comments(ctx context.Context, number int) ([]*Comment, error) {
	resp, err := c.fetchThreads(ctx, number)
	if err != nil {
		return nil, err
	}
	var comments []*Comment
	for _, node := range resp.Data.Repository.PullRequest.ReviewThreads.Nodes {
		for _, tc := range node.Comments.Nodes {
			comments = append(comments, &Comment{
				ID:        tc.ID,
				Path:      tc.Path,
				Line:      tc.Line,
				StartLine: tc.StartLine,
				Body:      tc.Body,
				Author:    tc.Author.Login,
				CreatedAt: tc.CreatedAt,
				UpdatedAt: tc.UpdatedAt,
				HTMLURL:   tc.URL,
				Resolved:  node.IsResolved,
			})
		}
	}
	return comments, nil
}

// Merge squash-merges the pull request and deletes its branch.
func (c *Client) Merge(ctx context.Context, number int) error {
	_, err := c.run(ctx, "pr", "merge", strconv.Itoa(number), "--squash", "--delete-branch")
	return err
}
