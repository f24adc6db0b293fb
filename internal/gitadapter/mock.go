package gitadapter

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/haasonsaas/docassist/pkg/models"
)

// Mock is a deterministic Client for tests: it never performs network I/O
// and hands out incrementing issue/PR numbers, per spec.md §8 scenario 4
// ("adapter stub returns {service, owner, repo, number:42, url}").
type Mock struct {
	service   models.GitService
	nextIssue int64
	nextPR    int64
	Perms     Permissions
}

// NewMock builds a Mock bound to service, numbering issues and pull
// requests starting at startNumber.
func NewMock(service models.GitService, startNumber int) *Mock {
	return &Mock{
		service:   service,
		nextIssue: int64(startNumber) - 1,
		nextPR:    int64(startNumber) - 1,
		Perms:     Permissions{Service: service, Read: true, Write: true},
	}
}

func (m *Mock) CreateIssue(ctx context.Context, req IssueRequest) (Result, error) {
	n := atomic.AddInt64(&m.nextIssue, 1)
	return Result{
		Service: m.service, Owner: req.Owner, Repo: req.Repo, Number: int(n),
		URL: fmt.Sprintf("https://mock.invalid/%s/%s/issues/%d", req.Owner, req.Repo, n),
	}, nil
}

func (m *Mock) CreatePullRequest(ctx context.Context, req PullRequestRequest) (Result, error) {
	n := atomic.AddInt64(&m.nextPR, 1)
	return Result{
		Service: m.service, Owner: req.Owner, Repo: req.Repo, Number: int(n),
		URL: fmt.Sprintf("https://mock.invalid/%s/%s/pull/%d", req.Owner, req.Repo, n),
	}, nil
}

func (m *Mock) CheckPermissions(ctx context.Context, req PermissionsRequest) (Permissions, error) {
	p := m.Perms
	p.Owner = req.Owner
	p.Repo = req.Repo
	return p, nil
}
