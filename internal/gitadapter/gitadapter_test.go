package gitadapter

import (
	"testing"

	"github.com/haasonsaas/docassist/pkg/models"
)

func TestRegistry_Client_ReturnsOnlyConfiguredBackends(t *testing.T) {
	r := NewRegistry(map[models.GitService]Client{
		models.GitServiceGitHub: NewMock(models.GitServiceGitHub, 1),
	})

	if !r.Available(models.GitServiceGitHub) {
		t.Errorf("expected github to be available")
	}
	if r.Available(models.GitServiceForgejo) {
		t.Errorf("expected forgejo to be unavailable")
	}
	if _, ok := r.Client(models.GitServiceForgejo); ok {
		t.Errorf("expected no forgejo client")
	}
}
