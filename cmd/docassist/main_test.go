package main

import (
	"testing"

	"github.com/haasonsaas/docassist/internal/config"
)

func TestBuildRootCmd_HasServeSubcommand(t *testing.T) {
	root := buildRootCmd()
	found := false
	for _, c := range root.Commands() {
		if c.Name() == "serve" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a serve subcommand")
	}
}

func TestBuildGitTools_DisabledByDefault(t *testing.T) {
	gt, err := buildGitTools(config.GitConfig{})
	if err != nil {
		t.Fatalf("buildGitTools() error = %v", err)
	}
	if gt != nil {
		t.Fatalf("expected nil GitTools when EnableGitHubTools is false")
	}
}
