package cache

import (
	"testing"
	"time"

	"github.com/haasonsaas/docassist/pkg/models"
)

func TestResponseCache_PutGet(t *testing.T) {
	c := New(Options{MaxEntries: 10, TTL: time.Minute})
	resp := models.LLMResponse{Content: "hello", Model: "gpt-4o"}

	if _, ok := c.Get("fp-1"); ok {
		t.Fatalf("expected miss before put")
	}

	c.Put("fp-1", resp, 0)

	got, ok := c.Get("fp-1")
	if !ok {
		t.Fatalf("expected hit after put")
	}
	if got.Content != "hello" {
		t.Errorf("Content = %q, want %q", got.Content, "hello")
	}
}

func TestResponseCache_Expiry(t *testing.T) {
	c := New(Options{MaxEntries: 10, TTL: time.Minute})
	base := time.Unix(0, 0)
	c.PutAt("fp-1", models.LLMResponse{Content: "x"}, 0, base)

	if _, ok := c.GetAt("fp-1", base.Add(30*time.Second)); !ok {
		t.Fatalf("expected hit before TTL elapses")
	}
	if _, ok := c.GetAt("fp-1", base.Add(61*time.Second)); ok {
		t.Fatalf("expected miss after TTL elapses")
	}
}

func TestResponseCache_LRUEviction(t *testing.T) {
	c := New(Options{MaxEntries: 2})
	base := time.Unix(0, 0)

	c.PutAt("a", models.LLMResponse{Content: "a"}, 0, base)
	c.PutAt("b", models.LLMResponse{Content: "b"}, 0, base)
	// touch "a" so "b" becomes the least-recently-used entry
	c.GetAt("a", base)
	c.PutAt("c", models.LLMResponse{Content: "c"}, 0, base)

	if _, ok := c.Get("b"); ok {
		t.Errorf("expected b to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Errorf("expected a to survive eviction")
	}
	if _, ok := c.Get("c"); !ok {
		t.Errorf("expected c to be present")
	}
	if c.Size() != 2 {
		t.Errorf("Size() = %d, want 2", c.Size())
	}
}

func TestResponseCache_PutDoesNotClobberFresherEntry(t *testing.T) {
	c := New(Options{MaxEntries: 10})
	base := time.Unix(0, 0)

	c.PutAt("fp", models.LLMResponse{Content: "fresh"}, 2*time.Minute, base)
	c.PutAt("fp", models.LLMResponse{Content: "stale"}, 1*time.Second, base)

	got, ok := c.Get("fp")
	if !ok {
		t.Fatalf("expected entry to be present")
	}
	if got.Content != "fresh" {
		t.Errorf("Content = %q, want %q (fresher write should win)", got.Content, "fresh")
	}
}

func TestResponseCache_Clear(t *testing.T) {
	c := New(Options{MaxEntries: 10})
	c.Put("fp", models.LLMResponse{Content: "x"}, 0)
	c.Clear()
	if c.Size() != 0 {
		t.Errorf("Size() after Clear = %d, want 0", c.Size())
	}
}

func TestFingerprint_StableAcrossEquivalentInputs(t *testing.T) {
	in1 := FingerprintInput{
		ProviderID: "openai",
		Model:      "gpt-4o",
		Messages: []models.Message{
			{Role: models.RoleUser, Content: "  hello   world  "},
		},
		Options: map[string]any{"temperature": 0.2, "top_p": 1.0},
	}
	in2 := FingerprintInput{
		ProviderID: "openai",
		Model:      "gpt-4o",
		Messages: []models.Message{
			{Role: models.RoleUser, Content: "hello world"},
		},
		Options: map[string]any{"top_p": 1.0, "temperature": 0.2},
	}

	if Fingerprint(in1) != Fingerprint(in2) {
		t.Errorf("expected equivalent inputs to produce the same fingerprint")
	}
}

func TestFingerprint_DiffersOnContent(t *testing.T) {
	base := FingerprintInput{ProviderID: "openai", Model: "gpt-4o"}
	a := base
	a.Messages = []models.Message{{Role: models.RoleUser, Content: "one"}}
	b := base
	b.Messages = []models.Message{{Role: models.RoleUser, Content: "two"}}

	if Fingerprint(a) == Fingerprint(b) {
		t.Errorf("expected differing content to produce different fingerprints")
	}
}
