package whitelist

import (
	"context"
	"errors"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/crystaldolphin/mcpchat/internal/schema"
)

type countingSource struct {
	domains []string
	err     error
	calls   int
}

func (s *countingSource) Domains(context.Context) ([]string, error) {
	s.calls++
	return s.domains, s.err
}

// ─── Host extraction ─────────────────────────────────────────────────────────

func TestExtractHostnames(t *testing.T) {
	got := ExtractHostnames("see https://WWW.Example.com/a and http://api.example.com/x), then https://example.com/b")
	want := []string{"example.com", "api.example.com"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExtractHostnames_NonString(t *testing.T) {
	got := ExtractHostnames(map[string]any{"url": "https://docs.go.dev/ref"})
	if !reflect.DeepEqual(got, []string{"docs.go.dev"}) {
		t.Errorf("got %v", got)
	}
	if ExtractHostnames(nil) != nil {
		t.Error("nil payload should yield no hosts")
	}
}

func TestCovers(t *testing.T) {
	domains := []string{"example.com"}
	cases := map[string]bool{
		"example.com":      true,
		"api.example.com":  true,
		"badexample.com":   false,
		"example.com.evil": false,
		"":                 false,
	}
	for host, want := range cases {
		if got := Covers(host, domains); got != want {
			t.Errorf("Covers(%q) = %v, want %v", host, got, want)
		}
	}
}

func TestParseStatic(t *testing.T) {
	got := ParseStatic(" Example.com, www.go.dev,,example.com ")
	want := StaticSource{"example.com", "go.dev"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

// ─── Policy ──────────────────────────────────────────────────────────────────

func TestValidate_NoURLsSkipsSource(t *testing.T) {
	src := &countingSource{}
	p := NewPolicy(src)

	v, err := p.Validate(context.Background(), "hello there", "no links")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !v.OK || len(v.CheckedHostnames) != 0 || len(v.BlockedHostnames) != 0 {
		t.Errorf("unexpected validation: %+v", v)
	}
	if src.calls != 0 {
		t.Errorf("source consulted %d times, want 0", src.calls)
	}
}

func TestValidate_Blocked(t *testing.T) {
	p := NewPolicy(StaticSource{"example.com"})

	v, err := p.Validate(context.Background(), "read https://api.example.com and https://blocked.test/x")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if v.OK {
		t.Fatal("expected violation")
	}
	if !reflect.DeepEqual(v.BlockedHostnames, []string{"blocked.test"}) {
		t.Errorf("blocked = %v", v.BlockedHostnames)
	}
	if !reflect.DeepEqual(v.CheckedHostnames, []string{"api.example.com", "blocked.test"}) {
		t.Errorf("checked = %v", v.CheckedHostnames)
	}
}

func TestAllowedDomains_EmptyIsWhitelistError(t *testing.T) {
	p := NewPolicy(&countingSource{})
	_, err := p.AllowedDomains(context.Background())
	if !errors.Is(err, schema.ErrWhitelist) {
		t.Fatalf("want whitelist error, got %v", err)
	}
}

func TestValidate_EmptyAllowListFailsAndIsRetried(t *testing.T) {
	src := &countingSource{}
	p := NewPolicy(src)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := p.Validate(ctx, "see https://example.com")
		if !errors.Is(err, ErrEmptyAllowList) {
			t.Fatalf("Validate: want ErrEmptyAllowList, got %v", err)
		}
	}
	if src.calls != 2 {
		t.Errorf("calls = %d, empty list must not be cached", src.calls)
	}
}

func TestAllowedDomains_SourceErrorWrapped(t *testing.T) {
	boom := errors.New("mongo down")
	p := NewPolicy(&countingSource{err: boom})
	_, err := p.AllowedDomains(context.Background())
	if !errors.Is(err, boom) || schema.KindOf(err) != schema.KindWhitelist {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAllowedDomains_CacheTTL(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	src := &countingSource{domains: []string{"WWW.Example.com"}}
	p := NewPolicy(src, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := p.AllowedDomains(ctx)
		if err != nil {
			t.Fatalf("AllowedDomains: %v", err)
		}
		if !reflect.DeepEqual(got, []string{"example.com"}) {
			t.Fatalf("domains = %v", got)
		}
	}
	if src.calls != 1 {
		t.Errorf("calls = %d, want 1 within TTL", src.calls)
	}

	now = now.Add(DefaultCacheTTL)
	if _, err := p.AllowedDomains(ctx); err != nil {
		t.Fatal(err)
	}
	if src.calls != 2 {
		t.Errorf("calls = %d, want 2 after TTL", src.calls)
	}

	p.Clear()
	if _, err := p.AllowedDomains(ctx); err != nil {
		t.Fatal(err)
	}
	if src.calls != 3 {
		t.Errorf("calls = %d, want 3 after Clear", src.calls)
	}
}

// ─── Mongo ───────────────────────────────────────────────────────────────────

func TestNewMongoSource_DoesNotDial(t *testing.T) {
	// Nothing listens on port 1; construction must still succeed.
	src, err := NewMongoSource("mongodb://127.0.0.1:1", "mcpchat", "Whitelisted")
	if err != nil {
		t.Fatalf("NewMongoSource: %v", err)
	}
	if err := src.Close(context.Background()); err != nil {
		t.Errorf("Close before dial: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	p := NewPolicy(src)
	if _, err := p.AllowedDomains(ctx); schema.KindOf(err) != schema.KindWhitelist {
		t.Fatalf("want whitelist error from unreachable mongo, got %v", err)
	}
}

func TestNewMongoSource_InvalidURI(t *testing.T) {
	if _, err := NewMongoSource("postgres://nope", "mcpchat", "Whitelisted"); err == nil {
		t.Fatal("want error for non-mongodb uri")
	}
}

func TestMongoSource_Integration(t *testing.T) {
	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("MONGODB_TEST_URI not set, skipping MongoDB integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	src, err := NewMongoSource(uri, "mcpchat_test", "Whitelisted")
	if err != nil {
		t.Fatalf("NewMongoSource: %v", err)
	}
	defer src.Close(ctx)

	client, err := src.connect(ctx)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	coll := client.Database("mcpchat_test").Collection("Whitelisted")
	_ = coll.Drop(ctx)
	if _, err := coll.InsertMany(ctx, []any{
		map[string]any{"url": "www.example.com/path"},
		map[string]any{"url": "https://Docs.Go.dev"},
		map[string]any{"name": "no url"},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	defer coll.Drop(ctx)

	got, err := src.Domains(ctx)
	if err != nil {
		t.Fatalf("Domains: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"example.com", "docs.go.dev"}) {
		t.Errorf("domains = %v", got)
	}
}
