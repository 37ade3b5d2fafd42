package whitelist

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/crystaldolphin/mcpchat/internal/schema"
)

// DefaultCacheTTL is how long a loaded allow-list is reused.
const DefaultCacheTTL = 60 * time.Second

// ErrEmptyAllowList is returned when the source yields no domains.
var ErrEmptyAllowList = schema.NewError(schema.KindWhitelist,
	"whitelist has no domains: nothing loaded from the configured source", nil)

// Snapshot is one cached load of the allow-list.
type Snapshot struct {
	Domains   []string
	FetchedAt time.Time
}

// Validation is the outcome of checking payloads against the allow-list.
type Validation struct {
	OK               bool     `json:"ok"`
	CheckedHostnames []string `json:"checkedHostnames"`
	BlockedHostnames []string `json:"blockedHostnames"`
	AllowedDomains   []string `json:"allowedDomains"`
}

// Option configures a Policy.
type Option func(*Policy)

// WithTTL overrides DefaultCacheTTL.
func WithTTL(ttl time.Duration) Option {
	return func(p *Policy) { p.ttl = ttl }
}

// WithClock injects the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Policy) { p.now = now }
}

// Policy enforces an allow-list of domains with a short-lived cache.
// It is safe for concurrent use.
type Policy struct {
	source Source
	ttl    time.Duration
	now    func() time.Time
	cache  atomic.Pointer[Snapshot]
}

func NewPolicy(source Source, opts ...Option) *Policy {
	p := &Policy{
		source: source,
		ttl:    DefaultCacheTTL,
		now:    time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// AllowedDomains returns the cached allow-list, reloading it from the source
// once the cache is older than the TTL. An empty list is ErrEmptyAllowList and
// is never cached.
func (p *Policy) AllowedDomains(ctx context.Context) ([]string, error) {
	if snap := p.cache.Load(); snap != nil && p.now().Sub(snap.FetchedAt) < p.ttl {
		return snap.Domains, nil
	}

	raw, err := p.source.Domains(ctx)
	if err != nil {
		return nil, schema.NewError(schema.KindWhitelist, "load whitelist", err)
	}
	domains := make([]string, 0, len(raw))
	for _, d := range raw {
		domains = append(domains, NormalizeHost(d))
	}
	domains = dedupe(domains)
	if len(domains) == 0 {
		return nil, ErrEmptyAllowList
	}

	p.cache.Store(&Snapshot{Domains: domains, FetchedAt: p.now()})
	slog.Debug("Whitelist loaded", "domains", len(domains))
	return domains, nil
}

// Clear drops the cached allow-list.
func (p *Policy) Clear() { p.cache.Store(nil) }

// Validate extracts every URL hostname from payloads and checks it against
// the allow-list. Payloads without URLs never touch the source.
func (p *Policy) Validate(ctx context.Context, payloads ...any) (Validation, error) {
	var hosts []string
	for _, payload := range payloads {
		hosts = append(hosts, ExtractHostnames(payload)...)
	}
	hosts = dedupe(hosts)
	if len(hosts) == 0 {
		return Validation{
			OK:               true,
			CheckedHostnames: []string{},
			BlockedHostnames: []string{},
			AllowedDomains:   []string{},
		}, nil
	}

	domains, err := p.AllowedDomains(ctx)
	if err != nil {
		return Validation{}, err
	}

	blocked := []string{}
	for _, h := range hosts {
		if !Covers(h, domains) {
			blocked = append(blocked, h)
		}
	}
	if len(blocked) > 0 {
		slog.Warn("Whitelist blocked hostnames", "hosts", blocked)
	}
	return Validation{
		OK:               len(blocked) == 0,
		CheckedHostnames: hosts,
		BlockedHostnames: blocked,
		AllowedDomains:   domains,
	}, nil
}

// Describe returns a short human description of the source, for the status
// command.
func Describe(s Source) string {
	switch v := s.(type) {
	case StaticSource:
		return fmt.Sprintf("static (%d domains)", len(v))
	case *MongoSource:
		return fmt.Sprintf("mongodb %s.%s", v.database, v.collection)
	default:
		return "custom"
	}
}
