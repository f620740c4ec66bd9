package cache

import (
	"context"
	"time"

	"github.com/reybrally/fulfillment-service/internal/domain/analytics"
)

// ReportCache keeps analytics reports in process memory.
type ReportCache struct {
	c *TTLCache[analytics.Report]
}

func NewReportCache(now func() time.Time) *ReportCache {
	return &ReportCache{c: NewTTLCache[analytics.Report](now)}
}

func (r *ReportCache) Get(_ context.Context, key string) (analytics.Report, bool, error) {
	v, ok := r.c.Get(key)
	return v, ok, nil
}

func (r *ReportCache) Set(_ context.Context, key string, v analytics.Report, ttl time.Duration) error {
	r.c.Set(key, v, ttl)
	return nil
}

func (r *ReportCache) Clear(_ context.Context, prefix string) error {
	r.c.DeletePrefix(prefix)
	return nil
}

func (r *ReportCache) Len() int { return r.c.Len() }

// CodeStore keeps one-time codes in process memory, keyed by subject (e-mail).
type CodeStore struct {
	c *TTLCache[string]
}

func NewCodeStore(now func() time.Time) *CodeStore {
	return &CodeStore{c: NewTTLCache[string](now)}
}

func (s *CodeStore) Save(_ context.Context, subject, code string, ttl time.Duration) error {
	s.c.Set(subject, code, ttl)
	return nil
}

// Consume reports whether code matches the stored one. A match deletes the
// code; a mismatch leaves it in place until it expires.
func (s *CodeStore) Consume(_ context.Context, subject, code string) (bool, error) {
	stored, ok := s.c.Get(subject)
	if !ok || stored != code {
		return false, nil
	}
	_, ok = s.c.Take(subject)
	return ok, nil
}
