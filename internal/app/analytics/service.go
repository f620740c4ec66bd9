package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/reybrally/fulfillment-service/internal/app/orders"
	domain "github.com/reybrally/fulfillment-service/internal/domain/analytics"
	"github.com/reybrally/fulfillment-service/internal/logging"
	"github.com/reybrally/fulfillment-service/internal/metrics"
)

const DefaultTTL = 5 * time.Minute

var (
	ErrTabRequired = errors.New("analytics tab is required")
	ErrInvalidTab  = errors.New("analytics tab may only contain letters, digits and underscores")
)

// checkTab keeps "-" out of tab ids: keys are "<tab>-...", so a dashed id
// would share its key prefix with another tab.
func checkTab(tab string) error {
	if tab == "" {
		return ErrTabRequired
	}
	for _, r := range tab {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return fmt.Errorf("%w: %q", ErrInvalidTab, tab)
		}
	}
	return nil
}

// Cache stores reports by key. Implementations expire entries lazily: Get on
// an entry older than its TTL deletes it and reports a miss.
type Cache interface {
	Get(ctx context.Context, key string) (domain.Report, bool, error)
	Set(ctx context.Context, key string, r domain.Report, ttl time.Duration) error
	// Clear removes every key starting with prefix; "" removes everything.
	Clear(ctx context.Context, prefix string) error
}

type Service struct {
	cache  Cache
	source orders.UserBagLister
	ttl    time.Duration
	now    func() time.Time
}

type Option func(*Service)

func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(cache Cache, source orders.UserBagLister, opts ...Option) *Service {
	s := &Service{cache: cache, source: source, ttl: DefaultTTL, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// GetCachedData returns the cached report for tab and f. Backend failures count as a miss.
func (s *Service) GetCachedData(ctx context.Context, tab string, f *domain.DateFilter) (domain.Report, bool) {
	key := domain.CacheKey(tab, f)
	r, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		logging.LogError("analytics cache read failed", err, logrus.Fields{"key": key})
		return domain.Report{}, false
	}
	if ok {
		metrics.AnalyticsCacheHitsTotal.Inc()
	} else {
		metrics.AnalyticsCacheMissesTotal.Inc()
	}
	return r, ok
}

func (s *Service) SetCachedData(ctx context.Context, tab string, f *domain.DateFilter, r domain.Report) error {
	return s.cache.Set(ctx, domain.CacheKey(tab, f), r, s.ttl)
}

// ClearCache drops every cached range of tab, or the whole cache when tab is empty.
func (s *Service) ClearCache(ctx context.Context, tab string) error {
	prefix := ""
	if tab != "" {
		if err := checkTab(tab); err != nil {
			return err
		}
		prefix = tab + "-"
	}
	if err := s.cache.Clear(ctx, prefix); err != nil {
		return err
	}
	logging.LogInfo("analytics cache cleared", logrus.Fields{"tab": tab})
	return nil
}

// Report serves tab from cache, computing and storing it on a miss.
func (s *Service) Report(ctx context.Context, tab string, f *domain.DateFilter) (domain.Report, error) {
	if err := checkTab(tab); err != nil {
		return domain.Report{}, err
	}
	if r, ok := s.GetCachedData(ctx, tab, f); ok {
		return r, nil
	}

	var lf orders.ListFilter
	if f != nil {
		// Bags created after the range cannot hold payments inside it.
		end := f.End
		lf.CreatedTo = &end
	}
	bags, err := s.source.ListUserBags(ctx, lf)
	if err != nil {
		return domain.Report{}, err
	}

	r := domain.BuildReport(tab, f, bags, s.now().UTC())
	if err := s.SetCachedData(ctx, tab, f, r); err != nil {
		logging.LogError("analytics cache write failed", err, logrus.Fields{"tab": tab})
	}
	return r, nil
}
