package prayer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Shtya/fitness-reminders/internal/domain"
	"github.com/Shtya/fitness-reminders/internal/store"
)

// Cache is the persistent side of the provider.
type Cache interface {
	GetPrayerTimes(ctx context.Context, d domain.Date, city, country string) (domain.PrayerTimes, error)
	PutPrayerTimes(ctx context.Context, d domain.Date, city, country string, times domain.PrayerTimes) error
}

// Place returns the city and country prayer times are computed for.
type Place func() (city, country string)

// Provider serves prayer times from memory. Lookup never touches the network
// or the database; Refresh fills memory out of band.
type Provider struct {
	log     *zap.Logger
	cache   Cache
	fetcher Fetcher
	place   Place

	mu    sync.RWMutex
	city  string
	days  map[domain.Date]domain.PrayerTimes
	ahead int
}

// NewProvider creates a provider. cache may be nil.
func NewProvider(log *zap.Logger, cache Cache, fetcher Fetcher, place Place) *Provider {
	return &Provider{
		log:     log,
		cache:   cache,
		fetcher: fetcher,
		place:   place,
		days:    make(map[domain.Date]domain.PrayerTimes),
		ahead:   1,
	}
}

// Lookup implements domain.PrayerLookup.
func (p *Provider) Lookup(d domain.Date) (domain.PrayerTimes, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	t, ok := p.days[d]
	return t, ok
}

// Refresh makes today and tomorrow available to Lookup, reading the cache
// first and fetching what is missing. Dates before yesterday are evicted.
// Every date is attempted even when an earlier one fails.
func (p *Provider) Refresh(ctx context.Context, today domain.Date) error {
	city, country := p.place()
	if city == "" || country == "" {
		return errors.New("prayer location not configured")
	}

	p.mu.Lock()
	if key := city + "|" + country; key != p.city {
		// place changed: cached days belong to the old one
		p.days = make(map[domain.Date]domain.PrayerTimes)
		p.city = key
	}
	for d := range p.days {
		if d.Before(today.AddDays(-1)) {
			delete(p.days, d)
		}
	}
	p.mu.Unlock()

	var errs []error
	for i := 0; i <= p.ahead; i++ {
		d := today.AddDays(i)
		if _, ok := p.Lookup(d); ok {
			continue
		}
		times, err := p.load(ctx, d, city, country)
		if err != nil {
			p.log.Warn("prayer times unavailable",
				zap.Error(err),
				zap.String("date", d.String()),
				zap.String("city", city),
			)
			errs = append(errs, fmt.Errorf("%s: %w", d, err))
			continue
		}
		p.mu.Lock()
		p.days[d] = times
		p.mu.Unlock()
	}
	return errors.Join(errs...)
}

func (p *Provider) load(ctx context.Context, d domain.Date, city, country string) (domain.PrayerTimes, error) {
	if p.cache != nil {
		times, err := p.cache.GetPrayerTimes(ctx, d, city, country)
		if err == nil {
			return times, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			p.log.Warn("prayer cache read failed", zap.Error(err), zap.String("date", d.String()))
		}
	}

	times, err := p.fetcher.Fetch(ctx, d, city, country)
	if err != nil {
		return nil, err
	}
	if p.cache != nil {
		if err := p.cache.PutPrayerTimes(ctx, d, city, country, times); err != nil {
			p.log.Warn("prayer cache write failed", zap.Error(err), zap.String("date", d.String()))
		}
	}
	p.log.Info("prayer times fetched", zap.String("date", d.String()), zap.String("city", city))
	return times, nil
}
