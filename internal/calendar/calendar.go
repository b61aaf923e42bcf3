// Package calendar classifies calendar dates as normal days, public
// holidays or compensation workdays, from an offline dataset, a remote
// holiday table, or a hybrid of both with caching.
package calendar

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/patrickmn/go-cache"

	"mute-schedule-backend/config"
)

// Method selects how a Resolver answers classification queries. It is
// fixed once at construction; there is no runtime capability probing.
type Method string

const (
	MethodOffline Method = "offline"
	MethodOnline  Method = "online"
	MethodHybrid  Method = "hybrid"
)

// Classification is the result of classifying one calendar date. The two
// flags come from raw source data and are not mutually exclusive there;
// precedence between them is the schedule resolver's concern.
type Classification struct {
	IsHoliday             bool   `json:"is_holiday"`
	IsCompensationWorkday bool   `json:"is_compensation_workday"`
	Label                 string `json:"label,omitempty"`
}

const (
	yearTableTTL = 12 * time.Hour
	dayResultTTL = 24 * time.Hour
)

// Resolver answers date classification queries. All caches are owned by
// the instance; their lifecycle is the resolver's lifecycle.
type Resolver struct {
	method  Method
	offline *offlineDataset
	client  *http.Client
	yearURL string
	dayURL  string
	timeout time.Duration

	years *cache.Cache // "2026" → yearTable
	days  *cache.Cache // "2026-08-29" → Classification (hybrid mode only)
}

// NewResolver builds a resolver from configuration. A missing or broken
// offline dataset is logged and degrades to "every day is normal" rather
// than failing startup.
func NewResolver(cfg *config.CalendarConfig) *Resolver {
	var transport http.RoundTripper = &http.Transport{}
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			log.Printf("Warning: Invalid proxy URL %q: %v. Calendar lookups will not use a proxy.", cfg.HTTPProxy, err)
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	offline, err := loadOfflineDataset(cfg.DatasetPath)
	if err != nil {
		log.Printf("Warning: offline holiday dataset unavailable (%v); offline lookups will report normal days", err)
		offline = emptyOfflineDataset()
	}

	return &Resolver{
		method:  Method(cfg.Method),
		offline: offline,
		client: &http.Client{
			Transport: transport,
			Timeout:   time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		yearURL: cfg.YearURL,
		dayURL:  cfg.DayURL,
		timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		years:   cache.New(yearTableTTL, time.Hour),
		days:    cache.New(dayResultTTL, time.Hour),
	}
}

// Method reports the configured classification method.
func (r *Resolver) Method() Method {
	return r.method
}

// Classify classifies a date using the configured method.
func (r *Resolver) Classify(ctx context.Context, date time.Time) (Classification, error) {
	return r.ClassifyWith(ctx, date, r.method)
}

// ClassifyWith classifies a date using an explicit method; the
// administrative calendar query endpoint uses it to inspect any mode.
func (r *Resolver) ClassifyWith(ctx context.Context, date time.Time, method Method) (Classification, error) {
	switch method {
	case MethodOffline:
		// Offline lookups never fail; absence means a normal day.
		return r.offline.classify(date), nil
	case MethodOnline:
		return r.classifyOnline(ctx, date)
	case MethodHybrid:
		return r.classifyHybrid(ctx, date), nil
	}
	// Unknown method behaves like offline rather than aborting a tick.
	log.Printf("Warning: unknown calendar method %q, classifying offline", method)
	return r.offline.classify(date), nil
}

func (r *Resolver) classifyHybrid(ctx context.Context, date time.Time) Classification {
	key := dayKey(date)
	if hit, found := r.days.Get(key); found {
		return hit.(Classification)
	}

	cls, err := r.classifyOnline(ctx, date)
	if err != nil {
		// Fall back to the offline dataset and do not cache the failure,
		// so the next query retries the remote source.
		log.Printf("online classification for %s failed (%v), falling back to offline dataset", key, err)
		return r.offline.classify(date)
	}

	r.days.Set(key, cls, dayResultTTL)
	return cls
}

func (r *Resolver) classifyOnline(ctx context.Context, date time.Time) (Classification, error) {
	if r.dayURL != "" {
		return r.fetchDay(ctx, date)
	}

	var lastErr error
	for _, year := range probeYears(date) {
		table, err := r.yearTable(ctx, year)
		if err != nil {
			lastErr = err
			continue
		}
		if rec, ok := table[dayKey(date)]; ok {
			return rec.classification(), nil
		}
	}
	if lastErr != nil {
		return Classification{}, lastErr
	}
	// Present in no table: an ordinary working or rest day.
	return Classification{}, nil
}

// probeYears returns the years whose published tables may carry the date.
// Compensation-workday records around the new year can live in either the
// closing or the opening year's table.
func probeYears(date time.Time) []int {
	year := date.Year()
	switch {
	case date.Month() == time.December && date.Day() == 31:
		return []int{year, year + 1}
	case date.Month() == time.January && date.Day() == 1:
		return []int{year, year - 1}
	}
	return []int{year}
}

func dayKey(date time.Time) string {
	return date.Format("2006-01-02")
}
