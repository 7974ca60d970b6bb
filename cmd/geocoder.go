package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/trilemmafoundation/canada-tech/internal/config"
	"github.com/trilemmafoundation/canada-tech/internal/resilience"
	"github.com/trilemmafoundation/canada-tech/internal/store"
	"github.com/trilemmafoundation/canada-tech/pkg/geocode"
)

// initGeocoder builds the configured geocoding client behind an in-run cache
// and, when geocode.cache_path is set, a persistent SQLite cache. The
// returned func closes the persistent cache.
func initGeocoder(ctx context.Context) (*geocode.CachedClient, func()) {
	gc := cfg.Geocode
	client := geocode.NewClient(
		geocode.WithNominatimURL(gc.NominatimURL),
		geocode.WithUserAgent(gc.UserAgent),
		geocode.WithGoogleAPIKey(gc.GoogleAPIKey),
		geocode.WithRateLimit(gc.RateLimitRPS),
		geocode.WithTimeout(gc.Timeout()),
		geocode.WithRetry(resilience.FromMillis(gc.MaxAttempts, gc.InitialBackoffMs, gc.MaxBackoffMs)),
	)

	closeFn := func() {}
	var persistent geocode.Store
	if gc.CachePath != "" {
		st, err := openGeocodeCache(ctx, gc.CachePath, gc)
		if err != nil {
			zap.L().Warn("geocode cache unavailable, continuing without it", zap.String("path", gc.CachePath), zap.Error(err))
		} else {
			persistent = st
			closeFn = func() { _ = st.Close() }
		}
	}

	return geocode.NewCachedClient(client, persistent), closeFn
}

func openGeocodeCache(ctx context.Context, path string, gc config.GeocodeConfig) (*store.SQLiteStore, error) {
	st, err := store.NewSQLite(path, gc.CacheTTL())
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	if n, err := st.Prune(ctx); err != nil {
		zap.L().Warn("geocode cache prune failed", zap.Error(err))
	} else if n > 0 {
		zap.L().Info("geocode cache pruned", zap.Int64("removed", n))
	}
	return st, nil
}

func logCacheStats(c *geocode.CachedClient) {
	hits, misses := c.Stats()
	zap.L().Info("geocode cache", zap.Int("hits", hits), zap.Int("misses", misses))
}
