// Command crowcache runs a synthetic workload against a cache built from a YAML config and
// serves its metrics on /metrics.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	crowcache "github.com/Borislavv/go-crow-cache"
	"github.com/Borislavv/go-crow-cache/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	var (
		cfgPath  = flag.String("config", "", "path to the YAML config, defaults are used when empty")
		addr     = flag.String("metrics", ":2112", "metrics listen address, empty disables it")
		keys     = flag.Int("keys", 5000, "number of distinct keys in the workload")
		duration = flag.Duration("duration", 30*time.Second, "how long to run the workload")
	)
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().Timestamp().Str("service", "crowcache").Logger()

	if err := run(*cfgPath, *addr, *keys, *duration, logger); err != nil {
		logger.Fatal().Err(err).Msg("crowcache failed")
	}
}

func run(cfgPath, addr string, keys int, duration time.Duration, logger zerolog.Logger) error {
	cfg := config.Default()
	if cfgPath != "" {
		loaded, err := config.LoadConfig(cfgPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	backend, closeBackend, err := crowcache.OpenBackend[string](cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = closeBackend() }()

	cache, err := crowcache.New[string](ctx, cfg, backend, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := cache.Close(); cerr != nil {
			logger.Error().Err(cerr).Msg("close cache")
		}
	}()
	cache.OnEmpty(func() { logger.Info().Msg("cache is empty") })

	if addr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(cache.Collector())
		srv := &http.Server{Addr: addr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
		go func() {
			if serr := srv.ListenAndServe(); serr != nil && serr != http.ErrServerClosed {
				logger.Error().Err(serr).Msg("metrics server")
			}
		}()
		defer func() { _ = srv.Shutdown(context.Background()) }()
	}

	workload(ctx, cache, keys)

	m := cache.Metrics()
	logger.Info().
		Int("active", cache.ActiveCount()).
		Int("total", cache.PreviousCount()).
		Int64("hits", m.Hits).
		Int64("deep_hits", m.DeepHits).
		Int64("misses", m.Misses).
		Int64("promotions", m.Promotions).
		Int64("demotions", m.Demotions).
		Msg("workload finished")
	return nil
}

// workload reads keys with a skewed distribution so that a small hot set emerges,
// adding every missing key on the way.
func workload(ctx context.Context, cache *crowcache.Cache[string], keys int) {
	if keys < 2 {
		keys = 2
	}
	zipf := rand.NewZipf(rand.New(rand.NewPCG(1, 2)), 1.2, 1, uint64(keys-1))
	ticker := time.NewTicker(100 * time.Microsecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			key := fmt.Sprintf("key-%d", zipf.Uint64())
			if !cache.LookUp(ctx, key) {
				cache.Add(ctx, key, "value of "+key)
			}
		}
	}
}
