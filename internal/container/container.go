package container

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor" // CBOR format support for huma
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jaevor/go-nanoid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/serroba/rate-gate/internal/audit"
	auditstore "github.com/serroba/rate-gate/internal/audit/store"
	"github.com/serroba/rate-gate/internal/handlers"
	"github.com/serroba/rate-gate/internal/health"
	"github.com/serroba/rate-gate/internal/messaging"
	"github.com/serroba/rate-gate/internal/metrics"
	"github.com/serroba/rate-gate/internal/middleware"
	"github.com/serroba/rate-gate/internal/ratelimit"
	"github.com/serroba/rate-gate/internal/store"
	"go.uber.org/zap"
)

const (
	consumerGroup = "rate-gate-audit"
	eventIDLength = 21
	streamTimeout = 500 * time.Millisecond
)

// StreamClient is the Redis connection used for the audit stream. It is kept
// apart from the counter store's client, whose timeouts are far too short for
// blocking stream reads.
type StreamClient struct {
	*redis.Client
}

// Shutdown closes the connection.
func (c *StreamClient) Shutdown() error {
	return c.Close()
}

// LoggerPackage provides *zap.Logger.
func LoggerPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*zap.Logger, error) {
		opts := do.MustInvoke[*Options](i)

		if opts.LogFormat == "json" {
			return zap.NewProduction()
		}

		return zap.NewDevelopment()
	})
}

// RedisPackage provides the stream client shared by audit publishers and consumers.
func RedisPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*StreamClient, error) {
		opts := do.MustInvoke[*Options](i)

		// Blocking stream reads get their block time added to ReadTimeout by
		// go-redis, so short timeouts only bound publishes and acks.
		return &StreamClient{Client: redis.NewClient(&redis.Options{
			Addr:          opts.RedisAddr,
			DialTimeout:   streamTimeout,
			ReadTimeout:   streamTimeout,
			WriteTimeout:  streamTimeout,
			MaxRetries:    1,
			DialerRetries: 1,
		})}, nil
	})
}

// RateLimitPackage provides the limiter and everything it is built from.
func RateLimitPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (ratelimit.Config, error) {
		opts := do.MustInvoke[*Options](i)
		if err := opts.Validate(); err != nil {
			return ratelimit.Config{}, err
		}

		cfg := opts.RateLimitConfig()

		return cfg, cfg.Validate()
	})

	do.Provide(i, func(i *do.Injector) (*store.RedisCounterStore, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		cfg, err := do.Invoke[ratelimit.Config](i)
		if err != nil {
			return nil, err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*cfg.StoreTimeout)
		defer cancel()

		return store.DialRedisCounterStore(ctx, cfg, logger,
			store.WithRetry(uint(opts.RetryAttempts), time.Duration(opts.RetryBackoffMs)*time.Millisecond),
		), nil
	})

	do.Provide(i, func(i *do.Injector) (*store.BreakerCounterStore, error) {
		opts := do.MustInvoke[*Options](i)

		redisStore, err := do.Invoke[*store.RedisCounterStore](i)
		if err != nil {
			return nil, err
		}

		return store.NewBreakerCounterStore(
			redisStore,
			store.BreakerSettings{
				ConsecutiveFailures: uint32(opts.BreakerFailures),
				OpenTimeout:         time.Duration(opts.BreakerCooldownMs) * time.Millisecond,
				HalfOpenRequests:    1,
			},
			do.MustInvoke[*zap.Logger](i),
		), nil
	})

	do.Provide(i, func(_ *do.Injector) (*prometheus.Registry, error) {
		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		return registry, nil
	})

	do.Provide(i, func(i *do.Injector) (*metrics.Recorder, error) {
		return metrics.NewRecorder(do.MustInvoke[*prometheus.Registry](i))
	})

	do.Provide(i, func(i *do.Injector) (*ratelimit.FixedWindowLimiter, error) {
		counters, err := do.Invoke[*store.BreakerCounterStore](i)
		if err != nil {
			return nil, err
		}

		return ratelimit.NewFixedWindowLimiter(
			counters,
			do.MustInvoke[ratelimit.Config](i),
			do.MustInvoke[*zap.Logger](i),
			ratelimit.WithObserver(do.MustInvoke[*metrics.Recorder](i)),
		)
	})
}

// PublisherGroupPackage provides the audit stream publisher.
func PublisherGroupPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*messaging.PublisherGroup, error) {
		client := do.MustInvoke[*StreamClient](i)
		logger := do.MustInvoke[*zap.Logger](i)

		publisher, err := redisstream.NewPublisher(redisstream.PublisherConfig{
			Client: client.Client,
		}, audit.NewZapLoggerAdapter(logger))
		if err != nil {
			return nil, fmt.Errorf("create stream publisher: %w", err)
		}

		return messaging.NewPublisherGroup(publisher), nil
	})

	do.Provide(i, func(i *do.Injector) (*audit.Publisher, error) {
		group := do.MustInvoke[*messaging.PublisherGroup](i)
		cfg := do.MustInvoke[ratelimit.Config](i)

		newID, err := nanoid.Standard(eventIDLength)
		if err != nil {
			return nil, err
		}

		return audit.NewPublisher(
			messaging.NewPublishFunc[audit.VerdictEvent](group.Publisher(), audit.TopicVerdicts),
			cfg.KeyPrefix,
			newID,
			do.MustInvoke[*zap.Logger](i),
			audit.WithPublishTimeout(cfg.StoreTimeout),
		), nil
	})
}

// HTTPPackage provides the router and the API with its middleware and routes.
func HTTPPackage(i *do.Injector) {
	do.Provide(i, func(_ *do.Injector) (*chi.Mux, error) {
		return chi.NewMux(), nil
	})

	do.Provide(i, func(i *do.Injector) (huma.API, error) {
		opts := do.MustInvoke[*Options](i)
		router := do.MustInvoke[*chi.Mux](i)
		logger := do.MustInvoke[*zap.Logger](i)

		limiter, err := do.Invoke[*ratelimit.FixedWindowLimiter](i)
		if err != nil {
			return nil, err
		}

		cfg := limiter.Config()

		var mwOpts []middleware.RateLimiterOption
		if opts.Audit {
			mwOpts = append(mwOpts, middleware.WithVerdictSink(do.MustInvoke[*audit.Publisher](i)))
		}

		router.Handle("/metrics", do.MustInvoke[*metrics.Recorder](i).Handler())

		api := humachi.New(router, huma.DefaultConfig("Rate Gate", "1.0.0"))
		api.UseMiddleware(middleware.RequestMeta(api, opts.TrustProxy))
		api.UseMiddleware(middleware.RateLimiter(api, limiter, logger, mwOpts...))

		health.RegisterRoutes(api, health.NewHandler(
			do.MustInvoke[*store.RedisCounterStore](i),
			do.MustInvoke[*store.BreakerCounterStore](i),
			cfg.FailurePolicy,
		))
		handlers.RegisterRoutes(api, handlers.NewHelloHandler())

		logger.Info("rate limiting enabled",
			zap.Int64("max_requests", cfg.MaxRequestsPerWindow),
			zap.Int64("window_seconds", cfg.WindowSeconds),
			zap.String("failure_policy", string(cfg.FailurePolicy)),
			zap.Bool("audit", opts.Audit),
		)

		return api, nil
	})
}

// ConsumerGroupPackage provides the audit consumer group.
func ConsumerGroupPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (audit.Store, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		if opts.DatabaseURL == "" {
			logger.Info("no database configured, verdict events are only logged")

			return auditstore.NewNoop(logger), nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		pool, err := pgxpool.New(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}

		pg := auditstore.NewPostgres(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			pool.Close()

			return nil, fmt.Errorf("prepare audit schema: %w", err)
		}

		return pg, nil
	})

	do.Provide(i, func(i *do.Injector) (*messaging.ConsumerGroup, error) {
		client := do.MustInvoke[*StreamClient](i)
		logger := do.MustInvoke[*zap.Logger](i)

		subscriber, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
			Client:        client.Client,
			ConsumerGroup: consumerGroup,
		}, audit.NewZapLoggerAdapter(logger))
		if err != nil {
			return nil, fmt.Errorf("create stream subscriber: %w", err)
		}

		group := messaging.NewConsumerGroup(subscriber, logger)
		group.Add(messaging.NewConsumer(
			subscriber,
			audit.TopicVerdicts,
			audit.NewVerdictHandler(do.MustInvoke[audit.Store](i), logger),
			logger,
		))

		return group, nil
	})
}
