package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/seatmap-services/common/cache"
	"github.com/seatmap-services/common/clock"
	"github.com/seatmap-services/common/config"
	"github.com/seatmap-services/common/db"
	apperrors "github.com/seatmap-services/common/errors"
	"github.com/seatmap-services/common/jwt"
	"github.com/seatmap-services/common/kafka"
	"github.com/seatmap-services/common/logger"
	"github.com/seatmap-services/common/memstore"
	"github.com/seatmap-services/common/response"
	holdHandler "github.com/seatmap-services/services/hold-lambda/handler"
	holdRepository "github.com/seatmap-services/services/hold-lambda/repository"
	holdUsecase "github.com/seatmap-services/services/hold-lambda/usecase"
	overrideHandler "github.com/seatmap-services/services/override-lambda/handler"
	overrideRepository "github.com/seatmap-services/services/override-lambda/repository"
	overrideUsecase "github.com/seatmap-services/services/override-lambda/usecase"
	venueHandler "github.com/seatmap-services/services/venue-lambda/handler"
	venueRepository "github.com/seatmap-services/services/venue-lambda/repository"
	venueUsecase "github.com/seatmap-services/services/venue-lambda/usecase"
)

// Handler is the signature every service handler exposes.
type Handler func(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)

// App holds the use cases and handlers shared by the HTTP server and the
// per-service lambda entrypoints.
type App struct {
	VenueH    *venueHandler.VenueHandler
	OverrideH *overrideHandler.OverrideHandler
	HoldH     *holdHandler.HoldHandler
	VenueUC   *venueUsecase.VenueUseCase
	HoldUC    *holdUsecase.HoldUseCase
	JWT       *jwt.Manager

	closers []func() error
}

// stores groups one storage backend behind the interfaces the use cases need.
type stores struct {
	venues    venueUsecase.SeatMapStore
	overrides overrideUsecase.OverrideStore
	live      venueUsecase.OverrideReader
	holds     holdUsecase.HoldStore
}

// Build opens storage, cache and messaging for cfg and wires the use cases.
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{}
	clk := clock.NewSystem()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if cfg.StorageDriver != "memory" {
		a.AddCloser(db.CloseDB)
	}

	mapCache := a.openCache(ctx, cfg, clk, log)

	producer, err := kafka.NewProducer(cfg.Kafka.Brokers, kafka.Topics{
		Audit:        cfg.Kafka.AuditTopic,
		Notification: cfg.Kafka.NotifyTopic,
	}, log)
	if err != nil {
		a.Close(log)
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	a.AddCloser(producer.Close)

	a.VenueUC = venueUsecase.NewVenueUseCase(venueUsecase.Deps{
		Store:       st.venues,
		Overrides:   st.live,
		Cache:       mapCache,
		Audit:       producer,
		Clock:       clk,
		Log:         log,
		CacheBucket: cfg.MapCacheBucket,
		CacheTTL:    cfg.MapCacheTTL,
	})
	overrideUC := overrideUsecase.NewOverrideUseCase(overrideUsecase.Deps{
		Store:       st.overrides,
		Targets:     st.venues,
		Notifier:    producer,
		Invalidator: a.VenueUC,
		Clock:       clk,
		Log:         log,
	})
	a.HoldUC = holdUsecase.NewHoldUseCase(holdUsecase.Deps{
		Store:       st.holds,
		Seats:       st.venues,
		Invalidator: a.VenueUC,
		Clock:       clk,
		Log:         log,
		MaxTTL:      cfg.HoldMaxTTL,
	})

	a.VenueH = venueHandler.NewVenueHandler(a.VenueUC)
	a.OverrideH = overrideHandler.NewOverrideHandler(overrideUC)
	a.HoldH = holdHandler.NewHoldHandler(a.HoldUC)

	if a.JWT, err = jwt.NewManager(cfg.JWTSecret, 0); err != nil {
		log.Warn("JWT_SECRET is not set, admin routes will reject every request")
	}
	return a, nil
}

func openStores(ctx context.Context, cfg *config.Config, log *logger.Logger) (stores, error) {
	if cfg.StorageDriver == "memory" {
		log.Warn("Using in-memory storage, data is lost on restart")
		s := memstore.New()
		return stores{venues: s, overrides: s, live: s, holds: s}, nil
	}

	log.With("host", cfg.Database.Host).Info("Connecting to MySQL database...")
	if err := db.InitDB(ctx, cfg.Database); err != nil {
		return stores{}, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("Database connected successfully!")

	conn := db.GetDB()
	overrides := overrideRepository.NewOverrideRepository(conn)
	return stores{
		venues:    venueRepository.NewVenueRepository(conn),
		overrides: overrides,
		live:      overrides,
		holds:     holdRepository.NewHoldRepository(conn),
	}, nil
}

// openCache prefers Redis and falls back to a process-local cache when Redis
// is not configured or not reachable.
func (a *App) openCache(ctx context.Context, cfg *config.Config, clk clock.Clock, log *logger.Logger) venueUsecase.MapCache {
	if cfg.Redis.Addr == "" {
		return cache.NewMemory(clk.Now)
	}
	client, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, using in-process effective map cache")
		return cache.NewMemory(clk.Now)
	}
	a.AddCloser(client.Close)
	log.With("addr", cfg.Redis.Addr).Info("Redis effective map cache connected")
	return cache.NewMapCache(client)
}

// AddCloser registers fn to run on Close, in reverse order of registration.
func (a *App) AddCloser(fn func() error) {
	a.closers = append(a.closers, fn)
}

func (a *App) Close(log *logger.Logger) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.WithError(err).Warn("Error during shutdown")
		}
	}
	a.closers = nil
}

// ============================================================
// Lambda mode
// ============================================================

// Routes maps a request path to its handlers by HTTP method.
type Routes map[string]map[string]Handler

// Dispatch serves one lambda with several routes. Client supplied identity
// headers are replaced by the claims of a valid bearer token, as the HTTP
// server's auth middleware does.
func (a *App) Dispatch(routes Routes, log *logger.Logger) Handler {
	return func(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		byMethod, ok := routes[request.Path]
		if !ok {
			return response.Message(http.StatusNotFound, "route not found")
		}
		handle, ok := byMethod[request.HTTPMethod]
		if !ok {
			return response.Message(http.StatusMethodNotAllowed, "method not allowed")
		}

		headers := make(map[string]string, len(request.Headers))
		var auth string
		for k, v := range request.Headers {
			switch {
			case strings.EqualFold(k, "X-User-Id"), strings.EqualFold(k, "X-User-Role"):
				continue
			case strings.EqualFold(k, "Authorization"):
				auth = v
			}
			headers[k] = v
		}
		if auth != "" {
			claims, err := a.JWT.FromBearer(auth)
			if err != nil {
				log.WithError(err).With("path", request.Path).Debug("Rejected bearer token")
				return response.Error(apperrors.InvalidToken())
			}
			headers["X-User-Id"] = claims.UserID
			headers["X-User-Role"] = claims.Role
			ctx = context.WithValue(ctx, logger.UserIDKey, claims.UserID)
		}
		request.Headers = headers

		resp, err := handle(ctx, request)
		if err != nil {
			log.WithContext(ctx).WithError(err).With("path", request.Path).Error("Handler failed")
			return response.Error(err)
		}
		return resp, nil
	}
}
