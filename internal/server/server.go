package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/victornm/kiosk/internal/api"
	"github.com/victornm/kiosk/internal/auth"
	"github.com/victornm/kiosk/internal/event"
	"github.com/victornm/kiosk/internal/inventory"
	"github.com/victornm/kiosk/internal/inventory/postgres"
	"github.com/victornm/kiosk/internal/inventory/sqlstore"
	"github.com/victornm/kiosk/internal/quiz"
	"github.com/victornm/kiosk/internal/ranking"
	"github.com/victornm/kiosk/internal/session"
	"github.com/victornm/kiosk/internal/telemetry"
)

const (
	HealthInventory = "kiosk.inventory"
	HealthQuiz      = "kiosk.quiz"

	healthInterval = 10 * time.Second
)

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		redis struct {
			session redis.UniversalClient
			pubsub  redis.UniversalClient
			ranking redis.UniversalClient
		}

		inventory inventory.Store
		close     []func()
	}

	service struct {
		inventory *inventory.Service
		ranking   *ranking.Service
		session   *session.Service
	}

	http   *http.Server
	grpc   *grpc.Server
	health *health.Server

	ctx  context.Context
	stop context.CancelFunc
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}
	s.ctx, s.stop = context.WithCancel(context.Background())

	s.eb = event.NewBus()

	if err := s.initInfra(); err != nil {
		s.closeInfra()
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	if err := s.initService(); err != nil {
		s.closeInfra()
		return nil, fmt.Errorf("server: init service: %w", err)
	}

	s.initTelemetry()
	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, closeStore, err := OpenInventory(ctx, s.c)
	if err != nil {
		return fmt.Errorf("inventory: %w", err)
	}
	s.infra.inventory = store
	s.infra.close = append(s.infra.close, closeStore)

	return nil
}

func (s *Server) initRedis() error {
	connect := func(name string, rc RedisConfig) (redis.UniversalClient, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		r := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    rc.Addrs,
			Password: rc.Pass,
		})
		s.infra.close = append(s.infra.close, func() { _ = r.Close() })

		if err := telemetry.MonitorRedis(r, name); err != nil {
			return nil, err
		}

		if err := r.Ping(ctx).Err(); err != nil {
			return nil, err
		}

		return r, nil
	}

	var err error
	s.infra.redis.session, err = connect("session", s.c.Redis.Session)
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}

	s.infra.redis.pubsub, err = connect("pubsub", s.c.Redis.Pubsub)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}

	s.infra.redis.ranking, err = connect("ranking", s.c.Redis.Ranking)
	if err != nil {
		return fmt.Errorf("ranking: %w", err)
	}

	return nil
}

// OpenInventory connects the store selected by c.Inventory.Driver. The returned
// func releases it.
func OpenInventory(ctx context.Context, c Config) (inventory.Store, func(), error) {
	switch c.Inventory.Driver {
	case DriverPostgres:
		db, err := pgxpool.New(ctx, c.Inventory.DSN)
		if err != nil {
			return nil, nil, err
		}

		if err := db.Ping(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}

		return postgres.NewStore(postgres.Config{DB: db}), db.Close, nil

	case DriverMySQL, DriverSQLite:
		st, err := sqlstore.Open(ctx, c.Inventory.Driver, c.Inventory.DSN)
		if err != nil {
			return nil, nil, err
		}

		return st, func() { _ = st.Close() }, nil

	case DriverMemory:
		return inventory.NewMemoryStore(), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown driver %q", c.Inventory.Driver)
	}
}

// Migrate creates the inventory tables for the configured driver.
func Migrate(ctx context.Context, c Config) error {
	store, closeStore, err := OpenInventory(ctx, c)
	if err != nil {
		return fmt.Errorf("inventory: %w", err)
	}
	defer closeStore()

	m, ok := store.(interface{ Migrate(context.Context) error })
	if !ok {
		slog.InfoContext(ctx, "migrate: nothing to do", "driver", c.Inventory.Driver)
		return nil
	}

	if err := m.Migrate(ctx); err != nil {
		return fmt.Errorf("inventory: migrate: %w", err)
	}

	slog.InfoContext(ctx, "migrate: inventory schema is up to date", "driver", c.Inventory.Driver)
	return nil
}

func (s *Server) initService() error {
	users := make(map[string]string, len(s.c.Auth.Users))
	for _, u := range s.c.Auth.Users {
		users[u.Username] = u.PasswordHash
	}

	creds, err := auth.NewStaticStore(users)
	if err != nil {
		return err
	}

	s.service.inventory = inventory.NewService(inventory.Config{
		Store:    s.infra.inventory,
		EventBus: s.eb,
		Currency: s.c.Inventory.Currency,
	})

	s.service.ranking = ranking.NewService(ranking.Config{
		EventBus: s.eb,
		Redis:    s.infra.redis.ranking,
		Prefix:   s.c.Redis.Ranking.Prefix,
	})

	s.service.session = session.NewService(session.Config{
		Redis:  s.infra.redis.session,
		Prefix: s.c.Redis.Session.Prefix,
		TTL:    s.c.Session.TTL,
		Quiz: quiz.Open(context.Background(), quiz.Config{
			File:        s.c.Quiz.File,
			DefaultTime: s.c.Quiz.DefaultTime,
		}),
		Credentials: creds,
		EventBus:    s.eb,
	})

	return nil
}

func (s *Server) initTelemetry() {
	telemetry.NewMetrics(prometheus.DefaultRegisterer).Subscribe(s.eb)
}

func (s *Server) initAPI() {
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery())

	api.New(api.Config{
		EventBus:     s.eb,
		Inventory:    s.service.inventory,
		Ranking:      s.service.ranking,
		Session:      s.service.session,
		Redis:        s.infra.redis.pubsub,
		PubsubPrefix: s.c.Redis.Pubsub.Prefix,
	}).Register(e)

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}

	s.grpc = grpc.NewServer(telemetry.GRPCServerOptions(slog.Default())...)
	s.health = health.NewServer()
	healthpb.RegisterHealthServer(s.grpc, s.health)
	reflection.Register(s.grpc)

	s.health.SetServingStatus(HealthQuiz, healthpb.HealthCheckResponse_SERVING)
}

func (s *Server) Start() {
	ctx := s.ctx

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.c.GRPC.Port))
	if err != nil {
		slog.ErrorContext(ctx, "grpc server: listen failed", "error", err)
		panic(err)
	}

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: gRPC listening on port %d", s.c.GRPC.Port))
		return s.grpc.Serve(lis)
	})

	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	eg.Go(func() error {
		s.watchInventory(ctx)
		return nil
	})

	err = eg.Wait()
	if err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

// watchInventory mirrors the store's reachability into the gRPC health status
// until ctx is done.
func (s *Server) watchInventory(ctx context.Context) {
	t := time.NewTicker(healthInterval)
	defer t.Stop()

	last := healthpb.HealthCheckResponse_UNKNOWN
	for {
		st := healthpb.HealthCheckResponse_SERVING

		pctx, cancel := context.WithTimeout(ctx, healthInterval/2)
		err := s.service.inventory.Ping(pctx)
		cancel()
		if err != nil {
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}

		if st != last {
			if err != nil {
				slog.ErrorContext(ctx, "server: inventory store unreachable", "error", err)
			} else {
				slog.InfoContext(ctx, "server: inventory store reachable")
			}
			s.health.SetServingStatus(HealthInventory, st)
			last = st
		}

		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.stop()

	s.health.Shutdown()
	s.grpc.GracefulStop()
	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.eb.Stop()
	s.closeInfra()

	slog.InfoContext(ctx, "server: shutdown completed")
}

func (s *Server) closeInfra() {
	for i := len(s.infra.close) - 1; i >= 0; i-- {
		s.infra.close[i]()
	}
	s.infra.close = nil
}
