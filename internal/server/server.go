// Package server assembles the identity service from its configuration.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/gigmarket/identity/internal/api"
	"github.com/gigmarket/identity/internal/api/handler"
	"github.com/gigmarket/identity/internal/core/credential"
	"github.com/gigmarket/identity/internal/core/domain"
	"github.com/gigmarket/identity/internal/core/service"
	"github.com/gigmarket/identity/internal/core/session"
	"github.com/gigmarket/identity/internal/infrastructure/db/mongo"
	"github.com/gigmarket/identity/internal/infrastructure/db/redis"
	"github.com/gigmarket/identity/internal/infrastructure/queue"
	"github.com/gigmarket/identity/internal/pkg/config"
)

// Server owns the HTTP listener and every connection it depends on.
type Server struct {
	httpServer *http.Server
	mongo      *mongodriver.Client
	redis      goredis.UniversalClient
	eth        *ethclient.Client
	dispatcher *queue.Dispatcher
	log        zerolog.Logger
}

// New connects to the stores and builds the router. Any connection opened
// before a failure is closed again.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (_ *Server, err error) {
	s := &Server{log: log}
	defer func() {
		if err != nil {
			s.closeStores(context.Background())
		}
	}()

	// --- Stores ---
	var db *mongodriver.Database
	s.mongo, db, err = mongo.Connect(ctx, mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		return nil, err
	}
	// Email and wallet uniqueness live in these indexes; serving without them
	// would let concurrent signups create duplicates.
	if err = mongo.EnsureIndexes(ctx, db); err != nil {
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}
	s.redis, err = redis.Connect(ctx, redis.Config{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		MasterName: cfg.Redis.MasterName,
	})
	if err != nil {
		return nil, err
	}

	// --- Credentials ---
	var contracts credential.ContractSignatureChecker
	if cfg.Wallet.RPCURL != "" {
		s.eth, err = ethclient.DialContext(ctx, cfg.Wallet.RPCURL)
		if err != nil {
			return nil, fmt.Errorf("dial eth rpc: %w", err)
		}
		checker, err := credential.NewERC1271Checker(s.eth, 0)
		if err != nil {
			return nil, err
		}
		contracts = checker
	} else {
		log.Info().Msg("ETH_RPC_URL not set, contract wallets cannot sign in")
	}

	clock := clockwork.NewRealClock()
	issuer, err := session.NewIssuer(session.Config{
		Secret:     cfg.Session.JWTSecret,
		Issuer:     cfg.Session.Issuer,
		DefaultTTL: cfg.Session.TokenTTL,
	}, clock)
	if err != nil {
		return nil, err
	}

	// --- Services ---
	identityRepo := mongo.NewIdentityRepository(db)
	eventService := service.NewEventService(mongo.NewEventRepository(db), log.With().Str("component", "audit").Logger())
	s.dispatcher = queue.NewDispatcher(cfg.AuditWorkers, eventService, log.With().Str("component", "dispatcher").Logger())

	authService := service.NewAuthService(service.AuthDependencies{
		Identities: service.NewIdentityService(identityRepo, clock, log.With().Str("component", "identity").Logger()),
		Sessions:   issuer,
		Hasher:     credential.NewPasswordHasher(cfg.Session.BcryptCost),
		Wallets:    credential.NewWalletVerifier(contracts, log.With().Str("component", "wallet").Logger()),
		Challenges: redis.NewChallengeStore(s.redis),
		Demo:       demoDirectory(cfg, log),
		Audit:      s.dispatcher,
		Clock:      clock,
	}, service.AuthOptions{
		TokenTTL:         cfg.Session.TokenTTL,
		RequireChallenge: cfg.Wallet.RequireChallenge,
		ChallengeTTL:     cfg.Wallet.ChallengeTTL,
		SigninDomain:     cfg.Wallet.SigninDomain,
	}, log.With().Str("component", "auth").Logger())

	dashboardService := service.NewDashboardService(mongo.NewDashboardRepository(db), clock, log.With().Str("component", "dashboard").Logger())

	// --- HTTP ---
	router := api.NewRouter(api.Dependencies{
		Auth:       authService,
		Sessions:   issuer,
		Identities: authService,
		Dashboards: dashboardService,
		Readiness: map[string]handler.ReadinessCheck{
			"mongodb": func(ctx context.Context) error { return s.mongo.Ping(ctx, readpref.Primary()) },
			"redis":   func(ctx context.Context) error { return s.redis.Ping(ctx).Err() },
		},
		Log:            log,
		RequestTimeout: cfg.RequestTimeout,
	})

	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Start launches the audit workers and serves HTTP until Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	s.dispatcher.Start(ctx)
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("http server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, flushes queued audit events and closes
// the store connections.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := s.dispatcher.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("audit flush: %w", err))
	}
	s.closeStores(ctx)
	return errors.Join(errs...)
}

func (s *Server) closeStores(ctx context.Context) {
	if s.eth != nil {
		s.eth.Close()
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.log.Warn().Err(err).Msg("redis close")
		}
	}
	if s.mongo != nil {
		if err := s.mongo.Disconnect(ctx); err != nil {
			s.log.Warn().Err(err).Msg("mongo disconnect")
		}
	}
}

func demoDirectory(cfg *config.Config, log zerolog.Logger) *service.DemoDirectory {
	if !cfg.Demo.Enabled {
		return nil
	}
	dir := service.NewDemoDirectory(
		service.DemoAccount{
			Email:    cfg.Demo.Client.Email,
			Password: cfg.Demo.Client.Password,
			Name:     cfg.Demo.Client.Name,
			Role:     domain.RoleClient,
		},
		service.DemoAccount{
			Email:    cfg.Demo.Freelancer.Email,
			Password: cfg.Demo.Freelancer.Password,
			Name:     cfg.Demo.Freelancer.Name,
			Role:     domain.RoleFreelancer,
		},
	)
	log.Warn().Int("accounts", dir.Len()).Msg("demo mode enabled")
	return dir
}
