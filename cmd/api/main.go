package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/pixelforge/pixelforge-api/internal/config"
	"github.com/pixelforge/pixelforge-api/internal/domain/abuse"
	"github.com/pixelforge/pixelforge-api/internal/domain/balance"
	"github.com/pixelforge/pixelforge-api/internal/domain/gate"
	"github.com/pixelforge/pixelforge-api/internal/domain/generation"
	"github.com/pixelforge/pixelforge-api/internal/domain/idempotency"
	"github.com/pixelforge/pixelforge-api/internal/domain/payment"
	"github.com/pixelforge/pixelforge-api/internal/middleware"
	"github.com/pixelforge/pixelforge-api/internal/pkg/cardproc"
	"github.com/pixelforge/pixelforge-api/internal/pkg/chainrpc"
	"github.com/pixelforge/pixelforge-api/internal/pkg/database"
	"github.com/pixelforge/pixelforge-api/internal/pkg/genprovider"
	"github.com/pixelforge/pixelforge-api/internal/pkg/imaging"
	"github.com/pixelforge/pixelforge-api/internal/pkg/jwt"
	"github.com/pixelforge/pixelforge-api/internal/pkg/logger"
	"github.com/pixelforge/pixelforge-api/internal/pkg/nftpass"
	"github.com/pixelforge/pixelforge-api/internal/pkg/pricing"
	pkgresponse "github.com/pixelforge/pixelforge-api/internal/pkg/response"
	"github.com/pixelforge/pixelforge-api/internal/pkg/storage"
)

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env})

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting PixelForge API")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	redis, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redis)

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)

	// ---------- Chain RPC clients ----------
	// A chain that fails to dial is skipped, not fatal: the scanner treats
	// per-chain failure as soft and the rest keep serving.
	var sources []payment.ChainSource
	for _, chainCfg := range cfg.Chains {
		client, err := chainrpc.Dial(chainCfg)
		if err != nil {
			log.Warn().Err(err).Str("chain", chainCfg.Name).Msg("chain RPC dial failed, skipping")
			continue
		}
		defer client.Close()
		sources = append(sources, client)
	}
	if len(sources) == 0 {
		log.Warn().Msg("no chain RPC clients available, chain payments disabled")
	}

	// ---------- Premium tier oracle ----------
	var oracle nftpass.Oracle
	if cfg.NFTPassRPCURL != "" && cfg.NFTPassContract != "" {
		passClient, err := nftpass.Dial(cfg.NFTPassRPCURL, cfg.NFTPassContract)
		if err != nil {
			log.Warn().Err(err).Msg("NFT pass oracle dial failed, pricing at standard tier")
		} else {
			defer passClient.Close()
			oracle = passClient
		}
	}

	// ---------- External clients ----------
	cardClient := cardproc.NewClient(cardproc.Config{
		BaseURL: cfg.CardAPIBaseURL,
		APIKey:  cfg.CardAPIKey,
	})
	genClient := genprovider.NewClient(genprovider.Config{
		BaseURL: cfg.GenBaseURL,
		Token:   cfg.GenToken,
		Timeout: cfg.GenTimeout,
	})

	// ---------- Artifact storage ----------
	var artifactStore storage.Storage
	if cfg.R2AccountID != "" {
		r2Store, err := storage.NewR2Storage(storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			AccessKeySecret: cfg.R2AccessKeySecret,
			BucketName:      cfg.R2BucketName,
			PublicURL:       cfg.R2PublicURL,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create R2 storage")
		}
		artifactStore = r2Store
	} else {
		localStore, err := storage.NewLocalStorage("./artifacts", "/artifacts")
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create local storage")
		}
		artifactStore = localStore
	}

	// ---------- Repositories ----------
	balanceRepo := balance.NewRepository(db)
	idempotencyRepo := idempotency.NewRepository(db)
	gateRepo := gate.NewRepository(db, balanceRepo)
	abuseRepo := abuse.NewRepository(db)
	generationRepo := generation.NewRepository(db)

	// ---------- Services ----------
	guard := idempotency.NewGuard(idempotencyRepo, redis)
	policy := pricing.NewPolicy(cfg.CreditRateStandard, cfg.CreditRatePremium, cfg.MaxPaymentAmount, oracle)
	scanner := payment.NewScanner(sources, cfg.ScanBlockDepth, cfg.ScanChainTimeout, cfg.AmountTolerance)

	balanceService := balance.NewService(balanceRepo)
	paymentService := payment.NewService(db, balanceRepo, guard, policy, scanner, cardClient)
	gateService := gate.NewService(gateRepo, cfg.ReservationTTL)
	abuseService := abuse.NewService(abuseRepo, redis, abuse.Config{
		PerOriginCap:   cfg.FreeUsesPerOrigin,
		PerDeviceCap:   cfg.FreeUsesPerDevice,
		Cooldown:       cfg.FreeGrantCooldown,
		MinAccountAge:  cfg.MinAccountAge,
		BlockedDomains: cfg.BlockedEmailDomains,
	})

	archiver := generation.NewArchiver(artifactStore, imaging.NewProcessor(imaging.DefaultConfig()))
	generationService := generation.NewService(
		generationRepo,
		balanceRepo,
		guard,
		abuseService,
		gateService,
		genClient,
		archiver,
		map[string]int64{"image": cfg.GenCostImage, "video": cfg.GenCostVideo},
		cfg.RequestDedupTTL,
	)

	// ---------- Handlers ----------
	balanceHandler := balance.NewHandler(balanceService)
	paymentHandler := payment.NewHandler(paymentService, cfg.CardWebhookSecret)
	generationHandler := generation.NewHandler(generationService)

	authMiddleware := middleware.Auth(jwtService)
	adminMiddleware := middleware.AdminToken(cfg.AdminAPIToken)

	// ---------- Router ----------
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pkgresponse.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/balance", balanceHandler.Routes(authMiddleware))
		r.Mount("/payments", paymentHandler.Routes(authMiddleware, adminMiddleware))
		r.Mount("/generate", generationHandler.Routes(authMiddleware))
	})

	r.Mount("/webhooks", paymentHandler.WebhookRoutes())

	// ---------- Background workers ----------
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	sweeper := gate.NewSweeper(gateRepo, genClient, cfg.SweepInterval)
	go sweeper.Run(workerCtx)
	go purgeExpiredClaims(workerCtx, idempotencyRepo)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	stopWorkers()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}

// purgeExpiredClaims clears lapsed request-dedup claims so the table does
// not grow without bound.
func purgeExpiredClaims(ctx context.Context, repo *idempotency.Repository) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.PurgeExpired(ctx)
			if err != nil {
				log.Error().Err(err).Msg("failed to purge expired claims")
				continue
			}
			if n > 0 {
				log.Info().Int64("purged", n).Msg("expired request claims purged")
			}
		}
	}
}
