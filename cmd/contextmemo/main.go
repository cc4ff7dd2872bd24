// cmd/contextmemo/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/stephennewman/contextmemo-sub002/internal/api/brand"
	"github.com/stephennewman/contextmemo-sub002/internal/api/competitor"
	"github.com/stephennewman/contextmemo-sub002/internal/api/memo"
	"github.com/stephennewman/contextmemo-sub002/internal/api/organization"
	"github.com/stephennewman/contextmemo-sub002/internal/api/persona"
	"github.com/stephennewman/contextmemo-sub002/internal/api/pitchdeck"
	"github.com/stephennewman/contextmemo-sub002/internal/api/positioning"
	"github.com/stephennewman/contextmemo-sub002/internal/api/privacy"
	"github.com/stephennewman/contextmemo-sub002/internal/backfill"
	"github.com/stephennewman/contextmemo-sub002/internal/common/auth"
	awsclient "github.com/stephennewman/contextmemo-sub002/internal/common/aws"
	"github.com/stephennewman/contextmemo-sub002/internal/common/config"
	"github.com/stephennewman/contextmemo-sub002/internal/common/database"
	"github.com/stephennewman/contextmemo-sub002/internal/common/logger"
	"github.com/stephennewman/contextmemo-sub002/internal/common/observability"
	"github.com/stephennewman/contextmemo-sub002/internal/email"
	"github.com/stephennewman/contextmemo-sub002/internal/extraction"
	"github.com/stephennewman/contextmemo-sub002/internal/integrations"
	"github.com/stephennewman/contextmemo-sub002/internal/integrations/github"
	"github.com/stephennewman/contextmemo-sub002/internal/integrations/hubspot"
	"github.com/stephennewman/contextmemo-sub002/internal/integrations/searchconsole"
	"github.com/stephennewman/contextmemo-sub002/internal/llm"
	"github.com/stephennewman/contextmemo-sub002/internal/search"
	"github.com/stephennewman/contextmemo-sub002/internal/server"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting contextmemo API...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Init Redis with retry ---
	var redisClient *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redisClient, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redisClient.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redisClient.Close()
	zapLog.Info("Redis connected successfully")

	db := pg.GetDB()

	// --- Init AWS clients (optional per environment) ---
	var sesClient *awsclient.SESClient
	if cfg.Integrations.AWS.SES.Enabled {
		sesClient, err = awsclient.NewSESClient(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			zapLog.Fatal("ses client init failed", zap.Error(err))
		}
	}
	var snsClient *awsclient.SNSClient
	if cfg.Integrations.AWS.SNS.Enabled {
		snsClient, err = awsclient.NewSNSClient(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			zapLog.Fatal("sns client init failed", zap.Error(err))
		}
	}

	var sender email.Sender
	if sesClient != nil {
		sender = email.NewSESSender(sesClient, cfg.Integrations.AWS.SES.FromEmail, log)
	} else {
		sender = email.NewSMTPSender(cfg, log)
	}

	// --- Shared infrastructure ---
	sessions := auth.NewStore(db, redisClient.GetClient(), log,
		time.Duration(cfg.Auth.SessionCacheTTL)*time.Second)
	llmClient := llm.NewClient(cfg, log)
	memoIndex := search.NewMemoIndex(esClient, cfg.Database.Elasticsearch.MemoIndex, log)
	tokens := integrations.NewTokenStore(db)

	// --- Services and route registrars ---
	brandService := brand.NewService(db, log)
	positioningService := positioning.NewService(db, log)
	personaService := persona.NewService(db, log)
	competitorService := competitor.NewService(db, llmClient, log)
	organizationService := organization.NewService(db, sender, cfg, log)
	privacyService := privacy.NewService(db, snsClient, memoIndex, cfg, log)
	memoService := memo.NewService(db, memoIndex, log)
	pitchService := pitchdeck.NewService(db, redisClient.GetClient(), sender, cfg, log)
	extractionService := extraction.NewService(db, llmClient, log)
	backfillService := backfill.NewService(db, llmClient, log)
	hubspotService := hubspot.NewService(db, tokens, cfg, log)
	githubService := github.NewService(db, tokens, cfg, log)
	searchConsoleService := searchconsole.NewService(db, tokens, cfg, log)

	srv := server.New(cfg, sessions, log,
		brand.NewHandler(brandService, sessions),
		positioning.NewHandler(positioningService, sessions),
		persona.NewHandler(personaService, sessions),
		competitor.NewHandler(competitorService, sessions),
		organization.NewHandler(organizationService, sessions),
		privacy.NewHandler(privacyService, sessions),
		memo.NewHandler(memoService, sessions),
		pitchdeck.NewHandler(pitchService),
		extraction.NewHandler(extractionService, sessions),
		backfill.NewHandler(backfillService, sessions),
		hubspot.NewHandler(hubspotService, sessions),
		github.NewHandler(githubService, sessions),
		searchconsole.NewHandler(searchConsoleService, sessions),
	)

	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", cfg.Server.Addr()))
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("server shutdown failed", zap.Error(err))
	}

	zapLog.Info("contextmemo API stopped gracefully")
}
