package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"skillscape/internal/app"
	"skillscape/internal/config"
	"skillscape/internal/domain"
	"skillscape/internal/identity"
	"skillscape/internal/infra/memory"
	mongostore "skillscape/internal/infra/mongo"
	pgstore "skillscape/internal/infra/postgres"
	redisstore "skillscape/internal/infra/redis"
	transport "skillscape/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the HTTP and websocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// stores is the storage wiring picked from config: Redis, Postgres and Mongo
// when configured, in-memory otherwise.
type stores struct {
	quizzes     quizCache
	sessions    app.QuizSessionRepository
	answers     app.AnswerStore
	profiles    app.ProfileStore
	credentials identity.CredentialStore
	limiter     identity.AttemptLimiter
	revocations identity.RevocationStore
	closers     []func()
}

// quizCache is a quiz repository whose cached definitions can be dropped.
type quizCache interface {
	app.QuizRepository
	Invalidate(ctx context.Context, quizID string) error
}

func (s *stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret not configured")
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrator(ctx, cfg, migrateUp); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	provider := identity.NewProvider(identity.Options{
		Credentials: st.credentials,
		Limiter:     st.limiter,
		Revocations: st.revocations,
		Tokens:      identity.NewTokenIssuer(cfg.Auth.JWTSecret, orDefault(cfg.Auth.Issuer, "skillscape"), config.TTLDuration(cfg.Auth.TokenTTL, time.Hour)),
		Federated:   federatedVerifier(cfg.Auth.Federated),
		BcryptCost:  cfg.Auth.BcryptCost,
	})

	quizService := app.NewQuizService(st.sessions, st.quizzes, st.answers, cfg.Quiz.DefaultQuiz)
	authService := app.NewAuthService(provider, st.profiles)
	sessionContext := app.NewSessionContext(provider, st.profiles)
	if err := sessionContext.Start(ctx); err != nil {
		return err
	}
	defer sessionContext.Stop()

	router := transport.NewRouter(
		transport.NewQuizHandler(quizService),
		transport.NewAuthHandler(authService, sessionContext, quizService),
		transport.NewWSHandler(sessionContext, provider),
		provider,
	)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting skillscape on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func openStores(ctx context.Context, cfg config.Config) (*stores, error) {
	st := &stores{}
	ok := false
	defer func() {
		if !ok {
			st.close()
		}
	}()

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(domain.OnboardingQuiz())
	st.credentials = memory.NewCredentialStore()
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, pool.Close)

		pgLoader := pgstore.NewQuizLoader(pool)
		if err := seedOnboardingQuiz(ctx, pgLoader); err != nil {
			return nil, err
		}
		loader = pgLoader
		st.credentials = pgstore.NewCredentialStore(pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	sessionTTL := config.TTLDuration(cfg.Quiz.SessionTTL, config.TTLDuration(cfg.Redis.TTL, 30*time.Minute))
	answersTTL := config.TTLDuration(cfg.Quiz.AnswersTTL, 0)
	window := config.TTLDuration(cfg.Auth.Window, 15*time.Minute)

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		st.closers = append(st.closers, func() { _ = client.Close() })
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		st.quizzes = redisstore.NewQuizRepository(client, loader, quizTTL)
		st.sessions = redisstore.NewSessionStore(client, sessionTTL)
		st.answers = redisstore.NewAnswerStore(client, answersTTL)
		st.limiter = redisstore.NewAttemptLimiter(client, cfg.Auth.MaxAttempts, window)
		st.revocations = redisstore.NewRevocationStore(client)
	} else {
		st.quizzes = memory.NewQuizRepository(loader, quizTTL)
		st.sessions = memory.NewSessionStore(sessionTTL)
		st.answers = memory.NewAnswerStore()
		st.limiter = memory.NewAttemptLimiter(cfg.Auth.MaxAttempts, window)
		st.revocations = memory.NewRevocationStore()
	}

	// a redis cache may still hold the definition an earlier run loaded
	if cfg.Postgres.URL != "" {
		quizID := orDefault(cfg.Quiz.DefaultQuiz, domain.OnboardingQuizID)
		if err := st.quizzes.Invalidate(ctx, quizID); err != nil {
			return nil, fmt.Errorf("invalidate cached quiz %q: %w", quizID, err)
		}
	}

	st.profiles = memory.NewProfileStore()
	if cfg.Mongo.URI != "" {
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		st.closers = append(st.closers, func() { _ = client.Disconnect(context.Background()) })

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx, nil); err != nil {
			return nil, fmt.Errorf("ping mongo: %w", err)
		}
		profiles := mongostore.NewProfileStore(client.Database(orDefault(cfg.Mongo.Database, "skillscape")))
		if err := profiles.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		st.profiles = profiles
	}

	ok = true
	return st, nil
}

// seedOnboardingQuiz stores the built-in onboarding quiz when the table has none.
func seedOnboardingQuiz(ctx context.Context, loader *pgstore.QuizLoader) error {
	_, err := loader.LoadQuiz(ctx, domain.OnboardingQuizID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrQuizNotFound) {
		return err
	}
	log.Printf("seeding quiz %q", domain.OnboardingQuizID)
	return loader.SaveQuiz(ctx, domain.OnboardingQuiz())
}

func federatedVerifier(cfg config.FederatedConfig) *identity.FederatedVerifier {
	if !cfg.Enabled() {
		return nil
	}
	return identity.NewFederatedVerifier(cfg.Issuer, cfg.Audience, cfg.Secret)
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
