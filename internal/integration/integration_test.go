package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"

	"skillscape/internal/app"
	"skillscape/internal/domain"
	"skillscape/internal/identity"
	mongostore "skillscape/internal/infra/mongo"
	pgstore "skillscape/internal/infra/postgres"
	pgmigrations "skillscape/internal/infra/postgres/migrations"
	infraredis "skillscape/internal/infra/redis"
)

func TestOnboardingQuizEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	migrateUp(t, ctx, pgURL)
	pool := connectPostgres(t, ctx, pgURL)
	defer pool.Close()

	loader := pgstore.NewQuizLoader(pool)
	if err := loader.SaveQuiz(ctx, domain.OnboardingQuiz()); err != nil {
		t.Fatalf("seed quiz: %v", err)
	}
	if _, err := loader.LoadQuiz(ctx, "missing"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	answers := infraredis.NewAnswerStore(redisClient, time.Hour)
	quizRepo := infraredis.NewQuizRepository(redisClient, loader, 5*time.Minute)
	service := app.NewQuizService(infraredis.NewSessionStore(redisClient, 5*time.Minute), quizRepo, answers, "")

	view, err := service.Start(ctx, "client-1", "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	walk := []struct {
		step   string
		values []string
	}{
		{"user-type", []string{"student"}},
		{"enjoyed-subjects", []string{"math", "computer"}},
		{"disliked-subjects", []string{"pe"}},
		{"extracurriculars", []string{"robotics"}},
		{"career-interests", []string{"technology", "engineering"}},
		{"career-knowledge-1", []string{"some"}},
		{"career-knowledge-2", []string{"moderate"}},
		{"exploration-methods", []string{"Visited a robotics lab"}},
	}
	for _, s := range walk {
		if s.step == "career-knowledge-1" && !strings.Contains(view.Step.Prompt, "Technology") {
			t.Fatalf("expected resolved prompt on %s, got %q", s.step, view.Step.Prompt)
		}
		for _, value := range s.values {
			if _, accepted, err := service.Answer(ctx, view.SessionID, s.step, value); err != nil || !accepted {
				t.Fatalf("answer %s=%s: accepted=%v err=%v", s.step, value, accepted, err)
			}
		}
		view, _, err = service.Advance(ctx, view.SessionID)
		if err != nil {
			t.Fatalf("advance %s: %v", s.step, err)
		}
	}
	if view.Target != domain.TargetStudentSignup {
		t.Fatalf("expected student sign-up target, got %+v", view)
	}

	stored, ok, err := answers.LoadAnswers(ctx, "client-1")
	if err != nil || !ok {
		t.Fatalf("load answers: ok=%v err=%v", ok, err)
	}
	if got := stored["career-interests"].Values; len(got) != 2 || got[0] != "technology" {
		t.Fatalf("unexpected career interests %v", got)
	}
}

func TestAuthFlowEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()
	mongoURI, mongoCleanup := startMongo(t, ctx)
	defer mongoCleanup()

	migrateUp(t, ctx, pgURL)
	pool := connectPostgres(t, ctx, pgURL)
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		t.Fatalf("connect mongo: %v", err)
	}
	defer mongoClient.Disconnect(ctx)
	profiles := mongostore.NewProfileStore(mongoClient.Database("skillscape_test"))
	if err := profiles.EnsureIndexes(ctx); err != nil {
		t.Fatalf("ensure indexes: %v", err)
	}

	provider := identity.NewProvider(identity.Options{
		Credentials: pgstore.NewCredentialStore(pool),
		Limiter:     infraredis.NewAttemptLimiter(redisClient, 3, time.Minute),
		Revocations: infraredis.NewRevocationStore(redisClient),
		Tokens:      identity.NewTokenIssuer("integration-secret", "skillscape", time.Hour),
		BcryptCost:  bcrypt.MinCost,
	})
	auth := app.NewAuthService(provider, profiles)

	fields := domain.ProfileFields{FirstName: "Katherine", LastName: "Johnson", School: "West Virginia State", UserType: domain.RoleStudent, Grade: "12"}
	answers := domain.Answers{"user-type": domain.TextAnswer("student"), "career-interests": domain.ChoiceAnswer("science", "technology")}
	created, err := auth.SignUp(ctx, "Katherine@Example.com", "secret123", fields, answers)
	if err != nil {
		t.Fatalf("sign-up: %v", err)
	}
	if created.Target != domain.TargetStudentDashboard {
		t.Fatalf("expected student dashboard, got %s", created.Target)
	}

	profile, err := profiles.GetProfile(ctx, created.Identity.UID)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if profile.Email != "katherine@example.com" || profile.Level != 1 || !profile.OnboardingCompleted {
		t.Fatalf("unexpected profile %+v", profile)
	}
	if got := profile.OnboardingAnswers["career-interests"].Values; len(got) != 2 || got[1] != "technology" {
		t.Fatalf("expected onboarding answers on profile, got %v", profile.OnboardingAnswers)
	}

	if _, err := auth.SignUp(ctx, "katherine@example.com", "secret123", fields, nil); !errors.Is(err, domain.ErrDuplicateAccount) {
		t.Fatalf("expected duplicate account, got %v", err)
	}

	signedIn, err := auth.SignIn(ctx, "katherine@example.com", "secret123")
	if err != nil {
		t.Fatalf("sign-in: %v", err)
	}
	if signedIn.User.DisplayName != "Katherine Johnson" || signedIn.User.Grade != "12" {
		t.Fatalf("unexpected signed-in user %+v", signedIn.User)
	}

	if err := auth.SignOut(ctx, signedIn.Identity.Token); err != nil {
		t.Fatalf("sign-out: %v", err)
	}
	if _, err := provider.VerifyToken(ctx, signedIn.Identity.Token); err == nil {
		t.Fatalf("expected revoked token to fail verification")
	}

	for i := 0; i < 3; i++ {
		_, _ = auth.SignIn(ctx, "katherine@example.com", "wrong-password")
	}
	if _, err := auth.SignIn(ctx, "katherine@example.com", "secret123"); !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected rate limited, got %v", err)
	}

	if err := profiles.MergeProfile(ctx, created.Identity.UID, map[string]any{domain.FieldOnboardingCompleted: false}); err != nil {
		t.Fatalf("merge profile: %v", err)
	}
	profile, _ = profiles.GetProfile(ctx, created.Identity.UID)
	if profile.OnboardingCompleted || profile.School != "West Virginia State" {
		t.Fatalf("expected merge to keep other fields, got %+v", profile)
	}
}

func migrateUp(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func connectPostgres(t *testing.T, ctx context.Context, dsn string) *pgxpool.Pool {
	t.Helper()
	pool, err := pgxpool.Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	return pool
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "skillscape", "POSTGRES_PASSWORD": "skillpass", "POSTGRES_DB": "skillscape"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	host, port, cleanup := startContainer(t, ctx, req, "5432/tcp")
	return fmt.Sprintf("postgres://skillscape:skillpass@%s:%s/skillscape?sslmode=disable", host, port), cleanup
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	host, port, cleanup := startContainer(t, ctx, req, "6379/tcp")
	return fmt.Sprintf("redis://%s:%s", host, port), cleanup
}

func startMongo(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "mongo:7",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForListeningPort("27017/tcp").WithStartupTimeout(60 * time.Second),
	}
	host, port, cleanup := startContainer(t, ctx, req, "27017/tcp")
	return fmt.Sprintf("mongodb://%s:%s", host, port), cleanup
}

func startContainer(t *testing.T, ctx context.Context, req tc.ContainerRequest, exposed nat.Port) (string, string, func()) {
	t.Helper()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start %s: %v", req.Image, err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("%s host: %v", req.Image, err)
	}
	port, err := container.MappedPort(ctx, exposed)
	if err != nil {
		t.Fatalf("%s port: %v", req.Image, err)
	}
	return host, port.Port(), func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
