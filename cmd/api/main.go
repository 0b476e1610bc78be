package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/goalsmith/goalsmith/internal/adapters/cache"
	"github.com/goalsmith/goalsmith/internal/adapters/classifier"
	adapterHTTP "github.com/goalsmith/goalsmith/internal/adapters/handler/http"
	"github.com/goalsmith/goalsmith/internal/adapters/messenger"
	"github.com/goalsmith/goalsmith/internal/adapters/repository"
	"github.com/goalsmith/goalsmith/internal/core/domain"
	"github.com/goalsmith/goalsmith/internal/core/scheduler"
	"github.com/goalsmith/goalsmith/internal/core/services"
)

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// parseAllowedUsers reads the comma-separated allow-list. The service
// has no sign-up; an empty list means nobody can authenticate.
func parseAllowedUsers(raw string) []int64 {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			log.Printf("Ignoring malformed user id %q in GOALSMITH_ALLOWED_USERS", part)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func connectRedis(cfg cache.Config) *redis.Client {
	if !cfg.Enabled() {
		log.Println("REDIS_HOST not set, running without cache and rate limiter")
		return nil
	}
	rdb, err := cache.Connect(cfg)
	if err != nil {
		log.Printf("Redis unavailable, running without cache and rate limiter: %v", err)
		return nil
	}
	log.Println("Redis connected successfully.")
	return rdb
}

func main() {
	startTime := time.Now()

	dbUser := os.Getenv("DB_USER")
	dbPass := os.Getenv("DB_PASSWORD")
	dbName := os.Getenv("DB_NAME")
	dbHost := getEnv("DB_HOST", "localhost")
	dbPort := getEnv("DB_PORT", "5432")
	serverPort := getEnv("PORT", "8080")

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("Critical: JWT_SECRET must be set")
	}
	jwtIssuer := getEnv("JWT_ISSUER", "goalsmith")
	allowedUsers := parseAllowedUsers(os.Getenv("GOALSMITH_ALLOWED_USERS"))
	if len(allowedUsers) == 0 {
		log.Println("Warning: GOALSMITH_ALLOWED_USERS is empty, nobody can authenticate")
	}

	classifierURL := os.Getenv("CLASSIFIER_URL")
	if classifierURL == "" {
		log.Fatal("Critical: CLASSIFIER_URL must be set")
	}

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		dbUser, dbPass, dbHost, dbPort, dbName)

	log.Println("Connecting to database...")

	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		log.Fatalf("Critical: Failed to connect to database: %v", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	log.Println("Database connected successfully.")

	redisConn := connectRedis(cache.Config{
		Host:     os.Getenv("REDIS_HOST"),
		Port:     os.Getenv("REDIS_PORT"),
		Password: os.Getenv("REDIS_PASSWORD"),
	})

	clock := domain.SystemClock{}

	var goalRepo domain.GoalRepository = repository.NewPostgresGoalRepository(db)
	userRepo := repository.NewPostgresUserRepository(db)
	reminderRepo := repository.NewPostgresReminderRepository(db)
	snapshotRepo := repository.NewPostgresSnapshotRepository(db)

	if redisConn != nil {
		goalRepo = repository.NewCachedGoalRepository(goalRepo, redisConn)
	}

	var push services.Messenger = messenger.LogMessenger{}
	if url := os.Getenv("WEBHOOK_URL"); url != "" {
		push = messenger.NewWebhookMessenger(url)
	} else {
		log.Println("WEBHOOK_URL not set, messages go to the log")
	}

	tokenService := services.NewTokenService(jwtSecret, jwtIssuer, 24*time.Hour, allowedUsers)
	lifecycleService := services.NewLifecycleService(goalRepo, userRepo, clock)
	windowService := services.NewWindowService(goalRepo, clock)
	statsService := services.NewStatsService(goalRepo, userRepo, snapshotRepo, clock)
	intakeService := services.NewIntakeService(
		classifier.NewHTTPClassifier(classifierURL), goalRepo, userRepo, push, clock)

	sched := scheduler.New(clock)
	planner := scheduler.NewPlanner(sched, goalRepo, reminderRepo, userRepo,
		statsService, windowService, push, clock)

	schedCtx, stopSched := context.WithCancel(context.Background())
	defer stopSched()
	sched.Start(schedCtx)

	// Recover the reminder timetable lost with the previous process,
	// then hand the daily cycle over to the planner.
	if err := planner.Refresh(schedCtx); err != nil {
		log.Printf("Startup reminder refresh failed: %v", err)
	}
	planner.StartDailyJobs(schedCtx)

	router := adapterHTTP.NewRouter(adapterHTTP.RouterDependencies{
		AuthHandler:     adapterHTTP.NewAuthHandler(tokenService),
		GoalHandler:     adapterHTTP.NewGoalHandler(intakeService, lifecycleService, windowService),
		ReminderHandler: adapterHTTP.NewReminderHandler(reminderRepo, clock),
		StatsHandler:    adapterHTTP.NewStatsHandler(statsService),
		TokenService:    tokenService,
		AdminKeyHash:    os.Getenv("ADMIN_KEY_HASH"),
		RefreshJobs:     func() error { return planner.Refresh(schedCtx) },
		DB:              db,
		Redis:           redisConn,
		StartTime:       startTime,
	})

	srv := &http.Server{
		Addr:         ":" + serverPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Goalsmith running on http://localhost:%s", serverPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Critical server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Stop signal received. Shutting down...")

	stopSched()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Forced shutdown error:", err)
	}

	log.Println("Server stopped gracefully.")
}
