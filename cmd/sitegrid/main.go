package main

import (
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/sitegrid-dev/sitegrid/db"
	"github.com/sitegrid-dev/sitegrid/internal/auth"
	"github.com/sitegrid-dev/sitegrid/internal/handlers"
	"github.com/sitegrid-dev/sitegrid/internal/lookup"
	"github.com/sitegrid-dev/sitegrid/internal/notifications"
	"github.com/sitegrid-dev/sitegrid/internal/router"
	"github.com/sitegrid-dev/sitegrid/internal/services"
	"github.com/sitegrid-dev/sitegrid/internal/ws"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Warnf("No .env file loaded: %v", err)
	}

	if err := auth.InitJWTSecret(); err != nil {
		logrus.Fatalf("Failed to initialize JWT: %v", err)
	}

	dsn := os.Getenv("DATABASE_URL")

	if dsn == "" {
		logrus.Fatal("DATABASE_URL environment variable is not set")
	}

	if err := db.ConnectDatabase(dsn); err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.MigrateDatabase(); err != nil {
		logrus.Fatalf("Failed to migrate database: %v", err)
	}

	hub := ws.NewHub()
	directory := lookup.NewGormDirectory(db.DB)

	mailer := buildMailer()

	dispatcher := notifications.NewDispatcher(db.DB, []notifications.ChannelSender{
		notifications.InAppSender{},
		notifications.NewEmailSender(directory, mailer),
		notifications.NewPushSender(hub),
	}).WithLimits(envInt("DELIVERY_MAX_ATTEMPTS", 0), 0)

	workers := notifications.NewDeliveryWorkers(dispatcher, envInt("DELIVERY_WORKERS", 4))
	workers.Start()

	sweeper := notifications.NewRetrySweeper(dispatcher, workers)
	sweeper.Start()

	engine := notifications.NewService(
		db.DB,
		directory,
		notifications.NewResolver(directory),
		notifications.NewPreferenceStore(db.DB),
		dispatcher,
		workers,
		hub,
	)

	handlers.Setup(engine, hub)

	r := router.NewRouter()

	var port string

	if port = os.Getenv("PORT"); port == "" {
		port = "3000"
		logrus.Info("PORT not set, defaulting to 3000")
	}

	go func() {
		if err := r.Run(":" + port); err != nil {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down")
	sweeper.Stop()
	workers.Stop()

	// Give in-flight responses a moment to drain.
	time.Sleep(time.Second)
}

func buildMailer() services.EmailSender {
	serverToken := os.Getenv("POSTMARK_SERVER_TOKEN")
	accountToken := os.Getenv("POSTMARK_ACCOUNT_TOKEN")
	from := os.Getenv("SENDER_EMAIL")

	mailer, err := services.NewPostmarkSender(serverToken, accountToken, from)
	if err != nil {
		logrus.Warnf("Email sending disabled: %v", err)
		return services.LogSender{}
	}

	return mailer
}

func envInt(name string, fallback int) int {
	value := os.Getenv(name)

	if value == "" {
		return fallback
	}

	parsed, err := strconv.Atoi(value)

	if err != nil {
		logrus.Warnf("Invalid %s value %q, using default", name, value)
		return fallback
	}

	return parsed
}
