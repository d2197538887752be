package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/iforddow/bizaudo-server/auth"
	"github.com/iforddow/bizaudo-server/auth/reset"
	"github.com/iforddow/bizaudo-server/auth/verification"
	"github.com/iforddow/bizaudo-server/internal/config"
	"github.com/iforddow/bizaudo-server/mail"
	"github.com/iforddow/bizaudo-server/server"
	"github.com/iforddow/bizaudo-server/token"
	"github.com/iforddow/bizaudo-server/token/refresh"
	"github.com/iforddow/bizaudo-server/users"
	"github.com/iforddow/bizaudo-server/users/migrations"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatalf("Error running server: %s\n", err)
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Printf("Server stopped\n")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	setupLogging(c)
	displayAppname(c.GetAppName())

	ctx := context.Background()

	db, err := openDatabase(ctx, c)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     c.GetRedisAddr(),
		Password: c.GetRedisPassword(),
	})
	defer func() { _ = redisClient.Close() }()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	authService, tokenManager, err := buildAuthService(c, db, redisClient)
	if err != nil {
		return err
	}

	srv, err := server.New(c, authService, tokenManager)
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}

	httpServer := &http.Server{Addr: c.GetPort(), Handler: srv}
	go listenAndServe(httpServer)
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

func setupLogging(c config.Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if c.GetEnv() == "DEV" {
		zlog.Logger = zlog.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func openDatabase(ctx context.Context, c config.Config) (*sql.DB, error) {
	db, err := sql.Open("pgx", c.GetPostgresDSN())
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return nil, fmt.Errorf("goose.SetDialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return nil, fmt.Errorf("goose.UpContext: %w", err)
	}
	return db, nil
}

func buildAuthService(c config.Config, db *sql.DB, redisClient *redis.Client) (*auth.Service, *token.Manager, error) {
	tokenManager := token.New(token.NewHMACSigner(c.GetJWTSecret()),
		token.WithIssuer(c.GetAppName()),
		token.WithTokenExpiry(c.GetAccessTokenExpiry(), c.GetRefreshTokenExpiry()),
	)

	authService, err := auth.NewService(
		auth.Repos{Users: users.NewPostgresRepo(db)},
		auth.Stores{
			RefreshTokens: refresh.NewRedisLedger(redisClient),
			Reset:         reset.NewStore(redisClient, c.GetResetCodeTTL(), c.GetResetTokenTTL()),
			Verification:  verification.NewStore(redisClient, c.GetVerificationTokenTTL()),
		},
		tokenManager,
		token.NewHasher(c.GetTokenHashSecret()),
		auth.WithMailer(buildMailer(c)),
		auth.WithFrontendBaseURL(c.GetFrontendBaseURL()),
		auth.WithBcryptCost(c.GetBcryptCost()),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("auth.NewService: %w", err)
	}
	return authService, tokenManager, nil
}

func buildMailer(c config.Config) mail.Mailer {
	if c.GetSmtpAccount() == "" {
		zlog.Warn().Msg("SMTP not configured, outgoing mail is suppressed")
		return mail.NoOpMailer{}
	}
	return mail.NewSMTPMailer(
		c.GetSmtpHost(),
		c.GetSmtpPort(),
		c.GetSmtpAccount(),
		c.GetSmtpPassword(),
		c.GetSmtpSender(),
	)
}

func listenAndServe(server *http.Server) error {
	log.Printf("Server listening on %s\n", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
