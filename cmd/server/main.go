package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/SIR2425/go-oauth20/internal/config"
	"github.com/SIR2425/go-oauth20/internal/metrics"
	"github.com/SIR2425/go-oauth20/providers/google"
	"github.com/SIR2425/go-oauth20/server"
	"github.com/SIR2425/go-oauth20/sessions"
	"github.com/SIR2425/go-oauth20/sessions/redisrepo"
	"github.com/SIR2425/go-oauth20/sessions/sqliterepo"
	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Error running server")
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.New()
	if err != nil {
		return err
	}
	setupLogging(c)
	displayAppname(c.GetAppName())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := openStore(ctx, c)
	if err != nil {
		return err
	}
	defer func() {
		if err := repo.Close(); err != nil {
			log.Err(err).Msg("Failed to close session store")
		}
	}()

	provider, err := google.New(ctx, google.Config{
		ClientID:        c.GetClientID(),
		ClientSecret:    c.GetClientSecret(),
		RedirectURL:     c.GetCallbackURL(),
		IssuerURL:       c.GetIssuerURL(),
		ExchangeTimeout: c.GetExchangeTimeout(),
	})
	if err != nil {
		return err
	}

	handler, err := server.New(c, repo, provider, metrics.New())
	if err != nil {
		return err
	}
	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return listenAndServe(httpServer)
	})
	g.Go(func() error {
		return sessions.RunJanitor(gctx, repo, c.GetSweepInterval())
	})
	g.Go(func() error {
		<-gctx.Done()
		return shutdown(httpServer)
	})
	return g.Wait()
}

func openStore(ctx context.Context, c config.Config) (sessions.Repo, error) {
	policy := sessions.Policy{IdleTimeout: c.GetIdleTimeout(), MaxAge: c.GetMaxSessionAge()}

	switch c.GetSessionStore() {
	case config.StoreRedis:
		client, err := redisrepo.Dial(ctx, c.GetRedisURL())
		if err != nil {
			return nil, err
		}
		log.Info().Msg("Using redis session store")
		return redisrepo.New(client, policy), nil
	case config.StoreSQLite:
		repo, err := sqliterepo.Open(c.GetSQLitePath(), policy)
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", c.GetSQLitePath()).Msg("Using sqlite session store")
		return repo, nil
	default:
		log.Info().Msg("Using in-memory session store")
		return sessions.NewInMemoryRepo(policy), nil
	}
}

func setupLogging(c config.Config) {
	level, err := zerolog.ParseLevel(c.GetLogLevel())
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if c.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	log.Logger = log.With().Str("service", c.GetAppName()).Logger()
	zerolog.DefaultContextLogger = &log.Logger
}

func listenAndServe(server *http.Server) error {
	log.Info().Msgf("Server listening on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
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
