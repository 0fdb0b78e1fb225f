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

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-auth-bridge/internal/config"
	"github.com/jrsteele09/go-auth-bridge/internal/devprovider"
	"github.com/jrsteele09/go-auth-bridge/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// devProviderPrefix is where the in-process provider is mounted in DEV.
const devProviderPrefix = "/auth/v1"

func main() {
	for {
		if err := run(); err != nil {
			log.Error().Err(err).Msg("Error running server")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
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
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	setupLogging(c)
	displayAppname(c.GetAppName())

	handler, err := newHandler(c)
	if err != nil {
		return err
	}
	defer handler.Close()

	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- listenAndServe(httpServer)
	}()

	select {
	case err := <-errCh:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(httpServer)
}

// newHandler builds the web application. In DEV without a configured provider
// the development provider is served by the same process.
func newHandler(c config.Config) (*server.Server, error) {
	if c.GetProviderURL() != "" || !c.IsDev() {
		return server.New(c)
	}

	var opts []devprovider.Option
	opts = append(opts, devprovider.WithAPIKey(c.GetProviderAnonKey()), devprovider.WithSiteURL(c.GetBaseURL()))
	if secret := c.GetProviderJWTSecret(); secret != "" {
		opts = append(opts, devprovider.WithJWTSecret(secret))
	}
	dev := devprovider.New(opts...)

	providerURL := c.GetBaseURL() + devProviderPrefix
	log.Warn().Str("provider_url", providerURL).Msg("AUTH_PROVIDER_URL not set, using the in-process development provider")

	s, err := server.New(c, server.WithProviderURL(providerURL))
	if err != nil {
		return nil, err
	}
	s.RegisterRouteHandler(devProviderPrefix+"/", http.StripPrefix(devProviderPrefix, dev))
	return s, nil
}

func setupLogging(c config.Config) {
	level, err := zerolog.ParseLevel(c.GetLogLevel())
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if c.IsDev() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func listenAndServe(server *http.Server) error {
	log.Info().Msgf("Server listening on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
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
