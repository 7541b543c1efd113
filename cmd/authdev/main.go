// Package main runs the fake Tech Notes auth API on a local port so dashctl
// can be exercised without the real backend.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"sort"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-auth-session/authfake"
	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/jrsteele09/go-auth-session/internal/logging"
	"github.com/rs/zerolog"
)

func main() {
	configPath := flag.String("config", "", "Config file path (YAML)")
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading .env: %s\n", err)
		os.Exit(1)
	}
	c, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %s\n", err)
		os.Exit(1)
	}
	log := logging.New(c.GetLogLevel(), c.GetEnv()).With().Str("app", "authdev").Logger()

	for {
		if err := run(c, log); err != nil {
			log.Error().Err(err).Msg("Error running server")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("Server stopped")
}

func run(c config.Config, log zerolog.Logger) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	handler, err := authfake.NewServer(serverOptions(c, log)...)
	if err != nil {
		return fmt.Errorf("authfake.NewServer: %w", err)
	}

	displayAppname("authdev")
	server := &http.Server{Addr: c.GetPort(), Handler: handler}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- listenAndServe(server, log)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(server)
}

// serverOptions maps the dev server config onto the fake API
func serverOptions(c config.DevServerConfig, log zerolog.Logger) []authfake.ServerOption {
	opts := []authfake.ServerOption{
		authfake.WithSecret([]byte(c.GetAccessTokenSecret())),
		authfake.WithAccessTokenExpiry(c.GetAccessTokenExpiry()),
		authfake.WithRefreshTokenExpiry(c.GetRefreshTokenExpiry()),
		authfake.WithLogger(log),
	}
	if sc, ok := c.(config.SessionConfig); ok {
		if codes := sc.GetReauthStatusCodes(); len(codes) > 0 {
			opts = append(opts, authfake.WithReauthStatus(codes[0]))
		}
	}

	accounts := c.GetDemoAccounts()
	names := make([]string, 0, len(accounts))
	for name := range accounts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		account := accounts[name]
		roles := make([]authfake.RoleType, 0, len(account.Roles))
		for _, r := range account.Roles {
			roles = append(roles, authfake.RoleType(r))
		}
		opts = append(opts, authfake.WithUser(account.Username, account.Password, roles...))
	}
	return opts
}

func listenAndServe(server *http.Server, log zerolog.Logger) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
