package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/jrsteele09/go-auth-session/apiclient"
	"github.com/jrsteele09/go-auth-session/auth"
	"github.com/jrsteele09/go-auth-session/authorizer"
	"github.com/jrsteele09/go-auth-session/gateway"
	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/jrsteele09/go-auth-session/internal/logging"
	"github.com/jrsteele09/go-auth-session/metrics"
	"github.com/jrsteele09/go-auth-session/persist"
	"github.com/jrsteele09/go-auth-session/session"
	"github.com/jrsteele09/go-auth-session/token"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const cookieFileName = "cookies.json"

// app is the wired session stack for one invocation
type app struct {
	cfg     config.Config
	log     zerolog.Logger
	jar     *gateway.FileJar
	service *auth.Service
	api     *apiclient.Client

	registry   *prometheus.Registry
	metricsOut io.Writer // nil unless --metrics
}

func newApp(cmd *cobra.Command, opts *globalOptions) (*app, error) {
	ctx := cmd.Context()
	if err := config.LoadDotEnv(opts.envFiles...); err != nil {
		return nil, err
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	level := opts.logLevel
	if level == "" {
		level = cfg.GetLogLevel()
	}
	log := logging.New(level, cfg.GetEnv()).With().Str("app", appName).Logger()

	jar, err := gateway.NewFileJar(filepath.Join(cfg.GetDataFolder(), cookieFileName), cfg.GetAPIBaseURL(), gateway.WithJarLogger(log))
	if err != nil {
		return nil, fmt.Errorf("open cookie jar: %w", err)
	}
	gw, err := gateway.New(cfg.GetAPIBaseURL(),
		gateway.WithCookieJar(jar),
		gateway.WithTimeout(cfg.GetRequestTimeout()),
		gateway.WithRefreshRejectedStatuses(cfg.GetReauthStatusCodes()...),
		gateway.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}

	var decoderOpts []token.DecoderOption
	if jwksURL := cfg.GetJWKSURL(); jwksURL != "" {
		decoderOpts = append(decoderOpts, token.WithVerifier(token.NewRemoteOIDCVerifier(ctx, cfg.GetIssuer(), jwksURL)))
	}

	registry := prometheus.NewRegistry()
	collectors, err := metrics.New(registry)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, jar: jar, registry: registry}
	if opts.metrics {
		a.metricsOut = cmd.ErrOrStderr()
	}
	a.service, err = auth.NewService(
		auth.Deps{
			Gateway: gw,
			Store:   session.NewStore(),
			Persist: persist.NewFileFlag(cfg.GetPersistFile()),
		},
		auth.WithLogger(log),
		auth.WithMetrics(collectors),
		auth.WithDecoder(token.NewDecoder(decoderOpts...)),
		auth.WithCacheResetDelay(cfg.GetCacheResetDelay()),
		auth.WithCacheResetter(auth.CacheResetFunc(func() { a.api.ResetCache() })),
	)
	if err != nil {
		return nil, err
	}

	transport, err := authorizer.New(a.service,
		authorizer.WithReauthStatuses(cfg.GetReauthStatusCodes()...),
		authorizer.WithMetrics(collectors),
		authorizer.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}
	a.api, err = apiclient.New(cfg.GetAPIBaseURL(), transport, apiclient.WithLogger(log))
	if err != nil {
		return nil, err
	}
	return a, nil
}

// close flushes a delayed cache reset before the process exits and prints
// the session counters when asked to
func (a *app) close() {
	a.service.Close()
	if a.metricsOut == nil {
		return
	}
	families, err := a.registry.Gather()
	if err != nil {
		a.log.Warn().Err(err).Msg("could not gather metrics")
		return
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(a.metricsOut, mf); err != nil {
			a.log.Warn().Err(err).Msg("could not write metrics")
			return
		}
	}
}
