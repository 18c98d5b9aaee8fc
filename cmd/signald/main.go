package main

import (
	"context"
	"fmt"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"

	"scriptsignal/internal/app"
	"scriptsignal/internal/biz/service"
	"scriptsignal/internal/log"
	"scriptsignal/internal/metrics"
	"scriptsignal/pkg/ratelimit"
	"scriptsignal/pkg/signal"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	def := app.DefaultConfig()

	cmd := &cobra.Command{
		Use:           "signald",
		Short:         "Serve named signals over HTTP, WebSocket and SSE",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var cfg app.Config
			if err := v.Unmarshal(&cfg); err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return run(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("addr", def.Addr, "listen address")
	flags.String("log-level", def.LogLevel, "minimum log level")
	flags.Bool("log-pretty", def.LogPretty, "human readable console logs")
	flags.Float64("fire-rate", def.FireRate, "fires per second allowed across all signals (0 disables refill)")
	flags.Int64("fire-burst", def.FireBurst, "fire burst size (0 disables rate limiting)")
	flags.Int("outbox-size", def.OutboxSize, "messages buffered per streaming client")
	flags.Int("max-signals", def.MaxSignals, "maximum number of signal names tracked")
	flags.Bool("fail-fast", def.FailFast, "let a panicking listener abort the fire instead of isolating it")

	v.SetEnvPrefix("SIGNALD")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	cobra.CheckErr(v.BindPFlags(flags))

	return cmd
}

func run(ctx context.Context, cfg app.Config) error {
	if err := log.SetLevel(cfg.LogLevel); err != nil {
		return err
	}
	if cfg.LogPretty {
		log.SetOutput(os.Stdout, true)
	}

	m, err := metrics.NewMetrics()
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	opts := []signal.Option{
		signal.WithLogger(*log.Logger()),
		signal.WithMetrics(m),
		signal.WithTracer(otel.Tracer("scriptsignal")),
	}
	if !cfg.FailFast {
		opts = append(opts,
			signal.WithIsolation(),
			signal.WithErrorHandler(func(err error) {
				log.Warn().Err(err).Msg("listener failed")
			}),
		)
	}

	var limiter *ratelimit.RateLimit
	if cfg.FireBurst > 0 {
		limiter = ratelimit.NewRateLimit(cfg.FireRate, cfg.FireBurst)
	}

	ctx, stop := ossignal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return app.Run(ctx, cfg, service.NewHub(limiter, cfg.MaxSignals, opts...))
}
