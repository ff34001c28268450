package main

import (
	"context"
	"flag"
	"log/slog"

	"github.com/dazzlo/bulkmail/internal/web"
	"github.com/dazzlo/bulkmail/pkg/dispatch"
	"github.com/dazzlo/bulkmail/pkg/logger"
	"github.com/dazzlo/bulkmail/pkg/templates"
)

func (c *cli) serve(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	addr := fs.String("addr", "", "listen address (default: HTTP_ADDR)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	cfg, err := c.loadConfig()
	if err != nil {
		return c.fail(err)
	}
	if *addr != "" {
		cfg.HTTP.Addr = *addr
	}

	log := logger.New(cfg.Log, web.RequestIDExtractor())

	branding, err := cfg.Branding()
	if err != nil {
		return c.fail(err)
	}

	transport := c.transport(cfg)
	catalog := templates.NewCatalog(templates.WithButtonColor(cfg.ButtonColor))
	opts := append(cfg.DispatchOptions(), dispatch.WithBranding(branding), dispatch.WithLogger(log))
	d := dispatch.New(transport, catalog, opts...)

	webOpts := []web.Option{
		web.WithLogger(log),
		web.WithAddr(cfg.HTTP.Addr),
		web.WithMaxUploadSize(cfg.HTTP.MaxUploadSize),
		web.WithShutdownTimeout(cfg.HTTP.ShutdownTimeout),
		web.WithCORSOrigins(cfg.HTTP.CORSOrigins...),
		web.WithChecks(cfg.ReadinessChecks()),
	}
	if cfg.SPFCheck && c.resolver != nil {
		webOpts = append(webOpts, web.WithSPFCheck(c.resolver, cfg.SPFIncludes...))
	}
	srv := web.New(d, transport, webOpts...)

	log.Info("bulkmail starting",
		slog.String("transport", cfg.Transport),
		slog.String("strategy", d.Strategy().String()),
	)
	if err := srv.Run(ctx); err != nil {
		log.Error("server stopped", slog.Any("error", err))
		return exitFailure
	}
	return exitOK
}
