package ssr

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/vango-dev/ssr/internal/config"
	"github.com/vango-dev/ssr/internal/errors"
	"github.com/vango-dev/ssr/pkg/assets"
	"github.com/vango-dev/ssr/pkg/page"
	"github.com/vango-dev/ssr/pkg/route"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// DefaultSlowHookWarning is how long a hook may run before a warning is
// logged.
const DefaultSlowHookWarning = 4 * time.Second

// Router finds the page for a page context. *route.Table implements it.
type Router interface {
	Route(ctx context.Context, pc *page.Context) (*route.Result, error)
}

// Options configures NewRenderContext.
type Options struct {
	// Config is the resolved configuration. Defaults to config.New().
	Config *config.Config

	// Files are the page files of the app.
	Files []*page.File

	// Assets is the client build manifest. When nil it is loaded from
	// Config.ManifestPath() if that file exists.
	Assets *assets.Manifest

	// Router overrides the routing table built from Files.
	Router Router

	// SlowHookWarning defaults to DefaultSlowHookWarning.
	SlowHookWarning time.Duration

	Logger *slog.Logger
	Warner *errors.Warner
}

// RenderContext holds everything needed to render pages. It is built once
// and shared by all requests or by a whole prerender run.
type RenderContext struct {
	Config   *config.Config
	Pages    *page.Manifest
	Assets   *assets.Manifest
	Resolver assets.Resolver
	Router   Router

	HookTimeout     time.Duration
	SlowHookWarning time.Duration

	Logger *slog.Logger
	Warner *errors.Warner

	tracer trace.Tracer
}

// NewRenderContext composes the page files, loads the asset manifest and
// builds the routing table.
func NewRenderContext(ctx context.Context, opts Options) (*RenderContext, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.New()
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "ssr")
	}
	warner := opts.Warner
	if warner == nil {
		warner = errors.NewWarner(logger)
	}

	pages, err := page.NewManifest(opts.Files)
	if err != nil {
		return nil, err
	}

	manifest := opts.Assets
	if manifest == nil {
		manifest, err = loadAssets(cfg)
		if err != nil {
			return nil, err
		}
	}

	router := opts.Router
	if router == nil {
		table, err := route.NewTable(ctx, pages)
		if err != nil {
			return nil, err
		}
		router = table
	}

	slow := opts.SlowHookWarning
	if slow <= 0 {
		slow = DefaultSlowHookWarning
	}

	return &RenderContext{
		Config:          cfg,
		Pages:           pages,
		Assets:          manifest,
		Resolver:        assets.NewResolver(manifest, cfg.AssetsBase()),
		Router:          router,
		HookTimeout:     cfg.HookTimeoutDuration(),
		SlowHookWarning: slow,
		Logger:          logger,
		Warner:          warner,
		tracer:          otel.Tracer(tracerName),
	}, nil
}

func loadAssets(cfg *config.Config) (*assets.Manifest, error) {
	path := cfg.ManifestPath()
	if _, err := os.Stat(path); err != nil {
		return assets.NewManifest(), nil
	}
	return assets.Load(path)
}

// PageAssets returns the resolved assets of a page.
func (rc *RenderContext) PageAssets(pageID string) []assets.PageAsset {
	return assets.ResolvePageAssets(rc.Assets, rc.Resolver, pageID)
}

// Hydratable reports whether the page has client code, in which case its
// page context is serialized for the client.
func (rc *RenderContext) Hydratable(pageID string) bool {
	return rc.Assets.Hydratable(pageID)
}

// NewPageContext creates a page context for urlOriginal, merging init.
func (rc *RenderContext) NewPageContext(urlOriginal string, init map[string]any) (*page.Context, error) {
	pc := page.NewContext(urlOriginal)
	if len(init) > 0 {
		if err := pc.Merge(init); err != nil {
			return nil, err
		}
	}
	return pc, nil
}
