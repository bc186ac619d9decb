package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/vango-dev/ssr/internal/config"
	"github.com/vango-dev/ssr/internal/errors"
	"github.com/vango-dev/ssr/pkg/page"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// App is an application served and prerendered by the CLI.
type App struct {
	// Name is the binary name shown in help output.
	Name string

	// Files returns the page files of the app. It is called once per
	// command.
	Files func() []*page.File
}

// NewRootCommand returns the root command of app with the prerender, serve
// and version commands.
func NewRootCommand(app App) *cobra.Command {
	name := app.Name
	if name == "" {
		name = "ssr"
	}

	var (
		configPath string
		verbose    bool
	)

	root := &cobra.Command{
		Use:   name,
		Short: "Render pages on the server and prerender them to static files",
		Long: `Render pages on the server and prerender them to static files.

Commands:
  prerender   Render every prerenderable page to the output directory
  serve       Serve pages, rendered on each request

Configuration is read from ssr.json or ssr.yaml in the project root.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ssr.json or ssr.yaml in the project root)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output")

	loadConfig := func() (*config.Config, error) {
		if configPath != "" {
			return config.LoadFile(configPath)
		}
		return config.LoadFromWorkingDir()
	}

	root.AddCommand(
		prerenderCmd(app, loadConfig),
		serveCmd(app, loadConfig),
		versionCmd(),
	)
	return root
}

// Execute runs the root command of app and exits with a non-zero status on
// failure.
func Execute(app App) {
	if err := NewRootCommand(app).Execute(); err != nil {
		errors.PrintError(os.Stderr, err)
		os.Exit(1)
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func files(app App) []*page.File {
	if app.Files == nil {
		return nil
	}
	return app.Files()
}

// success prints a success message.
func success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}
