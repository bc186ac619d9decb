package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/vango-dev/ssr/internal/config"
	"github.com/vango-dev/ssr/pkg/prerender"
	"github.com/vango-dev/ssr/pkg/ssr"
)

type prerenderFlags struct {
	output     string
	parallel   int
	partial    bool
	noExtraDir bool
	clean      bool

	s3Bucket   string
	s3Prefix   string
	s3Region   string
	s3Endpoint string
}

func prerenderCmd(app App, loadConfig func() (*config.Config, error)) *cobra.Command {
	var flags prerenderFlags

	cmd := &cobra.Command{
		Use:   "prerender",
		Short: "Prerender pages to static files",
		Long: `Render every prerenderable page to static HTML files.

Pages are prerendered when their route has no params, or when a
prerender() hook returns URLs matching them. Pages exporting
doNotPrerender are skipped.

Files are written to <build.output>/client, or uploaded to S3 with
--s3-bucket. AWS credentials are read from AWS_ACCESS_KEY_ID and
AWS_SECRET_ACCESS_KEY.

Examples:
  ssr prerender
  ssr prerender --parallel=1
  ssr prerender --no-extra-dir --partial
  ssr prerender --s3-bucket=my-site --s3-region=eu-west-1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("parallel") {
				cfg.Prerender.Parallel = config.Parallel(flags.parallel)
			}
			return runPrerender(cmd, app, cfg, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Output directory (default from ssr.json)")
	cmd.Flags().IntVarP(&flags.parallel, "parallel", "p", 0, "Concurrent hook calls and writes, 0 for one per CPU (default from ssr.json)")
	cmd.Flags().BoolVar(&flags.partial, "partial", false, "Don't warn about pages that can't be prerendered")
	cmd.Flags().BoolVar(&flags.noExtraDir, "no-extra-dir", false, "Write /about to about.html instead of about/index.html")
	cmd.Flags().BoolVar(&flags.clean, "clean", false, "Remove prerendered HTML files before rendering")
	cmd.Flags().StringVar(&flags.s3Bucket, "s3-bucket", "", "Upload files to this S3 bucket instead of writing them")
	cmd.Flags().StringVar(&flags.s3Prefix, "s3-prefix", "", "Key prefix of uploaded files")
	cmd.Flags().StringVar(&flags.s3Region, "s3-region", "us-east-1", "S3 region")
	cmd.Flags().StringVar(&flags.s3Endpoint, "s3-endpoint", "", "Endpoint of an S3-compatible service")

	return cmd
}

func runPrerender(cmd *cobra.Command, app App, cfg *config.Config, flags prerenderFlags) error {
	out := cmd.OutOrStdout()

	if flags.output != "" {
		cfg.Build.Output = flags.output
	}
	if flags.partial {
		cfg.Prerender.Partial = true
	}
	if flags.noExtraDir {
		cfg.Prerender.NoExtraDir = true
	}

	opts := prerender.Options{
		Config: cfg,
		Files:  files(app),
		OnProgress: func(step string) {
			info(out, "%s", step)
		},
	}

	ctx, cancel := signalContext()
	defer cancel()

	dest := cfg.ClientOutputPath()
	if flags.s3Bucket != "" {
		client, err := prerender.NewS3Client(ctx, flags.s3Region, flags.s3Endpoint)
		if err != nil {
			return err
		}
		opts.Sink = prerender.NewS3Sink(client, flags.s3Bucket, flags.s3Prefix)
		dest = "s3://" + flags.s3Bucket + "/" + flags.s3Prefix
	} else if flags.clean {
		info(out, "Cleaning prerendered files...")
		if err := cleanHTML(dest); err != nil {
			return err
		}
	}

	fmt.Fprintln(out, "  Prerendering...")
	fmt.Fprintln(out)

	res, err := prerender.Run(ctx, opts)
	if err != nil {
		return err
	}

	fmt.Fprintln(out)
	success(out, "Prerendered %d pages in %s", len(res.Pages), res.Duration.Round(time.Millisecond))
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  Output: %s\n", dest)
	for _, f := range res.Files {
		fmt.Fprintf(out, "    %s\n", f)
	}
	if len(res.Excluded) > 0 {
		fmt.Fprintln(out)
		info(out, "Skipped by doNotPrerender: %v", res.Excluded)
	}
	if res.Warnings > 0 {
		fmt.Fprintln(out)
		warn(out, "%d warnings, see the log output", res.Warnings)
	}
	fmt.Fprintln(out)
	return nil
}

// cleanHTML removes the .html and .pageContext.json files below dir,
// leaving client assets in place.
func cleanHTML(dir string) error {
	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if filepath.Ext(p) == ".html" || strings.HasSuffix(p, ssr.PageContextSuffix) {
			return os.Remove(p)
		}
		return nil
	})
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
