package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gitplane/gitplane/internal/config"
	"github.com/gitplane/gitplane/internal/service"
)

type runParams struct {
	configFiles []string
	singleShot  bool
	quiet       bool
	dataDir     string
	metricsAddr string
	workers     int
	strictMerge bool
}

func init() {
	params := runParams{}

	run := &cobra.Command{
		Use:   "run",
		Short: "Synchronize the configured mirrors",
		Long: `Run synchronizes each configured mirror: branches and tags of the source
remote are pushed to the destination remote according to the mirror's
configuration. By default mirrors are re-synchronized periodically; with
--single-shot each mirror is synchronized once and the command exits,
failing if any mirror could not be brought up to date.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(params.configFiles, params.strictMerge)
			if err != nil {
				return err
			}

			if cfg.Service == nil {
				cfg.Service = &config.Service{}
			}
			if params.dataDir != "" {
				cfg.Service.DataDir = params.dataDir
			}
			if params.metricsAddr != "" {
				cfg.Service.MetricsAddr = params.metricsAddr
			}
			if params.workers > 0 {
				cfg.Service.Workers = params.workers
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc := service.New(cfg, newLogger()).
				WithSingleShot(params.singleShot).
				WithQuiet(params.quiet)

			err = svc.Run(ctx)
			if errors.Is(err, ctx.Err()) {
				return nil
			}
			return err
		},
	}

	run.Flags().StringArrayVarP(&params.configFiles, "config", "c", []string{"config.yaml"}, "path to configuration file or directory (can be repeated)")
	run.Flags().BoolVarP(&params.singleShot, "single-shot", "1", false, "synchronize each mirror once and exit")
	run.Flags().BoolVarP(&params.quiet, "quiet", "q", false, "disable the progress bar")
	run.Flags().StringVar(&params.dataDir, "data-dir", "", "directory for local working copies (overrides configuration)")
	run.Flags().StringVar(&params.metricsAddr, "metrics-addr", "", "address to serve Prometheus metrics on (overrides configuration)")
	run.Flags().IntVar(&params.workers, "workers", 0, "number of concurrent mirror workers (overrides configuration)")
	run.Flags().BoolVar(&params.strictMerge, "strict-merge", false, "fail when configuration files conflict instead of letting later files win")

	rootCmd.AddCommand(run)
}

func loadConfig(files []string, strictMerge bool) (*config.Root, error) {
	merged, err := config.Merge(files, strictMerge)
	if err != nil {
		return nil, err
	}

	root, err := config.Parse(merged)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return root, nil
}
