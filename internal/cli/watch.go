package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/weilai0412/dormwatt/internal/logging"
	"github.com/weilai0412/dormwatt/pkg/monitor"
	"github.com/weilai0412/dormwatt/pkg/notify"
	"github.com/weilai0412/dormwatt/pkg/portal"
)

var watchCmd = &cobra.Command{
	Use:   "watch [config]",
	Short: "Poll room balances and alert below the threshold",
	Long: `Watch runs poll cycles over all configured rooms. With check_interval 0
it runs a single cycle and exits; otherwise it keeps polling until
interrupted, sleeping check_interval seconds between cycles.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		cfg, err := loadConfig(args)
		if err != nil {
			return err
		}
		logger := logging.Setup(logLevel, logFile)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		creds := portal.Credentials{Username: cfg.Username, Password: cfg.Password}
		sessions := portal.NewManager(portal.DefaultBaseURL, portal.DefaultPortalURL, creds, portal.NewGojaComputer(), logger)
		fetcher := portal.NewFetcher(portal.DefaultPortalURL)
		dispatcher := notify.NewDispatcher(cfg.SMTP, logger)
		scheduler := monitor.NewScheduler(cfg, sessions, fetcher, dispatcher, logger)

		logger.Info("watcher started",
			"rooms", len(cfg.Queries),
			"interval", cfg.CheckInterval,
			"threshold", cfg.AlertBalance,
		)

		err = scheduler.Run(ctx)
		if errors.Is(err, context.Canceled) {
			logger.Info("watcher stopped")
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
