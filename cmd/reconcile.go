package cmd

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile stale checkout-backed payments against the provider",
	Run: func(_ *cobra.Command, _ []string) {
		runJob("reconcile", func(ctx context.Context) error {
			_, checkoutService, cleanup := mustCreateCheckoutService()
			defer cleanup()

			_, err := checkoutService.RunReconcileBatch(ctx)
			return err
		})
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}

// runJob executes a one-shot batch; scheduling is left to the operator's cron.
func runJob(name string, fn func(ctx context.Context) error) {
	start := time.Now()
	err := fn(context.Background())
	latency := time.Since(start)
	if err != nil {
		logrus.WithError(err).WithField("job", name).WithField("latency", latency.String()).Error("job_failed")
		return
	}
	logrus.WithField("job", name).WithField("latency", latency.String()).Info("job_completed")
}
