package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wastemaster/wastemaster/app"
	"github.com/wastemaster/wastemaster/config"
	"github.com/wastemaster/wastemaster/core/billing"
	"github.com/wastemaster/wastemaster/core/dispatch"
	"github.com/wastemaster/wastemaster/core/ledger"
	"github.com/wastemaster/wastemaster/core/lifecycle"
	"github.com/wastemaster/wastemaster/core/orchestrator"
	"github.com/wastemaster/wastemaster/infra/logger"
	"github.com/wastemaster/wastemaster/internal/eventbus"
)

var passCmd = &cobra.Command{
	Use:   "pass",
	Short: "Run a single scheduling pass",
	RunE:  runPass,
}

func init() {
	rootCmd.AddCommand(passCmd)
}

func runPass(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logg := logger.New("pass-command")
	st, err := app.OpenStore(cfg.Store)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	bus := eventbus.New()
	led := ledger.New()
	lm, err := lifecycle.NewManager(st, led, bus, logg)
	if err != nil {
		return fmt.Errorf("lifecycle manager: %w", err)
	}
	feed, err := billing.NewFeed(st, bus, logg)
	if err != nil {
		return fmt.Errorf("billing feed: %w", err)
	}
	orch, err := orchestrator.New(cfg.Orchestrator, st, led, dispatch.LeastLoadDispatcher{}, lm, feed, bus, nil, logg)
	if err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}
	passLog, err := app.OpenPassLog(cfg.PassLog)
	if err != nil {
		return fmt.Errorf("pass log: %w", err)
	}
	defer func() {
		if err := passLog.Close(); err != nil {
			logg.Errorf("pass log close: %v", err)
		}
	}()
	orch.SetPassLog(passLog)

	sum, err := orch.RunPass(ctx, time.Now().UTC())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), sum.String())
	return nil
}
