package cmd

import (
	"context"
	"errors"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/memote-webservice/internal/app"
	"github.com/JakeFAU/memote-webservice/internal/config"
)

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run snapshot workers against a shared queue without the HTTP API.",
		RunE:  withApp(work),
	}
}

// work runs the dispatcher until ctx is done. A standalone worker cannot
// see jobs enqueued into another process's memory queue.
func work(ctx context.Context, a *app.App) error {
	cfg := a.Config()
	if cfg.Queue.Backend == config.BackendMemory {
		return errors.New("worker command requires a shared queue backend")
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.RunJanitor(ctx)
	}()

	a.Logger().Info("dispatcher started", zap.Int("workers", cfg.Worker.Concurrency))
	a.Dispatcher().Run(ctx)
	wg.Wait()
	a.Logger().Info("dispatcher stopped")
	return nil
}
