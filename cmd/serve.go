package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/structharvest/harvester/internal/api"
	"github.com/structharvest/harvester/internal/capsule"
	"github.com/structharvest/harvester/internal/dispatcher"
	"github.com/structharvest/harvester/internal/worker"
)

// nopEnqueuer rejects submissions when jobs come from Pub/Sub instead of the
// local queue.
type nopEnqueuer struct{}

func (nopEnqueuer) Enqueue(context.Context, capsule.Job) error {
	return errors.New("job submission disabled: jobs arrive via pubsub")
}

// newServeCmd runs the worker pool against the configured queue, with the
// ops HTTP server alongside.
func newServeCmd(getApp func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the harvest worker pool",
		Long: `Starts N workers consuming harvest jobs from the configured queue
(Pub/Sub subscription or the local in-memory queue) and serves health
probes, metrics, and job submission over HTTP.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := getApp()
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			workers := make([]*worker.Worker, 0, a.cfg.Harvest.Concurrency)
			for i := 0; i < a.cfg.Harvest.Concurrency; i++ {
				workers = append(workers, worker.New(
					a.queueSource(),
					a.orchestrator,
					a.logger.Named("worker").With(zap.Int("index", i)),
				))
			}
			dispatch := dispatcher.New(workers)

			var enqueuer api.Enqueuer = nopEnqueuer{}
			if a.memQueue != nil {
				enqueuer = a.memQueue
			}
			apiServer := api.NewServer(enqueuer, a.cfg.Harvest.DefaultOwner, a.logger.Named("api"))

			srv := &http.Server{
				Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
				Handler:           apiServer.Handler(),
				ReadHeaderTimeout: 5 * time.Second,
			}

			dispatchDone := make(chan struct{})
			go func() {
				a.logger.Info("dispatcher started", zap.Int("workers", len(workers)))
				dispatch.Run(ctx)
				close(dispatchDone)
			}()

			go func() {
				a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					a.logger.Error("http server error", zap.Error(err))
					stop()
				}
			}()

			<-ctx.Done()
			a.logger.Info("shutdown initiated")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.logger.Error("server shutdown error", zap.Error(err))
			}
			if a.memQueue != nil {
				a.memQueue.Close()
			}
			<-dispatchDone
			a.logger.Info("shutdown complete")
			return nil
		},
	}
}
