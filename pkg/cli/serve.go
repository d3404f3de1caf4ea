package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/meetscribe/pkg/cli/config"
	httpctrl "github.com/secmon-lab/meetscribe/pkg/controller/http"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"github.com/secmon-lab/meetscribe/pkg/service/audio"
	"github.com/secmon-lab/meetscribe/pkg/service/dedup"
	"github.com/secmon-lab/meetscribe/pkg/service/embedding"
	"github.com/secmon-lab/meetscribe/pkg/service/extraction"
	"github.com/secmon-lab/meetscribe/pkg/service/integration"
	"github.com/secmon-lab/meetscribe/pkg/service/notification"
	"github.com/secmon-lab/meetscribe/pkg/service/pii"
	"github.com/secmon-lab/meetscribe/pkg/service/pipeline"
	"github.com/secmon-lab/meetscribe/pkg/service/tasksync"
	"github.com/secmon-lab/meetscribe/pkg/service/worker"
	"github.com/secmon-lab/meetscribe/pkg/usecase"
	"github.com/secmon-lab/meetscribe/pkg/utils/errutil"
	"github.com/secmon-lab/meetscribe/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdServe(version string) *cli.Command {
	var addr string
	var verboseErrors bool
	var appCfg config.AppConfig
	var repoCfg config.Repository
	var storageCfg config.Storage
	var geminiCfg config.Gemini
	var transcriptionCfg config.Transcription
	var authCfg config.Auth
	var sentryCfg config.Sentry
	var slackCfg config.Slack

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("MEETSCRIBE_ADDR"),
			Destination: &addr,
		},
		&cli.BoolFlag{
			Name:        "verbose-errors",
			Usage:       "Return internal error messages in API responses (development only)",
			Sources:     cli.EnvVars("MEETSCRIBE_VERBOSE_ERRORS"),
			Destination: &verboseErrors,
		},
	}

	// Add shared config flags
	flags = append(flags, appCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, storageCfg.Flags()...)
	flags = append(flags, geminiCfg.Flags()...)
	flags = append(flags, transcriptionCfg.Flags()...)
	flags = append(flags, authCfg.Flags()...)
	flags = append(flags, sentryCfg.Flags()...)
	flags = append(flags, slackCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			startedAt := time.Now()
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			if err := sentryCfg.Configure(version); err != nil {
				return err
			}
			defer errutil.Flush(2 * time.Second)

			app, err := appCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to load configuration")
			}

			// Initialize repository based on backend type
			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logging.Default().Error("failed to close repository", "error", err.Error())
				}
			}()

			storage, closeStorage, err := storageCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize storage")
			}
			defer closeStorage()

			llmClient, err := geminiCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize LLM client")
			}
			if llmClient == nil {
				return goerr.Wrap(config.ErrMissingArgument, "gemini-project is required for task extraction and embeddings")
			}
			logging.Default().Info("LLM client enabled", "gemini", geminiCfg)

			processor := transcriptionCfg.AudioProcessor()
			transcriber, err := transcriptionCfg.Configure(processor)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize transcription")
			}
			logging.Default().Info("Transcription enabled", "transcription", transcriptionCfg)

			extractor, err := extraction.New(llmClient)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize task extraction")
			}
			embedder, err := embedding.New(llmClient)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize embeddings")
			}
			redactor := pii.New(pii.WithLLM(llmClient))

			verifier, err := authCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to configure authentication")
			}
			if authCfg.IsNoAuthMode() {
				logging.Default().Warn("Running in no-auth mode (development only)")
			}

			slackSink, err := slackCfg.Configure()
			if err != nil {
				return err
			}
			if slackCfg.IsConfigured() {
				logging.Default().Info("Slack notification enabled", "slack", slackCfg)
			}

			// The hub authorizes subscriptions through the use cases, which in turn
			// publish through the hub
			var uc *usecase.UseCases
			hub := notification.NewHub(notification.WithAuthorizer(
				func(ctx context.Context, userID model.UserID, topic string) bool {
					return httpctrl.NewTopicAuthorizer(uc)(ctx, userID, topic)
				},
			))
			hubDone := make(chan struct{})
			go func() {
				defer close(hubDone)
				hub.Run(ctx)
			}()
			bus := notification.Multi{hub, slackSink}

			queue := worker.NewQueue(worker.WithWorkers(app.Pipeline.Workers))
			if err := queue.Start(ctx); err != nil {
				return goerr.Wrap(err, "failed to start job queue")
			}

			adapters := integration.Default()
			syncer := tasksync.New(repo, adapters, queue,
				tasksync.WithNotificationBus(bus),
				tasksync.WithMaxRetries(app.Sync.MaxRetries),
				tasksync.WithBaseDelay(app.SyncBaseDelay()),
				tasksync.WithConcurrency(app.Sync.Concurrency),
			)

			meetingPipeline := pipeline.New(repo, storage, transcriber, redactor, extractor, embedder,
				pipeline.WithNotificationBus(bus),
				pipeline.WithLanguage(app.Pipeline.Language),
				pipeline.WithMaxRetries(app.Pipeline.MaxRetries),
			)
			recovered, err := meetingPipeline.RecoverInterrupted(ctx, startedAt)
			if err != nil {
				return goerr.Wrap(err, "failed to recover interrupted meetings")
			}
			if recovered > 0 {
				logging.Default().Warn("Marked interrupted meetings as failed", "count", recovered)
			}

			uc = usecase.New(repo,
				usecase.WithStorage(storage),
				usecase.WithScheduler(queue),
				usecase.WithMeetingProcessor(meetingPipeline),
				usecase.WithTaskSyncer(syncer),
				usecase.WithAdapterFactory(adapters),
				usecase.WithAudioProcessor(processor),
				usecase.WithUploadValidator(audio.NewValidator(
					audio.WithFormats(app.Upload.Formats...),
					audio.WithMaxSize(app.MaxUploadSize()),
				)),
				usecase.WithDedup(dedup.New(repo.Task(), embedder)),
			)

			cleanupWorker := worker.NewCleanupWorker(repo, storage,
				worker.WithRetention(app.CleanupRetention()),
				worker.WithInterval(app.CleanupInterval()),
			)
			if err := cleanupWorker.Start(ctx); err != nil {
				return goerr.Wrap(err, "failed to start cleanup worker")
			}

			srv := httpctrl.New(uc, verifier,
				httpctrl.WithHub(hub),
				httpctrl.WithVerboseErrors(verboseErrors),
				httpctrl.WithMaxUploadSize(app.MaxUploadSize()),
			)

			server := &http.Server{
				Addr:              addr,
				Handler:           srv,
				ReadHeaderTimeout: 10 * time.Second,
			}

			// Setup signal handling for graceful shutdown
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			// Start server in goroutine
			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("Starting HTTP server", "addr", addr)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			shutdown := func() error {
				cleanupWorker.Stop()

				shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancelShutdown()

				// Stop accepting requests before draining background jobs
				err := server.Shutdown(shutdownCtx)
				queue.Stop()
				cancel()
				<-hubDone

				if err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}
				logging.Default().Info("Server shutdown completed")
				return nil
			}

			// Wait for shutdown signal or server error
			select {
			case err := <-errCh:
				_ = shutdown()
				return err
			case sig := <-sigCh:
				logging.Default().Info("Received shutdown signal", "signal", sig)
				return shutdown()
			}
		},
	}
}
