package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/meetscribe/pkg/cli/config"
	"github.com/secmon-lab/meetscribe/pkg/service/worker"
	"github.com/secmon-lab/meetscribe/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdCleanup() *cli.Command {
	var appCfg config.AppConfig
	var repoCfg config.Repository
	var storageCfg config.Storage

	var flags []cli.Flag
	flags = append(flags, appCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, storageCfg.Flags()...)

	return &cli.Command{
		Name:  "cleanup",
		Usage: "Delete audio of meetings past the retention period",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			app, err := appCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to load configuration")
			}

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

			w := worker.NewCleanupWorker(repo, storage, worker.WithRetention(app.CleanupRetention()))
			removed, err := w.RunOnce(ctx)
			if err != nil {
				return goerr.Wrap(err, "cleanup finished with errors", goerr.V("removed", removed))
			}

			logging.Default().Info("Cleanup completed", "removed", removed)
			return nil
		},
	}
}
