package cli

import (
	"context"

	"github.com/m-mizutani/fireconf"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/meetscribe/pkg/cli/config"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"github.com/secmon-lab/meetscribe/pkg/repository/firestore"
	"github.com/secmon-lab/meetscribe/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdMigrate() *cli.Command {
	var repoCfg config.Repository
	var dryRun bool

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "dry-run",
			Usage:       "Preview changes without applying",
			Destination: &dryRun,
		},
	}
	flags = append(flags, repoCfg.Flags()...)

	return &cli.Command{
		Name:    "migrate",
		Aliases: []string{"m"},
		Usage:   "Migrate Firestore indexes or the PostgreSQL schema",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.Default()

			switch repoCfg.Backend() {
			case "firestore":
				return migrateFirestore(ctx, &repoCfg, dryRun)

			case "postgres":
				if dryRun {
					logger.Info("Dry run is not supported for postgres; schema is migrated on connect")
					return nil
				}
				// Opening the repository runs AutoMigrate
				repo, err := repoCfg.Configure(ctx)
				if err != nil {
					return goerr.Wrap(err, "failed to migrate postgres schema")
				}
				if err := repo.Close(); err != nil {
					logger.Error("failed to close repository", "error", err.Error())
				}
				logger.Info("Migrations applied successfully")
				return nil

			default:
				return goerr.Wrap(config.ErrInvalidBackend, "migrate supports firestore and postgres backends",
					goerr.V(config.BackendKey, repoCfg.Backend()))
			}
		},
	}
}

func migrateFirestore(ctx context.Context, repoCfg *config.Repository, dryRun bool) error {
	logger := logging.Default()
	if repoCfg.ProjectID() == "" {
		return goerr.Wrap(config.ErrMissingArgument, "firestore-project-id is required")
	}

	logger.Info("Migrate configuration",
		"projectID", repoCfg.ProjectID(),
		"databaseID", repoCfg.DatabaseID(),
		"prefix", repoCfg.CollectionPrefix(),
		"dryRun", dryRun)

	indexConfig := getIndexConfig(repoCfg.CollectionPrefix())

	client, err := fireconf.NewClient(ctx, repoCfg.ProjectID(), repoCfg.DatabaseID())
	if err != nil {
		return goerr.Wrap(err, "failed to create fireconf client")
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Error("failed to close fireconf client", "error", err.Error())
		}
	}()

	if dryRun {
		logger.Info("Dry run mode - previewing changes")
		plan, err := client.GetMigrationPlan(ctx, indexConfig)
		if err != nil {
			return goerr.Wrap(err, "failed to create migration plan")
		}

		if len(plan.Steps) == 0 {
			logger.Info("No changes required")
			return nil
		}

		for _, step := range plan.Steps {
			logger.Info("Migration step",
				"collection", step.Collection,
				"operation", step.Operation,
				"description", step.Description,
				"destructive", step.Destructive)
		}
		return nil
	}

	logger.Info("Applying migrations")
	if err := client.Migrate(ctx, indexConfig); err != nil {
		return goerr.Wrap(err, "failed to apply migrations")
	}
	logger.Info("Migrations applied successfully")
	return nil
}

func asc(path string) fireconf.IndexField {
	return fireconf.IndexField{Path: path, Order: fireconf.OrderAscending}
}

func desc(path string) fireconf.IndexField {
	return fireconf.IndexField{Path: path, Order: fireconf.OrderDescending}
}

// taskListIndexes covers every combination of the optional task list filters
func taskListIndexes() []fireconf.Index {
	filters := []string{"Status", "Priority", "MeetingID"}

	var indexes []fireconf.Index
	for mask := 0; mask < 1<<len(filters); mask++ {
		fields := []fireconf.IndexField{asc("UserID")}
		for i, f := range filters {
			if mask&(1<<i) != 0 {
				fields = append(fields, asc(f))
			}
		}
		fields = append(fields, desc("CreatedAt"))
		indexes = append(indexes, fireconf.Index{Fields: fields})
	}
	return indexes
}

// getIndexConfig returns the Firestore index configuration
func getIndexConfig(prefix string) *fireconf.Config {
	tasks := []fireconf.Index{
		// ListByMeeting: MeetingID ASC, CreatedAt ASC
		{Fields: []fireconf.IndexField{asc("MeetingID"), asc("CreatedAt")}},
		// FindSimilar: vector search scoped to the owner
		{
			Fields: []fireconf.IndexField{
				asc("UserID"),
				{
					Path: "Embedding",
					Vector: &fireconf.VectorConfig{
						Dimension: model.EmbeddingDimension,
					},
				},
			},
		},
	}
	tasks = append(tasks, taskListIndexes()...)

	return &fireconf.Config{
		Collections: []fireconf.Collection{
			{
				Name: firestore.CollectionName(prefix, firestore.CollectionMeetings),
				Indexes: []fireconf.Index{
					// List: UserID ASC, CreatedAt DESC
					{Fields: []fireconf.IndexField{asc("UserID"), desc("CreatedAt")}},
					// List with status filter
					{Fields: []fireconf.IndexField{asc("UserID"), asc("Status"), desc("CreatedAt")}},
				},
			},
			{
				Name:    firestore.CollectionName(prefix, firestore.CollectionTasks),
				Indexes: tasks,
			},
			{
				Name: firestore.CollectionName(prefix, firestore.CollectionIntegrations),
				Indexes: []fireconf.Index{
					// FindActive: UserID, Type, IsActive
					{Fields: []fireconf.IndexField{asc("UserID"), asc("Type"), asc("IsActive")}},
					// List: UserID ASC, CreatedAt ASC
					{Fields: []fireconf.IndexField{asc("UserID"), asc("CreatedAt")}},
				},
			},
		},
	}
}
