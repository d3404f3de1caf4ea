package postgres

import (
	"context"
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/meetscribe/pkg/domain/interfaces"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Postgres is a relational repository backed by gorm
type Postgres struct {
	db          *gorm.DB
	user        *userRepository
	meeting     *meetingRepository
	transcript  *transcriptRepository
	task        *taskRepository
	integration *integrationRepository
}

var _ interfaces.Repository = &Postgres{}

// New opens dsn and migrates the schema
func New(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open postgres")
	}

	if err := db.WithContext(ctx).AutoMigrate(
		&userRow{},
		&meetingRow{},
		&transcriptRow{},
		&segmentRow{},
		&taskRow{},
		&integrationRow{},
	); err != nil {
		return nil, goerr.Wrap(err, "failed to migrate postgres schema")
	}

	return &Postgres{
		db:          db,
		user:        &userRepository{db: db},
		meeting:     &meetingRepository{db: db},
		transcript:  &transcriptRepository{db: db},
		task:        &taskRepository{db: db},
		integration: &integrationRepository{db: db},
	}, nil
}

func (p *Postgres) User() interfaces.UserRepository {
	return p.user
}

func (p *Postgres) Meeting() interfaces.MeetingRepository {
	return p.meeting
}

func (p *Postgres) Transcript() interfaces.TranscriptRepository {
	return p.transcript
}

func (p *Postgres) Task() interfaces.TaskRepository {
	return p.task
}

func (p *Postgres) Integration() interfaces.IntegrationRepository {
	return p.integration
}

func (p *Postgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return goerr.Wrap(err, "failed to get sql.DB")
	}
	return sqlDB.Close()
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
