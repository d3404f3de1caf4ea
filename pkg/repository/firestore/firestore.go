package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/meetscribe/pkg/domain/interfaces"
	"google.golang.org/api/iterator"
)

// Collection names. Documents of all users share a collection and are scoped by UserID.
const (
	CollectionUsers        = "users"
	CollectionMeetings     = "meetings"
	CollectionTranscripts  = "transcripts"
	CollectionTasks        = "tasks"
	CollectionIntegrations = "integrations"
)

type Firestore struct {
	client      *firestore.Client
	user        *userRepository
	meeting     *meetingRepository
	transcript  *transcriptRepository
	task        *taskRepository
	integration *integrationRepository
}

var _ interfaces.Repository = &Firestore{}

type Option func(*Firestore)

// WithCollectionPrefix prefixes every collection name, e.g. for isolated test runs
func WithCollectionPrefix(prefix string) Option {
	return func(f *Firestore) {
		f.user.prefix = prefix
		f.meeting.prefix = prefix
		f.transcript.prefix = prefix
		f.task.prefix = prefix
		f.integration.prefix = prefix
	}
}

// New connects to Firestore. An empty databaseID selects the default database.
func New(ctx context.Context, projectID, databaseID string, opts ...Option) (*Firestore, error) {
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("projectID", projectID), goerr.V("databaseID", databaseID))
	}

	f := &Firestore{
		client:      client,
		user:        &userRepository{client: client},
		meeting:     &meetingRepository{client: client},
		transcript:  &transcriptRepository{client: client},
		task:        &taskRepository{client: client},
		integration: &integrationRepository{client: client},
	}

	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

func (f *Firestore) User() interfaces.UserRepository {
	return f.user
}

func (f *Firestore) Meeting() interfaces.MeetingRepository {
	return f.meeting
}

func (f *Firestore) Transcript() interfaces.TranscriptRepository {
	return f.transcript
}

func (f *Firestore) Task() interfaces.TaskRepository {
	return f.task
}

func (f *Firestore) Integration() interfaces.IntegrationRepository {
	return f.integration
}

func (f *Firestore) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

// CollectionName returns the collection name of name under prefix
func CollectionName(prefix, name string) string {
	if prefix != "" {
		return prefix + "_" + name
	}
	return name
}

// count runs a COUNT aggregation over q
func count(ctx context.Context, q firestore.Query) (int, error) {
	results, err := q.NewAggregationQuery().WithCount("all").Get(ctx)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to run count aggregation")
	}

	v, ok := results["all"]
	if !ok {
		return 0, goerr.New("count aggregation returned no value")
	}
	pv, ok := v.(*firestorepb.Value)
	if !ok {
		return 0, goerr.New("unexpected count aggregation value", goerr.V("value", v))
	}

	return int(pv.GetIntegerValue()), nil
}

// collect decodes every document of iter with decode
func collect[T any](iter *firestore.DocumentIterator, decode func(*firestore.DocumentSnapshot) (T, error)) ([]T, error) {
	defer iter.Stop()

	result := make([]T, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate documents")
		}

		v, err := decode(doc)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to decode document", goerr.V("doc_id", doc.Ref.ID))
		}
		result = append(result, v)
	}

	return result, nil
}
