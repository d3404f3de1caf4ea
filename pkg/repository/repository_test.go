package repository_test

import (
	"context"
	"os"
	"testing"

	"github.com/secmon-lab/meetscribe/pkg/domain/interfaces"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"github.com/secmon-lab/meetscribe/pkg/repository/firestore"
	"github.com/secmon-lab/meetscribe/pkg/repository/memory"
	"github.com/secmon-lab/meetscribe/pkg/repository/postgres"
)

func newMemoryRepository(t *testing.T) interfaces.Repository {
	return memory.New()
}

func newFirestoreRepository(t *testing.T) interfaces.Repository {
	t.Helper()

	projectID := os.Getenv("MEETSCRIBE_TEST_FIRESTORE_PROJECT_ID")
	if projectID == "" {
		t.Skip("MEETSCRIBE_TEST_FIRESTORE_PROJECT_ID not set")
	}
	databaseID := os.Getenv("MEETSCRIBE_TEST_FIRESTORE_DATABASE_ID")

	// Test data isolation is achieved through random user IDs in test data
	repo, err := firestore.New(context.Background(), projectID, databaseID)
	if err != nil {
		t.Fatalf("failed to create firestore repository: %v", err)
	}
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("failed to close firestore repository: %v", err)
		}
	})
	return repo
}

func newPostgresRepository(t *testing.T) interfaces.Repository {
	t.Helper()

	dsn := os.Getenv("MEETSCRIBE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("MEETSCRIBE_TEST_POSTGRES_DSN not set")
	}

	repo, err := postgres.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("failed to create postgres repository: %v", err)
	}
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("failed to close postgres repository: %v", err)
		}
	})
	return repo
}

// backends lists every repository implementation the contract tests run against
var backends = map[string]func(t *testing.T) interfaces.Repository{
	"Memory":    newMemoryRepository,
	"Firestore": newFirestoreRepository,
	"Postgres":  newPostgresRepository,
}

func runOnAllBackends(t *testing.T, run func(t *testing.T, newRepo func(t *testing.T) interfaces.Repository)) {
	for name, newRepo := range backends {
		t.Run(name, func(t *testing.T) {
			run(t, newRepo)
		})
	}
}

func newTestUserID() model.UserID {
	return model.UserID("test-user-" + string(model.NewUserID()))
}

func seedMeeting(t *testing.T, repo interfaces.Repository, userID model.UserID) *model.Meeting {
	t.Helper()
	m, err := repo.Meeting().Create(context.Background(), &model.Meeting{
		UserID: userID,
		Title:  "Weekly sync",
		Audio: model.AudioFile{
			Key:      string(userID) + "/audio.mp3",
			Filename: "audio.mp3",
			Size:     1024,
			Duration: 120,
			Format:   "mp3",
		},
		Status: "pending",
	})
	if err != nil {
		t.Fatalf("failed to seed meeting: %v", err)
	}
	return m
}
