package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"github.com/secmon-lab/meetscribe/pkg/domain/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type integrationDoc struct {
	ID       string `firestore:"ID"`
	UserID   string `firestore:"UserID"`
	Type     string `firestore:"Type"`
	IsActive bool   `firestore:"IsActive"`

	AccessToken    string     `firestore:"AccessToken"`
	RefreshToken   string     `firestore:"RefreshToken"`
	TokenExpiresAt *time.Time `firestore:"TokenExpiresAt"`
	APIKey         string     `firestore:"APIKey"`
	APIToken       string     `firestore:"APIToken"`

	WorkspaceID   string `firestore:"WorkspaceID"`
	WorkspaceName string `firestore:"WorkspaceName"`
	ProjectID     string `firestore:"ProjectID"`
	ProjectName   string `firestore:"ProjectName"`
	BoardID       string `firestore:"BoardID"`
	BoardName     string `firestore:"BoardName"`
	ListID        string `firestore:"ListID"`
	ListName      string `firestore:"ListName"`

	AutoSyncEnabled bool       `firestore:"AutoSyncEnabled"`
	LastSyncedAt    *time.Time `firestore:"LastSyncedAt"`
	LastError       string     `firestore:"LastError"`
	ErrorCount      int        `firestore:"ErrorCount"`

	CreatedAt time.Time `firestore:"CreatedAt"`
	UpdatedAt time.Time `firestore:"UpdatedAt"`
}

func toIntegrationDoc(i *model.Integration) *integrationDoc {
	return &integrationDoc{
		ID:              string(i.ID),
		UserID:          string(i.UserID),
		Type:            string(i.Type),
		IsActive:        i.IsActive,
		AccessToken:     i.AccessToken,
		RefreshToken:    i.RefreshToken,
		TokenExpiresAt:  i.TokenExpiresAt,
		APIKey:          i.APIKey,
		APIToken:        i.APIToken,
		WorkspaceID:     i.WorkspaceID,
		WorkspaceName:   i.WorkspaceName,
		ProjectID:       i.ProjectID,
		ProjectName:     i.ProjectName,
		BoardID:         i.BoardID,
		BoardName:       i.BoardName,
		ListID:          i.ListID,
		ListName:        i.ListName,
		AutoSyncEnabled: i.AutoSyncEnabled,
		LastSyncedAt:    i.LastSyncedAt,
		LastError:       i.LastError,
		ErrorCount:      i.ErrorCount,
		CreatedAt:       i.CreatedAt,
		UpdatedAt:       i.UpdatedAt,
	}
}

func docToIntegration(doc *firestore.DocumentSnapshot) (*model.Integration, error) {
	var d integrationDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, err
	}
	return &model.Integration{
		ID:              model.IntegrationID(d.ID),
		UserID:          model.UserID(d.UserID),
		Type:            types.IntegrationType(d.Type),
		IsActive:        d.IsActive,
		AccessToken:     d.AccessToken,
		RefreshToken:    d.RefreshToken,
		TokenExpiresAt:  d.TokenExpiresAt,
		APIKey:          d.APIKey,
		APIToken:        d.APIToken,
		WorkspaceID:     d.WorkspaceID,
		WorkspaceName:   d.WorkspaceName,
		ProjectID:       d.ProjectID,
		ProjectName:     d.ProjectName,
		BoardID:         d.BoardID,
		BoardName:       d.BoardName,
		ListID:          d.ListID,
		ListName:        d.ListName,
		AutoSyncEnabled: d.AutoSyncEnabled,
		LastSyncedAt:    d.LastSyncedAt,
		LastError:       d.LastError,
		ErrorCount:      d.ErrorCount,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}, nil
}

type integrationRepository struct {
	client *firestore.Client
	prefix string
}

func (r *integrationRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(CollectionName(r.prefix, CollectionIntegrations))
}

func (r *integrationRepository) activeQuery(userID model.UserID, t types.IntegrationType) firestore.Query {
	return r.collection().
		Where("UserID", "==", string(userID)).
		Where("Type", "==", string(t)).
		Where("IsActive", "==", true)
}

// hasActiveConflict reports whether another active integration of the same type exists
// for the user, read inside tx
func (r *integrationRepository) hasActiveConflict(tx *firestore.Transaction, i *model.Integration) (bool, error) {
	if !i.IsActive {
		return false, nil
	}
	docs, err := tx.Documents(r.activeQuery(i.UserID, i.Type)).GetAll()
	if err != nil {
		return false, err
	}
	for _, doc := range docs {
		if doc.Ref.ID != string(i.ID) {
			return true, nil
		}
	}
	return false, nil
}

func (r *integrationRepository) Create(ctx context.Context, integration *model.Integration) (*model.Integration, error) {
	now := time.Now().UTC()
	created := *integration
	if created.ID == "" {
		created.ID = model.NewIntegrationID()
	}
	created.CreatedAt = now
	created.UpdatedAt = now

	ref := r.collection().Doc(string(created.ID))
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		conflict, err := r.hasActiveConflict(tx, &created)
		if err != nil {
			return err
		}
		if conflict {
			return goerr.Wrap(model.ErrConflict, "active integration already exists",
				goerr.V("user_id", created.UserID), goerr.V("type", created.Type))
		}
		return tx.Create(ref, toIntegrationDoc(&created))
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create integration", goerr.V("id", created.ID))
	}

	return &created, nil
}

func (r *integrationRepository) Get(ctx context.Context, id model.IntegrationID) (*model.Integration, error) {
	doc, err := r.collection().Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get integration", goerr.V("id", id))
	}

	i, err := docToIntegration(doc)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to decode integration", goerr.V("id", id))
	}
	return i, nil
}

func (r *integrationRepository) Update(ctx context.Context, integration *model.Integration) (*model.Integration, error) {
	ref := r.collection().Doc(string(integration.ID))

	var updated *model.Integration
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				updated = nil
				return nil
			}
			return err
		}
		existing, err := docToIntegration(snap)
		if err != nil {
			return err
		}

		next := *integration
		next.UserID = existing.UserID
		next.Type = existing.Type

		conflict, err := r.hasActiveConflict(tx, &next)
		if err != nil {
			return err
		}
		if conflict {
			return goerr.Wrap(model.ErrConflict, "active integration already exists",
				goerr.V("user_id", next.UserID), goerr.V("type", next.Type))
		}

		next.LastSyncedAt = existing.LastSyncedAt
		next.LastError = existing.LastError
		next.ErrorCount = existing.ErrorCount
		next.CreatedAt = existing.CreatedAt
		next.UpdatedAt = time.Now().UTC()
		if err := tx.Set(ref, toIntegrationDoc(&next)); err != nil {
			return err
		}
		updated = &next
		return nil
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to update integration", goerr.V("id", integration.ID))
	}

	return updated, nil
}

func (r *integrationRepository) Delete(ctx context.Context, id model.IntegrationID) error {
	if _, err := r.collection().Doc(string(id)).Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete integration", goerr.V("id", id))
	}
	return nil
}

func (r *integrationRepository) ListByUser(ctx context.Context, userID model.UserID) ([]*model.Integration, error) {
	iter := r.collection().
		Where("UserID", "==", string(userID)).
		OrderBy("CreatedAt", firestore.Asc).
		Documents(ctx)

	integrations, err := collect(iter, docToIntegration)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list integrations", goerr.V("user_id", userID))
	}
	return integrations, nil
}

func (r *integrationRepository) GetActiveByType(ctx context.Context, userID model.UserID, integrationType types.IntegrationType) (*model.Integration, error) {
	integrations, err := collect(r.activeQuery(userID, integrationType).Limit(1).Documents(ctx), docToIntegration)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get active integration",
			goerr.V("user_id", userID), goerr.V("type", integrationType))
	}
	if len(integrations) == 0 {
		return nil, nil
	}
	return integrations[0], nil
}

func (r *integrationRepository) RecordError(ctx context.Context, id model.IntegrationID, message string) error {
	_, err := r.collection().Doc(string(id)).Update(ctx, []firestore.Update{
		{Path: "ErrorCount", Value: firestore.Increment(1)},
		{Path: "LastError", Value: message},
		{Path: "UpdatedAt", Value: time.Now().UTC()},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil
		}
		return goerr.Wrap(err, "failed to record integration error", goerr.V("id", id))
	}
	return nil
}

func (r *integrationRepository) MarkSynced(ctx context.Context, id model.IntegrationID, at time.Time) error {
	_, err := r.collection().Doc(string(id)).Update(ctx, []firestore.Update{
		{Path: "LastSyncedAt", Value: at.UTC()},
		{Path: "ErrorCount", Value: 0},
		{Path: "LastError", Value: ""},
		{Path: "UpdatedAt", Value: time.Now().UTC()},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil
		}
		return goerr.Wrap(err, "failed to mark integration synced", goerr.V("id", id))
	}
	return nil
}
