package usecase

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/meetscribe/pkg/domain/interfaces"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"github.com/secmon-lab/meetscribe/pkg/domain/types"
)

type IntegrationUseCase struct {
	repo     interfaces.Repository
	adapters interfaces.AdapterFactory
}

// IntegrationInput configures a new integration
type IntegrationInput struct {
	Type            types.IntegrationType
	AccessToken     string `masq:"secret"`
	RefreshToken    string `masq:"secret"`
	TokenExpiresAt  *time.Time
	APIKey          string `masq:"secret"`
	APIToken        string `masq:"secret"`
	WorkspaceID     string
	WorkspaceName   string
	ProjectID       string
	ProjectName     string
	BoardID         string
	BoardName       string
	ListID          string
	ListName        string
	AutoSyncEnabled bool
}

// IntegrationUpdate holds the configurable fields of an integration. Nil fields are left
// unchanged.
type IntegrationUpdate struct {
	IsActive        *bool
	AccessToken     *string `masq:"secret"`
	RefreshToken    *string `masq:"secret"`
	APIKey          *string `masq:"secret"`
	APIToken        *string `masq:"secret"`
	WorkspaceID     *string
	WorkspaceName   *string
	ProjectID       *string
	ProjectName     *string
	BoardID         *string
	BoardName       *string
	ListID          *string
	ListName        *string
	AutoSyncEnabled *bool
}

// Create stores a new integration. A user has at most one active integration per type.
func (uc *IntegrationUseCase) Create(ctx context.Context, userID model.UserID, in *IntegrationInput) (*model.Integration, error) {
	if !in.Type.IsValid() {
		return nil, goerr.Wrap(model.ErrValidation, "invalid integration type", goerr.V("type", in.Type))
	}

	integration := &model.Integration{
		UserID:          userID,
		Type:            in.Type,
		IsActive:        true,
		AccessToken:     in.AccessToken,
		RefreshToken:    in.RefreshToken,
		TokenExpiresAt:  in.TokenExpiresAt,
		APIKey:          in.APIKey,
		APIToken:        in.APIToken,
		WorkspaceID:     in.WorkspaceID,
		WorkspaceName:   in.WorkspaceName,
		ProjectID:       in.ProjectID,
		ProjectName:     in.ProjectName,
		BoardID:         in.BoardID,
		BoardName:       in.BoardName,
		ListID:          in.ListID,
		ListName:        in.ListName,
		AutoSyncEnabled: in.AutoSyncEnabled,
	}
	if err := validateCredentials(integration); err != nil {
		return nil, err
	}

	created, err := uc.repo.Integration().Create(ctx, integration)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create integration", goerr.V("type", in.Type))
	}
	return created, nil
}

// validateCredentials checks that exactly one credential scheme the provider accepts is set.
// Asana takes an OAuth token or a personal access token in APIKey. Trello takes an
// API key with either a member token or an OAuth token. Jira takes an OAuth token or
// an API key pair.
func validateCredentials(i *model.Integration) error {
	invalid := func(reason string) error {
		return goerr.Wrap(model.ErrValidation, reason, goerr.V("type", i.Type))
	}

	oauth := i.AccessToken != ""
	switch i.Type {
	case types.IntegrationTypeAsana:
		if i.APIToken != "" {
			return invalid("asana does not accept an API token")
		}
		if oauth && i.APIKey != "" {
			return invalid("either an access token or a personal access token must be set, not both")
		}
		if !oauth && i.APIKey == "" {
			return invalid("asana requires an access token or a personal access token")
		}

	case types.IntegrationTypeTrello:
		if i.APIKey == "" {
			return invalid("trello requires an API key")
		}
		if oauth && i.APIToken != "" {
			return invalid("either an API token or an access token must be set, not both")
		}
		if !oauth && i.APIToken == "" {
			return invalid("trello requires an API token or an access token")
		}

	default:
		apiKey := i.APIKey != "" || i.APIToken != ""
		if oauth && apiKey {
			return invalid("either an access token or an API key pair must be set, not both")
		}
		if !oauth && !i.HasAPIKeyCredentials() {
			return invalid("integration credentials are required")
		}
	}
	return nil
}

func (uc *IntegrationUseCase) Get(ctx context.Context, userID model.UserID, id model.IntegrationID) (*model.Integration, error) {
	integration, err := uc.repo.Integration().Get(ctx, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get integration", goerr.V(IntegrationIDKey, id))
	}
	if integration == nil || integration.UserID != userID {
		return nil, goerr.Wrap(ErrIntegrationNotFound, "integration not found", goerr.V(IntegrationIDKey, id))
	}
	return integration, nil
}

func (uc *IntegrationUseCase) List(ctx context.Context, userID model.UserID) ([]*model.Integration, error) {
	integrations, err := uc.repo.Integration().ListByUser(ctx, userID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list integrations")
	}
	return integrations, nil
}

func (uc *IntegrationUseCase) Update(ctx context.Context, userID model.UserID, id model.IntegrationID, in *IntegrationUpdate) (*model.Integration, error) {
	integration, err := uc.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&integration.AccessToken, in.AccessToken)
	set(&integration.RefreshToken, in.RefreshToken)
	set(&integration.APIKey, in.APIKey)
	set(&integration.APIToken, in.APIToken)
	set(&integration.WorkspaceID, in.WorkspaceID)
	set(&integration.WorkspaceName, in.WorkspaceName)
	set(&integration.ProjectID, in.ProjectID)
	set(&integration.ProjectName, in.ProjectName)
	set(&integration.BoardID, in.BoardID)
	set(&integration.BoardName, in.BoardName)
	set(&integration.ListID, in.ListID)
	set(&integration.ListName, in.ListName)
	if in.IsActive != nil {
		integration.IsActive = *in.IsActive
	}
	if in.AutoSyncEnabled != nil {
		integration.AutoSyncEnabled = *in.AutoSyncEnabled
	}

	if err := validateCredentials(integration); err != nil {
		return nil, err
	}

	updated, err := uc.repo.Integration().Update(ctx, integration)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to update integration", goerr.V(IntegrationIDKey, id))
	}
	return updated, nil
}

func (uc *IntegrationUseCase) Delete(ctx context.Context, userID model.UserID, id model.IntegrationID) error {
	if _, err := uc.Get(ctx, userID, id); err != nil {
		return err
	}
	if err := uc.repo.Integration().Delete(ctx, id); err != nil {
		return goerr.Wrap(err, "failed to delete integration", goerr.V(IntegrationIDKey, id))
	}
	return nil
}

func (uc *IntegrationUseCase) adapter(ctx context.Context, userID model.UserID, id model.IntegrationID) (interfaces.IntegrationAdapter, error) {
	integration, err := uc.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if uc.adapters == nil {
		return nil, goerr.New("integration adapters are not configured")
	}
	adapter, err := uc.adapters.Adapter(integration)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build integration adapter", goerr.V(IntegrationIDKey, id))
	}
	return adapter, nil
}

// Test reports whether the provider accepts the integration credentials
func (uc *IntegrationUseCase) Test(ctx context.Context, userID model.UserID, id model.IntegrationID) (bool, error) {
	adapter, err := uc.adapter(ctx, userID, id)
	if err != nil {
		return false, err
	}
	return adapter.TestConnection(ctx), nil
}

func (uc *IntegrationUseCase) Workspaces(ctx context.Context, userID model.UserID, id model.IntegrationID) ([]*model.Workspace, error) {
	adapter, err := uc.adapter(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	workspaces, err := adapter.GetWorkspaces(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list workspaces", goerr.V(IntegrationIDKey, id))
	}
	return workspaces, nil
}

// Projects lists the destinations a task can be created in: Asana projects of a
// workspace, or lists of a Trello board
func (uc *IntegrationUseCase) Projects(ctx context.Context, userID model.UserID, id model.IntegrationID, workspaceID string) ([]*model.Project, error) {
	if workspaceID == "" {
		return nil, goerr.Wrap(model.ErrValidation, "workspace ID is required")
	}
	adapter, err := uc.adapter(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	projects, err := adapter.GetProjects(ctx, workspaceID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list projects",
			goerr.V(IntegrationIDKey, id), goerr.V("workspace_id", workspaceID))
	}
	return projects, nil
}
