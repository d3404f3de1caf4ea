package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"github.com/secmon-lab/meetscribe/pkg/domain/types"
	"github.com/secmon-lab/meetscribe/pkg/usecase"
)

func integrationID(r *http.Request) model.IntegrationID {
	return model.IntegrationID(chi.URLParam(r, "integrationID"))
}

type createIntegrationRequest struct {
	Type            types.IntegrationType `json:"type"`
	AccessToken     string                `json:"access_token" masq:"secret"`
	RefreshToken    string                `json:"refresh_token" masq:"secret"`
	TokenExpiresAt  *time.Time            `json:"token_expires_at"`
	APIKey          string                `json:"api_key" masq:"secret"`
	APIToken        string                `json:"api_token" masq:"secret"`
	WorkspaceID     string                `json:"workspace_id"`
	WorkspaceName   string                `json:"workspace_name"`
	ProjectID       string                `json:"project_id"`
	ProjectName     string                `json:"project_name"`
	BoardID         string                `json:"board_id"`
	BoardName       string                `json:"board_name"`
	ListID          string                `json:"list_id"`
	ListName        string                `json:"list_name"`
	AutoSyncEnabled bool                  `json:"auto_sync_enabled"`
}

type updateIntegrationRequest struct {
	IsActive        *bool   `json:"is_active"`
	AccessToken     *string `json:"access_token" masq:"secret"`
	RefreshToken    *string `json:"refresh_token" masq:"secret"`
	APIKey          *string `json:"api_key" masq:"secret"`
	APIToken        *string `json:"api_token" masq:"secret"`
	WorkspaceID     *string `json:"workspace_id"`
	WorkspaceName   *string `json:"workspace_name"`
	ProjectID       *string `json:"project_id"`
	ProjectName     *string `json:"project_name"`
	BoardID         *string `json:"board_id"`
	BoardName       *string `json:"board_name"`
	ListID          *string `json:"list_id"`
	ListName        *string `json:"list_name"`
	AutoSyncEnabled *bool   `json:"auto_sync_enabled"`
}

func (s *Server) handleListIntegrations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	integrations, err := s.uc.Integration.List(ctx, userFromContext(ctx).ID)
	if err != nil {
		s.handleError(ctx, w, err)
		return
	}

	items := make([]integrationResponse, len(integrations))
	for i, integration := range integrations {
		items[i] = toIntegration(integration)
	}
	writeJSON(ctx, w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleCreateIntegration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createIntegrationRequest
	if err := decodeJSON(r, &req); err != nil {
		s.handleError(ctx, w, err)
		return
	}

	integration, err := s.uc.Integration.Create(ctx, userFromContext(ctx).ID, &usecase.IntegrationInput{
		Type:            req.Type,
		AccessToken:     req.AccessToken,
		RefreshToken:    req.RefreshToken,
		TokenExpiresAt:  req.TokenExpiresAt,
		APIKey:          req.APIKey,
		APIToken:        req.APIToken,
		WorkspaceID:     req.WorkspaceID,
		WorkspaceName:   req.WorkspaceName,
		ProjectID:       req.ProjectID,
		ProjectName:     req.ProjectName,
		BoardID:         req.BoardID,
		BoardName:       req.BoardName,
		ListID:          req.ListID,
		ListName:        req.ListName,
		AutoSyncEnabled: req.AutoSyncEnabled,
	})
	if err != nil {
		s.handleError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusCreated, toIntegration(integration))
}

func (s *Server) handleGetIntegration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	integration, err := s.uc.Integration.Get(ctx, userFromContext(ctx).ID, integrationID(r))
	if err != nil {
		s.handleError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, toIntegration(integration))
}

func (s *Server) handleUpdateIntegration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req updateIntegrationRequest
	if err := decodeJSON(r, &req); err != nil {
		s.handleError(ctx, w, err)
		return
	}

	integration, err := s.uc.Integration.Update(ctx, userFromContext(ctx).ID, integrationID(r), &usecase.IntegrationUpdate{
		IsActive:        req.IsActive,
		AccessToken:     req.AccessToken,
		RefreshToken:    req.RefreshToken,
		APIKey:          req.APIKey,
		APIToken:        req.APIToken,
		WorkspaceID:     req.WorkspaceID,
		WorkspaceName:   req.WorkspaceName,
		ProjectID:       req.ProjectID,
		ProjectName:     req.ProjectName,
		BoardID:         req.BoardID,
		BoardName:       req.BoardName,
		ListID:          req.ListID,
		ListName:        req.ListName,
		AutoSyncEnabled: req.AutoSyncEnabled,
	})
	if err != nil {
		s.handleError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, toIntegration(integration))
}

func (s *Server) handleDeleteIntegration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.uc.Integration.Delete(ctx, userFromContext(ctx).ID, integrationID(r)); err != nil {
		s.handleError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTestIntegration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ok, err := s.uc.Integration.Test(ctx, userFromContext(ctx).ID, integrationID(r))
	if err != nil {
		s.handleError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, map[string]bool{"connected": ok})
}

type workspaceResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type projectResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	WorkspaceID string `json:"workspace_id"`
}

func (s *Server) handleListWorkspaces(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	workspaces, err := s.uc.Integration.Workspaces(ctx, userFromContext(ctx).ID, integrationID(r))
	if err != nil {
		s.handleError(ctx, w, err)
		return
	}

	items := make([]workspaceResponse, len(workspaces))
	for i, ws := range workspaces {
		items[i] = workspaceResponse{ID: ws.ID, Name: ws.Name}
	}
	writeJSON(ctx, w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	workspaceID := chi.URLParam(r, "workspaceID")
	projects, err := s.uc.Integration.Projects(ctx, userFromContext(ctx).ID, integrationID(r), workspaceID)
	if err != nil {
		s.handleError(ctx, w, err)
		return
	}

	items := make([]projectResponse, len(projects))
	for i, p := range projects {
		items[i] = projectResponse{ID: p.ID, Name: p.Name, WorkspaceID: p.WorkspaceID}
	}
	writeJSON(ctx, w, http.StatusOK, map[string]any{"items": items})
}
