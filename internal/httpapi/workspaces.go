package httpapi

import (
	"net/http"

	"github.com/jarrod-lowe/collab-service/internal/workspace"
)

type createWorkspaceRequest struct {
	Name     string   `json:"name" validate:"required,max=100"`
	Members  []string `json:"members,omitempty" validate:"omitempty,max=200,dive,email"`
	ImageURL string   `json:"imageUrl,omitempty" validate:"omitempty,url"`
}

type updateWorkspaceRequest struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	ImageURL *string `json:"imageUrl,omitempty" validate:"omitempty"`
}

type memberRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (s *Server) listWorkspaces(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r.Context())
	list, err := s.Workspaces.ListForMember(r.Context(), caller.Email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) createWorkspace(w http.ResponseWriter, r *http.Request) {
	var req createWorkspaceRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	caller := callerFrom(r.Context())
	ws, err := s.Workspaces.Create(r.Context(), req.Name, caller.Email, req.Members, req.ImageURL)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ws)
}

func (s *Server) getWorkspace(w http.ResponseWriter, r *http.Request) {
	ws, err := s.Guard.RequireMember(r.Context(), pathParam(r, "workspaceID"), callerFrom(r.Context()).Email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

func (s *Server) updateWorkspace(w http.ResponseWriter, r *http.Request) {
	var req updateWorkspaceRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	ws, err := s.Guard.RequireOwner(r.Context(), pathParam(r, "workspaceID"), callerFrom(r.Context()).Email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	updated, err := s.Workspaces.Update(r.Context(), ws.ID, workspace.Update{Name: req.Name, ImageURL: req.ImageURL})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteWorkspace(w http.ResponseWriter, r *http.Request) {
	ws, err := s.Guard.RequireOwner(r.Context(), pathParam(r, "workspaceID"), callerFrom(r.Context()).Email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	channels, err := s.Channels.List(r.Context(), ws.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.Workspaces.Delete(r.Context(), ws.ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	for _, ch := range channels {
		s.releaseChannel(r.Context(), ch)
	}
	writeNoContent(w)
}

func (s *Server) addMember(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	ws, err := s.Guard.RequireOwner(r.Context(), pathParam(r, "workspaceID"), callerFrom(r.Context()).Email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	updated, err := s.Workspaces.AddMember(r.Context(), ws.ID, req.Email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) removeMember(w http.ResponseWriter, r *http.Request) {
	ws, err := s.Guard.RequireOwner(r.Context(), pathParam(r, "workspaceID"), callerFrom(r.Context()).Email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	updated, err := s.Workspaces.RemoveMember(r.Context(), ws.ID, pathParam(r, "email"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
