package httpapi

import (
	"net/http"

	"github.com/jarrod-lowe/collab-service/internal/portfolio"
	"github.com/jarrod-lowe/collab-service/internal/textnorm"
)

type projectRequest struct {
	Title       string   `json:"title" validate:"required,max=200"`
	Description string   `json:"description,omitempty" validate:"max=4000"`
	URL         string   `json:"url,omitempty" validate:"omitempty,url"`
	ImageURL    string   `json:"imageUrl,omitempty" validate:"omitempty,url"`
	Tags        []string `json:"tags,omitempty" validate:"omitempty,max=20,dive,max=50"`
}

func (req projectRequest) project(ownerSub string) portfolio.Project {
	return portfolio.Project{
		OwnerSub:    ownerSub,
		Title:       req.Title,
		Description: textnorm.StripHTML(req.Description),
		URL:         req.URL,
		ImageURL:    req.ImageURL,
		Tags:        req.Tags,
	}
}

func (s *Server) listOwnProjects(w http.ResponseWriter, r *http.Request) {
	s.writeProjects(w, r, callerFrom(r.Context()).Sub)
}

func (s *Server) listUserProjects(w http.ResponseWriter, r *http.Request) {
	s.writeProjects(w, r, pathParam(r, "sub"))
}

func (s *Server) writeProjects(w http.ResponseWriter, r *http.Request, ownerSub string) {
	list, err := s.Projects.List(r.Context(), ownerSub)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.Projects.Create(r.Context(), req.project(callerFrom(r.Context()).Sub))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// updateProject only reaches the caller's own partition, so another user's project is
// reported as not found.
func (s *Server) updateProject(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	p := req.project(callerFrom(r.Context()).Sub)
	p.ID = pathParam(r, "projectID")
	updated, err := s.Projects.Update(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.Projects.Delete(r.Context(), callerFrom(r.Context()).Sub, pathParam(r, "projectID")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeNoContent(w)
}
