package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jarrod-lowe/collab-service/internal/apperr"
	"github.com/jarrod-lowe/collab-service/internal/media"
	"github.com/jarrod-lowe/collab-service/internal/profile"
	"github.com/jarrod-lowe/collab-service/internal/textnorm"
)

type addFriendRequest struct {
	Username string `json:"username" validate:"required,username"`
}

type profileRequest struct {
	Username    string            `json:"username,omitempty" validate:"omitempty,username"`
	DisplayName string            `json:"displayName,omitempty" validate:"max=100"`
	AvatarURL   string            `json:"avatarUrl,omitempty" validate:"omitempty,url"`
	AvatarKey   string            `json:"avatarKey,omitempty" validate:"max=300"`
	Bio         string            `json:"bio,omitempty" validate:"max=500"`
	Presence    string            `json:"presence,omitempty" validate:"omitempty,oneof=online away busy offline"`
	Theme       string            `json:"theme,omitempty" validate:"omitempty,oneof=light dark system"`
	SocialLinks map[string]string `json:"socialLinks,omitempty" validate:"omitempty,max=10,dive,keys,max=30,endkeys,max=300"`
}

var errForeignMedia = apperr.Validation("Media key was not issued to you")

func (s *Server) listFriends(w http.ResponseWriter, r *http.Request) {
	list, err := s.Friends.List(r.Context(), callerFrom(r.Context()).Sub)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) addFriend(w http.ResponseWriter, r *http.Request) {
	var req addFriendRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	f, created, err := s.Friends.Add(r.Context(), callerFrom(r.Context()).Sub, req.Username)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !created {
		writeJSON(w, http.StatusOK, map[string]any{"message": "Already friends", "friendship": f})
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (s *Server) removeFriend(w http.ResponseWriter, r *http.Request) {
	if err := s.Friends.Remove(r.Context(), callerFrom(r.Context()).Sub, pathParam(r, "sub")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successBody)
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r.Context())
	p, err := s.Profiles.Get(r.Context(), caller.Sub)
	if errors.Is(err, profile.ErrNotFound) {
		p, err = profile.Default(caller.Sub, caller.Email), nil
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) putProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	caller := callerFrom(r.Context())
	if req.AvatarKey != "" && !media.OwnedBy(req.AvatarKey, caller.Sub) {
		s.writeError(w, r, errForeignMedia)
		return
	}
	saved, previous, err := s.Profiles.Upsert(r.Context(), profile.Profile{
		Sub:         caller.Sub,
		Email:       caller.Email,
		Username:    req.Username,
		DisplayName: req.DisplayName,
		AvatarURL:   req.AvatarURL,
		AvatarKey:   req.AvatarKey,
		Bio:         textnorm.StripHTML(req.Bio),
		Presence:    req.Presence,
		Theme:       req.Theme,
		SocialLinks: req.SocialLinks,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if previous != nil && previous.AvatarKey != "" && previous.AvatarKey != saved.AvatarKey {
		s.removeMedia(r.Context(), previous.AvatarKey)
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) getProfileByUsername(w http.ResponseWriter, r *http.Request) {
	p, err := s.Profiles.GetByUsername(r.Context(), pathParam(r, "username"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// removeMedia releases objects no longer referenced. Failures are logged; the object is
// orphaned in the bucket.
func (s *Server) removeMedia(ctx context.Context, keys ...string) {
	if s.MediaRemover == nil {
		return
	}
	if err := s.MediaRemover.Remove(ctx, keys); err != nil {
		s.logger.WarnContext(ctx, "failed to remove media",
			slog.Any("keys", keys),
			slog.String("error", err.Error()),
		)
	}
}
