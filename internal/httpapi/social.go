package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/jarrod-lowe/collab-service/internal/apperr"
	"github.com/jarrod-lowe/collab-service/internal/media"
	"github.com/jarrod-lowe/collab-service/internal/profile"
	"github.com/jarrod-lowe/collab-service/internal/social"
	"github.com/jarrod-lowe/collab-service/internal/textnorm"
)

type createPostRequest struct {
	Caption  string `json:"caption,omitempty" validate:"max=2200"`
	ImageURL string `json:"imageUrl,omitempty" validate:"omitempty,url"`
	ImageKey string `json:"imageKey,omitempty" validate:"max=300"`
}

type openThreadRequest struct {
	FriendSub string `json:"friendSub" validate:"required,sub"`
}

var errEmptyPost = apperr.Validation("caption or imageUrl is required")

func (s *Server) listPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := s.Posts.Feed(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (s *Server) createPost(w http.ResponseWriter, r *http.Request) {
	var req createPostRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	caption := strings.TrimSpace(textnorm.StripHTML(req.Caption))
	if caption == "" && req.ImageURL == "" {
		s.writeError(w, r, errEmptyPost)
		return
	}
	caller := callerFrom(r.Context())
	if req.ImageKey != "" && !media.OwnedBy(req.ImageKey, caller.Sub) {
		s.writeError(w, r, errForeignMedia)
		return
	}

	author, err := s.Profiles.Get(r.Context(), caller.Sub)
	if err != nil && !errors.Is(err, profile.ErrNotFound) {
		s.writeError(w, r, err)
		return
	}
	username := ""
	if author != nil {
		username = author.Username
	}

	post, err := s.Posts.Create(r.Context(), social.Post{
		AuthorSub:      caller.Sub,
		AuthorUsername: username,
		Caption:        caption,
		ImageURL:       req.ImageURL,
		ImageKey:       req.ImageKey,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

func (s *Server) deletePost(w http.ResponseWriter, r *http.Request) {
	post, err := s.Posts.Delete(r.Context(), pathParam(r, "postID"), callerFrom(r.Context()).Sub)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if post.ImageKey != "" {
		s.removeMedia(r.Context(), post.ImageKey)
	}
	writeNoContent(w)
}

func (s *Server) likePost(w http.ResponseWriter, r *http.Request) {
	post, err := s.Posts.Like(r.Context(), pathParam(r, "postID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (s *Server) listThreads(w http.ResponseWriter, r *http.Request) {
	threads, err := s.Threads.ListThreads(r.Context(), callerFrom(r.Context()).Sub)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, threads)
}

func (s *Server) openThread(w http.ResponseWriter, r *http.Request) {
	var req openThreadRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err := s.Profiles.Get(r.Context(), req.FriendSub); err != nil {
		s.writeError(w, r, err)
		return
	}
	thread, created, err := s.Threads.UpsertThread(r.Context(), callerFrom(r.Context()).Sub, req.FriendSub)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, thread)
}

func (s *Server) listThreadMessages(w http.ResponseWriter, r *http.Request) {
	thread, err := s.Threads.GetThreadFor(r.Context(), pathParam(r, "threadID"), callerFrom(r.Context()).Sub)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	messages, err := s.Threads.ListMessages(r.Context(), thread.ThreadID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (s *Server) postThreadMessage(w http.ResponseWriter, r *http.Request) {
	var req postMessageRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	text := strings.TrimSpace(textnorm.StripHTML(req.Text))
	if text == "" {
		s.writeError(w, r, errEmptyText)
		return
	}
	caller := callerFrom(r.Context())
	thread, err := s.Threads.GetThreadFor(r.Context(), pathParam(r, "threadID"), caller.Sub)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	msg, err := s.Threads.PostMessage(r.Context(), thread.ThreadID, caller.Sub, text)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}
