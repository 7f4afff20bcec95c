package httpapi

import (
	"net/http"

	"github.com/jarrod-lowe/collab-service/internal/apperr"
	"github.com/jarrod-lowe/collab-service/internal/channel"
	"github.com/jarrod-lowe/collab-service/internal/media"
	"github.com/jarrod-lowe/collab-service/internal/voice"
)

type uploadRequest struct {
	Purpose     string `json:"purpose" validate:"required,oneof=avatars posts workspaces projects"`
	ContentType string `json:"contentType" validate:"required"`
}

type signalRequest struct {
	Type         string         `json:"type" validate:"required"`
	WorkspaceID  string         `json:"workspaceId,omitempty" validate:"required_if=Type join_voice"`
	ChannelID    string         `json:"channelId,omitempty" validate:"required_if=Type join_voice"`
	ConnectionID string         `json:"connectionId" validate:"required,max=128"`
	Data         map[string]any `json:"data,omitempty"`
}

var errMissingConnection = apperr.Validation("connectionId is required")

func (s *Server) createUpload(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.Uploads == nil {
		s.writeError(w, r, media.ErrDisabled)
		return
	}
	upload, err := s.Uploads.CreateUpload(r.Context(), callerFrom(r.Context()).Sub, req.Purpose, req.ContentType)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, upload)
}

func voiceCaller(r *http.Request) voice.Caller {
	id := callerFrom(r.Context())
	return voice.Caller{Sub: id.Sub, Email: id.Email, Username: id.Username}
}

func (s *Server) voiceSignal(w http.ResponseWriter, r *http.Request) {
	var req signalRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.WorkspaceID != "" {
		if _, err := s.Guard.RequireMember(r.Context(), req.WorkspaceID, callerFrom(r.Context()).Email); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	if req.Type == voice.SignalJoin {
		ch, err := s.Channels.Get(r.Context(), req.WorkspaceID, req.ChannelID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if ch.Type != channel.TypeVoice {
			s.writeError(w, r, errWrongChannelType(channel.TypeVoice))
			return
		}
	}
	body, err := s.Voice.Handle(r.Context(), voiceCaller(r), voice.Signal{
		Type:         req.Type,
		WorkspaceID:  req.WorkspaceID,
		ChannelID:    req.ChannelID,
		ConnectionID: req.ConnectionID,
		Data:         req.Data,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) voicePoll(w http.ResponseWriter, r *http.Request) {
	connectionID := r.URL.Query().Get("connectionId")
	if connectionID == "" {
		s.writeError(w, r, errMissingConnection)
		return
	}
	result, err := s.Voice.Poll(r.Context(), voiceCaller(r), connectionID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
