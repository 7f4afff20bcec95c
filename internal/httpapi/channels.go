package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jarrod-lowe/collab-service/internal/apperr"
	"github.com/jarrod-lowe/collab-service/internal/channel"
	"github.com/jarrod-lowe/collab-service/internal/notify"
	"github.com/jarrod-lowe/collab-service/internal/textnorm"
	"github.com/jarrod-lowe/collab-service/internal/voice"
)

type createChannelRequest struct {
	Name string `json:"name" validate:"required,max=100"`
	Type string `json:"type" validate:"required,oneof=text voice tasks board"`
}

type renameChannelRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

type postMessageRequest struct {
	Text string `json:"text" validate:"required,max=4000"`
}

var errEmptyText = apperr.Validation("text is required")

// memberChannel checks membership and loads the channel named in the path.
func (s *Server) memberChannel(r *http.Request) (*channel.Channel, error) {
	workspaceID := pathParam(r, "workspaceID")
	if _, err := s.Guard.RequireMember(r.Context(), workspaceID, callerFrom(r.Context()).Email); err != nil {
		return nil, err
	}
	return s.Channels.Get(r.Context(), workspaceID, pathParam(r, "channelID"))
}

// typedChannel is memberChannel restricted to channels of type want.
func (s *Server) typedChannel(r *http.Request, want channel.Type) (*channel.Channel, error) {
	ch, err := s.memberChannel(r)
	if err != nil {
		return nil, err
	}
	if ch.Type != want {
		return nil, errWrongChannelType(want)
	}
	return ch, nil
}

func errWrongChannelType(want channel.Type) error {
	return apperr.Validation(fmt.Sprintf("Channel is not a %s channel", want))
}

func (s *Server) listChannels(w http.ResponseWriter, r *http.Request) {
	ws, err := s.Guard.RequireMember(r.Context(), pathParam(r, "workspaceID"), callerFrom(r.Context()).Email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	list, err := s.Channels.List(r.Context(), ws.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) createChannel(w http.ResponseWriter, r *http.Request) {
	var req createChannelRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	ws, err := s.Guard.RequireOwner(r.Context(), pathParam(r, "workspaceID"), callerFrom(r.Context()).Email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ch, err := s.Channels.Create(r.Context(), ws.ID, req.Name, channel.Type(req.Type))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ch)
}

func (s *Server) renameChannel(w http.ResponseWriter, r *http.Request) {
	var req renameChannelRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	ws, err := s.Guard.RequireOwner(r.Context(), pathParam(r, "workspaceID"), callerFrom(r.Context()).Email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ch, err := s.Channels.Rename(r.Context(), ws.ID, pathParam(r, "channelID"), req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

func (s *Server) deleteChannel(w http.ResponseWriter, r *http.Request) {
	ws, err := s.Guard.RequireOwner(r.Context(), pathParam(r, "workspaceID"), callerFrom(r.Context()).Email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ch, err := s.Channels.Get(r.Context(), ws.ID, pathParam(r, "channelID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	removed, err := s.Channels.Delete(r.Context(), ws.ID, ch.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.releaseChannel(r.Context(), ch)
	s.logger.InfoContext(r.Context(), "channel deleted",
		slog.String("workspace_id", ws.ID),
		slog.String("channel_id", ch.ID),
		slog.Int("rows_removed", removed),
	)
	writeNoContent(w)
}

// releaseChannel drops the queued events of a deleted channel and, for a voice channel,
// its participants. Failures are logged; the rows are already gone.
func (s *Server) releaseChannel(ctx context.Context, ch *channel.Channel) {
	if err := s.Notifier.Clear(ctx, notify.KindFor(ch.Type), ch.WorkspaceID, ch.ID); err != nil {
		s.logger.WarnContext(ctx, "failed to clear channel events",
			slog.String("channel_id", ch.ID),
			slog.String("error", err.Error()),
		)
	}
	if ch.Type != channel.TypeVoice {
		return
	}
	if _, err := s.Voice.CloseRoom(ctx, voice.Room{WorkspaceID: ch.WorkspaceID, ChannelID: ch.ID}); err != nil {
		s.logger.WarnContext(ctx, "failed to close voice room",
			slog.String("channel_id", ch.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	ch, err := s.memberChannel(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	list, err := s.Messages.List(r.Context(), ch.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) postMessage(w http.ResponseWriter, r *http.Request) {
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
	ch, err := s.memberChannel(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	msg, err := s.Messages.Create(r.Context(), ch.WorkspaceID, ch.ID, callerFrom(r.Context()).Email, text)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.Notifier.Publish(r.Context(), notify.KindChat, ch.WorkspaceID, ch.ID, notify.EventMessageCreated, msg, nil)
	writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) pollChannelEvents(w http.ResponseWriter, r *http.Request) {
	ch, err := s.memberChannel(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	events, err := s.Notifier.Drain(r.Context(), notify.KindFor(ch.Type), ch.WorkspaceID, ch.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}
