package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/jarrod-lowe/collab-service/internal/board"
	"github.com/jarrod-lowe/collab-service/internal/channel"
	"github.com/jarrod-lowe/collab-service/internal/notify"
	"github.com/jarrod-lowe/collab-service/internal/textnorm"
)

type createColumnRequest struct {
	Title string  `json:"title" validate:"required,max=100"`
	Order float64 `json:"order"`
}

type updateColumnRequest struct {
	Title *string  `json:"title,omitempty" validate:"omitempty,min=1,max=100"`
	Order *float64 `json:"order,omitempty"`
}

type createCardRequest struct {
	ColumnID    string   `json:"columnId" validate:"required"`
	Title       string   `json:"title" validate:"required,max=200"`
	Description string   `json:"description,omitempty" validate:"max=4000"`
	Assignees   []string `json:"assignees,omitempty" validate:"omitempty,max=50,dive,email"`
	DueDate     string   `json:"dueDate,omitempty" validate:"max=40"`
	Labels      []string `json:"labels,omitempty" validate:"omitempty,max=20,dive,max=50"`
	Priority    string   `json:"priority,omitempty" validate:"omitempty,oneof=low medium high"`
	Order       float64  `json:"order"`
}

type updateCardRequest struct {
	ColumnID    *string   `json:"columnId,omitempty" validate:"omitempty,min=1"`
	Title       *string   `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Description *string   `json:"description,omitempty" validate:"omitempty,max=4000"`
	Assignees   *[]string `json:"assignees,omitempty" validate:"omitempty,max=50,dive,email"`
	DueDate     *string   `json:"dueDate,omitempty" validate:"omitempty,max=40"`
	Labels      *[]string `json:"labels,omitempty" validate:"omitempty,max=20,dive,max=50"`
	Priority    *string   `json:"priority,omitempty" validate:"omitempty,oneof=low medium high"`
	Order       *float64  `json:"order,omitempty"`
}

// boardSnapshot lists the channel's columns and cards for the snapshot event.
func (s *Server) boardSnapshot(r *http.Request, ch *channel.Channel) any {
	columns, err := s.Board.ListColumns(r.Context(), ch.ID)
	if err == nil {
		var cards []*board.Card
		if cards, err = s.Board.ListCards(r.Context(), ch.ID, ""); err == nil {
			return map[string]any{"columns": columns, "cards": cards}
		}
	}
	s.logger.WarnContext(r.Context(), "failed to build board snapshot",
		slog.String("channel_id", ch.ID),
		slog.String("error", err.Error()),
	)
	return nil
}

func (s *Server) publishBoard(r *http.Request, ch *channel.Channel, eventType string, data any) {
	s.Notifier.Publish(r.Context(), notify.KindBoard, ch.WorkspaceID, ch.ID, eventType, data, s.boardSnapshot(r, ch))
}

func (s *Server) listColumns(w http.ResponseWriter, r *http.Request) {
	ch, err := s.typedChannel(r, channel.TypeBoard)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	list, err := s.Board.ListColumns(r.Context(), ch.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) createColumn(w http.ResponseWriter, r *http.Request) {
	var req createColumnRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	ch, err := s.typedChannel(r, channel.TypeBoard)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	col, err := s.Board.CreateColumn(r.Context(), board.Column{
		WorkspaceID: ch.WorkspaceID,
		ChannelID:   ch.ID,
		Title:       req.Title,
		Order:       req.Order,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.publishBoard(r, ch, notify.EventColumnCreated, col)
	writeJSON(w, http.StatusCreated, col)
}

func (s *Server) updateColumn(w http.ResponseWriter, r *http.Request) {
	var req updateColumnRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	ch, err := s.typedChannel(r, channel.TypeBoard)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	col, err := s.Board.UpdateColumn(r.Context(), ch.ID, pathParam(r, "columnID"), board.ColumnUpdate{
		Title: req.Title,
		Order: req.Order,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.publishBoard(r, ch, notify.EventColumnUpdated, col)
	writeJSON(w, http.StatusOK, col)
}

func (s *Server) deleteColumn(w http.ResponseWriter, r *http.Request) {
	ch, err := s.typedChannel(r, channel.TypeBoard)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	columnID := pathParam(r, "columnID")
	if _, err := s.Board.DeleteColumn(r.Context(), ch.ID, columnID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.publishBoard(r, ch, notify.EventColumnDeleted, map[string]string{"columnId": columnID})
	writeNoContent(w)
}

func (s *Server) listCards(w http.ResponseWriter, r *http.Request) {
	ch, err := s.typedChannel(r, channel.TypeBoard)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	list, err := s.Board.ListCards(r.Context(), ch.ID, r.URL.Query().Get("columnId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) createCard(w http.ResponseWriter, r *http.Request) {
	var req createCardRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	ch, err := s.typedChannel(r, channel.TypeBoard)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	card, err := s.Board.CreateCard(r.Context(), board.Card{
		ColumnID:    req.ColumnID,
		WorkspaceID: ch.WorkspaceID,
		ChannelID:   ch.ID,
		Title:       req.Title,
		Description: textnorm.StripHTML(req.Description),
		Assignees:   textnorm.NormalizeEmails(req.Assignees),
		DueDate:     req.DueDate,
		Labels:      req.Labels,
		Priority:    req.Priority,
		Order:       req.Order,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.publishBoard(r, ch, notify.EventCardCreated, card)
	writeJSON(w, http.StatusCreated, card)
}

func (s *Server) updateCard(w http.ResponseWriter, r *http.Request) {
	var req updateCardRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	ch, err := s.typedChannel(r, channel.TypeBoard)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Description != nil {
		stripped := textnorm.StripHTML(*req.Description)
		req.Description = &stripped
	}
	if req.Assignees != nil {
		assignees := textnorm.NormalizeEmails(*req.Assignees)
		req.Assignees = &assignees
	}
	card, err := s.Board.UpdateCard(r.Context(), ch.ID, pathParam(r, "cardID"), board.CardUpdate{
		ColumnID:    req.ColumnID,
		Title:       req.Title,
		Description: req.Description,
		Assignees:   req.Assignees,
		DueDate:     req.DueDate,
		Labels:      req.Labels,
		Priority:    req.Priority,
		Order:       req.Order,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.publishBoard(r, ch, notify.EventCardUpdated, card)
	writeJSON(w, http.StatusOK, card)
}

func (s *Server) deleteCard(w http.ResponseWriter, r *http.Request) {
	ch, err := s.typedChannel(r, channel.TypeBoard)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	cardID := pathParam(r, "cardID")
	if err := s.Board.DeleteCard(r.Context(), ch.ID, cardID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.publishBoard(r, ch, notify.EventCardDeleted, map[string]string{"cardId": cardID})
	writeNoContent(w)
}
