package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/jarrod-lowe/collab-service/internal/channel"
	"github.com/jarrod-lowe/collab-service/internal/notify"
	"github.com/jarrod-lowe/collab-service/internal/task"
	"github.com/jarrod-lowe/collab-service/internal/textnorm"
)

type createTaskRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description,omitempty" validate:"max=4000"`
	Status      string `json:"status,omitempty" validate:"omitempty,oneof=todo in-progress done"`
	AssignedTo  string `json:"assignedTo,omitempty" validate:"omitempty,email"`
	DueDate     string `json:"dueDate,omitempty" validate:"max=40"`
	Priority    string `json:"priority,omitempty" validate:"omitempty,oneof=low medium high"`
}

type updateTaskRequest struct {
	Title       *string `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=4000"`
	Status      *string `json:"status,omitempty" validate:"omitempty,oneof=todo in-progress done"`
	AssignedTo  *string `json:"assignedTo,omitempty" validate:"omitempty,max=320"`
	DueDate     *string `json:"dueDate,omitempty" validate:"omitempty,max=40"`
	Priority    *string `json:"priority,omitempty" validate:"omitempty,oneof=low medium high"`
}

// taskSnapshot lists the channel's tasks for the snapshot event. A failed listing
// publishes the change without a snapshot.
func (s *Server) taskSnapshot(r *http.Request, ch *channel.Channel) any {
	tasks, err := s.Tasks.List(r.Context(), ch.ID)
	if err != nil {
		s.logger.WarnContext(r.Context(), "failed to build task snapshot",
			slog.String("channel_id", ch.ID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return map[string]any{"tasks": tasks}
}

func (s *Server) publishTask(r *http.Request, ch *channel.Channel, eventType string, data any) {
	s.Notifier.Publish(r.Context(), notify.KindTasks, ch.WorkspaceID, ch.ID, eventType, data, s.taskSnapshot(r, ch))
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	ch, err := s.typedChannel(r, channel.TypeTasks)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	list, err := s.Tasks.List(r.Context(), ch.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	ch, err := s.typedChannel(r, channel.TypeTasks)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := s.Tasks.Create(r.Context(), task.Task{
		WorkspaceID: ch.WorkspaceID,
		ChannelID:   ch.ID,
		Title:       req.Title,
		Description: textnorm.StripHTML(req.Description),
		Status:      req.Status,
		AssignedTo:  textnorm.NormalizeEmail(req.AssignedTo),
		DueDate:     req.DueDate,
		Priority:    req.Priority,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.publishTask(r, ch, notify.EventTaskCreated, t)
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) updateTask(w http.ResponseWriter, r *http.Request) {
	var req updateTaskRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	ch, err := s.typedChannel(r, channel.TypeTasks)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Description != nil {
		stripped := textnorm.StripHTML(*req.Description)
		req.Description = &stripped
	}
	if req.AssignedTo != nil {
		assignee := textnorm.NormalizeEmail(*req.AssignedTo)
		req.AssignedTo = &assignee
	}
	t, err := s.Tasks.Update(r.Context(), ch.ID, pathParam(r, "taskID"), task.Update{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		AssignedTo:  req.AssignedTo,
		DueDate:     req.DueDate,
		Priority:    req.Priority,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.publishTask(r, ch, notify.EventTaskUpdated, t)
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	ch, err := s.typedChannel(r, channel.TypeTasks)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	taskID := pathParam(r, "taskID")
	if err := s.Tasks.Delete(r.Context(), ch.ID, taskID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.publishTask(r, ch, notify.EventTaskDeleted, map[string]string{"taskId": taskID})
	writeNoContent(w)
}
