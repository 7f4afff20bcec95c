package voice

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jarrod-lowe/collab-service/internal/apperr"
	"github.com/jarrod-lowe/collab-service/internal/eventqueue"
)

// Signal types accepted by Handle.
const (
	SignalJoin         = "join_voice"
	SignalLeave        = "leave_voice"
	SignalRelay        = "signal"
	SignalOffer        = "offer"
	SignalAnswer       = "answer"
	SignalICECandidate = "ice-candidate"
	SignalMute         = "mute"
	SignalUnmute       = "unmute"
)

// Event types queued for connections.
const (
	EventUserJoined         = "user_joined"
	EventUserLeft           = "user_left"
	EventParticipants       = "participants"
	EventParticipantUpdated = "participant_updated"
	EventRoomClosed         = "room_closed"
)

// Error types for signalling.
var (
	ErrUnknownSignal  = apperr.Validation("type must be one of: join_voice leave_voice signal offer answer ice-candidate mute unmute")
	ErrMissingTarget  = apperr.Validation("data.targetConnectionId is required")
	ErrTargetNotFound = apperr.NotFound("Target connection is not in this room")
	ErrNotYours       = apperr.Forbidden("Connection belongs to another user")
)

// Caller is the authenticated user sending a signal.
type Caller struct {
	Sub      string
	Email    string
	Username string
}

// Signal is one POST /voice/signal body.
type Signal struct {
	Type         string         `json:"type"`
	WorkspaceID  string         `json:"workspaceId"`
	ChannelID    string         `json:"channelId"`
	ConnectionID string         `json:"connectionId"`
	Data         map[string]any `json:"data,omitempty"`
}

// PresenceStore is the presence storage the service needs.
type PresenceStore interface {
	Join(ctx context.Context, p Participant) (*Participant, error)
	Leave(ctx context.Context, connectionID string) (*Participant, error)
	Participants(ctx context.Context, room Room) ([]*Participant, error)
	RoomOf(ctx context.Context, connectionID string) (*Participant, error)
	SetMuted(ctx context.Context, connectionID string, muted bool) (*Participant, error)
}

// PollResult is what a connection receives when it polls.
type PollResult struct {
	Events       []eventqueue.Event `json:"events"`
	Participants []*Participant     `json:"participants"`
}

// Service applies signals to presence and fans events out to connection mailboxes.
type Service struct {
	presence PresenceStore
	queue    eventqueue.Queue[eventqueue.Event]
	logger   *slog.Logger
}

// NewService creates a new Service.
func NewService(presence PresenceStore, queue eventqueue.Queue[eventqueue.Event], logger *slog.Logger) *Service {
	return &Service{presence: presence, queue: queue, logger: logger}
}

// MailboxKey is the queue key of a connection.
func MailboxKey(connectionID string) string {
	return "VOICE#" + connectionID
}

// Handle applies one signal from caller and returns the response body.
func (s *Service) Handle(ctx context.Context, caller Caller, sig Signal) (any, error) {
	switch sig.Type {
	case SignalJoin:
		participants, err := s.join(ctx, caller, sig)
		if err != nil {
			return nil, err
		}
		return map[string]any{"participants": participants}, nil
	case SignalLeave:
		if err := s.leave(ctx, caller, sig.ConnectionID); err != nil {
			return nil, err
		}
		return map[string]any{"success": true}, nil
	case SignalRelay, SignalOffer, SignalAnswer, SignalICECandidate:
		if err := s.relay(ctx, caller, sig); err != nil {
			return nil, err
		}
		return map[string]any{"success": true}, nil
	case SignalMute, SignalUnmute:
		p, err := s.setMuted(ctx, caller, sig.ConnectionID, sig.Type == SignalMute)
		if err != nil {
			return nil, err
		}
		return map[string]any{"participant": p}, nil
	default:
		return nil, ErrUnknownSignal
	}
}

// join registers the connection, telling everyone else in the room and sending the joiner
// a participants snapshot. A connection already in another room leaves it first.
func (s *Service) join(ctx context.Context, caller Caller, sig Signal) ([]*Participant, error) {
	if current, err := s.owned(ctx, caller, sig.ConnectionID); err == nil {
		if current.Room() != (Room{WorkspaceID: sig.WorkspaceID, ChannelID: sig.ChannelID}) {
			if err := s.leave(ctx, caller, sig.ConnectionID); err != nil {
				return nil, err
			}
		}
	} else if !errors.Is(err, ErrNotInRoom) {
		return nil, err
	}

	joined, err := s.presence.Join(ctx, Participant{
		ConnectionID: sig.ConnectionID,
		WorkspaceID:  sig.WorkspaceID,
		ChannelID:    sig.ChannelID,
		Sub:          caller.Sub,
		Email:        caller.Email,
		Username:     caller.Username,
	})
	if err != nil {
		return nil, err
	}
	participants, err := s.presence.Participants(ctx, joined.Room())
	if err != nil {
		return nil, err
	}

	for _, p := range participants {
		if p.ConnectionID == joined.ConnectionID {
			continue
		}
		if err := s.queue.Enqueue(ctx, MailboxKey(p.ConnectionID), eventqueue.NewEvent(EventUserJoined, joined)); err != nil {
			return nil, err
		}
	}
	if err := s.queue.Enqueue(ctx, MailboxKey(joined.ConnectionID), eventqueue.NewEvent(EventParticipants, participants)); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "voice join",
		slog.String("connection_id", joined.ConnectionID),
		slog.String("workspace_id", joined.WorkspaceID),
		slog.String("channel_id", joined.ChannelID),
		slog.Int("participants", len(participants)),
	)
	return participants, nil
}

// leave removes the connection, drops its mailbox and tells the rest of the room.
// Leaving when not in a room succeeds.
func (s *Service) leave(ctx context.Context, caller Caller, connectionID string) error {
	if _, err := s.owned(ctx, caller, connectionID); err != nil {
		if errors.Is(err, ErrNotInRoom) {
			return s.queue.Clear(ctx, MailboxKey(connectionID))
		}
		return err
	}
	left, err := s.presence.Leave(ctx, connectionID)
	if err != nil {
		if errors.Is(err, ErrNotInRoom) {
			return nil
		}
		return err
	}
	if err := s.queue.Clear(ctx, MailboxKey(connectionID)); err != nil {
		return err
	}

	remaining, err := s.presence.Participants(ctx, left.Room())
	if err != nil {
		return err
	}
	for _, p := range remaining {
		if err := s.queue.Enqueue(ctx, MailboxKey(p.ConnectionID), eventqueue.NewEvent(EventUserLeft, left)); err != nil {
			return err
		}
	}
	s.logger.InfoContext(ctx, "voice leave",
		slog.String("connection_id", connectionID),
		slog.String("workspace_id", left.WorkspaceID),
		slog.String("channel_id", left.ChannelID),
	)
	return nil
}

// relay forwards sig.Data to data.targetConnectionId in the sender's room.
func (s *Service) relay(ctx context.Context, caller Caller, sig Signal) error {
	target, _ := sig.Data["targetConnectionId"].(string)
	if target == "" {
		return ErrMissingTarget
	}
	from, err := s.owned(ctx, caller, sig.ConnectionID)
	if err != nil {
		return err
	}
	to, err := s.presence.RoomOf(ctx, target)
	if err != nil {
		if errors.Is(err, ErrNotInRoom) {
			return ErrTargetNotFound
		}
		return err
	}
	if to.Room() != from.Room() {
		return ErrTargetNotFound
	}

	payload := make(map[string]any, len(sig.Data)+1)
	for k, v := range sig.Data {
		payload[k] = v
	}
	payload["fromConnectionId"] = from.ConnectionID
	return s.queue.Enqueue(ctx, MailboxKey(target), eventqueue.NewEvent(sig.Type, payload))
}

// setMuted changes the connection's muted flag and broadcasts it to the room.
func (s *Service) setMuted(ctx context.Context, caller Caller, connectionID string, muted bool) (*Participant, error) {
	if _, err := s.owned(ctx, caller, connectionID); err != nil {
		return nil, err
	}
	updated, err := s.presence.SetMuted(ctx, connectionID, muted)
	if err != nil {
		return nil, err
	}
	participants, err := s.presence.Participants(ctx, updated.Room())
	if err != nil {
		return nil, err
	}
	for _, p := range participants {
		if p.ConnectionID == connectionID {
			continue
		}
		if err := s.queue.Enqueue(ctx, MailboxKey(p.ConnectionID), eventqueue.NewEvent(EventParticipantUpdated, updated)); err != nil {
			return nil, err
		}
	}
	return updated, nil
}

// Poll drains the connection's mailbox and lists its room. A connection with no presence
// still receives its pending events with an empty participant list.
func (s *Service) Poll(ctx context.Context, caller Caller, connectionID string) (*PollResult, error) {
	result := &PollResult{Participants: []*Participant{}}
	current, err := s.owned(ctx, caller, connectionID)
	switch {
	case err == nil:
		participants, err := s.presence.Participants(ctx, current.Room())
		if err != nil {
			return nil, err
		}
		result.Participants = participants
	case !errors.Is(err, ErrNotInRoom):
		return nil, err
	}

	events, err := s.queue.Dequeue(ctx, MailboxKey(connectionID))
	if err != nil {
		return nil, err
	}
	result.Events = events
	return result, nil
}

// CloseRoom removes every participant of room and queues room_closed to each of their
// connections. It returns how many connections were removed.
func (s *Service) CloseRoom(ctx context.Context, room Room) (int, error) {
	participants, err := s.presence.Participants(ctx, room)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, p := range participants {
		if _, err := s.presence.Leave(ctx, p.ConnectionID); err != nil && !errors.Is(err, ErrNotInRoom) {
			return removed, err
		}
		removed++
		if err := s.queue.Enqueue(ctx, MailboxKey(p.ConnectionID), eventqueue.NewEvent(EventRoomClosed, room)); err != nil {
			return removed, err
		}
	}
	if removed > 0 {
		s.logger.InfoContext(ctx, "voice room closed",
			slog.String("workspace_id", room.WorkspaceID),
			slog.String("channel_id", room.ChannelID),
			slog.Int("participants", removed),
		)
	}
	return removed, nil
}

// owned returns the connection's presence, rejecting connections registered to another user.
func (s *Service) owned(ctx context.Context, caller Caller, connectionID string) (*Participant, error) {
	p, err := s.presence.RoomOf(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	if p.Sub != caller.Sub {
		return nil, ErrNotYours
	}
	return p, nil
}
