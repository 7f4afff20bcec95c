package httpapi

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jarrod-lowe/collab-service/internal/board"
	"github.com/jarrod-lowe/collab-service/internal/channel"
	"github.com/jarrod-lowe/collab-service/internal/dm"
	"github.com/jarrod-lowe/collab-service/internal/friend"
	"github.com/jarrod-lowe/collab-service/internal/identity"
	"github.com/jarrod-lowe/collab-service/internal/message"
	"github.com/jarrod-lowe/collab-service/internal/portfolio"
	"github.com/jarrod-lowe/collab-service/internal/profile"
	"github.com/jarrod-lowe/collab-service/internal/social"
	"github.com/jarrod-lowe/collab-service/internal/task"
	"github.com/jarrod-lowe/collab-service/internal/voice"
	"github.com/jarrod-lowe/collab-service/internal/workspace"
)

type fakeVerifier map[string]*identity.Identity

func (f fakeVerifier) Verify(ctx context.Context, token string) (*identity.Identity, error) {
	if token == "" {
		return nil, identity.ErrMissingToken
	}
	id, ok := f[token]
	if !ok {
		return nil, identity.ErrInvalidToken
	}
	return id, nil
}

type fakeAuth struct {
	signUpEmail string
	err         error
}

func (f *fakeAuth) SignUp(ctx context.Context, email, password string) (*identity.SignUpResult, error) {
	f.signUpEmail = email
	return &identity.SignUpResult{UserSub: "sub-new"}, f.err
}

func (f *fakeAuth) ConfirmSignUp(ctx context.Context, email, code string) error { return f.err }

func (f *fakeAuth) ResendCode(ctx context.Context, email string) error { return f.err }

func (f *fakeAuth) Login(ctx context.Context, email, password string) (*identity.Tokens, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &identity.Tokens{AccessToken: "access", IDToken: "id-token", RefreshToken: "refresh", ExpiresIn: 3600, TokenType: "Bearer", Email: email}, nil
}

func (f *fakeAuth) Refresh(ctx context.Context, refreshToken, username string) (*identity.Tokens, error) {
	return &identity.Tokens{AccessToken: "access", IDToken: "id-token", ExpiresIn: 3600, TokenType: "Bearer"}, f.err
}

// memWorkspaces is an in-memory workspace.Repository.
type memWorkspaces struct {
	mu   sync.Mutex
	next int
	byID map[string]*workspace.Workspace
}

func newMemWorkspaces() *memWorkspaces {
	return &memWorkspaces{byID: map[string]*workspace.Workspace{}}
}

func (m *memWorkspaces) Create(ctx context.Context, name, ownerEmail string, members []string, imageURL string) (*workspace.Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	ws := &workspace.Workspace{
		ID:         fmt.Sprintf("ws-%d", m.next),
		Name:       name,
		OwnerEmail: ownerEmail,
		Members:    workspace.NormalizeMembers(ownerEmail, members),
		ImageURL:   imageURL,
		CreatedAt:  time.Now(),
	}
	m.byID[ws.ID] = ws
	return ws, nil
}

func (m *memWorkspaces) Get(ctx context.Context, id string) (*workspace.Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ws, ok := m.byID[id]
	if !ok {
		return nil, workspace.ErrNotFound
	}
	copied := *ws
	return &copied, nil
}

func (m *memWorkspaces) ListForMember(ctx context.Context, email string) ([]*workspace.Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*workspace.Workspace{}
	for _, ws := range m.byID {
		if ws.HasMember(email) {
			out = append(out, ws)
		}
	}
	return out, nil
}

func (m *memWorkspaces) Update(ctx context.Context, id string, update workspace.Update) (*workspace.Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ws, ok := m.byID[id]
	if !ok {
		return nil, workspace.ErrNotFound
	}
	if update.Name != nil {
		ws.Name = *update.Name
	}
	if update.ImageURL != nil {
		ws.ImageURL = *update.ImageURL
	}
	return ws, nil
}

func (m *memWorkspaces) AddMember(ctx context.Context, id, email string) (*workspace.Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ws, ok := m.byID[id]
	if !ok {
		return nil, workspace.ErrNotFound
	}
	ws.Members = workspace.NormalizeMembers(ws.OwnerEmail, append(ws.Members, email))
	return ws, nil
}

func (m *memWorkspaces) RemoveMember(ctx context.Context, id, email string) (*workspace.Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ws, ok := m.byID[id]
	if !ok {
		return nil, workspace.ErrNotFound
	}
	if ws.IsOwner(email) {
		return nil, workspace.ErrCannotRemoveOwner
	}
	ws.Members = slices.DeleteFunc(ws.Members, func(m string) bool { return m == email })
	return ws, nil
}

func (m *memWorkspaces) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return workspace.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

// memChannels stores channels and the messages under them.
type memChannels struct {
	mu       sync.Mutex
	next     int
	channels map[string]*channel.Channel
	messages map[string][]*message.Message
}

func newMemChannels() *memChannels {
	return &memChannels{channels: map[string]*channel.Channel{}, messages: map[string][]*message.Message{}}
}

func (m *memChannels) Create(ctx context.Context, workspaceID, name string, channelType channel.Type) (*channel.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	ch := &channel.Channel{ID: fmt.Sprintf("ch-%d", m.next), WorkspaceID: workspaceID, Name: name, Type: channelType}
	m.channels[ch.ID] = ch
	return ch, nil
}

func (m *memChannels) Get(ctx context.Context, workspaceID, channelID string) (*channel.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.channels[channelID]
	if !ok || ch.WorkspaceID != workspaceID {
		return nil, channel.ErrNotFound
	}
	return ch, nil
}

func (m *memChannels) List(ctx context.Context, workspaceID string) ([]*channel.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*channel.Channel{}
	for _, ch := range m.channels {
		if ch.WorkspaceID == workspaceID {
			out = append(out, ch)
		}
	}
	return out, nil
}

func (m *memChannels) Rename(ctx context.Context, workspaceID, channelID, name string) (*channel.Channel, error) {
	ch, err := m.Get(ctx, workspaceID, channelID)
	if err != nil {
		return nil, err
	}
	ch.Name = name
	return ch, nil
}

func (m *memChannels) Delete(ctx context.Context, workspaceID, channelID string) (int, error) {
	if _, err := m.Get(ctx, workspaceID, channelID); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := len(m.messages[channelID])
	delete(m.messages, channelID)
	delete(m.channels, channelID)
	return removed, nil
}

type memMessages struct {
	channels *memChannels
}

func (m memMessages) Create(ctx context.Context, workspaceID, channelID, authorEmail, text string) (*message.Message, error) {
	m.channels.mu.Lock()
	defer m.channels.mu.Unlock()
	msg := &message.Message{
		ID:          fmt.Sprintf("msg-%d", len(m.channels.messages[channelID])+1),
		ChannelID:   channelID,
		WorkspaceID: workspaceID,
		Text:        text,
		AuthorEmail: authorEmail,
		CreatedAt:   time.Now(),
	}
	m.channels.messages[channelID] = append(m.channels.messages[channelID], msg)
	return msg, nil
}

func (m memMessages) List(ctx context.Context, channelID string) ([]*message.Message, error) {
	m.channels.mu.Lock()
	defer m.channels.mu.Unlock()
	return append([]*message.Message{}, m.channels.messages[channelID]...), nil
}

type fakeProfiles struct {
	bySub      map[string]*profile.Profile
	upsertErr  error
	upserted   *profile.Profile
	previousOf *profile.Profile
}

func (f *fakeProfiles) Get(ctx context.Context, sub string) (*profile.Profile, error) {
	if p, ok := f.bySub[sub]; ok {
		return p, nil
	}
	return nil, profile.ErrNotFound
}

func (f *fakeProfiles) GetByUsername(ctx context.Context, username string) (*profile.Profile, error) {
	for _, p := range f.bySub {
		if p.Username == username {
			return p, nil
		}
	}
	return nil, profile.ErrNotFound
}

func (f *fakeProfiles) Upsert(ctx context.Context, p profile.Profile) (*profile.Profile, *profile.Profile, error) {
	if f.upsertErr != nil {
		return nil, nil, f.upsertErr
	}
	f.upserted = &p
	return &p, f.previousOf, nil
}

type fakeFriends struct {
	existing map[string]bool
	removed  []string
}

func (f *fakeFriends) Add(ctx context.Context, subjectSub, username string) (*friend.Friendship, bool, error) {
	fs := &friend.Friendship{SubjectSub: subjectSub, TargetSub: "sub-" + username, TargetUsername: username}
	if f.existing[username] {
		return fs, false, nil
	}
	return fs, true, nil
}

func (f *fakeFriends) List(ctx context.Context, subjectSub string) ([]friend.Friend, error) {
	return []friend.Friend{}, nil
}

func (f *fakeFriends) Remove(ctx context.Context, subjectSub, targetSub string) error {
	f.removed = append(f.removed, targetSub)
	return nil
}

type fakeThreads struct {
	threads     map[string]*dm.Thread
	requestedID string
	posted      []string
}

func (f *fakeThreads) UpsertThread(ctx context.Context, a, b string) (*dm.Thread, bool, error) {
	if a == b {
		return nil, false, dm.ErrSelfThread
	}
	id := dm.ThreadID(a, b)
	if t, ok := f.threads[id]; ok {
		return t, false, nil
	}
	t := &dm.Thread{ThreadID: id, Participants: strings.Split(id, "#")}
	f.threads[id] = t
	return t, true, nil
}

func (f *fakeThreads) GetThreadFor(ctx context.Context, threadID, sub string) (*dm.Thread, error) {
	f.requestedID = threadID
	t, ok := f.threads[threadID]
	if !ok {
		return nil, dm.ErrNotFound
	}
	if !t.HasParticipant(sub) {
		return nil, dm.ErrNotParticipant
	}
	return t, nil
}

func (f *fakeThreads) ListThreads(ctx context.Context, sub string) ([]*dm.Thread, error) {
	return []*dm.Thread{}, nil
}

func (f *fakeThreads) PostMessage(ctx context.Context, threadID, senderSub, text string) (*dm.Message, error) {
	f.posted = append(f.posted, text)
	return &dm.Message{ID: "m1", ThreadID: threadID, SenderSub: senderSub, Text: text}, nil
}

func (f *fakeThreads) ListMessages(ctx context.Context, threadID string) ([]*dm.Message, error) {
	return []*dm.Message{}, nil
}

type fakePosts struct {
	deleted *social.Post
	err     error
}

func (f *fakePosts) Create(ctx context.Context, p social.Post) (*social.Post, error) {
	p.ID = "post-1"
	return &p, nil
}

func (f *fakePosts) Feed(ctx context.Context) ([]*social.Post, error) { return []*social.Post{}, nil }

func (f *fakePosts) Like(ctx context.Context, id string) (*social.Post, error) {
	return &social.Post{ID: id, LikeCount: 1}, nil
}

func (f *fakePosts) Delete(ctx context.Context, id, authorSub string) (*social.Post, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.deleted, nil
}

type fakeRemover struct {
	keys []string
}

func (f *fakeRemover) Remove(ctx context.Context, keys []string) error {
	f.keys = append(f.keys, keys...)
	return nil
}

type fakeVoice struct {
	signals []voice.Signal
	callers []voice.Caller
	closed  []voice.Room
}

func (f *fakeVoice) Handle(ctx context.Context, caller voice.Caller, sig voice.Signal) (any, error) {
	f.signals = append(f.signals, sig)
	f.callers = append(f.callers, caller)
	if sig.Type == "bogus" {
		return nil, voice.ErrUnknownSignal
	}
	return map[string]any{"success": true}, nil
}

func (f *fakeVoice) Poll(ctx context.Context, caller voice.Caller, connectionID string) (*voice.PollResult, error) {
	return &voice.PollResult{Participants: []*voice.Participant{{ConnectionID: connectionID, Sub: caller.Sub}}}, nil
}

func (f *fakeVoice) CloseRoom(ctx context.Context, room voice.Room) (int, error) {
	f.closed = append(f.closed, room)
	return 0, nil
}

type memTasks struct {
	mu    sync.Mutex
	next  int
	tasks []*task.Task
}

func (m *memTasks) Create(ctx context.Context, t task.Task) (*task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	t.TaskID = fmt.Sprintf("task-%d", m.next)
	if t.Status == "" {
		t.Status = task.StatusTodo
	}
	if t.Priority == "" {
		t.Priority = task.PriorityMedium
	}
	m.tasks = append(m.tasks, &t)
	return &t, nil
}

func (m *memTasks) List(ctx context.Context, channelID string) ([]*task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*task.Task{}
	for _, t := range m.tasks {
		if t.ChannelID == channelID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memTasks) Update(ctx context.Context, channelID, taskID string, update task.Update) (*task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tasks {
		if t.ChannelID != channelID || t.TaskID != taskID {
			continue
		}
		if update.Title != nil {
			t.Title = *update.Title
		}
		if update.Status != nil {
			t.Status = *update.Status
		}
		if update.AssignedTo != nil {
			t.AssignedTo = *update.AssignedTo
		}
		return t, nil
	}
	return nil, task.ErrNotFound
}

func (m *memTasks) Delete(ctx context.Context, channelID, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range m.tasks {
		if t.ChannelID == channelID && t.TaskID == taskID {
			m.tasks = slices.Delete(m.tasks, i, i+1)
			return nil
		}
	}
	return task.ErrNotFound
}

type memBoard struct {
	mu      sync.Mutex
	next    int
	columns []*board.Column
	cards   []*board.Card
}

func (m *memBoard) id(prefix string) string {
	m.next++
	return fmt.Sprintf("%s-%d", prefix, m.next)
}

func (m *memBoard) column(channelID, columnID string) (*board.Column, int) {
	for i, c := range m.columns {
		if c.ChannelID == channelID && c.ColumnID == columnID {
			return c, i
		}
	}
	return nil, -1
}

func (m *memBoard) CreateColumn(ctx context.Context, col board.Column) (*board.Column, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	col.ColumnID = m.id("col")
	m.columns = append(m.columns, &col)
	return &col, nil
}

func (m *memBoard) ListColumns(ctx context.Context, channelID string) ([]*board.Column, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*board.Column{}
	for _, c := range m.columns {
		if c.ChannelID == channelID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memBoard) UpdateColumn(ctx context.Context, channelID, columnID string, update board.ColumnUpdate) (*board.Column, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	col, _ := m.column(channelID, columnID)
	if col == nil {
		return nil, board.ErrColumnNotFound
	}
	if update.Title != nil {
		col.Title = *update.Title
	}
	if update.Order != nil {
		col.Order = *update.Order
	}
	return col, nil
}

func (m *memBoard) DeleteColumn(ctx context.Context, channelID, columnID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, i := m.column(channelID, columnID)
	if i < 0 {
		return 0, board.ErrColumnNotFound
	}
	m.columns = slices.Delete(m.columns, i, i+1)
	before := len(m.cards)
	m.cards = slices.DeleteFunc(m.cards, func(c *board.Card) bool {
		return c.ChannelID == channelID && c.ColumnID == columnID
	})
	return before - len(m.cards), nil
}

func (m *memBoard) CreateCard(ctx context.Context, card board.Card) (*board.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if col, _ := m.column(card.ChannelID, card.ColumnID); col == nil {
		return nil, board.ErrColumnNotFound
	}
	card.CardID = m.id("card")
	m.cards = append(m.cards, &card)
	return &card, nil
}

func (m *memBoard) ListCards(ctx context.Context, channelID, columnID string) ([]*board.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*board.Card{}
	for _, c := range m.cards {
		if c.ChannelID == channelID && (columnID == "" || c.ColumnID == columnID) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memBoard) UpdateCard(ctx context.Context, channelID, cardID string, update board.CardUpdate) (*board.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.cards {
		if c.ChannelID != channelID || c.CardID != cardID {
			continue
		}
		if update.ColumnID != nil {
			if col, _ := m.column(channelID, *update.ColumnID); col == nil {
				return nil, board.ErrColumnNotFound
			}
			c.ColumnID = *update.ColumnID
		}
		if update.Title != nil {
			c.Title = *update.Title
		}
		if update.Order != nil {
			c.Order = *update.Order
		}
		return c, nil
	}
	return nil, board.ErrCardNotFound
}

func (m *memBoard) DeleteCard(ctx context.Context, channelID, cardID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	before := len(m.cards)
	m.cards = slices.DeleteFunc(m.cards, func(c *board.Card) bool {
		return c.ChannelID == channelID && c.CardID == cardID
	})
	if len(m.cards) == before {
		return board.ErrCardNotFound
	}
	return nil
}

type memProjects struct {
	mu       sync.Mutex
	next     int
	projects []*portfolio.Project
}

func (m *memProjects) Create(ctx context.Context, p portfolio.Project) (*portfolio.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	p.ID = fmt.Sprintf("proj-%d", m.next)
	m.projects = append(m.projects, &p)
	return &p, nil
}

func (m *memProjects) List(ctx context.Context, ownerSub string) ([]*portfolio.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*portfolio.Project{}
	for _, p := range m.projects {
		if p.OwnerSub == ownerSub {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memProjects) Update(ctx context.Context, p portfolio.Project) (*portfolio.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.projects {
		if existing.OwnerSub == p.OwnerSub && existing.ID == p.ID {
			m.projects[i] = &p
			return &p, nil
		}
	}
	return nil, portfolio.ErrNotFound
}

func (m *memProjects) Delete(ctx context.Context, ownerSub, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	before := len(m.projects)
	m.projects = slices.DeleteFunc(m.projects, func(p *portfolio.Project) bool {
		return p.OwnerSub == ownerSub && p.ID == id
	})
	if len(m.projects) == before {
		return portfolio.ErrNotFound
	}
	return nil
}
