// Package httpapi serves the collaboration REST API.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/jarrod-lowe/collab-service/internal/board"
	"github.com/jarrod-lowe/collab-service/internal/channel"
	"github.com/jarrod-lowe/collab-service/internal/dm"
	"github.com/jarrod-lowe/collab-service/internal/eventqueue"
	"github.com/jarrod-lowe/collab-service/internal/friend"
	"github.com/jarrod-lowe/collab-service/internal/identity"
	"github.com/jarrod-lowe/collab-service/internal/media"
	"github.com/jarrod-lowe/collab-service/internal/message"
	"github.com/jarrod-lowe/collab-service/internal/portfolio"
	"github.com/jarrod-lowe/collab-service/internal/profile"
	"github.com/jarrod-lowe/collab-service/internal/social"
	"github.com/jarrod-lowe/collab-service/internal/task"
	"github.com/jarrod-lowe/collab-service/internal/voice"
	"github.com/jarrod-lowe/collab-service/internal/workspace"
)

// Authenticator runs the Cognito user flows.
type Authenticator interface {
	SignUp(ctx context.Context, email, password string) (*identity.SignUpResult, error)
	ConfirmSignUp(ctx context.Context, email, code string) error
	ResendCode(ctx context.Context, email string) error
	Login(ctx context.Context, email, password string) (*identity.Tokens, error)
	Refresh(ctx context.Context, refreshToken, username string) (*identity.Tokens, error)
}

// Verifier resolves a bearer token to the caller.
type Verifier interface {
	Verify(ctx context.Context, token string) (*identity.Identity, error)
}

// Guard checks workspace ownership and membership.
type Guard interface {
	RequireMember(ctx context.Context, workspaceID, email string) (*workspace.Workspace, error)
	RequireOwner(ctx context.Context, workspaceID, email string) (*workspace.Workspace, error)
}

// ChannelStore stores channels.
type ChannelStore interface {
	Create(ctx context.Context, workspaceID, name string, channelType channel.Type) (*channel.Channel, error)
	Get(ctx context.Context, workspaceID, channelID string) (*channel.Channel, error)
	List(ctx context.Context, workspaceID string) ([]*channel.Channel, error)
	Rename(ctx context.Context, workspaceID, channelID, name string) (*channel.Channel, error)
	Delete(ctx context.Context, workspaceID, channelID string) (int, error)
}

// MessageStore stores channel chat messages.
type MessageStore interface {
	Create(ctx context.Context, workspaceID, channelID, authorEmail, text string) (*message.Message, error)
	List(ctx context.Context, channelID string) ([]*message.Message, error)
}

// TaskStore stores tasks.
type TaskStore interface {
	Create(ctx context.Context, t task.Task) (*task.Task, error)
	List(ctx context.Context, channelID string) ([]*task.Task, error)
	Update(ctx context.Context, channelID, taskID string, update task.Update) (*task.Task, error)
	Delete(ctx context.Context, channelID, taskID string) error
}

// BoardStore stores kanban columns and cards.
type BoardStore interface {
	CreateColumn(ctx context.Context, col board.Column) (*board.Column, error)
	ListColumns(ctx context.Context, channelID string) ([]*board.Column, error)
	UpdateColumn(ctx context.Context, channelID, columnID string, update board.ColumnUpdate) (*board.Column, error)
	DeleteColumn(ctx context.Context, channelID, columnID string) (int, error)
	CreateCard(ctx context.Context, card board.Card) (*board.Card, error)
	ListCards(ctx context.Context, channelID, columnID string) ([]*board.Card, error)
	UpdateCard(ctx context.Context, channelID, cardID string, update board.CardUpdate) (*board.Card, error)
	DeleteCard(ctx context.Context, channelID, cardID string) error
}

// ProfileStore stores profiles and the username index.
type ProfileStore interface {
	Get(ctx context.Context, sub string) (*profile.Profile, error)
	GetByUsername(ctx context.Context, username string) (*profile.Profile, error)
	Upsert(ctx context.Context, p profile.Profile) (*profile.Profile, *profile.Profile, error)
}

// Friends manages friendship edges.
type Friends interface {
	Add(ctx context.Context, subjectSub, username string) (*friend.Friendship, bool, error)
	List(ctx context.Context, subjectSub string) ([]friend.Friend, error)
	Remove(ctx context.Context, subjectSub, targetSub string) error
}

// ThreadStore stores DM threads and their messages.
type ThreadStore interface {
	UpsertThread(ctx context.Context, a, b string) (*dm.Thread, bool, error)
	GetThreadFor(ctx context.Context, threadID, sub string) (*dm.Thread, error)
	ListThreads(ctx context.Context, sub string) ([]*dm.Thread, error)
	PostMessage(ctx context.Context, threadID, senderSub, text string) (*dm.Message, error)
	ListMessages(ctx context.Context, threadID string) ([]*dm.Message, error)
}

// PostStore stores social posts.
type PostStore interface {
	Create(ctx context.Context, p social.Post) (*social.Post, error)
	Feed(ctx context.Context) ([]*social.Post, error)
	Like(ctx context.Context, id string) (*social.Post, error)
	Delete(ctx context.Context, id, authorSub string) (*social.Post, error)
}

// ProjectStore stores portfolio projects.
type ProjectStore interface {
	Create(ctx context.Context, p portfolio.Project) (*portfolio.Project, error)
	List(ctx context.Context, ownerSub string) ([]*portfolio.Project, error)
	Update(ctx context.Context, p portfolio.Project) (*portfolio.Project, error)
	Delete(ctx context.Context, ownerSub, id string) error
}

// Uploads presigns media uploads.
type Uploads interface {
	CreateUpload(ctx context.Context, sub, purpose, contentType string) (*media.Upload, error)
}

// Voice handles voice signalling and polling.
type Voice interface {
	Handle(ctx context.Context, caller voice.Caller, sig voice.Signal) (any, error)
	Poll(ctx context.Context, caller voice.Caller, connectionID string) (*voice.PollResult, error)
	CloseRoom(ctx context.Context, room voice.Room) (int, error)
}

// Notifier publishes and drains channel room events.
type Notifier interface {
	Publish(ctx context.Context, kind, workspaceID, channelID, eventType string, data, snapshot any)
	Drain(ctx context.Context, kind, workspaceID, channelID string) ([]eventqueue.Event, error)
	Clear(ctx context.Context, kind, workspaceID, channelID string) error
}

// Deps are the collaborators the API is built from. Uploads and MediaRemover may be nil
// when no media bucket is configured; Upstream may be nil when no proxy target is set.
type Deps struct {
	Auth         Authenticator
	Verifier     Verifier
	Workspaces   workspace.Repository
	Guard        Guard
	Channels     ChannelStore
	Messages     MessageStore
	Tasks        TaskStore
	Board        BoardStore
	Profiles     ProfileStore
	Friends      Friends
	Threads      ThreadStore
	Posts        PostStore
	Projects     ProjectStore
	Uploads      Uploads
	MediaRemover media.Remover
	Voice        Voice
	Notifier     Notifier
	Upstream     http.Handler
	Logger       *slog.Logger
	CORSOrigins  []string
}

// Server holds the handlers of every route.
type Server struct {
	Deps
	logger *slog.Logger
}

// NewServer creates a Server.
func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{Deps: deps, logger: logger}
}

// Router builds the chi router serving every route.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(s.logger))
	r.Use(traceRequests)

	origins := s.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", s.signUp)
		r.Post("/confirm-signup", s.confirmSignUp)
		r.Post("/resend-code", s.resendCode)
		r.Post("/login", s.login)
		r.Post("/refresh", s.refresh)
	})

	if s.Upstream != nil {
		r.Handle("/proxy/*", s.Upstream)
	}

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)

		r.Route("/workspaces", func(r chi.Router) {
			r.Get("/", s.listWorkspaces)
			r.Post("/", s.createWorkspace)
			r.Route("/{workspaceID}", func(r chi.Router) {
				r.Get("/", s.getWorkspace)
				r.Patch("/", s.updateWorkspace)
				r.Delete("/", s.deleteWorkspace)
				r.Post("/members", s.addMember)
				r.Delete("/members/{email}", s.removeMember)

				r.Get("/channels", s.listChannels)
				r.Post("/channels", s.createChannel)
				r.Route("/channels/{channelID}", func(r chi.Router) {
					r.Patch("/", s.renameChannel)
					r.Delete("/", s.deleteChannel)
					r.Get("/messages", s.listMessages)
					r.Post("/messages", s.postMessage)
					r.Get("/events", s.pollChannelEvents)

					r.Get("/tasks", s.listTasks)
					r.Post("/tasks", s.createTask)
					r.Patch("/tasks/{taskID}", s.updateTask)
					r.Delete("/tasks/{taskID}", s.deleteTask)

					r.Get("/board/columns", s.listColumns)
					r.Post("/board/columns", s.createColumn)
					r.Patch("/board/columns/{columnID}", s.updateColumn)
					r.Delete("/board/columns/{columnID}", s.deleteColumn)
					r.Get("/board/cards", s.listCards)
					r.Post("/board/cards", s.createCard)
					r.Patch("/board/cards/{cardID}", s.updateCard)
					r.Delete("/board/cards/{cardID}", s.deleteCard)
				})
			})
		})

		r.Get("/friends", s.listFriends)
		r.Post("/friends", s.addFriend)
		r.Delete("/friends/{sub}", s.removeFriend)

		r.Get("/profile", s.getProfile)
		r.Put("/profile", s.putProfile)
		r.Get("/profiles/{username}", s.getProfileByUsername)

		r.Route("/social", func(r chi.Router) {
			r.Get("/posts", s.listPosts)
			r.Post("/posts", s.createPost)
			r.Delete("/posts/{postID}", s.deletePost)
			r.Post("/posts/{postID}/like", s.likePost)

			r.Get("/threads", s.listThreads)
			r.Post("/threads", s.openThread)
			r.Get("/threads/{threadID}/messages", s.listThreadMessages)
			r.Post("/threads/{threadID}/messages", s.postThreadMessage)
		})

		r.Get("/portfolio/projects", s.listOwnProjects)
		r.Post("/portfolio/projects", s.createProject)
		r.Put("/portfolio/projects/{projectID}", s.updateProject)
		r.Delete("/portfolio/projects/{projectID}", s.deleteProject)
		r.Get("/users/{sub}/portfolio", s.listUserProjects)

		r.Post("/media/uploads", s.createUpload)

		r.Post("/voice/signal", s.voiceSignal)
		r.Get("/voice/poll", s.voicePoll)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Message: "Route not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Message: "Method not allowed"})
	})
	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
