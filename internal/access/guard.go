// Package access enforces workspace ownership and membership on every request.
package access

import (
	"context"

	"github.com/jarrod-lowe/collab-service/internal/apperr"
	"github.com/jarrod-lowe/collab-service/internal/workspace"
)

// Error types for access checks.
var (
	ErrNotMember = apperr.Forbidden("You are not a member of this workspace")
	ErrNotOwner  = apperr.Forbidden("Only the workspace owner can perform this action")
)

// WorkspaceGetter loads a workspace by ID.
type WorkspaceGetter interface {
	Get(ctx context.Context, id string) (*workspace.Workspace, error)
}

// Guard checks the caller against a freshly loaded workspace. Nothing is cached.
type Guard struct {
	workspaces WorkspaceGetter
}

// NewGuard creates a new Guard.
func NewGuard(workspaces WorkspaceGetter) *Guard {
	return &Guard{workspaces: workspaces}
}

// RequireMember returns the workspace when email is its owner or a member.
func (g *Guard) RequireMember(ctx context.Context, workspaceID, email string) (*workspace.Workspace, error) {
	ws, err := g.workspaces.Get(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if !ws.HasMember(email) {
		return nil, ErrNotMember
	}
	return ws, nil
}

// RequireOwner returns the workspace when email is its owner.
func (g *Guard) RequireOwner(ctx context.Context, workspaceID, email string) (*workspace.Workspace, error) {
	ws, err := g.workspaces.Get(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if !ws.IsOwner(email) {
		return nil, ErrNotOwner
	}
	return ws, nil
}
