package workspace

import (
	"context"

	"github.com/jarrod-lowe/collab-service/internal/apperr"
)

// Error types for repository operations.
var (
	ErrNotFound          = apperr.NotFound("Workspace not found")
	ErrCannotRemoveOwner = apperr.Validation("The workspace owner cannot be removed")
)

// MaxScan bounds how many workspaces are read when listing a caller's workspaces.
const MaxScan = 500

// Repository defines the interface for workspace storage operations.
type Repository interface {
	Create(ctx context.Context, name, ownerEmail string, members []string, imageURL string) (*Workspace, error)
	Get(ctx context.Context, id string) (*Workspace, error)
	ListForMember(ctx context.Context, email string) ([]*Workspace, error)
	Update(ctx context.Context, id string, update Update) (*Workspace, error)
	AddMember(ctx context.Context, id, email string) (*Workspace, error)
	RemoveMember(ctx context.Context, id, email string) (*Workspace, error)
	Delete(ctx context.Context, id string) error
}
