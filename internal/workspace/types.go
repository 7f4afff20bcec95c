// Package workspace provides storage for workspaces and their member lists.
package workspace

import (
	"slices"
	"time"

	"github.com/jarrod-lowe/collab-service/internal/dynamo"
	"github.com/jarrod-lowe/collab-service/internal/textnorm"
)

// Workspace is a tenant owned by one user and shared with members.
// PK: WORKSPACE
// SK: WORKSPACE#{id}
type Workspace struct {
	ID         string    `json:"id" dynamodbav:"id"`
	Name       string    `json:"name" dynamodbav:"name"`
	OwnerEmail string    `json:"ownerEmail" dynamodbav:"ownerEmail"`
	Members    []string  `json:"members" dynamodbav:"members"`
	ImageURL   string    `json:"imageUrl,omitempty" dynamodbav:"imageUrl,omitempty"`
	CreatedAt  time.Time `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt" dynamodbav:"updatedAt"`
}

// PK returns the DynamoDB partition key for this workspace.
func (w *Workspace) PK() string {
	return dynamo.PartitionWorkspace
}

// SK returns the DynamoDB sort key for this workspace.
func (w *Workspace) SK() string {
	return dynamo.PrefixWorkspace + w.ID
}

// IsOwner reports whether email owns the workspace.
func (w *Workspace) IsOwner(email string) bool {
	return textnorm.NormalizeEmail(email) == textnorm.NormalizeEmail(w.OwnerEmail)
}

// HasMember reports whether email is the owner or a listed member.
func (w *Workspace) HasMember(email string) bool {
	if w.IsOwner(email) {
		return true
	}
	return slices.Contains(textnorm.NormalizeEmails(w.Members), textnorm.NormalizeEmail(email))
}

// Update holds the mutable workspace fields; nil fields are left unchanged.
type Update struct {
	Name     *string
	ImageURL *string
}

// NormalizeMembers returns members normalised and de-duplicated with the owner first.
func NormalizeMembers(ownerEmail string, members []string) []string {
	return textnorm.NormalizeEmails(append([]string{ownerEmail}, members...))
}
