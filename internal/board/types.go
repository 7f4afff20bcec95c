// Package board stores kanban columns and cards of a board channel.
package board

import (
	"time"

	"github.com/jarrod-lowe/collab-service/internal/apperr"
	"github.com/jarrod-lowe/collab-service/internal/dynamo"
)

// List caps.
const (
	ColumnListLimit = 100
	CardListLimit   = 500
)

// Error types for board operations.
var (
	ErrColumnNotFound = apperr.NotFound("Column not found")
	ErrCardNotFound   = apperr.NotFound("Card not found")
)

// Column is a kanban column. Order is a client-side sort hint.
// PK: CHANNEL#{channelId}
// SK: BOARD_COLUMN#{columnId}
type Column struct {
	ColumnID    string    `json:"columnId" dynamodbav:"columnId"`
	WorkspaceID string    `json:"workspaceId" dynamodbav:"workspaceId"`
	ChannelID   string    `json:"channelId" dynamodbav:"channelId"`
	Title       string    `json:"title" dynamodbav:"title"`
	Order       float64   `json:"order" dynamodbav:"order"`
	CreatedAt   time.Time `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" dynamodbav:"updatedAt"`
}

// PK returns the DynamoDB partition key for this column.
func (c *Column) PK() string {
	return dynamo.PrefixChannel + c.ChannelID
}

// SK returns the DynamoDB sort key for this column.
func (c *Column) SK() string {
	return dynamo.PrefixBoardColumn + c.ColumnID
}

// CardPrefix is the sort key prefix of every card in this column.
func (c *Column) CardPrefix() string {
	return dynamo.PrefixBoardCard + c.ColumnID + "#"
}

// Card is a kanban card inside a column.
// PK: CHANNEL#{channelId}
// SK: BOARD_CARD#{columnId}#{cardId}
type Card struct {
	CardID      string    `json:"cardId" dynamodbav:"cardId"`
	ColumnID    string    `json:"columnId" dynamodbav:"columnId"`
	WorkspaceID string    `json:"workspaceId" dynamodbav:"workspaceId"`
	ChannelID   string    `json:"channelId" dynamodbav:"channelId"`
	Title       string    `json:"title" dynamodbav:"title"`
	Description string    `json:"description,omitempty" dynamodbav:"description,omitempty"`
	Assignees   []string  `json:"assignees" dynamodbav:"assignees"`
	DueDate     string    `json:"dueDate,omitempty" dynamodbav:"dueDate,omitempty"`
	Labels      []string  `json:"labels" dynamodbav:"labels"`
	Priority    string    `json:"priority,omitempty" dynamodbav:"priority,omitempty"`
	Order       float64   `json:"order" dynamodbav:"order"`
	CreatedAt   time.Time `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" dynamodbav:"updatedAt"`
}

// PK returns the DynamoDB partition key for this card.
func (c *Card) PK() string {
	return dynamo.PrefixChannel + c.ChannelID
}

// SK returns the DynamoDB sort key for this card.
func (c *Card) SK() string {
	return dynamo.Join(dynamo.PrefixBoardCard, c.ColumnID, c.CardID)
}

// ColumnUpdate holds supplied column fields; nil fields are left unchanged.
type ColumnUpdate struct {
	Title *string
	Order *float64
}

// CardUpdate holds supplied card fields; nil fields are left unchanged. A ColumnID
// different from the card's current column moves the card.
type CardUpdate struct {
	ColumnID    *string
	Title       *string
	Description *string
	Assignees   *[]string
	DueDate     *string
	Labels      *[]string
	Priority    *string
	Order       *float64
}

func (u CardUpdate) apply(c *Card) {
	if u.ColumnID != nil {
		c.ColumnID = *u.ColumnID
	}
	if u.Title != nil {
		c.Title = *u.Title
	}
	if u.Description != nil {
		c.Description = *u.Description
	}
	if u.Assignees != nil {
		c.Assignees = *u.Assignees
	}
	if u.DueDate != nil {
		c.DueDate = *u.DueDate
	}
	if u.Labels != nil {
		c.Labels = *u.Labels
	}
	if u.Priority != nil {
		c.Priority = *u.Priority
	}
	if u.Order != nil {
		c.Order = *u.Order
	}
}
