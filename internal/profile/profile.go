// Package profile stores user profiles and the unique username index.
package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jarrod-lowe/collab-service/internal/apperr"
	"github.com/jarrod-lowe/collab-service/internal/dynamo"
	"github.com/jarrod-lowe/collab-service/internal/textnorm"
)

// Presence values.
const (
	PresenceOnline  = "online"
	PresenceAway    = "away"
	PresenceBusy    = "busy"
	PresenceOffline = "offline"
)

// Theme values.
const (
	ThemeLight  = "light"
	ThemeDark   = "dark"
	ThemeSystem = "system"
)

// Error types for profile operations.
var (
	ErrNotFound      = apperr.NotFound("Profile not found")
	ErrUsernameTaken = apperr.Conflict("Username already taken")
)

// Profile is one user's public profile.
// PK: USER
// SK: USER#{sub}
type Profile struct {
	Sub         string            `json:"sub" dynamodbav:"sub"`
	Email       string            `json:"email" dynamodbav:"email"`
	Username    string            `json:"username,omitempty" dynamodbav:"username,omitempty"`
	DisplayName string            `json:"displayName,omitempty" dynamodbav:"displayName,omitempty"`
	AvatarURL   string            `json:"avatarUrl,omitempty" dynamodbav:"avatarUrl,omitempty"`
	AvatarKey   string            `json:"avatarKey,omitempty" dynamodbav:"avatarKey,omitempty"`
	Bio         string            `json:"bio,omitempty" dynamodbav:"bio,omitempty"`
	Presence    string            `json:"presence" dynamodbav:"presence"`
	Theme       string            `json:"theme" dynamodbav:"theme"`
	SocialLinks map[string]string `json:"socialLinks" dynamodbav:"socialLinks"`
	CreatedAt   time.Time         `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt" dynamodbav:"updatedAt"`
}

// PK returns the DynamoDB partition key for this profile.
func (p *Profile) PK() string {
	return dynamo.PartitionUser
}

// SK returns the DynamoDB sort key for this profile.
func (p *Profile) SK() string {
	return dynamo.PrefixUser + p.Sub
}

// Default returns the profile shown for a user who has never saved one.
func Default(sub, email string) *Profile {
	return &Profile{
		Sub:         sub,
		Email:       email,
		Presence:    PresenceOnline,
		Theme:       ThemeSystem,
		SocialLinks: map[string]string{},
	}
}

// UsernameMapping reserves a username for one user.
// PK: USERNAME
// SK: USERNAME#{username}
type UsernameMapping struct {
	Username string `dynamodbav:"username"`
	Sub      string `dynamodbav:"sub"`
	Email    string `dynamodbav:"email"`
}

// PK returns the DynamoDB partition key for this mapping.
func (m *UsernameMapping) PK() string {
	return dynamo.PartitionUsername
}

// SK returns the DynamoDB sort key for this mapping.
func (m *UsernameMapping) SK() string {
	return dynamo.PrefixUsername + m.Username
}

// Repository handles profile and username storage.
type Repository struct {
	client    dynamo.DynamoDBClient
	tableName string
	now       func() time.Time
}

// NewRepository creates a new Repository.
func NewRepository(client dynamo.DynamoDBClient, tableName string) *Repository {
	return &Repository{client: client, tableName: tableName, now: time.Now}
}

// Get retrieves a profile by user sub.
func (r *Repository) Get(ctx context.Context, sub string) (*Profile, error) {
	p := &Profile{Sub: sub}
	found, err := dynamo.Get(ctx, r.client, r.tableName, p.PK(), p.SK(), p)
	if err != nil {
		return nil, fmt.Errorf("get profile %s: %w", sub, err)
	}
	if !found {
		return nil, ErrNotFound
	}
	return p, nil
}

// Resolve returns the mapping owning username, or ErrNotFound.
func (r *Repository) Resolve(ctx context.Context, username string) (*UsernameMapping, error) {
	m := &UsernameMapping{Username: textnorm.NormalizeUsername(username)}
	found, err := dynamo.Get(ctx, r.client, r.tableName, m.PK(), m.SK(), m)
	if err != nil {
		return nil, fmt.Errorf("get username %s: %w", m.Username, err)
	}
	if !found {
		return nil, ErrNotFound
	}
	return m, nil
}

// GetByUsername resolves username and loads the owner's profile.
func (r *Repository) GetByUsername(ctx context.Context, username string) (*Profile, error) {
	m, err := r.Resolve(ctx, username)
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, m.Sub)
}

// Upsert writes the full profile for p.Sub and keeps the username index in sync. An empty
// username keeps the stored one. It returns the saved profile and the previous one, which
// is nil on first save.
// The new username is reserved before the profile write and the old one released after it.
func (r *Repository) Upsert(ctx context.Context, p Profile) (*Profile, *Profile, error) {
	previous, err := r.Get(ctx, p.Sub)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, nil, err
	}

	now := r.now().UTC()
	p.Email = textnorm.NormalizeEmail(p.Email)
	p.Username = textnorm.NormalizeUsername(p.Username)
	p.CreatedAt = now
	if previous != nil {
		p.CreatedAt = previous.CreatedAt
		if p.Username == "" {
			p.Username = previous.Username
		}
	}
	p.UpdatedAt = now
	if p.Presence == "" {
		p.Presence = PresenceOnline
	}
	if p.Theme == "" {
		p.Theme = ThemeSystem
	}
	if p.SocialLinks == nil {
		p.SocialLinks = map[string]string{}
	}

	oldUsername := ""
	if previous != nil {
		oldUsername = previous.Username
	}
	if p.Username != "" && p.Username != oldUsername {
		if err := r.reserve(ctx, &UsernameMapping{Username: p.Username, Sub: p.Sub, Email: p.Email}); err != nil {
			return nil, nil, err
		}
	}

	item, err := dynamo.MarshalRow(p.PK(), p.SK(), &p)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal profile: %w", err)
	}
	if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	}); err != nil {
		return nil, nil, fmt.Errorf("put profile %s: %w", p.Sub, err)
	}

	if oldUsername != "" && oldUsername != p.Username {
		if err := r.release(ctx, oldUsername, p.Sub); err != nil {
			return nil, nil, err
		}
	}
	return &p, previous, nil
}

// reserve writes the mapping unless another user owns the username.
func (r *Repository) reserve(ctx context.Context, m *UsernameMapping) error {
	item, err := dynamo.MarshalRow(m.PK(), m.SK(), m)
	if err != nil {
		return fmt.Errorf("marshal username mapping: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(pk) OR #sub = :sub"),
		ExpressionAttributeNames: map[string]string{
			"#sub": "sub",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sub": &types.AttributeValueMemberS{Value: m.Sub},
		},
	})
	if err != nil {
		if dynamo.IsConditionFailed(err) {
			return ErrUsernameTaken
		}
		return fmt.Errorf("reserve username %s: %w", m.Username, err)
	}
	return nil
}

// release deletes the mapping only while sub still owns it.
func (r *Repository) release(ctx context.Context, username, sub string) error {
	m := &UsernameMapping{Username: username}
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 dynamo.Key(m.PK(), m.SK()),
		ConditionExpression: aws.String("#sub = :sub"),
		ExpressionAttributeNames: map[string]string{
			"#sub": "sub",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sub": &types.AttributeValueMemberS{Value: sub},
		},
	})
	if err != nil && !dynamo.IsConditionFailed(err) {
		return fmt.Errorf("release username %s: %w", username, err)
	}
	return nil
}
