// Package voice tracks who is connected to a voice channel and relays WebRTC signalling
// between their connections.
package voice

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jarrod-lowe/collab-service/internal/apperr"
	"github.com/jarrod-lowe/collab-service/internal/dynamo"
)

// ErrNotInRoom is returned for a connection with no voice presence.
var ErrNotInRoom = apperr.NotFound("Connection is not in a voice room")

// Room identifies one voice channel.
type Room struct {
	WorkspaceID string `json:"workspaceId"`
	ChannelID   string `json:"channelId"`
}

// PK returns the partition holding the room's participant rows.
func (r Room) PK() string {
	return dynamo.Join(dynamo.PrefixVoiceRoom, r.WorkspaceID, r.ChannelID)
}

// Participant is one connection present in a room. The same attributes are written to the
// room row and the connection index row.
// PK: VOICE_ROOM#{workspaceId}#{channelId}  SK: CONN#{connectionId}
// PK: VOICE_CONN#{connectionId}             SK: ROOM
type Participant struct {
	ConnectionID string    `json:"connectionId" dynamodbav:"connectionId"`
	WorkspaceID  string    `json:"workspaceId" dynamodbav:"workspaceId"`
	ChannelID    string    `json:"channelId" dynamodbav:"channelId"`
	Sub          string    `json:"sub" dynamodbav:"sub"`
	Email        string    `json:"email" dynamodbav:"email"`
	Username     string    `json:"username,omitempty" dynamodbav:"username,omitempty"`
	Muted        bool      `json:"muted" dynamodbav:"muted"`
	JoinedAt     time.Time `json:"joinedAt" dynamodbav:"joinedAt"`
}

// Room returns the room the participant is in.
func (p *Participant) Room() Room {
	return Room{WorkspaceID: p.WorkspaceID, ChannelID: p.ChannelID}
}

func (p *Participant) roomKey() map[string]types.AttributeValue {
	return dynamo.Key(p.Room().PK(), dynamo.PrefixConn+p.ConnectionID)
}

func connKey(connectionID string) map[string]types.AttributeValue {
	return dynamo.Key(dynamo.PrefixVoiceConn+connectionID, dynamo.SortKeyRoom)
}

// Presence stores voice participants in the table.
type Presence struct {
	client    dynamo.DynamoDBClient
	tableName string
	now       func() time.Time
}

// NewPresence creates a new Presence.
func NewPresence(client dynamo.DynamoDBClient, tableName string) *Presence {
	return &Presence{client: client, tableName: tableName, now: time.Now}
}

// Join records p in its room and indexes the connection.
func (s *Presence) Join(ctx context.Context, p Participant) (*Participant, error) {
	p.JoinedAt = s.now().UTC()
	room, err := dynamo.MarshalRow(p.Room().PK(), dynamo.PrefixConn+p.ConnectionID, &p)
	if err != nil {
		return nil, fmt.Errorf("marshal participant: %w", err)
	}
	index, err := dynamo.MarshalRow(dynamo.PrefixVoiceConn+p.ConnectionID, dynamo.SortKeyRoom, &p)
	if err != nil {
		return nil, fmt.Errorf("marshal connection index: %w", err)
	}
	if err := dynamo.BatchPut(ctx, s.client, s.tableName, []map[string]types.AttributeValue{room, index}); err != nil {
		return nil, fmt.Errorf("put participant %s: %w", p.ConnectionID, err)
	}
	return &p, nil
}

// RoomOf returns the participant registered for connectionID.
func (s *Presence) RoomOf(ctx context.Context, connectionID string) (*Participant, error) {
	p := &Participant{}
	found, err := dynamo.Get(ctx, s.client, s.tableName, dynamo.PrefixVoiceConn+connectionID, dynamo.SortKeyRoom, p)
	if err != nil {
		return nil, fmt.Errorf("get connection %s: %w", connectionID, err)
	}
	if !found {
		return nil, ErrNotInRoom
	}
	return p, nil
}

// Participants returns everyone present in room.
func (s *Presence) Participants(ctx context.Context, room Room) ([]*Participant, error) {
	items, err := dynamo.QueryPrefix(ctx, s.client, s.tableName, room.PK(), dynamo.PrefixConn, true, 0)
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	return dynamo.UnmarshalItems[Participant](items)
}

// Leave removes the connection's presence and returns what was removed.
func (s *Presence) Leave(ctx context.Context, connectionID string) (*Participant, error) {
	p, err := s.RoomOf(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	if err := dynamo.BatchDelete(ctx, s.client, s.tableName, []map[string]types.AttributeValue{
		p.roomKey(),
		connKey(connectionID),
	}); err != nil {
		return nil, fmt.Errorf("delete participant %s: %w", connectionID, err)
	}
	return p, nil
}

// SetMuted updates the muted flag on the room row and returns the participant.
func (s *Presence) SetMuted(ctx context.Context, connectionID string, muted bool) (*Participant, error) {
	p, err := s.RoomOf(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	expr, err := expression.NewBuilder().
		WithUpdate(expression.Set(expression.Name("muted"), expression.Value(muted))).
		WithCondition(expression.AttributeExists(expression.Name(dynamo.AttrPK))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build mute update: %w", err)
	}
	output, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       p.roomKey(),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		if dynamo.IsConditionFailed(err) {
			return nil, ErrNotInRoom
		}
		return nil, fmt.Errorf("update participant %s: %w", connectionID, err)
	}
	updated := &Participant{}
	if err := attributevalue.UnmarshalMap(output.Attributes, updated); err != nil {
		return nil, fmt.Errorf("unmarshal participant: %w", err)
	}
	return updated, nil
}
