package dm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jarrod-lowe/collab-service/internal/dynamo"
	"github.com/jarrod-lowe/collab-service/internal/dynamo/dynamotest"
)

func TestThreadID_OrderIndependent(t *testing.T) {
	if ThreadID("sub-b", "sub-a") != ThreadID("sub-a", "sub-b") {
		t.Errorf("ThreadID differs by argument order")
	}
	if got := ThreadID("sub-b", "sub-a"); got != "sub-a#sub-b" {
		t.Errorf("ThreadID() = %q, want sub-a#sub-b", got)
	}
}

// threadTable stores thread rows and rejects a second conditional put.
func threadTable() *dynamotest.MockClient {
	rows := map[string]map[string]types.AttributeValue{}
	return &dynamotest.MockClient{
		PutItemFunc: func(ctx context.Context, input *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
			sk := dynamotest.S(input.Item, "sk")
			if _, ok := rows[sk]; ok {
				return nil, dynamotest.ConditionFailed()
			}
			rows[sk] = input.Item
			return &dynamodb.PutItemOutput{}, nil
		},
		GetItemFunc: func(ctx context.Context, input *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
			return &dynamodb.GetItemOutput{Item: rows[dynamotest.S(input.Key, "sk")]}, nil
		},
	}
}

func TestRepository_UpsertThread_SecondCallReturnsExisting(t *testing.T) {
	repo := NewRepository(threadTable(), "test-table")
	ctx := context.Background()

	first, created, err := repo.UpsertThread(ctx, "sub-a", "sub-b")
	if err != nil {
		t.Fatalf("UpsertThread() error = %v", err)
	}
	if !created {
		t.Error("first call created = false, want true")
	}

	second, created, err := repo.UpsertThread(ctx, "sub-b", "sub-a")
	if err != nil {
		t.Fatalf("UpsertThread() error = %v", err)
	}
	if created {
		t.Error("second call created = true, want false")
	}
	if second.ThreadID != first.ThreadID {
		t.Errorf("ThreadID = %q, want %q", second.ThreadID, first.ThreadID)
	}
	if !second.HasParticipant("sub-a") || !second.HasParticipant("sub-b") {
		t.Errorf("Participants = %v, want both subs", second.Participants)
	}
}

func TestRepository_UpsertThread_RejectsSelf(t *testing.T) {
	_, _, err := NewRepository(threadTable(), "test-table").UpsertThread(context.Background(), "sub-a", "sub-a")
	if !errors.Is(err, ErrSelfThread) {
		t.Errorf("UpsertThread() error = %v, want %v", err, ErrSelfThread)
	}
}

func TestRepository_UpsertThread_RejectsSeparatorInSub(t *testing.T) {
	puts := 0
	mock := &dynamotest.MockClient{
		PutItemFunc: func(ctx context.Context, input *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
			puts++
			return &dynamodb.PutItemOutput{}, nil
		},
	}
	repo := NewRepository(mock, "test-table")

	for _, pair := range [][2]string{{"sub-a", "sub-b#sub-c"}, {"x#sub-a", "sub-b"}, {"sub-a", ""}} {
		_, _, err := repo.UpsertThread(context.Background(), pair[0], pair[1])
		if !errors.Is(err, ErrInvalidSub) {
			t.Errorf("UpsertThread(%q, %q) error = %v, want %v", pair[0], pair[1], err, ErrInvalidSub)
		}
	}
	if puts != 0 {
		t.Errorf("PutItem called %d times, want 0", puts)
	}
}

func TestRepository_UpsertThread_StoresSortedPair(t *testing.T) {
	thread, _, err := NewRepository(threadTable(), "test-table").UpsertThread(context.Background(), "sub-z", "sub-a")
	if err != nil {
		t.Fatalf("UpsertThread() error = %v", err)
	}
	if len(thread.Participants) != 2 || thread.Participants[0] != "sub-a" || thread.Participants[1] != "sub-z" {
		t.Errorf("Participants = %v, want [sub-a sub-z]", thread.Participants)
	}
}

func TestRepository_GetThreadFor(t *testing.T) {
	repo := NewRepository(threadTable(), "test-table")
	ctx := context.Background()
	thread, _, err := repo.UpsertThread(ctx, "sub-a", "sub-b")
	if err != nil {
		t.Fatalf("UpsertThread() error = %v", err)
	}

	tests := []struct {
		name     string
		threadID string
		sub      string
		wantErr  error
	}{
		{name: "participant", threadID: thread.ThreadID, sub: "sub-b"},
		{name: "outsider", threadID: thread.ThreadID, sub: "sub-c", wantErr: ErrNotParticipant},
		{name: "missing thread", threadID: "x#y", sub: "x", wantErr: ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.GetThreadFor(ctx, tt.threadID, tt.sub)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("GetThreadFor() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRepository_ListThreads_MostRecentFirst(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	later := base.Add(time.Hour)
	quiet := &Thread{ThreadID: "a#b", Participants: []string{"a", "b"}, CreatedAt: base.Add(30 * time.Minute)}
	busy := &Thread{ThreadID: "a#c", Participants: []string{"a", "c"}, CreatedAt: base, LastMessageAt: &later}

	var filter string
	mock := &dynamotest.MockClient{
		QueryFunc: func(ctx context.Context, input *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			filter = *input.FilterExpression
			var items []map[string]types.AttributeValue
			for _, th := range []*Thread{quiet, busy} {
				item, _ := dynamo.MarshalRow(th.PK(), th.SK(), th)
				items = append(items, item)
			}
			return &dynamodb.QueryOutput{Items: items}, nil
		},
	}

	got, err := NewRepository(mock, "test-table").ListThreads(context.Background(), "a")
	if err != nil {
		t.Fatalf("ListThreads() error = %v", err)
	}
	if filter == "" {
		t.Error("expected a participants filter")
	}
	if len(got) != 2 || got[0].ThreadID != "a#c" {
		t.Errorf("ListThreads() order = %v, want a#c first", got)
	}
}

func TestRepository_PostMessage_UpdatesThread(t *testing.T) {
	var messageSK string
	var updatedKey string
	mock := &dynamotest.MockClient{
		PutItemFunc: func(ctx context.Context, input *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
			messageSK = dynamotest.S(input.Item, "sk")
			if got := dynamotest.S(input.Item, "pk"); got != "THREAD#a#b" {
				t.Errorf("message pk = %q, want THREAD#a#b", got)
			}
			return &dynamodb.PutItemOutput{}, nil
		},
		UpdateItemFunc: func(ctx context.Context, input *dynamodb.UpdateItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
			updatedKey = dynamotest.S(input.Key, "pk") + "/" + dynamotest.S(input.Key, "sk")
			return &dynamodb.UpdateItemOutput{}, nil
		},
	}

	m, err := NewRepository(mock, "test-table").PostMessage(context.Background(), "a#b", "a", "hello")
	if err != nil {
		t.Fatalf("PostMessage() error = %v", err)
	}
	if messageSK != m.SK() {
		t.Errorf("message sk = %q, want %q", messageSK, m.SK())
	}
	if updatedKey != "DM/THREAD#a#b" {
		t.Errorf("updated key = %q, want DM/THREAD#a#b", updatedKey)
	}
}

func TestRepository_ListMessages_Chronological(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	mock := &dynamotest.MockClient{
		QueryFunc: func(ctx context.Context, input *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			if *input.ScanIndexForward {
				t.Error("expected a reverse query for the latest messages")
			}
			var items []map[string]types.AttributeValue
			for i := 2; i >= 0; i-- {
				m := &Message{ID: string(rune('x' + i)), ThreadID: "a#b", CreatedAt: base.Add(time.Duration(i) * time.Minute)}
				item, _ := dynamo.MarshalRow(m.PK(), m.SK(), m)
				items = append(items, item)
			}
			return &dynamodb.QueryOutput{Items: items}, nil
		},
	}

	got, err := NewRepository(mock, "test-table").ListMessages(context.Background(), "a#b")
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	if len(got) != 3 || got[0].ID != "x" || got[2].ID != "z" {
		t.Errorf("ListMessages() ids = %v, want x y z", got)
	}
}
