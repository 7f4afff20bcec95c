package friend

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jarrod-lowe/collab-service/internal/dynamo"
	"github.com/jarrod-lowe/collab-service/internal/dynamo/dynamotest"
	"github.com/jarrod-lowe/collab-service/internal/profile"
)

func TestRepository_Add_ExistingEdge(t *testing.T) {
	stored := &Friendship{SubjectSub: "a", TargetSub: "b", TargetUsername: "bob"}
	mock := &dynamotest.MockClient{
		PutItemFunc: func(ctx context.Context, input *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
			if got := *input.ConditionExpression; got != "attribute_not_exists(pk)" {
				t.Errorf("condition = %q, want attribute_not_exists(pk)", got)
			}
			return nil, dynamotest.ConditionFailed()
		},
		GetItemFunc: func(ctx context.Context, input *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
			item, _ := dynamo.MarshalRow(stored.PK(), stored.SK(), stored)
			return &dynamodb.GetItemOutput{Item: item}, nil
		},
	}

	f, created, err := NewRepository(mock, "test-table").Add(context.Background(), Friendship{SubjectSub: "a", TargetSub: "b"})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if created {
		t.Error("created = true, want false for an existing edge")
	}
	if f.TargetUsername != "bob" {
		t.Errorf("TargetUsername = %q, want bob", f.TargetUsername)
	}
}

func TestRepository_Add_Keys(t *testing.T) {
	var pk, sk string
	mock := &dynamotest.MockClient{
		PutItemFunc: func(ctx context.Context, input *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
			pk, sk = dynamotest.S(input.Item, "pk"), dynamotest.S(input.Item, "sk")
			return &dynamodb.PutItemOutput{}, nil
		},
	}

	_, created, err := NewRepository(mock, "test-table").Add(context.Background(), Friendship{SubjectSub: "a", TargetSub: "b"})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if !created {
		t.Error("created = false, want true")
	}
	if pk != "FRIEND#USER#a" || sk != "FRIEND#b" {
		t.Errorf("key = %s/%s, want FRIEND#USER#a/FRIEND#b", pk, sk)
	}
}

func TestRepository_Remove_MissingEdgeSucceeds(t *testing.T) {
	mock := &dynamotest.MockClient{
		DeleteItemFunc: func(ctx context.Context, input *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
			if input.ConditionExpression != nil {
				t.Errorf("unexpected condition %q", *input.ConditionExpression)
			}
			return &dynamodb.DeleteItemOutput{}, nil
		},
	}

	if err := NewRepository(mock, "test-table").Remove(context.Background(), "a", "zzz"); err != nil {
		t.Errorf("Remove() error = %v, want nil", err)
	}
}

func TestRepository_List_QueriesSubjectPartition(t *testing.T) {
	mock := &dynamotest.MockClient{
		QueryFunc: func(ctx context.Context, input *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			if got := dynamotest.PartitionOf(input); got != "FRIEND#USER#a" {
				t.Errorf("partition = %q, want FRIEND#USER#a", got)
			}
			if got := *input.Limit; got != ListLimit {
				t.Errorf("limit = %d, want %d", got, ListLimit)
			}
			f := &Friendship{SubjectSub: "a", TargetSub: "b"}
			item, _ := dynamo.MarshalRow(f.PK(), f.SK(), f)
			return &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{item}}, nil
		},
	}

	got, err := NewRepository(mock, "test-table").List(context.Background(), "a")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 1 || got[0].TargetSub != "b" {
		t.Errorf("List() = %+v, want one edge to b", got)
	}
}

type fakeStore struct {
	mu    sync.Mutex
	edges map[string]map[string]*Friendship
}

func newFakeStore() *fakeStore {
	return &fakeStore{edges: map[string]map[string]*Friendship{}}
}

func (s *fakeStore) Add(ctx context.Context, f Friendship) (*Friendship, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.edges[f.SubjectSub][f.TargetSub]; ok {
		return existing, false, nil
	}
	if s.edges[f.SubjectSub] == nil {
		s.edges[f.SubjectSub] = map[string]*Friendship{}
	}
	s.edges[f.SubjectSub][f.TargetSub] = &f
	return &f, true, nil
}

func (s *fakeStore) List(ctx context.Context, subjectSub string) ([]*Friendship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Friendship
	for _, f := range s.edges[subjectSub] {
		out = append(out, f)
	}
	return out, nil
}

func (s *fakeStore) Exists(ctx context.Context, subjectSub, targetSub string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.edges[subjectSub][targetSub]
	return ok, nil
}

func (s *fakeStore) Remove(ctx context.Context, subjectSub, targetSub string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.edges[subjectSub], targetSub)
	return nil
}

type fakeProfiles struct {
	profiles map[string]*profile.Profile
	getErr   error
}

func (p *fakeProfiles) Get(ctx context.Context, sub string) (*profile.Profile, error) {
	if p.getErr != nil {
		return nil, p.getErr
	}
	if pr, ok := p.profiles[sub]; ok {
		return pr, nil
	}
	return nil, profile.ErrNotFound
}

func (p *fakeProfiles) Resolve(ctx context.Context, username string) (*profile.UsernameMapping, error) {
	for _, pr := range p.profiles {
		if pr.Username == username {
			return &profile.UsernameMapping{Username: pr.Username, Sub: pr.Sub, Email: pr.Email}, nil
		}
	}
	return nil, profile.ErrNotFound
}

func TestService_Add(t *testing.T) {
	profiles := &fakeProfiles{profiles: map[string]*profile.Profile{
		"a": {Sub: "a", Username: "alice", Email: "alice@x.com"},
		"b": {Sub: "b", Username: "bob", Email: "bob@x.com"},
	}}
	svc := NewService(newFakeStore(), profiles)
	ctx := context.Background()

	tests := []struct {
		name        string
		username    string
		wantErr     error
		wantCreated bool
	}{
		{name: "new friend", username: "bob", wantCreated: true},
		{name: "already friends", username: "bob", wantCreated: false},
		{name: "unknown username", username: "nobody", wantErr: profile.ErrNotFound},
		{name: "self", username: "alice", wantErr: ErrSelf},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, created, err := svc.Add(ctx, "a", tt.username)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Add() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Add() error = %v", err)
			}
			if created != tt.wantCreated {
				t.Errorf("created = %v, want %v", created, tt.wantCreated)
			}
			if f.TargetEmail != "bob@x.com" {
				t.Errorf("TargetEmail = %q, want bob@x.com", f.TargetEmail)
			}
		})
	}
}

func TestService_List_MutualAndMissingProfile(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()
	store.Add(ctx, Friendship{SubjectSub: "a", TargetSub: "b"})
	store.Add(ctx, Friendship{SubjectSub: "a", TargetSub: "c"})
	store.Add(ctx, Friendship{SubjectSub: "b", TargetSub: "a"})

	profiles := &fakeProfiles{profiles: map[string]*profile.Profile{
		"b": {Sub: "b", Username: "bob"},
	}}
	friends, err := NewService(store, profiles).List(ctx, "a")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(friends) != 2 {
		t.Fatalf("len(friends) = %d, want 2", len(friends))
	}
	for _, f := range friends {
		switch f.TargetSub {
		case "b":
			if !f.Mutual || f.Profile == nil {
				t.Errorf("b = %+v, want mutual with profile", f)
			}
		case "c":
			if f.Mutual || f.Profile != nil {
				t.Errorf("c = %+v, want one-way without profile", f)
			}
		}
	}
}

func TestService_List_PropagatesLookupError(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()
	store.Add(ctx, Friendship{SubjectSub: "a", TargetSub: "b"})
	boom := errors.New("boom")

	_, err := NewService(store, &fakeProfiles{getErr: boom}).List(ctx, "a")
	if !errors.Is(err, boom) {
		t.Errorf("List() error = %v, want %v", err, boom)
	}
}
