package friend

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/jarrod-lowe/collab-service/internal/apperr"
	"github.com/jarrod-lowe/collab-service/internal/profile"
)

// lookupConcurrency bounds the parallel profile reads of one listing.
const lookupConcurrency = 10

// ErrSelf is returned when a user tries to befriend themselves.
var ErrSelf = apperr.Validation("Cannot add yourself as a friend")

// Store is the edge storage the service needs.
type Store interface {
	Add(ctx context.Context, f Friendship) (*Friendship, bool, error)
	List(ctx context.Context, subjectSub string) ([]*Friendship, error)
	Exists(ctx context.Context, subjectSub, targetSub string) (bool, error)
	Remove(ctx context.Context, subjectSub, targetSub string) error
}

// Profiles resolves usernames and loads profiles.
type Profiles interface {
	Get(ctx context.Context, sub string) (*profile.Profile, error)
	Resolve(ctx context.Context, username string) (*profile.UsernameMapping, error)
}

// Friend is one listed edge with the target's profile. Mutual is set when the target
// befriended the subject too.
type Friend struct {
	*Friendship
	Profile *profile.Profile `json:"profile,omitempty"`
	Mutual  bool             `json:"mutual"`
}

// Service combines friendship edges with profiles.
type Service struct {
	store    Store
	profiles Profiles
}

// NewService creates a new Service.
func NewService(store Store, profiles Profiles) *Service {
	return &Service{store: store, profiles: profiles}
}

// Add befriends the owner of username. The bool is false when the edge already existed.
func (s *Service) Add(ctx context.Context, subjectSub, username string) (*Friendship, bool, error) {
	target, err := s.profiles.Resolve(ctx, username)
	if err != nil {
		return nil, false, err
	}
	if target.Sub == subjectSub {
		return nil, false, ErrSelf
	}
	return s.store.Add(ctx, Friendship{
		SubjectSub:     subjectSub,
		TargetSub:      target.Sub,
		TargetUsername: target.Username,
		TargetEmail:    target.Email,
	})
}

// List returns the subject's friends. A friend without a saved profile is listed without one.
func (s *Service) List(ctx context.Context, subjectSub string) ([]Friend, error) {
	edges, err := s.store.List(ctx, subjectSub)
	if err != nil {
		return nil, err
	}

	friends := make([]Friend, len(edges))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(lookupConcurrency)
	for i, edge := range edges {
		friends[i].Friendship = edge
		g.Go(func() error {
			p, err := s.profiles.Get(ctx, edge.TargetSub)
			switch {
			case err == nil:
				friends[i].Profile = p
			case !errors.Is(err, profile.ErrNotFound):
				return err
			}
			mutual, err := s.store.Exists(ctx, edge.TargetSub, subjectSub)
			if err != nil {
				return err
			}
			friends[i].Mutual = mutual
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return friends, nil
}

// Remove deletes the subject's edge to target.
func (s *Service) Remove(ctx context.Context, subjectSub, targetSub string) error {
	return s.store.Remove(ctx, subjectSub, targetSub)
}
