// Package docgate answers per-path document access questions at request time:
// grant or deny for one user and one requested media path. Decisions combine
// a public-prefix allow-list, a superuser bypass, a human-resources wildcard
// and a per-domain enumeration of documents the user may reach.
package docgate

import (
	"context"
	"errors"
	"strings"

	"github.com/research-core/core-permissions/internal/obs"
	"github.com/research-core/core-permissions/internal/profiles"
)

// Decision is the first-class result of a gate check. Deny is a normal
// outcome, not an error.
type Decision int

const (
	Deny Decision = iota
	Grant
)

func (d Decision) String() string {
	if d == Grant {
		return "grant"
	}
	return "deny"
}

// Config carries the group names and path prefixes the gate depends on.
// Passed explicitly at construction; the gate reads no ambient settings.
type Config struct {
	// PublicPrefixes are served to any authenticated user without further
	// checks.
	PublicPrefixes []string
	// HumanResourcesGroup members see every document (wildcard).
	HumanResourcesGroup string
	// AllOrdersGroup members see every order attachment; everyone else only
	// their own.
	AllOrdersGroup string
}

// Store is the read-only persistence contract of the gate.
type Store interface {
	IsGroupMember(ctx context.Context, userID, groupName string) (bool, error)
	PersonByUser(ctx context.Context, userID string) (profiles.Person, error)
	// ContractFilePaths lists files of contracts where the person is the
	// subject or the assigned supervisor.
	ContractFilePaths(ctx context.Context, personID string) ([]string, error)
	// PrivateCVPath returns the CV path stored on the person's private-info
	// record, or ErrNotFound when no such record exists.
	PrivateCVPath(ctx context.Context, personID string) (string, error)
	OrderFilePaths(ctx context.Context) ([]string, error)
	OrderFilePathsCreatedBy(ctx context.Context, userID string) ([]string, error)
}

// DocumentSet is the set of media paths a user may reach. All is the wildcard
// sentinel: every document accessible, membership checks bypassed.
type DocumentSet struct {
	All   bool
	Paths map[string]struct{}
}

// Contains reports whether path is covered by the set.
func (s DocumentSet) Contains(path string) bool {
	if s.All {
		return true
	}
	_, ok := s.Paths[path]
	return ok
}

// Gate decides document access. Stateless per request; safe for arbitrary
// concurrency.
type Gate struct {
	cfg   Config
	store Store
}

func New(cfg Config, store Store) (*Gate, error) {
	if store == nil {
		return nil, errors.New("docgate store is required")
	}
	if cfg.HumanResourcesGroup == "" {
		return nil, errors.New("human resources group name is required")
	}
	if cfg.AllOrdersGroup == "" {
		return nil, errors.New("all orders group name is required")
	}
	return &Gate{cfg: cfg, store: store}, nil
}

// Decide resolves access for one user and one path. On Deny the caller must
// surface an access-denied outcome without leaking content or existence.
func (g *Gate) Decide(ctx context.Context, user profiles.User, path string) (Decision, error) {
	decision, err := g.decide(ctx, user, path)
	if err != nil {
		return Deny, err
	}
	obs.ObserveGateDecision(decision.String())
	return decision, nil
}

func (g *Gate) decide(ctx context.Context, user profiles.User, path string) (Decision, error) {
	for _, prefix := range g.cfg.PublicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return Grant, nil
		}
	}
	if user.Superuser {
		return Grant, nil
	}
	docs, err := g.AccessibleDocuments(ctx, user)
	if err != nil {
		return Deny, err
	}
	if docs.Contains(path) {
		return Grant, nil
	}
	return Deny, nil
}

// AccessibleDocuments enumerates every document the user may reach, or the
// wildcard for human-resources members. A user without a linked person record
// gets the empty set: fails closed, never defaults to wildcard.
func (g *Gate) AccessibleDocuments(ctx context.Context, user profiles.User) (DocumentSet, error) {
	hr, err := g.store.IsGroupMember(ctx, user.ID, g.cfg.HumanResourcesGroup)
	if err != nil {
		return DocumentSet{}, err
	}
	if hr {
		return DocumentSet{All: true}, nil
	}

	person, err := g.store.PersonByUser(ctx, user.ID)
	if errors.Is(err, profiles.ErrNotFound) {
		return DocumentSet{Paths: map[string]struct{}{}}, nil
	}
	if err != nil {
		return DocumentSet{}, err
	}

	paths := map[string]struct{}{}
	add := func(p string) {
		if p != "" {
			paths[p] = struct{}{}
		}
	}

	contractFiles, err := g.store.ContractFilePaths(ctx, person.ID)
	if err != nil {
		return DocumentSet{}, err
	}
	for _, p := range contractFiles {
		add(p)
	}

	// The CV lives in two places: the private-info record and the person row
	// itself. Both locations are included when present; a missing private-info
	// record contributes nothing.
	privateCV, err := g.store.PrivateCVPath(ctx, person.ID)
	if err != nil && !errors.Is(err, profiles.ErrNotFound) {
		return DocumentSet{}, err
	}
	add(privateCV)
	add(person.CVPath)

	allOrders, err := g.store.IsGroupMember(ctx, user.ID, g.cfg.AllOrdersGroup)
	if err != nil {
		return DocumentSet{}, err
	}
	var orderFiles []string
	if allOrders {
		orderFiles, err = g.store.OrderFilePaths(ctx)
	} else {
		orderFiles, err = g.store.OrderFilePathsCreatedBy(ctx, user.ID)
	}
	if err != nil {
		return DocumentSet{}, err
	}
	for _, p := range orderFiles {
		add(p)
	}

	return DocumentSet{Paths: paths}, nil
}
