// Package catalog provides read-only access to the set of atomic capabilities
// (resource kind + action) registered in the deployment. It is reference data:
// queried by the synchronizer and the authorization filter, never mutated here.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrNotFound = errors.New("catalog: capability not found")

// StandardActions are the four actions every resource kind carries. Their
// codenames are resource-qualified ("view_contract" etc.); anything else is a
// custom codename and passes through normalization unchanged.
var StandardActions = []string{"view", "add", "change", "delete"}

// Capability identifies a single permission: one action on one resource kind.
type Capability struct {
	ID           string
	ResourceKind string
	Codename     string
	Name         string
}

// Store is the persistence contract for capability reference data.
type Store interface {
	FindCapability(ctx context.Context, resourceKind, codename string) (Capability, error)
	ListCapabilities(ctx context.Context, resourceKind string) ([]Capability, error)
}

// Catalog resolves and enumerates capabilities.
type Catalog struct {
	store Store
}

func New(store Store) (*Catalog, error) {
	if store == nil {
		return nil, errors.New("catalog store is required")
	}
	return &Catalog{store: store}, nil
}

// Qualify normalizes an action into the stored codename for a resource kind.
// Standard actions expand to "{action}_{kind}"; custom codenames are returned
// as given.
func Qualify(resourceKind, action string) string {
	for _, std := range StandardActions {
		if action == std {
			return fmt.Sprintf("%s_%s", action, resourceKind)
		}
	}
	return action
}

// Resolve returns the capability for (resourceKind, action) after codename
// normalization. Returns ErrNotFound when no such capability is registered.
func (c *Catalog) Resolve(ctx context.Context, resourceKind, action string) (Capability, error) {
	resourceKind = strings.TrimSpace(resourceKind)
	action = strings.TrimSpace(action)
	if resourceKind == "" || action == "" {
		return Capability{}, fmt.Errorf("%w: resource kind and action are required", ErrNotFound)
	}
	return c.store.FindCapability(ctx, resourceKind, Qualify(resourceKind, action))
}

// ResolveAll resolves a batch of actions against one resource kind.
func (c *Catalog) ResolveAll(ctx context.Context, resourceKind string, actions []string) ([]Capability, error) {
	caps := make([]Capability, 0, len(actions))
	for _, action := range actions {
		cap, err := c.Resolve(ctx, resourceKind, action)
		if err != nil {
			return nil, err
		}
		caps = append(caps, cap)
	}
	return caps, nil
}

// ListByResourceKind returns the capabilities of a resource kind with the four
// standard actions first, in the fixed view/add/change/delete order, followed
// by custom capabilities sorted alphabetically by display name. The ordering
// is a presentation contract: sync reports and capability checklists rely on
// it.
func (c *Catalog) ListByResourceKind(ctx context.Context, resourceKind string) ([]Capability, error) {
	caps, err := c.store.ListCapabilities(ctx, resourceKind)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(caps, func(i, j int) bool {
		ri, rj := standardRank(resourceKind, caps[i].Codename), standardRank(resourceKind, caps[j].Codename)
		if ri != rj {
			return ri < rj
		}
		return caps[i].Name < caps[j].Name
	})
	return caps, nil
}

// standardRank orders standard-action codenames ahead of custom ones.
func standardRank(resourceKind, codename string) int {
	for i, std := range StandardActions {
		if codename == fmt.Sprintf("%s_%s", std, resourceKind) {
			return i
		}
	}
	return len(StandardActions)
}
