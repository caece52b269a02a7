package profiles

import (
	"context"

	"github.com/research-core/core-permissions/internal/catalog"
)

// SyncStore is the persistence contract of the synchronizer. GetOrCreateGroup
// must be safe under concurrent invocation for the same name: either an
// atomic create-if-absent or recovery from the uniqueness race by re-reading
// the existing row.
type SyncStore interface {
	Units(ctx context.Context) ([]OrganizationalUnit, error)
	Unit(ctx context.Context, id int64) (OrganizationalUnit, error)
	Person(ctx context.Context, id string) (Person, error)

	GetOrCreateGroup(ctx context.Context, name string) (group PermissionGroup, created bool, err error)
	AddGroupMember(ctx context.Context, groupID, userID string) error
	GroupCapabilityIDs(ctx context.Context, groupID string) (map[string]struct{}, error)
	ReplaceGroupCapabilities(ctx context.Context, groupID string, capabilityIDs []string) error

	CreateLink(ctx context.Context, link RankedGroupLink) error
	LinksForUnit(ctx context.Context, unitID int64) ([]RankedGroupLink, error)
}

// LinkStore answers the membership-and-capability join behind the
// authorization filter: links whose group the user belongs to and which hold
// at least one of the given capabilities.
type LinkStore interface {
	LinksGrantingUser(ctx context.Context, userID string, capabilityIDs []string) ([]RankedGroupLink, error)
}

// ReportStore backs the per-user access report. Resource rows are returned as
// (reference, owning person) pairs scoped to the given permission groups.
type ReportStore interface {
	ListUsers(ctx context.Context) ([]User, error)
	PersonByUser(ctx context.Context, userID string) (Person, error)
	ContractsOwnedByGroups(ctx context.Context, groupIDs []string) ([]ResourceRow, error)
	ProposalsOwnedByGroups(ctx context.Context, groupIDs []string) ([]ResourceRow, error)
	PeopleOwnedByGroups(ctx context.Context, groupIDs []string) ([]ResourceRow, error)
}

// ResourceRow is a scoped resource reference used by access reports.
type ResourceRow struct {
	Ref      string
	PersonID string
}

// Baselines maps each role to its canonical capability set, keyed by
// capability ID.
type Baselines map[Role]map[string]catalog.Capability
