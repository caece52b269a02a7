package profiles

import (
	"context"
	"errors"
	"fmt"

	"github.com/research-core/core-permissions/internal/audit"
	"github.com/research-core/core-permissions/internal/catalog"
	"github.com/research-core/core-permissions/internal/ids"
	"github.com/research-core/core-permissions/internal/obs"
)

// SyncStatus is the per-profile outcome of a synchronization run.
type SyncStatus string

const (
	StatusCreated SyncStatus = "created"
	StatusOK      SyncStatus = "ok"
	StatusDrift   SyncStatus = "drift"
	StatusError   SyncStatus = "error"
)

// SyncReport describes the outcome for one (unit, profile) pair.
type SyncReport struct {
	UnitID   int64
	UnitName string
	Profile  Role
	Group    string
	Status   SyncStatus
	Err      error
}

// Synchronizer brings profile groups and ranked links into the canonical
// baseline, reporting drift without overwriting administrator customizations
// unless forced. Units are processed independently: a failure on one unit is
// reported and the batch continues.
type Synchronizer struct {
	store     SyncStore
	baselines Baselines
}

func NewSynchronizer(store SyncStore, baselines Baselines) (*Synchronizer, error) {
	if store == nil {
		return nil, errors.New("sync store is required")
	}
	if baselines == nil {
		return nil, errors.New("capability baselines are required")
	}
	return &Synchronizer{store: store, baselines: baselines}, nil
}

// ListUnits enumerates all organizational units ordered by identifier. A
// read-only diagnostic; no mutation.
func (s *Synchronizer) ListUnits(ctx context.Context) ([]OrganizationalUnit, error) {
	return s.store.Units(ctx)
}

// Sync reconciles the given units, or all units when unitIDs is empty. The
// returned reports carry one entry per applicable (unit, profile) pair plus
// one error entry per unit that could not be processed.
func (s *Synchronizer) Sync(ctx context.Context, unitIDs []int64, forceDefault bool) ([]SyncReport, error) {
	type lookup struct {
		unit OrganizationalUnit
		err  error
	}
	var units []lookup
	if len(unitIDs) == 0 {
		all, err := s.store.Units(ctx)
		if err != nil {
			return nil, err
		}
		for _, unit := range all {
			units = append(units, lookup{unit: unit})
		}
	} else {
		for _, id := range unitIDs {
			unit, err := s.store.Unit(ctx, id)
			if err != nil {
				units = append(units, lookup{unit: OrganizationalUnit{ID: id}, err: fmt.Errorf("unit %d: %w", id, err)})
				continue
			}
			units = append(units, lookup{unit: unit})
		}
	}

	var reports []SyncReport
	for _, l := range units {
		if l.err != nil {
			// Lookup failed; report and keep going.
			rep := SyncReport{UnitID: l.unit.ID, Status: StatusError, Err: l.err}
			obs.ObserveSyncStatus(string(rep.Status))
			reports = append(reports, rep)
			continue
		}
		reports = append(reports, s.syncUnit(ctx, l.unit, forceDefault)...)
	}
	return reports, nil
}

func (s *Synchronizer) syncUnit(ctx context.Context, unit OrganizationalUnit, forceDefault bool) []SyncReport {
	var reports []SyncReport
	for _, role := range Roles {
		if role == RoleCoordinator && unit.Type != UnitTypePlatform {
			// Coordinator profiles exist only for platforms.
			continue
		}
		rep := SyncReport{UnitID: unit.ID, UnitName: unit.Name, Profile: role}
		status, groupName, err := s.syncProfile(ctx, unit, role, forceDefault)
		rep.Group = groupName
		if err != nil {
			rep.Status = StatusError
			rep.Err = err
		} else {
			rep.Status = status
		}
		obs.ObserveSyncStatus(string(rep.Status))
		reports = append(reports, rep)
		if errors.Is(err, ErrConfiguration) {
			// Fatal for this unit; remaining units still run.
			break
		}
	}
	return reports
}

func (s *Synchronizer) syncProfile(ctx context.Context, unit OrganizationalUnit, role Role, forceDefault bool) (SyncStatus, string, error) {
	name, err := ProfileGroupName(role, unit.Name)
	if err != nil {
		return StatusError, "", err
	}

	group, created, err := s.store.GetOrCreateGroup(ctx, name)
	if err != nil {
		return StatusError, name, fmt.Errorf("get or create group %q: %w", name, err)
	}

	// The unit lead is bound to the admin profile on every run, not only on
	// creation: membership always reflects the current lead.
	if role == RoleAdmin && unit.LeadPersonID != "" {
		if err := s.bindLead(ctx, unit, group); err != nil {
			return StatusError, name, err
		}
	}

	if created {
		unitID := unit.ID
		link := RankedGroupLink{
			ID:      ids.New(),
			GroupID: group.ID,
			UnitID:  &unitID,
			Rank:    role.Rank(),
		}
		if err := s.store.CreateLink(ctx, link); err != nil {
			return StatusError, name, fmt.Errorf("create ranked link for %q: %w", name, err)
		}
		_ = audit.LogEvent(ctx, "profiles.group.create", map[string]any{
			"group": name,
			"unit":  unit.ID,
			"rank":  role.Rank(),
		})
	}

	baseline := s.baselines[role]
	if created || forceDefault {
		capIDs := make([]string, 0, len(baseline))
		for id := range baseline {
			capIDs = append(capIDs, id)
		}
		if err := s.store.ReplaceGroupCapabilities(ctx, group.ID, capIDs); err != nil {
			return StatusError, name, fmt.Errorf("seed capabilities for %q: %w", name, err)
		}
		if forceDefault && !created {
			_ = audit.LogEvent(ctx, "profiles.group.reset_defaults", map[string]any{
				"group": name,
				"unit":  unit.ID,
			})
		}
	}

	actual, err := s.store.GroupCapabilityIDs(ctx, group.ID)
	if err != nil {
		return StatusError, name, fmt.Errorf("read capabilities of %q: %w", name, err)
	}

	if created {
		return StatusCreated, name, nil
	}
	if driftCount(baseline, actual) > 0 {
		return StatusDrift, name, nil
	}
	return StatusOK, name, nil
}

// bindLead adds the unit lead's user account to the admin profile group. A
// lead without a linked account contributes nothing and is not an error.
func (s *Synchronizer) bindLead(ctx context.Context, unit OrganizationalUnit, group PermissionGroup) error {
	person, err := s.store.Person(ctx, unit.LeadPersonID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("resolve lead of unit %d: %w", unit.ID, err)
	}
	if person.UserID == "" {
		return nil
	}
	if err := s.store.AddGroupMember(ctx, group.ID, person.UserID); err != nil {
		return fmt.Errorf("bind lead to %q: %w", group.Name, err)
	}
	return nil
}

// driftCount is the size of the symmetric difference between the role's
// baseline and the group's actual capability set. Both sets are small,
// bounded by the fixed resource-kind enumeration, so materializing them in
// memory is fine.
func driftCount(baseline map[string]catalog.Capability, actual map[string]struct{}) int {
	n := 0
	for id := range baseline {
		if _, ok := actual[id]; !ok {
			n++
		}
	}
	for id := range actual {
		if _, ok := baseline[id]; !ok {
			n++
		}
	}
	return n
}
