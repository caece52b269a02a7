package profiles_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/research-core/core-permissions/internal/catalog"
	"github.com/research-core/core-permissions/internal/profiles"
	"github.com/research-core/core-permissions/internal/store/memory"
)

// seedCatalog registers the standard and custom capabilities every deployment
// installs for the protected resource kinds.
func seedCatalog(t *testing.T, store *memory.Store) *catalog.Catalog {
	t.Helper()
	kinds := []string{
		profiles.KindPerson,
		profiles.KindContract,
		profiles.KindContractProposal,
		profiles.KindOrder,
		profiles.KindPublication,
	}
	for _, kind := range kinds {
		for _, action := range catalog.StandardActions {
			codename := catalog.Qualify(kind, action)
			store.AddCapability(kind, codename, "Can "+action+" "+kind)
		}
	}
	store.AddCapability(profiles.KindPerson, profiles.CodenameAccessPeople, "Access people section")
	store.AddCapability(profiles.KindOrder, profiles.CodenameAccessOrders, "Access orders section")

	cat, err := catalog.New(store)
	if err != nil {
		t.Fatal(err)
	}
	return cat
}

func newSynchronizer(t *testing.T, store *memory.Store) *profiles.Synchronizer {
	t.Helper()
	cat := seedCatalog(t, store)
	baselines, err := profiles.ResolveBaselines(context.Background(), cat)
	if err != nil {
		t.Fatal(err)
	}
	sync, err := profiles.NewSynchronizer(store, baselines)
	if err != nil {
		t.Fatal(err)
	}
	return sync
}

func groupByName(t *testing.T, store *memory.Store, name string) profiles.PermissionGroup {
	t.Helper()
	group, created, err := store.GetOrCreateGroup(context.Background(), name)
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Fatalf("group %q did not exist", name)
	}
	return group
}

func TestSyncCreatesPlatformProfiles(t *testing.T) {
	store := memory.New()
	store.AddUnit(profiles.OrganizationalUnit{ID: 7, Name: "Imaging Platform", Type: profiles.UnitTypePlatform})
	sync := newSynchronizer(t, store)

	reports, err := sync.Sync(context.Background(), nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 3 {
		t.Fatalf("expected 3 reports, got %d: %#v", len(reports), reports)
	}
	wantGroups := []string{
		"PROFILE: Group Coordinator: Imaging Platform",
		"PROFILE: Group Admin: Imaging Platform",
		"PROFILE: Group Manager: Imaging Platform",
	}
	for i, rep := range reports {
		if rep.Status != profiles.StatusCreated {
			t.Fatalf("report %d: expected created, got %s (%v)", i, rep.Status, rep.Err)
		}
		if rep.Group != wantGroups[i] {
			t.Fatalf("report %d: group %q, want %q", i, rep.Group, wantGroups[i])
		}
	}

	links, err := store.LinksForUnit(context.Background(), 7)
	if err != nil {
		t.Fatal(err)
	}
	if len(links) != 3 {
		t.Fatalf("expected 3 links, got %d", len(links))
	}
	ranks := map[int]bool{}
	for _, link := range links {
		if link.UnitID == nil || *link.UnitID != 7 {
			t.Fatalf("link not bound to unit: %#v", link)
		}
		ranks[link.Rank] = true
	}
	if !ranks[300] || !ranks[200] || !ranks[100] {
		t.Fatalf("missing rank: %v", ranks)
	}
}

func TestSyncSkipsCoordinatorForGroups(t *testing.T) {
	store := memory.New()
	store.AddUnit(profiles.OrganizationalUnit{ID: 1, Name: "Cell Biology", Type: profiles.UnitTypeGroup})
	sync := newSynchronizer(t, store)

	reports, err := sync.Sync(context.Background(), nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(reports))
	}
	for _, rep := range reports {
		if rep.Profile == profiles.RoleCoordinator {
			t.Fatalf("coordinator profile derived for a plain group: %#v", rep)
		}
	}
}

func TestSyncIsIdempotent(t *testing.T) {
	store := memory.New()
	store.AddUnit(profiles.OrganizationalUnit{ID: 2, Name: "Neuroscience", Type: profiles.UnitTypeGroup})
	sync := newSynchronizer(t, store)

	if _, err := sync.Sync(context.Background(), nil, false); err != nil {
		t.Fatal(err)
	}
	reports, err := sync.Sync(context.Background(), nil, false)
	if err != nil {
		t.Fatal(err)
	}
	for _, rep := range reports {
		if rep.Status != profiles.StatusOK {
			t.Fatalf("second run not clean: %#v", rep)
		}
	}
}

func TestSyncReportsDriftWithoutTouchingGrants(t *testing.T) {
	store := memory.New()
	store.AddUnit(profiles.OrganizationalUnit{ID: 3, Name: "Proteomics", Type: profiles.UnitTypeGroup})
	sync := newSynchronizer(t, store)
	ctx := context.Background()

	if _, err := sync.Sync(ctx, nil, false); err != nil {
		t.Fatal(err)
	}

	// An administrator grants something beyond the baseline.
	extra := store.AddCapability(profiles.KindPublication, "curate_publication", "Can curate publication")
	group := groupByName(t, store, "PROFILE: Group Admin: Proteomics")
	store.GrantCapability(group.ID, extra.ID)

	reports, err := sync.Sync(ctx, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	var adminStatus profiles.SyncStatus
	for _, rep := range reports {
		if rep.Profile == profiles.RoleAdmin {
			adminStatus = rep.Status
		} else if rep.Status != profiles.StatusOK {
			t.Fatalf("untouched profile reported %s", rep.Status)
		}
	}
	if adminStatus != profiles.StatusDrift {
		t.Fatalf("expected drift on admin profile, got %s", adminStatus)
	}

	caps, err := store.GroupCapabilityIDs(ctx, group.ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := caps[extra.ID]; !ok {
		t.Fatal("drift report must not modify the granted set")
	}
}

func TestSyncForceDefaultReplacesGrants(t *testing.T) {
	store := memory.New()
	store.AddUnit(profiles.OrganizationalUnit{ID: 4, Name: "Genomics", Type: profiles.UnitTypeGroup})
	sync := newSynchronizer(t, store)
	ctx := context.Background()

	if _, err := sync.Sync(ctx, nil, false); err != nil {
		t.Fatal(err)
	}
	extra := store.AddCapability(profiles.KindPublication, "curate_publication", "Can curate publication")
	group := groupByName(t, store, "PROFILE: Group Manager: Genomics")
	store.GrantCapability(group.ID, extra.ID)

	reports, err := sync.Sync(ctx, nil, true)
	if err != nil {
		t.Fatal(err)
	}
	for _, rep := range reports {
		if rep.Status != profiles.StatusOK {
			t.Fatalf("forced run should end clean: %#v", rep)
		}
	}
	caps, err := store.GroupCapabilityIDs(ctx, group.ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := caps[extra.ID]; ok {
		t.Fatal("forced sync must remove grants beyond the baseline")
	}
}

func TestSyncBindsLeadEveryRun(t *testing.T) {
	store := memory.New()
	store.AddPerson(profiles.Person{ID: "p-lead", UserID: "u-lead", FullName: "Ada Lovelace"})
	store.AddPerson(profiles.Person{ID: "p-next", UserID: "u-next", FullName: "Grace Hopper"})
	store.AddUnit(profiles.OrganizationalUnit{ID: 5, Name: "Optics", Type: profiles.UnitTypeGroup, LeadPersonID: "p-lead"})
	sync := newSynchronizer(t, store)
	ctx := context.Background()

	if _, err := sync.Sync(ctx, nil, false); err != nil {
		t.Fatal(err)
	}
	adminGroup := "PROFILE: Group Admin: Optics"
	if member, _ := store.IsGroupMember(ctx, "u-lead", adminGroup); !member {
		t.Fatal("lead was not bound to the admin profile")
	}

	// Leadership changes between runs; the new lead joins on the next sync.
	store.AddUnit(profiles.OrganizationalUnit{ID: 5, Name: "Optics", Type: profiles.UnitTypeGroup, LeadPersonID: "p-next"})
	if _, err := sync.Sync(ctx, nil, false); err != nil {
		t.Fatal(err)
	}
	if member, _ := store.IsGroupMember(ctx, "u-next", adminGroup); !member {
		t.Fatal("new lead was not bound on re-run")
	}
}

func TestSyncLeadWithoutAccountIsSkipped(t *testing.T) {
	store := memory.New()
	store.AddPerson(profiles.Person{ID: "p-nl", FullName: "No Login"})
	store.AddUnit(profiles.OrganizationalUnit{ID: 6, Name: "Microscopy", Type: profiles.UnitTypeGroup, LeadPersonID: "p-nl"})
	sync := newSynchronizer(t, store)

	reports, err := sync.Sync(context.Background(), nil, false)
	if err != nil {
		t.Fatal(err)
	}
	for _, rep := range reports {
		if rep.Err != nil {
			t.Fatalf("lead without account must not fail sync: %v", rep.Err)
		}
	}
}

func TestSyncUnknownUnitReportedBatchContinues(t *testing.T) {
	store := memory.New()
	store.AddUnit(profiles.OrganizationalUnit{ID: 9, Name: "Chemistry", Type: profiles.UnitTypeGroup})
	sync := newSynchronizer(t, store)

	reports, err := sync.Sync(context.Background(), []int64{404, 9}, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 3 {
		t.Fatalf("expected 1 error + 2 profile reports, got %d", len(reports))
	}
	if reports[0].UnitID != 404 || reports[0].Status != profiles.StatusError || !errors.Is(reports[0].Err, profiles.ErrNotFound) {
		t.Fatalf("unexpected first report: %#v", reports[0])
	}
	for _, rep := range reports[1:] {
		if rep.Status != profiles.StatusCreated {
			t.Fatalf("valid unit was not synced: %#v", rep)
		}
	}
}

func TestSyncUnitWithEmptyNameIsSynced(t *testing.T) {
	store := memory.New()
	store.AddUnit(profiles.OrganizationalUnit{ID: 13, Type: profiles.UnitTypeGroup})
	sync := newSynchronizer(t, store)

	reports, err := sync.Sync(context.Background(), []int64{13}, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 2 {
		t.Fatalf("expected 2 profile reports, got %d: %#v", len(reports), reports)
	}
	for _, rep := range reports {
		if rep.Status != profiles.StatusCreated {
			t.Fatalf("empty unit name must not be treated as a failed lookup: %#v", rep)
		}
	}
}

func TestSyncConfigurationErrorIsolatedPerUnit(t *testing.T) {
	store := memory.New()
	store.AddUnit(profiles.OrganizationalUnit{ID: 10, Name: strings.Repeat("x", 200), Type: profiles.UnitTypeGroup})
	store.AddUnit(profiles.OrganizationalUnit{ID: 11, Name: "Physics", Type: profiles.UnitTypeGroup})
	sync := newSynchronizer(t, store)

	reports, err := sync.Sync(context.Background(), nil, false)
	if err != nil {
		t.Fatal(err)
	}

	var badUnit, goodUnit int
	for _, rep := range reports {
		switch rep.UnitID {
		case 10:
			badUnit++
			if !errors.Is(rep.Err, profiles.ErrConfiguration) {
				t.Fatalf("expected configuration error, got %v", rep.Err)
			}
		case 11:
			goodUnit++
			if rep.Status != profiles.StatusCreated {
				t.Fatalf("healthy unit affected by bad neighbour: %#v", rep)
			}
		}
	}
	// The configuration error is fatal for the unit: one report, not one per role.
	if badUnit != 1 {
		t.Fatalf("expected a single error report for the bad unit, got %d", badUnit)
	}
	if goodUnit != 2 {
		t.Fatalf("expected 2 reports for the healthy unit, got %d", goodUnit)
	}
}

func TestSyncBaselineCapabilitiesSeeded(t *testing.T) {
	store := memory.New()
	store.AddUnit(profiles.OrganizationalUnit{ID: 12, Name: "Imaging Platform", Type: profiles.UnitTypePlatform})
	sync := newSynchronizer(t, store)
	ctx := context.Background()

	if _, err := sync.Sync(ctx, nil, false); err != nil {
		t.Fatal(err)
	}
	group := groupByName(t, store, "PROFILE: Group Coordinator: Imaging Platform")
	caps, err := store.GroupCapabilityIDs(ctx, group.ID)
	if err != nil {
		t.Fatal(err)
	}
	// view/change/app_access on person, add/view/change on proposal, view on
	// contract, the four order actions plus the orders section.
	if len(caps) != 12 {
		t.Fatalf("expected 12 baseline capabilities, got %d", len(caps))
	}
}
