// Package memory provides an in-memory implementation of the storage
// contracts, used by unit tests and local tooling.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/research-core/core-permissions/internal/catalog"
	"github.com/research-core/core-permissions/internal/ids"
	"github.com/research-core/core-permissions/internal/profiles"
)

// Contract is a minimal contract row for gate and report queries.
type Contract struct {
	ID           string
	Ref          string
	PersonID     string
	SupervisorID string
	GroupID      string
}

// ContractFile attaches a media path to a contract.
type ContractFile struct {
	ContractID string
	Path       string
}

// Proposal is a minimal contract-proposal row.
type Proposal struct {
	ID       string
	Ref      string
	PersonID string
	GroupID  string
}

// OrderFile is an order attachment with its creating user.
type OrderFile struct {
	Path      string
	CreatedBy string
}

// Store keeps everything in maps guarded by one RWMutex.
type Store struct {
	mu sync.RWMutex

	capabilities []catalog.Capability

	units  map[int64]profiles.OrganizationalUnit
	people map[string]profiles.Person
	users  map[string]profiles.User

	groups       map[string]profiles.PermissionGroup
	groupsByName map[string]string
	groupCaps    map[string]map[string]struct{}
	groupMembers map[string]map[string]struct{}
	links        []profiles.RankedGroupLink

	contracts     []Contract
	contractFiles []ContractFile
	proposals     []Proposal
	privateCVs    map[string]string
	orderFiles    []OrderFile
	personGroups  map[string]string
}

func New() *Store {
	return &Store{
		units:        map[int64]profiles.OrganizationalUnit{},
		people:       map[string]profiles.Person{},
		users:        map[string]profiles.User{},
		groups:       map[string]profiles.PermissionGroup{},
		groupsByName: map[string]string{},
		groupCaps:    map[string]map[string]struct{}{},
		groupMembers: map[string]map[string]struct{}{},
		privateCVs:   map[string]string{},
		personGroups: map[string]string{},
	}
}

// --- seeding helpers (test/tooling side) ---

// AddCapability registers a capability and returns it with a generated ID.
func (s *Store) AddCapability(resourceKind, codename, name string) catalog.Capability {
	s.mu.Lock()
	defer s.mu.Unlock()
	cap := catalog.Capability{ID: ids.New(), ResourceKind: resourceKind, Codename: codename, Name: name}
	s.capabilities = append(s.capabilities, cap)
	return cap
}

func (s *Store) AddUnit(u profiles.OrganizationalUnit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.units[u.ID] = u
}

func (s *Store) AddPerson(p profiles.Person) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.people[p.ID] = p
}

func (s *Store) AddUser(u profiles.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *Store) User(ctx context.Context, id string) (profiles.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return profiles.User{}, fmt.Errorf("%w: user %s", profiles.ErrNotFound, id)
	}
	return u, nil
}

func (s *Store) AddContract(c Contract) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contracts = append(s.contracts, c)
}

func (s *Store) AddContractFile(f ContractFile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contractFiles = append(s.contractFiles, f)
}

func (s *Store) AddProposal(p Proposal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proposals = append(s.proposals, p)
}

func (s *Store) SetPrivateCV(personID, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.privateCVs[personID] = path
}

func (s *Store) AddOrderFile(f OrderFile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orderFiles = append(s.orderFiles, f)
}

// AssignPersonGroup associates a person row with its owning permission group
// for scoped people queries.
func (s *Store) AssignPersonGroup(personID, groupID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.personGroups[personID] = groupID
}

// GrantCapability adds one capability to a group outside the synchronizer,
// the way an administrator edit would.
func (s *Store) GrantCapability(groupID, capabilityID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.groupCaps[groupID] == nil {
		s.groupCaps[groupID] = map[string]struct{}{}
	}
	s.groupCaps[groupID][capabilityID] = struct{}{}
}

// --- catalog.Store ---

func (s *Store) FindCapability(ctx context.Context, resourceKind, codename string) (catalog.Capability, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, cap := range s.capabilities {
		if cap.ResourceKind == resourceKind && cap.Codename == codename {
			return cap, nil
		}
	}
	return catalog.Capability{}, fmt.Errorf("%w: %s/%s", catalog.ErrNotFound, resourceKind, codename)
}

func (s *Store) ListCapabilities(ctx context.Context, resourceKind string) ([]catalog.Capability, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []catalog.Capability
	for _, cap := range s.capabilities {
		if cap.ResourceKind == resourceKind {
			out = append(out, cap)
		}
	}
	return out, nil
}

// --- profiles.SyncStore ---

func (s *Store) Units(ctx context.Context) ([]profiles.OrganizationalUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]profiles.OrganizationalUnit, 0, len(s.units))
	for _, u := range s.units {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) Unit(ctx context.Context, id int64) (profiles.OrganizationalUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.units[id]
	if !ok {
		return profiles.OrganizationalUnit{}, fmt.Errorf("%w: unit %d", profiles.ErrNotFound, id)
	}
	return u, nil
}

func (s *Store) Person(ctx context.Context, id string) (profiles.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.people[id]
	if !ok {
		return profiles.Person{}, fmt.Errorf("%w: person %s", profiles.ErrNotFound, id)
	}
	return p, nil
}

func (s *Store) GetOrCreateGroup(ctx context.Context, name string) (profiles.PermissionGroup, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.groupsByName[name]; ok {
		return s.groups[id], false, nil
	}
	group := profiles.PermissionGroup{ID: ids.New(), Name: name}
	s.groups[group.ID] = group
	s.groupsByName[name] = group.ID
	return group, true, nil
}

func (s *Store) AddGroupMember(ctx context.Context, groupID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[groupID]; !ok {
		return fmt.Errorf("%w: group %s", profiles.ErrNotFound, groupID)
	}
	if s.groupMembers[groupID] == nil {
		s.groupMembers[groupID] = map[string]struct{}{}
	}
	s.groupMembers[groupID][userID] = struct{}{}
	return nil
}

func (s *Store) GroupCapabilityIDs(ctx context.Context, groupID string) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]struct{}, len(s.groupCaps[groupID]))
	for id := range s.groupCaps[groupID] {
		out[id] = struct{}{}
	}
	return out, nil
}

func (s *Store) ReplaceGroupCapabilities(ctx context.Context, groupID string, capabilityIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := make(map[string]struct{}, len(capabilityIDs))
	for _, id := range capabilityIDs {
		set[id] = struct{}{}
	}
	s.groupCaps[groupID] = set
	return nil
}

func (s *Store) CreateLink(ctx context.Context, link profiles.RankedGroupLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.links {
		if existing.GroupID == link.GroupID && equalUnit(existing.UnitID, link.UnitID) {
			return fmt.Errorf("%w: link for group %s", profiles.ErrConflict, link.GroupID)
		}
	}
	s.links = append(s.links, link)
	return nil
}

func (s *Store) LinksForUnit(ctx context.Context, unitID int64) ([]profiles.RankedGroupLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []profiles.RankedGroupLink
	for _, link := range s.links {
		if link.UnitID != nil && *link.UnitID == unitID {
			out = append(out, link)
		}
	}
	sortLinks(out)
	return out, nil
}

// --- profiles.LinkStore ---

func (s *Store) LinksGrantingUser(ctx context.Context, userID string, capabilityIDs []string) ([]profiles.RankedGroupLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wanted := make(map[string]struct{}, len(capabilityIDs))
	for _, id := range capabilityIDs {
		wanted[id] = struct{}{}
	}
	var out []profiles.RankedGroupLink
	for _, link := range s.links {
		if _, member := s.groupMembers[link.GroupID][userID]; !member {
			continue
		}
		for capID := range s.groupCaps[link.GroupID] {
			if _, ok := wanted[capID]; ok {
				out = append(out, link)
				break
			}
		}
	}
	sortLinks(out)
	return out, nil
}

// --- profiles.ReportStore ---

func (s *Store) ListUsers(ctx context.Context) ([]profiles.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]profiles.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *Store) PersonByUser(ctx context.Context, userID string) (profiles.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.people {
		if p.UserID != "" && p.UserID == userID {
			return p, nil
		}
	}
	return profiles.Person{}, fmt.Errorf("%w: person for user %s", profiles.ErrNotFound, userID)
}

func (s *Store) ContractsOwnedByGroups(ctx context.Context, groupIDs []string) ([]profiles.ResourceRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := toSet(groupIDs)
	var out []profiles.ResourceRow
	for _, c := range s.contracts {
		if _, ok := set[c.GroupID]; ok {
			out = append(out, profiles.ResourceRow{Ref: c.Ref, PersonID: c.PersonID})
		}
	}
	return out, nil
}

func (s *Store) ProposalsOwnedByGroups(ctx context.Context, groupIDs []string) ([]profiles.ResourceRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := toSet(groupIDs)
	var out []profiles.ResourceRow
	for _, p := range s.proposals {
		if _, ok := set[p.GroupID]; ok {
			out = append(out, profiles.ResourceRow{Ref: p.Ref, PersonID: p.PersonID})
		}
	}
	return out, nil
}

func (s *Store) PeopleOwnedByGroups(ctx context.Context, groupIDs []string) ([]profiles.ResourceRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := toSet(groupIDs)
	var out []profiles.ResourceRow
	for id, groupID := range s.personGroups {
		if _, ok := set[groupID]; !ok {
			continue
		}
		p := s.people[id]
		out = append(out, profiles.ResourceRow{Ref: p.FullName, PersonID: p.ID})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ref < out[j].Ref })
	return out, nil
}

// --- docgate.Store ---

func (s *Store) IsGroupMember(ctx context.Context, userID, groupName string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	groupID, ok := s.groupsByName[groupName]
	if !ok {
		return false, nil
	}
	_, member := s.groupMembers[groupID][userID]
	return member, nil
}

func (s *Store) ContractFilePaths(ctx context.Context, personID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	involved := map[string]struct{}{}
	for _, c := range s.contracts {
		if c.PersonID == personID || c.SupervisorID == personID {
			involved[c.ID] = struct{}{}
		}
	}
	var out []string
	for _, f := range s.contractFiles {
		if _, ok := involved[f.ContractID]; ok {
			out = append(out, f.Path)
		}
	}
	return out, nil
}

func (s *Store) PrivateCVPath(ctx context.Context, personID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	path, ok := s.privateCVs[personID]
	if !ok {
		return "", fmt.Errorf("%w: private info for person %s", profiles.ErrNotFound, personID)
	}
	return path, nil
}

func (s *Store) OrderFilePaths(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.orderFiles))
	for _, f := range s.orderFiles {
		out = append(out, f.Path)
	}
	return out, nil
}

func (s *Store) OrderFilePathsCreatedBy(ctx context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, f := range s.orderFiles {
		if f.CreatedBy == userID {
			out = append(out, f.Path)
		}
	}
	return out, nil
}

// --- helpers ---

func equalUnit(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sortLinks(links []profiles.RankedGroupLink) {
	sort.Slice(links, func(i, j int) bool {
		if links[i].GroupID != links[j].GroupID {
			return links[i].GroupID < links[j].GroupID
		}
		ui, uj := unitKey(links[i].UnitID), unitKey(links[j].UnitID)
		if ui != uj {
			return ui < uj
		}
		return links[i].Rank < links[j].Rank
	})
}

func unitKey(id *int64) string {
	if id == nil {
		return ""
	}
	return fmt.Sprintf("%020d", *id)
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[strings.TrimSpace(v)] = struct{}{}
	}
	return set
}
