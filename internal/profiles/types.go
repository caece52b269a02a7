// Package profiles maintains the reconciled mapping between organizational
// units (research groups) and their role-derived permission groups, each link
// carrying a numeric rank, and scopes resource queries by group membership.
package profiles

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound      = errors.New("profiles: not found")
	ErrConflict      = errors.New("profiles: resource conflict")
	ErrConfiguration = errors.New("profiles: configuration error")
)

// Role is one of the fixed profile roles. The rank values are part of the
// contract: they are persisted on ranked links and used for reporting and
// tie-breaking, never for authorization precedence. Do not renumber without a
// migration plan.
type Role string

const (
	RoleCoordinator Role = "coordinator"
	RoleAdmin       Role = "admin"
	RoleManager     Role = "manager"
)

// Roles lists every role in sync iteration order.
var Roles = []Role{RoleCoordinator, RoleAdmin, RoleManager}

// Rank returns the numeric priority of the role.
func (r Role) Rank() int {
	switch r {
	case RoleCoordinator:
		return 300
	case RoleAdmin:
		return 200
	case RoleManager:
		return 100
	}
	return 0
}

// DisplayName returns the title-cased role name used in derived group names.
func (r Role) DisplayName() string {
	if r == "" {
		return ""
	}
	return strings.ToUpper(string(r[:1])) + string(r[1:])
}

// Resource kinds protected by this core. The enumeration is fixed; growing it
// means new baseline entries and new capability rows, not new code paths.
const (
	KindPerson           = "person"
	KindContract         = "contract"
	KindContractProposal = "contractproposal"
	KindOrder            = "order"
	KindPublication      = "publication"
)

// Custom capability codenames granting application-section access.
const (
	CodenameAccessPeople = "app_access_people"
	CodenameAccessOrders = "app_access_orders"
)

// UnitType distinguishes ordinary research groups from platforms. Coordinator
// profiles are only derived for platforms.
type UnitType string

const (
	UnitTypeGroup    UnitType = "group"
	UnitTypePlatform UnitType = "platform"
)

// OrganizationalUnit is a research group or platform. Externally owned; this
// package reads it and, as a side effect of sync, binds its lead to the admin
// profile group.
type OrganizationalUnit struct {
	ID           int64
	Name         string
	Type         UnitType
	LeadPersonID string
}

// PermissionGroup is an identity holding a capability set and a member set.
// Created by the synchronizer (or manually by administrators), never deleted
// here.
type PermissionGroup struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// RankedGroupLink associates a permission group with an optional
// organizational unit at a given rank. Created exactly once per (group, unit)
// pair; listing order is (group, unit, rank) ascending.
type RankedGroupLink struct {
	ID      string
	GroupID string
	UnitID  *int64
	Rank    int
}

// User is the authenticated identity. Externally owned; this package only
// reads its memberships and adds the unit lead to the admin group.
type User struct {
	ID        string
	Username  string
	Superuser bool
}

// Person is the personnel record optionally linked to a user account. Both
// directions of the linkage are used: lead person to user during sync, user to
// person in the document gate.
type Person struct {
	ID       string
	UserID   string
	FullName string
	CVPath   string
}

// GroupNameTemplate derives the canonical profile-group name. The exact
// string is matched on by other code and stored in the database; it must stay
// stable across migrations.
const GroupNameTemplate = "PROFILE: Group %s: %s"

// groupNameMaxLen is the storage limit of the group name column.
const groupNameMaxLen = 150

// nameAbbreviations is the registered name-shortening table applied when a
// derived name exceeds the column limit. This is an exception list, not
// general truncation.
var nameAbbreviations = map[string]string{
	"Advanced BioImaging and BioOptics Experimental Platform": "ABBE",
}

// ProfileGroupName derives the canonical group name for (role, unit). When
// the result exceeds the storage limit the registered abbreviations are
// applied; a name that still does not fit is a configuration error, never
// silently truncated.
func ProfileGroupName(role Role, unitName string) (string, error) {
	name := fmt.Sprintf(GroupNameTemplate, role.DisplayName(), unitName)
	if len(name) > groupNameMaxLen {
		for long, short := range nameAbbreviations {
			name = strings.ReplaceAll(name, long, short)
		}
	}
	if len(name) > groupNameMaxLen {
		return "", fmt.Errorf("%w: derived group name %q exceeds %d characters after abbreviation", ErrConfiguration, name, groupNameMaxLen)
	}
	return name, nil
}
