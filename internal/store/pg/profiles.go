package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/research-core/core-permissions/internal/ids"
	"github.com/research-core/core-permissions/internal/profiles"
)

func (s *Store) Units(ctx context.Context) ([]profiles.OrganizationalUnit, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, name, unit_type, lead_person_id
		from units
		order by id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var units []profiles.OrganizationalUnit
	for rows.Next() {
		unit, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		units = append(units, unit)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return units, nil
}

func (s *Store) Unit(ctx context.Context, id int64) (profiles.OrganizationalUnit, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, name, unit_type, lead_person_id
		from units
		where id = $1
	`, id)
	unit, err := scanUnit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return profiles.OrganizationalUnit{}, fmt.Errorf("%w: unit %d", profiles.ErrNotFound, id)
	}
	if err != nil {
		return profiles.OrganizationalUnit{}, err
	}
	return unit, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUnit(row rowScanner) (profiles.OrganizationalUnit, error) {
	var (
		unit profiles.OrganizationalUnit
		typ  string
		lead sql.NullString
	)
	if err := row.Scan(&unit.ID, &unit.Name, &typ, &lead); err != nil {
		return profiles.OrganizationalUnit{}, err
	}
	unit.Type = profiles.UnitType(typ)
	if lead.Valid {
		unit.LeadPersonID = lead.String
	}
	return unit, nil
}

func (s *Store) Person(ctx context.Context, id string) (profiles.Person, error) {
	return s.personWhere(ctx, "id = $1", id)
}

func (s *Store) PersonByUser(ctx context.Context, userID string) (profiles.Person, error) {
	return s.personWhere(ctx, "user_id = $1", userID)
}

func (s *Store) personWhere(ctx context.Context, clause, arg string) (profiles.Person, error) {
	var (
		person profiles.Person
		userID sql.NullString
		cvPath sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		select id, user_id, full_name, cv_path
		from people
		where `+clause+`
	`, arg).Scan(&person.ID, &userID, &person.FullName, &cvPath)
	if errors.Is(err, sql.ErrNoRows) {
		return profiles.Person{}, fmt.Errorf("%w: person (%s)", profiles.ErrNotFound, arg)
	}
	if err != nil {
		return profiles.Person{}, err
	}
	if userID.Valid {
		person.UserID = userID.String
	}
	if cvPath.Valid {
		person.CVPath = cvPath.String
	}
	return person, nil
}

// GetOrCreateGroup inserts the group if absent and re-reads the row. The
// "on conflict do nothing" keeps it race-safe under concurrent sync runs for
// the same name; created reports whether this call inserted the row.
func (s *Store) GetOrCreateGroup(ctx context.Context, name string) (profiles.PermissionGroup, bool, error) {
	res, err := s.db.ExecContext(ctx, `
		insert into permission_groups (id, name)
		values ($1, $2)
		on conflict (name) do nothing
	`, ids.New(), name)
	if err != nil {
		return profiles.PermissionGroup{}, false, err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return profiles.PermissionGroup{}, false, err
	}

	var group profiles.PermissionGroup
	err = s.db.QueryRowContext(ctx, `
		select id, name, created_at
		from permission_groups
		where name = $1
	`, name).Scan(&group.ID, &group.Name, &group.CreatedAt)
	if err != nil {
		return profiles.PermissionGroup{}, false, err
	}
	return group, aff == 1, nil
}

func (s *Store) AddGroupMember(ctx context.Context, groupID, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		insert into group_members (group_id, user_id)
		values ($1, $2)
		on conflict (group_id, user_id) do nothing
	`, groupID, userID)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return fmt.Errorf("%w: group %s or user %s", profiles.ErrNotFound, groupID, userID)
		}
		return err
	}
	return nil
}

func (s *Store) GroupCapabilityIDs(ctx context.Context, groupID string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `
		select capability_id
		from group_capabilities
		where group_id = $1
	`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]struct{}{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ReplaceGroupCapabilities(ctx context.Context, groupID string, capabilityIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `delete from group_capabilities where group_id = $1`, groupID); err != nil {
		return err
	}
	for _, capID := range capabilityIDs {
		if _, err := tx.ExecContext(ctx, `
			insert into group_capabilities (group_id, capability_id)
			values ($1, $2)
		`, groupID, capID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) CreateLink(ctx context.Context, link profiles.RankedGroupLink) error {
	var unitID sql.NullInt64
	if link.UnitID != nil {
		unitID = sql.NullInt64{Int64: *link.UnitID, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		insert into ranked_group_links (id, group_id, unit_id, rank)
		values ($1, $2, $3, $4)
	`, link.ID, link.GroupID, unitID, link.Rank)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return fmt.Errorf("%w: link for group %s", profiles.ErrConflict, link.GroupID)
		}
		return err
	}
	return nil
}

func (s *Store) LinksForUnit(ctx context.Context, unitID int64) ([]profiles.RankedGroupLink, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, group_id, unit_id, rank
		from ranked_group_links
		where unit_id = $1
		order by group_id, unit_id, rank
	`, unitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLinks(rows)
}

func (s *Store) LinksGrantingUser(ctx context.Context, userID string, capabilityIDs []string) ([]profiles.RankedGroupLink, error) {
	if len(capabilityIDs) == 0 {
		return nil, nil
	}
	args := []any{userID}
	var placeholders []string
	for _, id := range capabilityIDs {
		args = append(args, id)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}
	query := fmt.Sprintf(`
		select distinct l.id, l.group_id, l.unit_id, l.rank
		from ranked_group_links l
		join group_members m on m.group_id = l.group_id and m.user_id = $1
		join group_capabilities gc on gc.group_id = l.group_id
		where gc.capability_id in (%s)
		order by l.group_id, l.unit_id nulls first, l.rank
	`, strings.Join(placeholders, ", "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLinks(rows)
}

func scanLinks(rows *sql.Rows) ([]profiles.RankedGroupLink, error) {
	var links []profiles.RankedGroupLink
	for rows.Next() {
		var (
			link   profiles.RankedGroupLink
			unitID sql.NullInt64
		)
		if err := rows.Scan(&link.ID, &link.GroupID, &unitID, &link.Rank); err != nil {
			return nil, err
		}
		if unitID.Valid {
			v := unitID.Int64
			link.UnitID = &v
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return links, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]profiles.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, username, is_superuser
		from users
		order by username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []profiles.User
	for rows.Next() {
		var u profiles.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Superuser); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) ContractsOwnedByGroups(ctx context.Context, groupIDs []string) ([]profiles.ResourceRow, error) {
	return s.rowsOwnedByGroups(ctx, "contracts", groupIDs)
}

func (s *Store) ProposalsOwnedByGroups(ctx context.Context, groupIDs []string) ([]profiles.ResourceRow, error) {
	return s.rowsOwnedByGroups(ctx, "proposals", groupIDs)
}

func (s *Store) PeopleOwnedByGroups(ctx context.Context, groupIDs []string) ([]profiles.ResourceRow, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}
	args, placeholders := inList(groupIDs)
	query := fmt.Sprintf(`
		select full_name, id
		from people
		where group_id in (%s)
		order by full_name
	`, placeholders)
	return s.queryResourceRows(ctx, query, args)
}

func (s *Store) rowsOwnedByGroups(ctx context.Context, table string, groupIDs []string) ([]profiles.ResourceRow, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}
	args, placeholders := inList(groupIDs)
	query := fmt.Sprintf(`
		select ref, person_id
		from %s
		where group_id in (%s)
		order by ref
	`, table, placeholders)
	return s.queryResourceRows(ctx, query, args)
}

func (s *Store) queryResourceRows(ctx context.Context, query string, args []any) ([]profiles.ResourceRow, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []profiles.ResourceRow
	for rows.Next() {
		var (
			row      profiles.ResourceRow
			personID sql.NullString
		)
		if err := rows.Scan(&row.Ref, &personID); err != nil {
			return nil, err
		}
		if personID.Valid {
			row.PersonID = personID.String
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func inList(values []string) ([]any, string) {
	args := make([]any, 0, len(values))
	var placeholders []string
	for _, v := range values {
		args = append(args, v)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}
	return args, strings.Join(placeholders, ", ")
}
