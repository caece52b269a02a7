package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/research-core/core-permissions/internal/profiles"
)

func (s *Store) IsGroupMember(ctx context.Context, userID, groupName string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		select exists (
			select 1
			from group_members m
			join permission_groups g on g.id = m.group_id
			where m.user_id = $1 and g.name = $2
		)
	`, userID, groupName).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (s *Store) ContractFilePaths(ctx context.Context, personID string) ([]string, error) {
	return s.queryPaths(ctx, `
		select f.file_path
		from contract_files f
		join contracts c on c.id = f.contract_id
		where c.person_id = $1 or c.supervisor_id = $1
	`, personID)
}

func (s *Store) PrivateCVPath(ctx context.Context, personID string) (string, error) {
	var path sql.NullString
	err := s.db.QueryRowContext(ctx, `
		select cv_path
		from private_info
		where person_id = $1
	`, personID).Scan(&path)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: private info for person %s", profiles.ErrNotFound, personID)
	}
	if err != nil {
		return "", err
	}
	if !path.Valid {
		return "", nil
	}
	return path.String, nil
}

func (s *Store) OrderFilePaths(ctx context.Context) ([]string, error) {
	return s.queryPaths(ctx, `select file_path from order_files`)
}

func (s *Store) OrderFilePathsCreatedBy(ctx context.Context, userID string) ([]string, error) {
	return s.queryPaths(ctx, `select file_path from order_files where created_by = $1`, userID)
}

func (s *Store) queryPaths(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return paths, nil
}
