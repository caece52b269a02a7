package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/research-core/core-permissions/internal/catalog"
)

func (s *Store) FindCapability(ctx context.Context, resourceKind, codename string) (catalog.Capability, error) {
	var cap catalog.Capability
	err := s.db.QueryRowContext(ctx, `
		select id, resource_kind, codename, name
		from capabilities
		where resource_kind = $1 and codename = $2
	`, resourceKind, codename).Scan(&cap.ID, &cap.ResourceKind, &cap.Codename, &cap.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Capability{}, fmt.Errorf("%w: %s/%s", catalog.ErrNotFound, resourceKind, codename)
	}
	if err != nil {
		return catalog.Capability{}, err
	}
	return cap, nil
}

func (s *Store) ListCapabilities(ctx context.Context, resourceKind string) ([]catalog.Capability, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, resource_kind, codename, name
		from capabilities
		where resource_kind = $1
		order by codename
	`, resourceKind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var caps []catalog.Capability
	for rows.Next() {
		var cap catalog.Capability
		if err := rows.Scan(&cap.ID, &cap.ResourceKind, &cap.Codename, &cap.Name); err != nil {
			return nil, err
		}
		caps = append(caps, cap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return caps, nil
}
