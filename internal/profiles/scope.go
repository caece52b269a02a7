package profiles

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/research-core/core-permissions/internal/catalog"
)

// Query is a parameterized SQL fragment supplied by the caller's schema. The
// filter only constrains by group membership; it does not know the resource's
// foreign-key shape, so the caller names the column associating rows with
// their owning permission group. The scope predicate is appended with "and"
// when the base already carries a where clause and with "where" otherwise;
// callers whose only where lives inside a subquery should add an outer
// "where true" themselves.
type Query struct {
	SQL  string
	Args []any
}

var whereClause = regexp.MustCompile(`(?i)\bwhere\b`)

func scopeConnective(sql string) string {
	if whereClause.MatchString(sql) {
		return "and"
	}
	return "where"
}

// Filter scopes resource queries to rows owned by permission groups that
// grant the user the required capabilities. Read-only; never locks.
type Filter struct {
	catalog *catalog.Catalog
	links   LinkStore
}

func NewFilter(c *catalog.Catalog, links LinkStore) (*Filter, error) {
	if c == nil {
		return nil, errors.New("catalog is required")
	}
	if links == nil {
		return nil, errors.New("link store is required")
	}
	return &Filter{catalog: c, links: links}, nil
}

// LinksGranting returns the ranked links whose permission group the user
// belongs to and which hold at least one of the requested capabilities. This
// is a relational join, not a ranking decision: any matching capability
// authorizes, regardless of rank.
func (f *Filter) LinksGranting(ctx context.Context, user User, resourceKind string, actions []string) ([]RankedGroupLink, error) {
	caps, err := f.catalog.ResolveAll(ctx, resourceKind, actions)
	if err != nil {
		return nil, err
	}
	capIDs := make([]string, 0, len(caps))
	for _, cap := range caps {
		capIDs = append(capIDs, cap.ID)
	}
	return f.links.LinksGrantingUser(ctx, user.ID, capIDs)
}

// Scope restricts base to rows whose owning group appears among the user's
// granting links. The result is always a subset of base; for a user with no
// matching capability it yields no rows, never an error. groupColumn is the
// caller-schema column holding the owning group id.
func (f *Filter) Scope(ctx context.Context, user User, resourceKind string, actions []string, base Query, groupColumn string) (Query, error) {
	if err := validColumn(groupColumn); err != nil {
		return Query{}, err
	}
	links, err := f.LinksGranting(ctx, user, resourceKind, actions)
	if err != nil {
		return Query{}, err
	}
	if len(links) == 0 {
		return Query{SQL: fmt.Sprintf("%s %s false", base.SQL, scopeConnective(base.SQL)), Args: base.Args}, nil
	}

	seen := make(map[string]struct{}, len(links))
	args := append([]any{}, base.Args...)
	var placeholders []string
	for _, link := range links {
		if _, ok := seen[link.GroupID]; ok {
			continue
		}
		seen[link.GroupID] = struct{}{}
		args = append(args, link.GroupID)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}
	sql := fmt.Sprintf("%s %s %s in (%s)", base.SQL, scopeConnective(base.SQL), groupColumn, strings.Join(placeholders, ", "))
	return Query{SQL: sql, Args: args}, nil
}

func validColumn(name string) error {
	if name == "" {
		return errors.New("group column is required")
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '.':
		default:
			return fmt.Errorf("invalid group column %q", name)
		}
	}
	return nil
}
