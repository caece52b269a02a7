package profiles

import (
	"context"
	"errors"
)

// AccessSummary lists the resource rows a user can reach through the scope
// filter. Flagged marks users who reach rows beyond their own person record,
// the cases worth an administrator's attention.
type AccessSummary struct {
	UserID    string
	Username  string
	Contracts []ResourceRow
	Proposals []ResourceRow
	People    []ResourceRow
	Flagged   bool
}

// Reporter produces per-user access reports. Read-only diagnostic.
type Reporter struct {
	filter *Filter
	store  ReportStore
}

func NewReporter(filter *Filter, store ReportStore) (*Reporter, error) {
	if filter == nil {
		return nil, errors.New("filter is required")
	}
	if store == nil {
		return nil, errors.New("report store is required")
	}
	return &Reporter{filter: filter, store: store}, nil
}

// AccessReport enumerates, per user ordered by username, the contract,
// proposal and person rows reachable with view permission.
func (r *Reporter) AccessReport(ctx context.Context) ([]AccessSummary, error) {
	users, err := r.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]AccessSummary, 0, len(users))
	for _, user := range users {
		summary := AccessSummary{UserID: user.ID, Username: user.Username}

		ownPersonID := ""
		if person, err := r.store.PersonByUser(ctx, user.ID); err == nil {
			ownPersonID = person.ID
		} else if !errors.Is(err, ErrNotFound) {
			return nil, err
		}

		summary.Contracts, err = r.scopedRows(ctx, user, KindContract, r.store.ContractsOwnedByGroups)
		if err != nil {
			return nil, err
		}
		summary.Proposals, err = r.scopedRows(ctx, user, KindContractProposal, r.store.ProposalsOwnedByGroups)
		if err != nil {
			return nil, err
		}
		summary.People, err = r.scopedRows(ctx, user, KindPerson, r.store.PeopleOwnedByGroups)
		if err != nil {
			return nil, err
		}

		for _, rows := range [][]ResourceRow{summary.Contracts, summary.Proposals, summary.People} {
			for _, row := range rows {
				if row.PersonID != ownPersonID {
					summary.Flagged = true
				}
			}
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (r *Reporter) scopedRows(ctx context.Context, user User, kind string, list func(context.Context, []string) ([]ResourceRow, error)) ([]ResourceRow, error) {
	links, err := r.filter.LinksGranting(ctx, user, kind, []string{"view"})
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return nil, nil
	}
	seen := make(map[string]struct{}, len(links))
	groupIDs := make([]string, 0, len(links))
	for _, link := range links {
		if _, ok := seen[link.GroupID]; ok {
			continue
		}
		seen[link.GroupID] = struct{}{}
		groupIDs = append(groupIDs, link.GroupID)
	}
	return list(ctx, groupIDs)
}
