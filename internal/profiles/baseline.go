package profiles

import (
	"context"
	"errors"

	"github.com/research-core/core-permissions/internal/catalog"
)

type baselineEntry struct {
	kind   string
	action string
}

// defaultBaselines is the canonical capability table per role. The three
// tables are identical today but deliberately kept independent, so a future
// divergence is a config change here rather than a code change.
var defaultBaselines = map[Role][]baselineEntry{
	RoleCoordinator: {
		{KindPerson, "view"},
		{KindPerson, "change"},
		{KindPerson, CodenameAccessPeople},

		{KindContractProposal, "add"},
		{KindContractProposal, "view"},
		{KindContractProposal, "change"},

		{KindContract, "view"},

		{KindOrder, "add"},
		{KindOrder, "view"},
		{KindOrder, "change"},
		{KindOrder, "delete"},
		{KindOrder, CodenameAccessOrders},
	},
	RoleAdmin: {
		{KindPerson, "view"},
		{KindPerson, "change"},
		{KindPerson, CodenameAccessPeople},

		{KindContractProposal, "add"},
		{KindContractProposal, "view"},
		{KindContractProposal, "change"},

		{KindContract, "view"},

		{KindOrder, "add"},
		{KindOrder, "view"},
		{KindOrder, "change"},
		{KindOrder, "delete"},
		{KindOrder, CodenameAccessOrders},
	},
	RoleManager: {
		{KindPerson, "view"},
		{KindPerson, "change"},
		{KindPerson, CodenameAccessPeople},

		{KindContractProposal, "add"},
		{KindContractProposal, "view"},
		{KindContractProposal, "change"},

		{KindContract, "view"},

		{KindOrder, "add"},
		{KindOrder, "view"},
		{KindOrder, "change"},
		{KindOrder, "delete"},
		{KindOrder, CodenameAccessOrders},
	},
}

// ResolveBaselines materializes the default capability tables through the
// catalog. Entries whose resource kind is not installed in the deployment are
// skipped, not fatal; any other lookup failure aborts.
func ResolveBaselines(ctx context.Context, c *catalog.Catalog) (Baselines, error) {
	baselines := make(Baselines, len(defaultBaselines))
	for role, entries := range defaultBaselines {
		set := make(map[string]catalog.Capability, len(entries))
		for _, entry := range entries {
			cap, err := c.Resolve(ctx, entry.kind, entry.action)
			if errors.Is(err, catalog.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			set[cap.ID] = cap
		}
		baselines[role] = set
	}
	return baselines, nil
}
