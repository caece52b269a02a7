package catalog

import "context"

// ChecklistEntry pairs a capability with whether a given group holds it.
// Checklists back the per-resource-kind permission summaries shown next to
// each ranked link.
type ChecklistEntry struct {
	Capability Capability
	Granted    bool
}

// Checklist enumerates a resource kind's capabilities in presentation order
// and marks the ones present in granted (keyed by capability ID).
func (c *Catalog) Checklist(ctx context.Context, resourceKind string, granted map[string]struct{}) ([]ChecklistEntry, error) {
	caps, err := c.ListByResourceKind(ctx, resourceKind)
	if err != nil {
		return nil, err
	}
	entries := make([]ChecklistEntry, 0, len(caps))
	for _, cap := range caps {
		_, ok := granted[cap.ID]
		entries = append(entries, ChecklistEntry{Capability: cap, Granted: ok})
	}
	return entries, nil
}
