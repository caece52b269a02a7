package httpapi

import (
	"net/http"

	"github.com/research-core/core-permissions/internal/audit"
	"github.com/research-core/core-permissions/internal/authn"
)

type syncRequest struct {
	UnitIDs      []int64 `json:"unit_ids"`
	ForceDefault bool    `json:"force_default"`
}

type syncReportResponse struct {
	UnitID   int64  `json:"unit_id"`
	UnitName string `json:"unit_name,omitempty"`
	Profile  string `json:"profile,omitempty"`
	Group    string `json:"group,omitempty"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

type unitResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func (a *API) handleUnits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	if a.sync == nil {
		writeError(w, http.StatusServiceUnavailable, "synchronizer unavailable")
		return
	}
	units, err := a.sync.ListUnits(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list units failed")
		return
	}
	out := make([]unitResponse, 0, len(units))
	for _, u := range units {
		out = append(out, unitResponse{ID: u.ID, Name: u.Name})
	}
	writeJSON(w, http.StatusOK, map[string]any{"units": out})
}

func (a *API) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	if a.sync == nil {
		writeError(w, http.StatusServiceUnavailable, "synchronizer unavailable")
		return
	}
	identity, ok := authn.IdentityFromContext(r.Context())
	if !ok || !identity.Superuser {
		writeError(w, http.StatusForbidden, "superuser required")
		return
	}

	var req syncRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reports, err := a.sync.Sync(r.Context(), req.UnitIDs, req.ForceDefault)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "sync failed")
		return
	}
	_ = audit.LogEvent(r.Context(), "profiles.sync", map[string]any{
		"unit_ids":      req.UnitIDs,
		"force_default": req.ForceDefault,
		"reports":       len(reports),
	})

	out := make([]syncReportResponse, 0, len(reports))
	for _, rep := range reports {
		item := syncReportResponse{
			UnitID:   rep.UnitID,
			UnitName: rep.UnitName,
			Profile:  string(rep.Profile),
			Group:    rep.Group,
			Status:   string(rep.Status),
		}
		if rep.Err != nil {
			item.Error = rep.Err.Error()
		}
		out = append(out, item)
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": out})
}
