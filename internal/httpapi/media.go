package httpapi

import (
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/research-core/core-permissions/internal/audit"
	"github.com/research-core/core-permissions/internal/authn"
	"github.com/research-core/core-permissions/internal/docgate"
	"github.com/research-core/core-permissions/internal/profiles"
)

// handleMedia gates file serving on the document access gate. A denied
// request gets a bare 403: no content, no redirect revealing whether the
// document exists.
func (a *API) handleMedia(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	if a.gate == nil {
		writeError(w, http.StatusServiceUnavailable, "document gate unavailable")
		return
	}

	docPath := strings.TrimPrefix(r.URL.Path, "/media/")
	cleaned := path.Clean("/" + docPath)
	if cleaned == "/" || strings.Contains(cleaned, "..") {
		writeError(w, http.StatusForbidden, "access denied")
		return
	}
	docPath = strings.TrimPrefix(cleaned, "/")

	identity, _ := authn.IdentityFromContext(r.Context())
	user := profiles.User{ID: identity.UserID, Superuser: identity.Superuser}

	decision, err := a.gate.Decide(r.Context(), user, docPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "access check failed")
		return
	}
	if decision != docgate.Grant {
		_ = audit.LogEvent(r.Context(), "docgate.deny", map[string]any{"path": docPath})
		writeError(w, http.StatusForbidden, "access denied")
		return
	}

	if a.documentRoot == "" {
		writeJSON(w, http.StatusOK, map[string]any{"path": docPath, "access": "granted"})
		return
	}
	http.ServeFile(w, r, filepath.Join(a.documentRoot, filepath.FromSlash(docPath)))
}
