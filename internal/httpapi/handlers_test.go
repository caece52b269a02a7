package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/research-core/core-permissions/internal/authn"
	"github.com/research-core/core-permissions/internal/catalog"
	"github.com/research-core/core-permissions/internal/docgate"
	"github.com/research-core/core-permissions/internal/profiles"
	"github.com/research-core/core-permissions/internal/store/memory"
)

func newTestAPI(t *testing.T) (*API, *memory.Store) {
	t.Helper()
	store := memory.New()

	kinds := []string{
		profiles.KindPerson,
		profiles.KindContract,
		profiles.KindContractProposal,
		profiles.KindOrder,
		profiles.KindPublication,
	}
	for _, kind := range kinds {
		for _, action := range catalog.StandardActions {
			store.AddCapability(kind, catalog.Qualify(kind, action), "Can "+action+" "+kind)
		}
	}
	store.AddCapability(profiles.KindPerson, profiles.CodenameAccessPeople, "Access people section")
	store.AddCapability(profiles.KindOrder, profiles.CodenameAccessOrders, "Access orders section")

	cat, err := catalog.New(store)
	if err != nil {
		t.Fatal(err)
	}
	baselines, err := profiles.ResolveBaselines(context.Background(), cat)
	if err != nil {
		t.Fatal(err)
	}
	sync, err := profiles.NewSynchronizer(store, baselines)
	if err != nil {
		t.Fatal(err)
	}
	gate, err := docgate.New(docgate.Config{
		PublicPrefixes:      []string{"cache", "uploads/image"},
		HumanResourcesGroup: "PROFILE: Human Resources",
		AllOrdersGroup:      "PROFILE: All Orders",
	}, store)
	if err != nil {
		t.Fatal(err)
	}

	api := New(Config{
		Synchronizer: sync,
		Gate:         gate,
		Version:      "test",
	})
	return api, store
}

func issueToken(t *testing.T, userID string, superuser bool) string {
	t.Helper()
	t.Setenv("CORE_AUTH_SECRET", "test-secret")
	authn.ResetSecretForTests()
	t.Cleanup(authn.ResetSecretForTests)
	token, err := authn.GenerateToken(userID, superuser, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func doRequest(t *testing.T, api *API, method, target, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	api, _ := newTestAPI(t)
	rec := doRequest(t, api, http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" || body["service"] != "core-permissions" {
		t.Fatalf("unexpected body: %v", body)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatal("missing request id header")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("missing security headers")
	}
}

func TestReadyWithoutDB(t *testing.T) {
	api, _ := newTestAPI(t)
	rec := doRequest(t, api, http.MethodGet, "/readyz", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestProtectedEndpointRequiresToken(t *testing.T) {
	api, _ := newTestAPI(t)
	rec := doRequest(t, api, http.MethodGet, "/v1/units", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestUnitsListing(t *testing.T) {
	api, store := newTestAPI(t)
	store.AddUnit(profiles.OrganizationalUnit{ID: 1, Name: "Optics", Type: profiles.UnitTypeGroup})
	token := issueToken(t, "u1", false)

	rec := doRequest(t, api, http.MethodGet, "/v1/units", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d (%s)", rec.Code, rec.Body.String())
	}
	var body struct {
		Units []struct {
			ID   int64  `json:"id"`
			Name string `json:"name"`
		} `json:"units"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Units) != 1 || body.Units[0].Name != "Optics" {
		t.Fatalf("unexpected units: %+v", body.Units)
	}
}

func TestSyncRequiresSuperuser(t *testing.T) {
	api, store := newTestAPI(t)
	store.AddUnit(profiles.OrganizationalUnit{ID: 1, Name: "Optics", Type: profiles.UnitTypeGroup})
	token := issueToken(t, "u1", false)

	rec := doRequest(t, api, http.MethodPost, "/v1/sync", token, "{}")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestSyncAsSuperuser(t *testing.T) {
	api, store := newTestAPI(t)
	store.AddUnit(profiles.OrganizationalUnit{ID: 1, Name: "Optics", Type: profiles.UnitTypeGroup})
	token := issueToken(t, "root", true)

	rec := doRequest(t, api, http.MethodPost, "/v1/sync", token, `{"unit_ids":[1]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d (%s)", rec.Code, rec.Body.String())
	}
	var body struct {
		Reports []struct {
			UnitID int64  `json:"unit_id"`
			Status string `json:"status"`
		} `json:"reports"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Reports) != 2 {
		t.Fatalf("expected 2 reports for a plain group, got %d", len(body.Reports))
	}
	for _, rep := range body.Reports {
		if rep.Status != "created" {
			t.Fatalf("unexpected report: %+v", rep)
		}
	}
}

func TestSyncRejectsUnknownFields(t *testing.T) {
	api, _ := newTestAPI(t)
	token := issueToken(t, "root", true)

	rec := doRequest(t, api, http.MethodPost, "/v1/sync", token, `{"units":[1]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestMediaDeniedWithoutAccess(t *testing.T) {
	api, store := newTestAPI(t)
	store.AddUser(profiles.User{ID: "u1", Username: "alice"})
	token := issueToken(t, "u1", false)

	rec := doRequest(t, api, http.MethodGet, "/media/uploads/contract/secret.pdf", token, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestMediaPublicPrefixGranted(t *testing.T) {
	api, store := newTestAPI(t)
	store.AddUser(profiles.User{ID: "u1", Username: "alice"})
	token := issueToken(t, "u1", false)

	rec := doRequest(t, api, http.MethodGet, "/media/cache/thumb.png", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["access"] != "granted" || body["path"] != "cache/thumb.png" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestMediaSuperuserBypass(t *testing.T) {
	api, _ := newTestAPI(t)
	token := issueToken(t, "root", true)

	rec := doRequest(t, api, http.MethodGet, "/media/uploads/contract/secret.pdf", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestMediaOwnDocumentsGranted(t *testing.T) {
	api, store := newTestAPI(t)
	store.AddUser(profiles.User{ID: "u1", Username: "alice"})
	store.AddPerson(profiles.Person{ID: "p1", UserID: "u1"})
	store.AddContract(memory.Contract{ID: "c1", PersonID: "p1"})
	store.AddContractFile(memory.ContractFile{ContractID: "c1", Path: "uploads/contract/c1.pdf"})
	token := issueToken(t, "u1", false)

	rec := doRequest(t, api, http.MethodGet, "/media/uploads/contract/c1.pdf", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestMediaAnonymousPublicPrefix(t *testing.T) {
	api, _ := newTestAPI(t)

	rec := doRequest(t, api, http.MethodGet, "/media/cache/thumb.png", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("public media must be reachable anonymously: %d", rec.Code)
	}

	rec2 := doRequest(t, api, http.MethodGet, "/media/uploads/contract/secret.pdf", "", "")
	if rec2.Code != http.StatusForbidden {
		t.Fatalf("gated media must deny anonymous requests: %d", rec2.Code)
	}
}

func TestMediaEmptyPathDenied(t *testing.T) {
	api, _ := newTestAPI(t)
	token := issueToken(t, "root", true)

	rec := doRequest(t, api, http.MethodGet, "/media/", token, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}
