package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"travel-planner/handlers"
	"travel-planner/ledger"
	"travel-planner/markers"
	"travel-planner/models"
	"travel-planner/registry"
	"travel-planner/search"
	"travel-planner/services"
	"travel-planner/storage"
)

// startPlanner points the command globals at an in-process ledger server.
func startPlanner(t *testing.T) {
	t.Helper()
	startPlannerWith(t, func(h http.Handler) http.Handler { return h })
}

// startPlannerWith lets wrap intercept ledger requests before the router.
func startPlannerWith(t *testing.T, wrap func(http.Handler) http.Handler) {
	t.Helper()
	catalog := services.NewMemoryCatalog([]services.CatalogEntry{
		{Candidate: models.Candidate{Name: "Obelisco", Address: "Av. 9 de Julio", Lat: -34.6037, Lng: -58.3816}, City: "Buenos Aires"},
		{Candidate: models.Candidate{Name: "La Bombonera", Address: "Brandsen 805", Lat: -34.6356, Lng: -58.3647}, City: "Buenos Aires"},
	})
	svc := services.NewPlaceService(services.NewMemoryPlaceStore(), catalog, nil, 0, zap.NewNop())
	srv := httptest.NewServer(wrap(handlers.NewRouter(handlers.NewPlaceHandler(svc, zap.NewNop()), nil, zap.NewNop())))
	t.Cleanup(srv.Close)

	client, err := ledger.New(srv.URL, ledger.WithRetry(10*time.Millisecond, 1))
	require.NoError(t, err)

	timeout = 5 * time.Second
	gateway = search.NewGateway(client, "Buenos Aires", zap.NewNop())
	reg = registry.New(client, storage.NewMemoryStore())
	require.NoError(t, reg.Hydrate(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, reg.Close(ctx))
	})
}

func run(t *testing.T, cmd *cobra.Command, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetContext(context.Background())
	require.NoError(t, cmd.RunE(cmd, args))
	return out.String()
}

func TestAddCategorizeAndMarkers(t *testing.T) {
	startPlanner(t)

	out := run(t, searchCmd, "obel")
	assert.Contains(t, out, "1. Obelisco, Av. 9 de Julio")

	out = run(t, addCmd, "obelisco")
	assert.Contains(t, out, "added Obelisco")

	want := reg.WantToGo()
	require.Len(t, want, 1)
	id := want[0].Key

	out = run(t, categorizeCmd, id, "Ponto")
	assert.Contains(t, out, "categorized Obelisco")

	out = run(t, listCmd)
	assert.Contains(t, out, "visited")
	assert.Contains(t, out, "ponto")
	assert.Contains(t, out, "committed")

	var body struct {
		Center  markers.LatLng   `json:"center"`
		Markers []markers.Marker `json:"markers"`
	}
	require.NoError(t, json.Unmarshal([]byte(run(t, markersCmd)), &body))
	assert.Equal(t, markers.Center, body.Center)
	require.Len(t, body.Markers, 1)
	assert.Equal(t, "Obelisco - ponto", body.Markers[0].Title)
	assert.Equal(t, markers.IconFor(models.CategoryLandmark), body.Markers[0].Icon)

	out = run(t, deleteCmd, id)
	assert.Contains(t, out, "deleted Obelisco")
	assert.Empty(t, reg.Visited())
}

func TestAddRejectsMissingResult(t *testing.T) {
	startPlanner(t)

	addCmd.SetContext(context.Background())
	err := addCmd.RunE(addCmd, []string{"nothing-like-this"})
	assert.Error(t, err)
	assert.Empty(t, reg.WantToGo())
}

func TestPrintCandidatesEmpty(t *testing.T) {
	var out bytes.Buffer
	printCandidates(&out, nil)
	assert.Equal(t, "no places found\n", out.String())
}

func TestFailedDeleteReportsPlaceKept(t *testing.T) {
	startPlannerWith(t, func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/delete_place" {
				http.Error(w, `{"code":"INTERNAL_SERVER_ERROR"}`, http.StatusServiceUnavailable)
				return
			}
			h.ServeHTTP(w, r)
		})
	})

	run(t, addCmd, "obelisco")
	id := reg.WantToGo()[0].Key

	var stderr bytes.Buffer
	deleteCmd.SetErr(&stderr)
	t.Cleanup(func() { deleteCmd.SetErr(nil) })
	out := run(t, deleteCmd, id)

	assert.Empty(t, out)
	assert.Contains(t, stderr.String(), "kept "+id+", ledger did not confirm the delete")
	assert.NotContains(t, stderr.String(), "deleted locally")
	require.Len(t, reg.WantToGo(), 1, "the place stays listed")
}

func TestFailedReconcileStillPersistsConfirmedPlaces(t *testing.T) {
	ledgerSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p models.Place
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.Name == "La Bombonera" {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		p.ID = "ledger-1"
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(p)
	}))
	t.Cleanup(ledgerSrv.Close)

	dbPath := filepath.Join(t.TempDir(), "planner.db")
	t.Setenv("PLANNER_STORE", dbPath)
	t.Setenv("LEDGER_URL", ledgerSrv.URL)
	t.Setenv("LOG_LEVEL", "error")

	ctx := context.Background()
	seed, err := storage.OpenSQLiteStore(ctx, dbPath, nil)
	require.NoError(t, err)
	require.NoError(t, seed.SaveCollections(ctx, []models.Place{
		{Name: "Obelisco", Lat: -34.6037, Lng: -58.3816},
		{Name: "La Bombonera", Lat: -34.6356, Lng: -58.3647},
	}, nil))
	require.NoError(t, seed.Close())

	err = execute([]string{"reconcile"})
	require.Error(t, err)
	assert.Empty(t, closeAll, "resources are released after a failed command")

	stored, err := storage.OpenSQLiteStore(ctx, dbPath, nil)
	require.NoError(t, err)
	defer stored.Close()
	wantToGo, _, err := stored.LoadCollections(ctx)
	require.NoError(t, err)
	ids := map[string]string{}
	for _, p := range wantToGo {
		ids[p.Name] = p.ID
	}
	assert.Equal(t, map[string]string{"Obelisco": "ledger-1", "La Bombonera": ""}, ids)
}
