package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	handler "github.com/samirrijal/routefinder/internal/adapters/http"
	"github.com/samirrijal/routefinder/internal/core/domain"
	"github.com/samirrijal/routefinder/internal/core/usecases"
)

// ---- Fakes ----

type fakeGeocoder struct {
	searchFn func(ctx context.Context, query string) ([]domain.GeocodeMatch, error)
}

func (f *fakeGeocoder) Search(ctx context.Context, query string) ([]domain.GeocodeMatch, error) {
	if f.searchFn != nil {
		return f.searchFn(ctx, query)
	}
	return nil, nil
}

type fakeRouter struct {
	routeFn func(ctx context.Context, req domain.RouteRequest) (*domain.RouteResponse, error)
}

func (f *fakeRouter) Route(ctx context.Context, req domain.RouteRequest) (*domain.RouteResponse, error) {
	if f.routeFn != nil {
		return f.routeFn(ctx, req)
	}
	return &domain.RouteResponse{}, nil
}

var cities = map[string][]domain.GeocodeMatch{
	"Paris":  {{Kind: "city", RawLat: "48.8566", RawLon: "2.3522"}},
	"Berlin": {{Kind: "city", RawLat: "52.5200", RawLon: "13.4050"}},
}

func knownCities() *fakeGeocoder {
	return &fakeGeocoder{
		searchFn: func(ctx context.Context, query string) ([]domain.GeocodeMatch, error) {
			return cities[query], nil
		},
	}
}

func line(n int) domain.RawGeometryFeature {
	coords := make([]string, n)
	for i := range coords {
		coords[i] = fmt.Sprintf("[%v, %v]", 2.35+float64(i)*0.1, 48.85+float64(i)*0.05)
	}
	return domain.RawGeometryFeature{Geometry: &domain.RawGeometry{
		Type:        "LineString",
		Coordinates: json.RawMessage("[" + strings.Join(coords, ",") + "]"),
	}}
}

func routesOf(lengths ...int) *fakeRouter {
	return &fakeRouter{
		routeFn: func(ctx context.Context, req domain.RouteRequest) (*domain.RouteResponse, error) {
			resp := &domain.RouteResponse{}
			for _, n := range lengths {
				resp.Features = append(resp.Features, line(n))
			}
			return resp, nil
		},
	}
}

// ---- Test helpers ----

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

func makeDeps(geo *fakeGeocoder, router *fakeRouter) *handler.Dependencies {
	sessionDeps := usecases.SessionDeps{
		Resolver:   usecases.NewPlaceResolver(geo, nil),
		Router:     router,
		Normalizer: usecases.NewGeometryNormalizer(usecases.MultiLineFlatten),
	}
	return &handler.Dependencies{
		Sessions: usecases.NewSessionManager(sessionDeps, time.Hour),
	}
}

func readBody(t *testing.T, body io.Reader) []byte {
	t.Helper()
	b, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return b
}

func postJSON(t *testing.T, app *fiber.App, path, body string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, readBody(t, resp.Body)
}

func createSession(t *testing.T, app *fiber.App) domain.RouteView {
	t.Helper()
	status, body := postJSON(t, app, "/v1/sessions", "")
	if status != 201 {
		t.Fatalf("expected 201, got %d: %s", status, body)
	}
	var view domain.RouteView
	if err := json.Unmarshal(body, &view); err != nil {
		t.Fatal(err)
	}
	return view
}

// ---- Session tests ----

func TestCreateSession_Idle(t *testing.T) {
	app := setupApp(makeDeps(knownCities(), routesOf(3)))

	view := createSession(t, app)
	if view.SessionID == "" {
		t.Fatal("expected a session id")
	}
	if view.State != domain.StateIdle {
		t.Errorf("expected idle, got %s", view.State)
	}
}

func TestFindRoute_Ready(t *testing.T) {
	app := setupApp(makeDeps(knownCities(), routesOf(10, 6)))
	id := createSession(t, app).SessionID

	status, body := postJSON(t, app, "/v1/sessions/"+id+"/find", `{"start":"Paris","end":"Berlin"}`)
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}

	var view domain.RouteView
	if err := json.Unmarshal(body, &view); err != nil {
		t.Fatal(err)
	}
	if view.State != domain.StateReady {
		t.Fatalf("expected ready, got %s", view.State)
	}
	if view.RouteSet == nil || len(view.RouteSet.CandidatePolylines) != 2 {
		t.Fatalf("expected 2 candidates, got %+v", view.RouteSet)
	}
	if view.RouteSet.BestIndex != 1 || view.RouteSet.SelectedIndex != 1 {
		t.Errorf("expected best=selected=1, got %d/%d", view.RouteSet.BestIndex, view.RouteSet.SelectedIndex)
	}
}

func TestFindRoute_FailedViewIs200(t *testing.T) {
	app := setupApp(makeDeps(knownCities(), routesOf(3)))
	id := createSession(t, app).SessionID

	status, body := postJSON(t, app, "/v1/sessions/"+id+"/find", `{"start":"Paris","end":"Atlantis"}`)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var view domain.RouteView
	json.Unmarshal(body, &view)
	if view.State != domain.StateFailed || view.ErrorKind != domain.ErrorKindInvalidPlace {
		t.Errorf("expected failed/invalid_place, got %s/%s", view.State, view.ErrorKind)
	}
	if view.ErrorMessage == "" {
		t.Error("expected a user-facing message")
	}
}

func TestFindRoute_EmptyStart(t *testing.T) {
	app := setupApp(makeDeps(knownCities(), routesOf(3)))
	id := createSession(t, app).SessionID

	status, _ := postJSON(t, app, "/v1/sessions/"+id+"/find", `{"start":"  ","end":"Berlin"}`)
	if status != 400 {
		t.Fatalf("expected 400, got %d", status)
	}
}

func TestFindRoute_TooManyWaypoints(t *testing.T) {
	app := setupApp(makeDeps(knownCities(), routesOf(3)))
	id := createSession(t, app).SessionID

	wps := make([]string, 11)
	for i := range wps {
		wps[i] = `"Paris"`
	}
	body := `{"start":"Paris","end":"Berlin","waypoints":[` + strings.Join(wps, ",") + `]}`

	status, _ := postJSON(t, app, "/v1/sessions/"+id+"/find", body)
	if status != 400 {
		t.Fatalf("expected 400, got %d", status)
	}
}

func TestFindRoute_UnknownSession(t *testing.T) {
	app := setupApp(makeDeps(knownCities(), routesOf(3)))

	status, _ := postJSON(t, app, "/v1/sessions/nope/find", `{"start":"Paris","end":"Berlin"}`)
	if status != 404 {
		t.Fatalf("expected 404, got %d", status)
	}
}

func TestFindRoute_InFlightIsConflict(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	router := &fakeRouter{
		routeFn: func(ctx context.Context, req domain.RouteRequest) (*domain.RouteResponse, error) {
			close(entered)
			<-release
			return &domain.RouteResponse{Features: []domain.RawGeometryFeature{line(2)}}, nil
		},
	}
	deps := makeDeps(knownCities(), router)
	app := setupApp(deps)
	s := deps.Sessions.Create()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.FindRoute(context.Background(), usecases.FindRouteRequest{Start: "Paris", End: "Berlin"})
	}()
	<-entered

	status, _ := postJSON(t, app, "/v1/sessions/"+s.ID()+"/find", `{"start":"Paris","end":"Berlin"}`)
	if status != 409 {
		t.Errorf("expected 409, got %d", status)
	}
	status, _ = postJSON(t, app, "/v1/sessions/"+s.ID()+"/reset", "")
	if status != 409 {
		t.Errorf("expected 409 on reset, got %d", status)
	}

	close(release)
	<-done
}

func TestSelectRoute(t *testing.T) {
	app := setupApp(makeDeps(knownCities(), routesOf(10, 6, 8)))
	id := createSession(t, app).SessionID

	status, _ := postJSON(t, app, "/v1/sessions/"+id+"/select", `{"index":0}`)
	if status != 409 {
		t.Fatalf("expected 409 before a route exists, got %d", status)
	}

	postJSON(t, app, "/v1/sessions/"+id+"/find", `{"start":"Paris","end":"Berlin"}`)

	status, body := postJSON(t, app, "/v1/sessions/"+id+"/select", `{"index":2}`)
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	var view domain.RouteView
	json.Unmarshal(body, &view)
	if view.RouteSet.SelectedIndex != 2 || view.RouteSet.BestIndex != 1 {
		t.Errorf("expected selected=2 best=1, got %d/%d", view.RouteSet.SelectedIndex, view.RouteSet.BestIndex)
	}

	status, body = postJSON(t, app, "/v1/sessions/"+id+"/select", `{"index":5}`)
	if status != 400 {
		t.Fatalf("expected 400, got %d", status)
	}
	var apiErr handler.APIError
	json.Unmarshal(body, &apiErr)
	if apiErr.Code != "index_out_of_range" {
		t.Errorf("expected index_out_of_range, got %q", apiErr.Code)
	}

	status, _ = postJSON(t, app, "/v1/sessions/"+id+"/select", `{}`)
	if status != 400 {
		t.Errorf("expected 400 for missing index, got %d", status)
	}
}

func TestResetSession(t *testing.T) {
	app := setupApp(makeDeps(knownCities(), routesOf(3)))
	id := createSession(t, app).SessionID
	postJSON(t, app, "/v1/sessions/"+id+"/find", `{"start":"Paris","end":"Berlin"}`)

	status, body := postJSON(t, app, "/v1/sessions/"+id+"/reset", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var view domain.RouteView
	json.Unmarshal(body, &view)
	if view.State != domain.StateIdle || view.RouteSet != nil {
		t.Errorf("expected a clean idle view, got %+v", view)
	}
}

func TestGetSession_ETag(t *testing.T) {
	app := setupApp(makeDeps(knownCities(), routesOf(3)))
	id := createSession(t, app).SessionID

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/sessions/"+id, nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	etag := resp.Header.Get("ETag")
	if etag == "" {
		t.Fatal("expected an ETag")
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "private, no-cache" {
		t.Errorf("unexpected Cache-Control %q", cc)
	}

	req := httptest.NewRequest("GET", "/v1/sessions/"+id, nil)
	req.Header.Set("If-None-Match", etag)
	resp, _ = app.Test(req, -1)
	if resp.StatusCode != 304 {
		t.Fatalf("expected 304, got %d", resp.StatusCode)
	}

	postJSON(t, app, "/v1/sessions/"+id+"/find", `{"start":"Paris","end":"Berlin"}`)

	req = httptest.NewRequest("GET", "/v1/sessions/"+id, nil)
	req.Header.Set("If-None-Match", etag)
	resp, _ = app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200 after a transition, got %d", resp.StatusCode)
	}
}

func TestDeleteSession(t *testing.T) {
	app := setupApp(makeDeps(knownCities(), routesOf(3)))
	id := createSession(t, app).SessionID

	resp, _ := app.Test(httptest.NewRequest("DELETE", "/v1/sessions/"+id, nil), -1)
	if resp.StatusCode != 204 {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	resp, _ = app.Test(httptest.NewRequest("GET", "/v1/sessions/"+id, nil), -1)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestListSessions_Pagination(t *testing.T) {
	deps := makeDeps(knownCities(), routesOf(3))
	app := setupApp(deps)
	for i := 0; i < 5; i++ {
		deps.Sessions.Create()
	}

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/sessions?offset=2&limit=2", nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data       []handler.SessionSummary `json:"data"`
		Pagination handler.Pagination       `json:"pagination"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if result.Pagination.Total != 5 {
		t.Errorf("expected total 5, got %d", result.Pagination.Total)
	}
	if len(result.Data) != 2 {
		t.Errorf("expected 2 sessions in page, got %d", len(result.Data))
	}
	if !strings.Contains(resp.Header.Get("Link"), `rel="next"`) {
		t.Errorf("expected a next link, got %q", resp.Header.Get("Link"))
	}
}

// ---- One-shot route tests ----

func TestRoute_OneShot(t *testing.T) {
	var got domain.RouteRequest
	router := &fakeRouter{
		routeFn: func(ctx context.Context, req domain.RouteRequest) (*domain.RouteResponse, error) {
			got = req
			return &domain.RouteResponse{Features: []domain.RawGeometryFeature{line(4)}}, nil
		},
	}
	deps := makeDeps(knownCities(), router)
	app := setupApp(deps)

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/route?start=Paris&end=Berlin&via=Atlantis", nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var view domain.RouteView
	json.NewDecoder(resp.Body).Decode(&view)
	if view.State != domain.StateReady {
		t.Errorf("expected ready, got %s", view.State)
	}
	if len(view.DroppedWaypoints) != 1 || view.DroppedWaypoints[0] != "Atlantis" {
		t.Errorf("expected Atlantis dropped, got %v", view.DroppedWaypoints)
	}
	if len(got.Waypoints) != 0 {
		t.Errorf("expected no waypoints sent, got %v", got.Waypoints)
	}
	if deps.Sessions.Len() != 0 {
		t.Errorf("one-shot lookups must not register sessions")
	}
}

func TestRoute_ErrorStatusByKind(t *testing.T) {
	tests := []struct {
		name   string
		geo    *fakeGeocoder
		router *fakeRouter
		query  string
		status int
		code   string
	}{
		{"missing end", knownCities(), routesOf(3), "start=Paris", 400, "bad_request"},
		{"invalid place", knownCities(), routesOf(3), "start=Paris&end=Atlantis", 422, "invalid_place"},
		{"no route", knownCities(), routesOf(), "start=Paris&end=Berlin", 404, "no_route"},
		{"routing down", knownCities(), &fakeRouter{
			routeFn: func(ctx context.Context, req domain.RouteRequest) (*domain.RouteResponse, error) {
				return nil, errors.New("connection refused")
			},
		}, "start=Paris&end=Berlin", 502, "transport"},
		{"geocoder down", &fakeGeocoder{
			searchFn: func(ctx context.Context, query string) ([]domain.GeocodeMatch, error) {
				return nil, errors.New("503")
			},
		}, routesOf(3), "start=Paris&end=Berlin", 502, "transport"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := setupApp(makeDeps(tt.geo, tt.router))
			resp, _ := app.Test(httptest.NewRequest("GET", "/v1/route?"+tt.query, nil), -1)
			if resp.StatusCode != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, resp.StatusCode)
			}
			var apiErr handler.APIError
			json.NewDecoder(resp.Body).Decode(&apiErr)
			if apiErr.Code != tt.code {
				t.Errorf("expected code %q, got %q", tt.code, apiErr.Code)
			}
		})
	}
}

// ---- Health tests ----

func TestHealth_Returns200(t *testing.T) {
	app := setupApp(makeDeps(knownCities(), routesOf(3)))

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/health", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if result["status"] != "healthy" {
		t.Errorf("expected healthy, got %v", result["status"])
	}
}

func TestReady_NothingConfigured(t *testing.T) {
	app := setupApp(makeDeps(knownCities(), routesOf(3)))

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/ready", nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200 without optional deps, got %d", resp.StatusCode)
	}
}

// ---- GraphQL tests ----

func gql(t *testing.T, app *fiber.App, query string) map[string]interface{} {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"query": query})
	status, resp := postJSON(t, app, "/graphql", string(body))
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(resp, &out); err != nil {
		t.Fatal(err)
	}
	return out
}

func TestGraphQL_SessionFlow(t *testing.T) {
	app := setupApp(makeDeps(knownCities(), routesOf(10, 6)))

	out := gql(t, app, `mutation { createSession { session_id state } }`)
	data := out["data"].(map[string]interface{})["createSession"].(map[string]interface{})
	id := data["session_id"].(string)
	if data["state"] != "idle" {
		t.Fatalf("expected idle, got %v", data["state"])
	}

	out = gql(t, app, `mutation { findRoute(session_id: "`+id+`", start: "Paris", end: "Berlin") {
		state route_set { best_index selected_index candidate_polylines { lat lon } } } }`)
	if out["errors"] != nil {
		t.Fatalf("unexpected errors: %v", out["errors"])
	}
	view := out["data"].(map[string]interface{})["findRoute"].(map[string]interface{})
	if view["state"] != "ready" {
		t.Fatalf("expected ready, got %v", view["state"])
	}
	rs := view["route_set"].(map[string]interface{})
	if rs["best_index"].(float64) != 1 {
		t.Errorf("expected best_index 1, got %v", rs["best_index"])
	}
	if lines := rs["candidate_polylines"].([]interface{}); len(lines) != 2 {
		t.Errorf("expected 2 polylines, got %d", len(lines))
	}

	out = gql(t, app, `mutation { selectRoute(session_id: "`+id+`", index: 0) { route_set { selected_index } } }`)
	sel := out["data"].(map[string]interface{})["selectRoute"].(map[string]interface{})["route_set"].(map[string]interface{})
	if sel["selected_index"].(float64) != 0 {
		t.Errorf("expected selected_index 0, got %v", sel["selected_index"])
	}
}

func TestGraphQL_UnknownSession(t *testing.T) {
	app := setupApp(makeDeps(knownCities(), routesOf(3)))

	out := gql(t, app, `{ session(session_id: "nope") { state } }`)
	if out["errors"] == nil {
		t.Fatal("expected an error for an unknown session")
	}
}
