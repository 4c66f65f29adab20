package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fleet-platform/internal/audit"
	"fleet-platform/internal/auth"
	"fleet-platform/internal/config"
	"fleet-platform/internal/reporting"
	"fleet-platform/internal/workflow"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type testAPI struct {
	router *gin.Engine
	auth   *auth.Manager
	store  *workflow.MemoryStore
	audit  *audit.MemoryRepo
}

var (
	requesterID  = auth.Actor{ID: "u-req", Name: "Rosa", Role: "requester", CostCenter: "CC-NORTE"}
	otherCCID    = auth.Actor{ID: "u-req2", Name: "Luis", Role: "requester", CostCenter: "CC-SUR"}
	supervisorID = auth.Actor{ID: "u-sup", Name: "Sergio", Role: "supervisor", CostCenter: "CC-NORTE"}
	adminID      = auth.Actor{ID: "u-adm", Name: "Ana", Role: "admin"}
	providerID   = auth.Actor{ID: "prov-1", Name: "Taller Sur", Role: "provider"}
	auditorID    = auth.Actor{ID: "u-aud", Name: "Pablo", Role: "auditor"}
)

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m, err := auth.NewManager(config.AuthConfig{
		JWTSecret:       "test-secret",
		JWTIssuer:       "fleet",
		JWTAudience:     "fleet-api",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: time.Hour,
	})
	if err != nil {
		t.Fatalf("auth: %v", err)
	}
	store := workflow.NewMemoryStore()
	auditRepo := audit.NewMemoryRepo()
	auditSvc := audit.NewService(auditRepo)
	engine := workflow.NewEngine(store, workflow.Options{Ops: workflow.AuditAdapter{Audit: auditSvc}})

	h := Handlers{Engine: engine, Reports: reporting.NewService(store), Audit: auditSvc, Auth: m}
	r := gin.New()
	h.Register(r, auth.RequireAccessToken(m), true)
	return &testAPI{router: r, auth: m, store: store, audit: auditRepo}
}

func (a *testAPI) token(t *testing.T, who auth.Actor) string {
	t.Helper()
	pair, err := a.auth.IssuePair(time.Now(), who)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return pair.AccessToken
}

func (a *testAPI) do(t *testing.T, who *auth.Actor, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if who != nil {
		req.Header.Set("Authorization", "Bearer "+a.token(t, *who))
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decodeRecord(t *testing.T, w *httptest.ResponseRecorder) workflow.RequestRecord {
	t.Helper()
	var rec workflow.RequestRecord
	if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
		t.Fatalf("decode record: %v (%s)", err, w.Body.String())
	}
	return rec
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var e errorBody
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode error: %v (%s)", err, w.Body.String())
	}
	return e
}

func (a *testAPI) createRequest(t *testing.T) workflow.RequestRecord {
	t.Helper()
	w := a.do(t, &requesterID, http.MethodPost, "/v1/requests", map[string]any{
		"vehicle_plate":       "AB123CD",
		"category":            "MAINTENANCE",
		"description":         "10K service",
		"odometer_at_request": 9950,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	return decodeRecord(t, w)
}

func TestAPI_FullLifecycle(t *testing.T) {
	api := newTestAPI(t)
	rec := api.createRequest(t)
	path := "/v1/requests/" + rec.ID + "/transitions"

	steps := []struct {
		who  auth.Actor
		body map[string]any
		want workflow.Stage
	}{
		{adminID, map[string]any{"target": "ScheduleAssigned", "provider_id": providerID.ID, "provider_name": providerID.Name}, workflow.StageScheduleAssigned},
		{providerID, map[string]any{"target": "Budgeted", "budget": map[string]any{"items": []map[string]any{{"description": "Service 10K", "quantity": "1", "unit_cost": "45000", "total": "45000"}}, "total": "45000"}}, workflow.StageBudgeted},
		{auditorID, map[string]any{"target": "InShop", "audit_status": "approved"}, workflow.StageInShop},
		{adminID, map[string]any{"target": "Finished", "comment": "done"}, workflow.StageFinished},
	}
	for _, s := range steps {
		who := s.who
		w := api.do(t, &who, http.MethodPost, path, s.body)
		if w.Code != http.StatusOK {
			t.Fatalf("%s -> %s: expected 200, got %d (%s)", who.Role, s.want, w.Code, w.Body.String())
		}
		if got := decodeRecord(t, w); got.Stage != s.want {
			t.Fatalf("expected %s, got %s", s.want, got.Stage)
		}
	}

	w := api.do(t, &requesterID, http.MethodGet, "/v1/requests/"+rec.ID, nil)
	got := decodeRecord(t, w)
	if got.History.Len() != 5 || got.Budget == nil || got.Budget.Total.String() != "45000" {
		t.Fatalf("unexpected final record %+v", got)
	}
}

func TestAPI_DistinguishesUnauthorizedFromNotReady(t *testing.T) {
	api := newTestAPI(t)
	rec := api.createRequest(t)
	path := "/v1/requests/" + rec.ID + "/transitions"

	w := api.do(t, &requesterID, http.MethodPost, path, map[string]any{"target": "Finished"})
	if w.Code != http.StatusForbidden || decodeError(t, w).Error != "unauthorized" {
		t.Fatalf("expected 403 unauthorized, got %d (%s)", w.Code, w.Body.String())
	}
	if evs := api.audit.Events(); len(evs) != 1 || evs[0].Type != audit.EventTypeTransitionDenied {
		t.Fatalf("expected denial in ops log, got %+v", evs)
	}

	api.do(t, &adminID, http.MethodPost, path, map[string]any{"target": "ScheduleAssigned", "provider_id": "prov-1", "provider_name": "Taller Sur"})
	api.do(t, &providerID, http.MethodPost, path, map[string]any{"target": "Budgeted", "budget": map[string]any{"items": []map[string]any{{"description": "x", "quantity": "1", "unit_cost": "10"}}}})

	w = api.do(t, &adminID, http.MethodPost, path, map[string]any{"target": "InShop"})
	if w.Code != http.StatusUnprocessableEntity || decodeError(t, w).Error != "invalid_payload" {
		t.Fatalf("expected 422 invalid_payload, got %d (%s)", w.Code, w.Body.String())
	}
}

func TestAPI_DialogueClosed(t *testing.T) {
	api := newTestAPI(t)
	rec := api.createRequest(t)

	w := api.do(t, &supervisorID, http.MethodPost, "/v1/requests/"+rec.ID+"/dialogue", map[string]any{"open": false})
	if w.Code != http.StatusOK {
		t.Fatalf("close dialogue: %d (%s)", w.Code, w.Body.String())
	}
	w = api.do(t, &requesterID, http.MethodPost, "/v1/requests/"+rec.ID+"/messages", map[string]any{"text": "hello?"})
	if w.Code != http.StatusConflict || decodeError(t, w).Error != "dialogue_closed" {
		t.Fatalf("expected 409 dialogue_closed, got %d (%s)", w.Code, w.Body.String())
	}
}

func TestAPI_MessagesAndRead(t *testing.T) {
	api := newTestAPI(t)
	rec := api.createRequest(t)

	w := api.do(t, &requesterID, http.MethodPost, "/v1/requests/"+rec.ID+"/messages", map[string]any{"text": "any news?"})
	if got := decodeRecord(t, w); got.UnreadForAdmin != 1 {
		t.Fatalf("expected admin unread 1, got %d", got.UnreadForAdmin)
	}
	w = api.do(t, &adminID, http.MethodPost, "/v1/requests/"+rec.ID+"/read", nil)
	if got := decodeRecord(t, w); got.UnreadForAdmin != 0 || got.Messages.Len() != 1 {
		t.Fatalf("unexpected record after read %+v", got)
	}
}

func TestAPI_ExpectedVersionConflict(t *testing.T) {
	api := newTestAPI(t)
	rec := api.createRequest(t)

	stale := rec.Version - 1
	w := api.do(t, &requesterID, http.MethodPatch, "/v1/requests/"+rec.ID+"/priority", map[string]any{"priority": "URGENT", "expected_version": stale})
	if w.Code != http.StatusConflict || decodeError(t, w).Error != "conflict" {
		t.Fatalf("expected 409 conflict, got %d (%s)", w.Code, w.Body.String())
	}
	w = api.do(t, &requesterID, http.MethodPatch, "/v1/requests/"+rec.ID+"/priority", map[string]any{"priority": "URGENT", "expected_version": rec.Version})
	if w.Code != http.StatusOK || decodeRecord(t, w).Priority != workflow.PriorityUrgent {
		t.Fatalf("expected priority update, got %d (%s)", w.Code, w.Body.String())
	}
}

func TestAPI_VisibilityAndAuth(t *testing.T) {
	api := newTestAPI(t)
	rec := api.createRequest(t)

	if w := api.do(t, nil, http.MethodGet, "/v1/board", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	if w := api.do(t, &otherCCID, http.MethodGet, "/v1/requests/"+rec.ID, nil); w.Code != http.StatusNotFound {
		t.Fatalf("foreign cost center must not see the record, got %d", w.Code)
	}

	var b workflow.Board
	w := api.do(t, &supervisorID, http.MethodGet, "/v1/board", nil)
	if err := json.Unmarshal(w.Body.Bytes(), &b); err != nil {
		t.Fatalf("decode board: %v", err)
	}
	if b.Total != 1 || len(b.Columns) != 5 || len(b.Columns[0].Cards) != 1 {
		t.Fatalf("unexpected board %+v", b)
	}

	if w := api.do(t, &requesterID, http.MethodGet, "/v1/reports/summary", nil); w.Code != http.StatusForbidden {
		t.Fatalf("requester must not read reports, got %d", w.Code)
	}
	if w := api.do(t, &auditorID, http.MethodGet, "/v1/reports/summary", nil); w.Code != http.StatusOK {
		t.Fatalf("auditor reads reports, got %d (%s)", w.Code, w.Body.String())
	}
}

func TestAPI_DevToken(t *testing.T) {
	api := newTestAPI(t)
	w := api.do(t, nil, http.MethodPost, "/v1/auth/dev-token", map[string]any{"user_id": "u1", "role": "wizard"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown role, got %d", w.Code)
	}
	w = api.do(t, nil, http.MethodPost, "/v1/auth/dev-token", map[string]any{"user_id": "u1", "role": "auditor"})
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "access_token") {
		t.Fatalf("expected token pair, got %d (%s)", w.Code, w.Body.String())
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{workflow.ErrUnauthorized, 403, "unauthorized"},
		{fmt.Errorf("%w: x", workflow.ErrInvalidPayload), 422, "invalid_payload"},
		{workflow.ErrDialogueClosed, 409, "dialogue_closed"},
		{workflow.ErrConflict, 409, "conflict"},
		{workflow.ErrNotFound, 404, "not_found"},
		{workflow.ErrStoreUnavailable, 503, "store_unavailable"},
		{errors.New("boom"), 500, "internal"},
	}
	for _, c := range cases {
		status, code := classify(c.err)
		if status != c.status || code != c.code {
			t.Fatalf("%v: expected %d/%s, got %d/%s", c.err, c.status, c.code, status, code)
		}
	}
}

func TestAPI_BoardStreamPushesSnapshots(t *testing.T) {
	api := newTestAPI(t)
	api.createRequest(t)
	srv := httptest.NewServer(api.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/board/stream?access_token="+api.token(t, adminID), nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer resp.Body.Close()

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	var sawEvent bool
	for sc.Scan() {
		line := sc.Text()
		if line == "event:board" {
			sawEvent = true
			continue
		}
		if sawEvent && strings.HasPrefix(line, "data:") {
			var b workflow.Board
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data:")), &b); err != nil {
				t.Fatalf("decode board event: %v", err)
			}
			if b.Total != 1 {
				t.Fatalf("expected one record on the board, got %d", b.Total)
			}
			return
		}
	}
	t.Fatalf("no board event received: %v", sc.Err())
}

func TestAPI_LiveWebsocket(t *testing.T) {
	api := newTestAPI(t)
	rec := api.createRequest(t)
	srv := httptest.NewServer(api.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/requests/" + rec.ID + "/live?access_token=" + api.token(t, requesterID)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	var first liveMessage
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read: %v", err)
	}
	if first.Type != "record" || first.Record == nil || first.Record.Version != rec.Version {
		t.Fatalf("unexpected first message %+v", first)
	}

	if w := api.do(t, &adminID, http.MethodPost, "/v1/requests/"+rec.ID+"/messages", map[string]any{"text": "on it"}); w.Code != http.StatusOK {
		t.Fatalf("message: %d", w.Code)
	}
	var second liveMessage
	if err := conn.ReadJSON(&second); err != nil {
		t.Fatalf("read: %v", err)
	}
	if second.Record == nil || second.Record.Messages.Len() != 1 || second.Record.UnreadForRequester != 1 {
		t.Fatalf("unexpected live update %+v", second)
	}
}
