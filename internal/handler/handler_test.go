package handler

import (
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

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mmeshcher/roulette-draw/internal/events"
	"github.com/mmeshcher/roulette-draw/internal/gate"
	"github.com/mmeshcher/roulette-draw/internal/middleware"
	"github.com/mmeshcher/roulette-draw/internal/model"
	"github.com/mmeshcher/roulette-draw/internal/service"
	"github.com/mmeshcher/roulette-draw/internal/wheel"
)

type stubController struct {
	campaignsResp []model.Campaign
	campaignsErr  error

	selectErr  error
	selectedID string

	state service.State

	layoutMode    wheel.DisplayMode
	layoutSurface wheel.Surface

	drawOut       *service.Outcome
	drawErr       error
	drawConfirmed bool

	dismissErr     error
	dismissedID    string
	errorDismissed bool
}

func (s *stubController) Campaigns(ctx context.Context) ([]model.Campaign, error) {
	return s.campaignsResp, s.campaignsErr
}

func (s *stubController) SelectCampaign(ctx context.Context, id string) error {
	s.selectedID = id
	return s.selectErr
}

func (s *stubController) Snapshot() service.State {
	return s.state
}

func (s *stubController) Layout(mode wheel.DisplayMode, surface wheel.Surface) wheel.Layout {
	s.layoutMode = mode
	s.layoutSurface = surface
	return wheel.Build(nil, mode, surface)
}

func (s *stubController) StartDraw(ctx context.Context, confirmed bool) (*service.Outcome, error) {
	s.drawConfirmed = confirmed
	return s.drawOut, s.drawErr
}

func (s *stubController) Dismiss(id string) error {
	s.dismissedID = id
	return s.dismissErr
}

func (s *stubController) DismissError() {
	s.errorDismissed = true
}

func newTestHandler(t *testing.T, ctrl Controller, hub Subscriber) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	if hub == nil {
		hub = events.NewBroadcaster()
	}

	auth := middleware.NewAuthMiddleware("test-secret")

	return NewHandler(ctrl, hub, logger, auth, "operator-key")
}

// authorize добавляет к запросу cookie оператора.
func authorize(t *testing.T, h *Handler, req *http.Request) {
	t.Helper()

	rec := httptest.NewRecorder()
	h.authMiddleware.SetAuthCookie(rec, "ana")
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatalf("no auth cookie set")
	}
	req.AddCookie(cookies[0])
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCookie bool
	}{
		{name: "valid key", body: `{"operator":"ana","key":"operator-key"}`, wantStatus: http.StatusOK, wantCookie: true},
		{name: "wrong key", body: `{"operator":"ana","key":"nope"}`, wantStatus: http.StatusUnauthorized},
		{name: "missing operator", body: `{"operator":"  ","key":"operator-key"}`, wantStatus: http.StatusBadRequest},
		{name: "malformed json", body: `{"operator":`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, &stubController{}, nil)

			req := httptest.NewRequest(http.MethodPost, "/api/operator/login", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			h.Login(rec, req)

			res := rec.Result()
			if res.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", res.StatusCode, tt.wantStatus)
			}
			if got := len(res.Cookies()) > 0; got != tt.wantCookie {
				t.Fatalf("cookie set = %v, want %v", got, tt.wantCookie)
			}
		})
	}
}

func TestLogin_OpenWhenKeyEmpty(t *testing.T) {
	h := newTestHandler(t, &stubController{}, nil)
	h.operatorKey = ""

	req := httptest.NewRequest(http.MethodPost, "/api/operator/login", strings.NewReader(`{"operator":"ana"}`))
	rec := httptest.NewRecorder()

	h.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRouter_RequiresAuth(t *testing.T) {
	h := newTestHandler(t, &stubController{}, nil)
	router := h.SetupRouter()

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/campaigns"},
		{http.MethodGet, "/api/roulette/state"},
		{http.MethodPost, "/api/roulette/draw"},
		{http.MethodGet, "/api/roulette/stream"},
	}

	for _, p := range paths {
		req := httptest.NewRequest(p.method, p.path, nil)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: status = %d, want %d", p.method, p.path, rec.Code, http.StatusUnauthorized)
		}
	}
}

func TestRouter_NotFound(t *testing.T) {
	h := newTestHandler(t, &stubController{}, nil)
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/unknown", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestGetCampaigns(t *testing.T) {
	ctrl := &stubController{
		campaignsResp: []model.Campaign{{ID: "c1", Name: "Spring"}},
	}
	h := newTestHandler(t, ctrl, nil)
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/campaigns", nil)
	authorize(t, h, req)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if ct := res.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type = %q, want application/json", ct)
	}

	var got []model.Campaign
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].ID != "c1" {
		t.Fatalf("campaigns = %+v", got)
	}
}

func TestGetCampaigns_ServiceError(t *testing.T) {
	ctrl := &stubController{campaignsErr: errors.New("connection refused")}
	h := newTestHandler(t, ctrl, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/campaigns", nil)
	rec := httptest.NewRecorder()

	h.GetCampaigns(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}
}

func TestSelectCampaign(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "ok", wantStatus: http.StatusOK},
		{name: "invalid id", err: service.ErrInvalidCampaignID, wantStatus: http.StatusBadRequest},
		{name: "fetch failure", err: fmt.Errorf("fetch campaign detail: %w", errors.New("timeout")), wantStatus: http.StatusBadGateway},
		{name: "closed", err: service.ErrClosed, wantStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := &stubController{selectErr: tt.err}
			h := newTestHandler(t, ctrl, nil)

			req := httptest.NewRequest(http.MethodPost, "/api/roulette/select", strings.NewReader(`{"campaignId":"c-1"}`))
			rec := httptest.NewRecorder()

			h.SelectCampaign(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if ctrl.selectedID != "c-1" {
				t.Fatalf("selected id = %q, want c-1", ctrl.selectedID)
			}
		})
	}
}

func TestGetLayout(t *testing.T) {
	ctrl := &stubController{}
	h := newTestHandler(t, ctrl, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/roulette/layout?mode=focus&width=1024&height=768", nil)
	rec := httptest.NewRecorder()

	h.GetLayout(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ctrl.layoutMode != wheel.ModeFocus {
		t.Fatalf("mode = %q, want %q", ctrl.layoutMode, wheel.ModeFocus)
	}
	if ctrl.layoutSurface != (wheel.Surface{Width: 1024, Height: 768}) {
		t.Fatalf("surface = %+v", ctrl.layoutSurface)
	}
}

func TestGetLayout_Defaults(t *testing.T) {
	ctrl := &stubController{}
	h := newTestHandler(t, ctrl, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/roulette/layout", nil)
	rec := httptest.NewRecorder()

	h.GetLayout(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ctrl.layoutMode != wheel.ModePage {
		t.Fatalf("mode = %q, want %q", ctrl.layoutMode, wheel.ModePage)
	}
	if ctrl.layoutSurface != (wheel.Surface{Width: defaultSurfaceWidth, Height: defaultSurfaceHeight}) {
		t.Fatalf("surface = %+v", ctrl.layoutSurface)
	}
}

func TestGetLayout_BadSize(t *testing.T) {
	for _, q := range []string{"width=abc", "height=-1", "width=1e9"} {
		h := newTestHandler(t, &stubController{}, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/roulette/layout?"+q, nil)
		rec := httptest.NewRecorder()

		h.GetLayout(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want %d", q, rec.Code, http.StatusBadRequest)
		}
	}
}

func TestDraw_Accepted(t *testing.T) {
	ctrl := &stubController{
		drawOut: &service.Outcome{
			CampaignID:  "c1",
			Participant: model.Participant{ID: "p2", Name: "Bea"},
			WinnerIndex: 1,
			Matched:     true,
			Heading:     2340,
		},
	}
	h := newTestHandler(t, ctrl, nil)
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/roulette/draw", bytes.NewReader([]byte(`{"confirm":true}`)))
	authorize(t, h, req)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusAccepted)
	}
	if !ctrl.drawConfirmed {
		t.Fatalf("confirm flag not passed to controller")
	}

	var got map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["campaignId"] != "c1" || got["heading"] != float64(2340) {
		t.Fatalf("response = %+v", got)
	}
	for _, key := range []string{"participant", "winnerIndex", "prize", "matched"} {
		if _, ok := got[key]; ok {
			t.Fatalf("winner field %q must only arrive with the reveal event", key)
		}
	}
}

func TestDraw_EmptyBody(t *testing.T) {
	ctrl := &stubController{drawOut: &service.Outcome{CampaignID: "c1"}}
	h := newTestHandler(t, ctrl, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/roulette/draw", nil)
	rec := httptest.NewRecorder()

	h.Draw(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusAccepted)
	}
	if ctrl.drawConfirmed {
		t.Fatalf("confirm must default to false")
	}
}

func TestDraw_ErrorMapping(t *testing.T) {
	blocked := gate.Decision{Evaluation: gate.Evaluation{Phase: gate.PhaseWaiting, Message: "participation opens in 3h"}, Reason: "waiting for participation window"}
	future := gate.Decision{Evaluation: gate.Evaluation{Phase: gate.PhaseScheduledFuture, Message: "draw scheduled in 2d 3h"}, Permitted: true, NeedsConfirmation: true}

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantGate   bool
	}{
		{name: "in progress", err: service.ErrDrawInProgress, wantStatus: http.StatusConflict},
		{name: "campaign changed", err: service.ErrCampaignChanged, wantStatus: http.StatusConflict},
		{name: "no campaign", err: service.ErrNoCampaign, wantStatus: http.StatusUnprocessableEntity},
		{name: "no participants", err: service.ErrNoParticipants, wantStatus: http.StatusUnprocessableEntity},
		{name: "gate blocked", err: &service.GateError{Decision: blocked}, wantStatus: http.StatusUnprocessableEntity, wantGate: true},
		{name: "needs confirmation", err: &service.ConfirmationRequiredError{Decision: future}, wantStatus: http.StatusPreconditionRequired, wantGate: true},
		{name: "service failure", err: fmt.Errorf("%w: %w", service.ErrDrawFailed, errors.New("EOF")), wantStatus: http.StatusBadGateway},
		{name: "service rejected", err: fmt.Errorf("%w: %s", service.ErrDrawRejected, "no stock"), wantStatus: http.StatusBadGateway},
		{name: "closed", err: service.ErrClosed, wantStatus: http.StatusServiceUnavailable},
		{name: "unexpected", err: errors.New("boom"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, &stubController{drawErr: tt.err}, nil)

			req := httptest.NewRequest(http.MethodPost, "/api/roulette/draw", strings.NewReader(`{}`))
			rec := httptest.NewRecorder()

			h.Draw(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if !tt.wantGate {
				return
			}

			var body struct {
				Message string          `json:"message"`
				Gate    json.RawMessage `json:"gate"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Message == "" || len(body.Gate) == 0 {
				t.Fatalf("gate body = %+v", body)
			}
		})
	}
}

func TestDismissReveal(t *testing.T) {
	ctrl := &stubController{}
	h := newTestHandler(t, ctrl, nil)
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/roulette/reveal/r-42/dismiss", nil)
	authorize(t, h, req)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if ctrl.dismissedID != "r-42" {
		t.Fatalf("dismissed id = %q, want r-42", ctrl.dismissedID)
	}
}

func TestDismissReveal_NotPending(t *testing.T) {
	ctrl := &stubController{dismissErr: service.ErrNoPendingReveal}
	h := newTestHandler(t, ctrl, nil)
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/roulette/reveal/stale/dismiss", nil)
	authorize(t, h, req)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestDismissError(t *testing.T) {
	ctrl := &stubController{}
	h := newTestHandler(t, ctrl, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/roulette/error/dismiss", nil)
	rec := httptest.NewRecorder()

	h.DismissError(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if !ctrl.errorDismissed {
		t.Fatalf("controller error not dismissed")
	}
}

func TestStream(t *testing.T) {
	hub := events.NewBroadcaster()
	ctrl := &stubController{state: service.State{Executing: true}}
	h := newTestHandler(t, ctrl, hub)

	srv := httptest.NewServer(http.HandlerFunc(h.Stream))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first struct {
		Type    string        `json:"type"`
		Payload service.State `json:"payload"`
	}
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read initial state: %v", err)
	}
	if first.Type != model.EventState || !first.Payload.Executing {
		t.Fatalf("initial event = %+v", first)
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("stream did not subscribe")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.Publish(model.Event{Type: model.EventError, Payload: "draw failed"})

	var next struct {
		Type    string `json:"type"`
		Payload string `json:"payload"`
	}
	if err := conn.ReadJSON(&next); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if next.Type != model.EventError || next.Payload != "draw failed" {
		t.Fatalf("event = %+v", next)
	}

	hub.Close()

	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Fatalf("expected going-away close, got %v", err)
	}
}
