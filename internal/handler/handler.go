// Package handler содержит HTTP-обработчики API пульта розыгрыша.
package handler

import (
	"context"
	"crypto/hmac"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/roulette-draw/internal/middleware"
	"github.com/mmeshcher/roulette-draw/internal/model"
	"github.com/mmeshcher/roulette-draw/internal/service"
	"github.com/mmeshcher/roulette-draw/internal/wheel"
)

// Controller определяет контракт пульта розыгрыша, используемый HTTP-обработчиками.
type Controller interface {
	Campaigns(ctx context.Context) ([]model.Campaign, error)
	SelectCampaign(ctx context.Context, id string) error
	Snapshot() service.State
	Layout(mode wheel.DisplayMode, surface wheel.Surface) wheel.Layout
	StartDraw(ctx context.Context, confirmed bool) (*service.Outcome, error)
	Dismiss(id string) error
	DismissError()
}

// Subscriber выдаёт каналы событий для потока.
type Subscriber interface {
	Subscribe() chan model.Event
	Unsubscribe(ch chan model.Event)
}

// Handler реализует HTTP-обработчики API пульта розыгрыша.
type Handler struct {
	ctrl           Controller
	hub            Subscriber
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	operatorKey    string
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
// Пустой operatorKey разрешает вход любому оператору.
func NewHandler(ctrl Controller, hub Subscriber, logger *zap.Logger, auth *middleware.AuthMiddleware, operatorKey string) *Handler {
	return &Handler{
		ctrl:           ctrl,
		hub:            hub,
		logger:         logger,
		authMiddleware: auth,
		operatorKey:    operatorKey,
	}
}

const maxBodySize = 1 << 16

type errorResponse struct {
	Message string `json:"message"`
	Gate    any    `json:"gate,omitempty"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("encode response", zap.Error(err))
	}
}

// decodeBody разбирает необязательное JSON-тело запроса.
func decodeBody(r *http.Request, dst any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

type loginRequest struct {
	Operator string `json:"operator"`
	Key      string `json:"key"`
}

// Login проверяет ключ оператора и устанавливает cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	req.Operator = strings.TrimSpace(req.Operator)
	if req.Operator == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if h.operatorKey != "" && !hmac.Equal([]byte(req.Key), []byte(h.operatorKey)) {
		h.logger.Warn("operator login rejected", zap.String("operator", req.Operator))
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	h.authMiddleware.SetAuthCookie(w, req.Operator)
	w.WriteHeader(http.StatusOK)
}

// GetCampaigns возвращает список кампаний.
func (h *Handler) GetCampaigns(w http.ResponseWriter, r *http.Request) {
	list, err := h.ctrl.Campaigns(r.Context())
	if err != nil {
		h.logger.Error("get campaigns error", zap.Error(err))
		h.writeJSON(w, http.StatusBadGateway, errorResponse{Message: "campaign service unavailable"})
		return
	}

	if list == nil {
		list = []model.Campaign{}
	}
	h.writeJSON(w, http.StatusOK, list)
}

type selectRequest struct {
	CampaignID string `json:"campaignId"`
}

// SelectCampaign делает кампанию текущей.
func (h *Handler) SelectCampaign(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	err := h.ctrl.SelectCampaign(r.Context(), req.CampaignID)
	switch {
	case err == nil:
		op, _ := middleware.GetOperatorFromContext(r.Context())
		h.logger.Info("campaign selected by operator", zap.String("operator", op), zap.String("campaign", req.CampaignID))
		h.writeJSON(w, http.StatusOK, h.ctrl.Snapshot())
	case errors.Is(err, service.ErrInvalidCampaignID):
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Message: err.Error()})
	case errors.Is(err, service.ErrClosed):
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
	default:
		h.logger.Error("select campaign error", zap.Error(err), zap.String("campaign", req.CampaignID))
		h.writeJSON(w, http.StatusBadGateway, errorResponse{Message: "failed to load campaign"})
	}
}

// GetState возвращает снимок состояния пульта.
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.ctrl.Snapshot())
}

const (
	defaultSurfaceWidth  = 800
	defaultSurfaceHeight = 600
	maxSurfaceSide       = 10000
)

func parseSide(v string, def float64) (float64, bool) {
	if v == "" {
		return def, true
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 || f > maxSurfaceSide {
		return 0, false
	}
	return f, true
}

// GetLayout возвращает раскладку колеса для текущих участников.
func (h *Handler) GetLayout(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	width, okW := parseSide(q.Get("width"), defaultSurfaceWidth)
	height, okH := parseSide(q.Get("height"), defaultSurfaceHeight)
	if !okW || !okH {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	layout := h.ctrl.Layout(wheel.ParseDisplayMode(q.Get("mode")), wheel.Surface{Width: width, Height: height})
	h.writeJSON(w, http.StatusOK, layout)
}

type drawRequest struct {
	Confirm bool `json:"confirm"`
}

// drawStartedResponse содержит только данные для анимации. Победитель приходит событием reveal.
type drawStartedResponse struct {
	CampaignID  string  `json:"campaignId"`
	FromHeading float64 `json:"fromHeading"`
	Heading     float64 `json:"heading"`
}

// Draw запускает розыгрыш. Победитель показывается через поток событий.
func (h *Handler) Draw(w http.ResponseWriter, r *http.Request) {
	var req drawRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	out, err := h.ctrl.StartDraw(r.Context(), req.Confirm)
	if err == nil {
		op, _ := middleware.GetOperatorFromContext(r.Context())
		h.logger.Info("draw started by operator",
			zap.String("operator", op),
			zap.String("campaign", out.CampaignID),
			zap.Bool("confirmed", req.Confirm),
		)
		h.writeJSON(w, http.StatusAccepted, drawStartedResponse{
			CampaignID:  out.CampaignID,
			FromHeading: out.FromHeading,
			Heading:     out.Heading,
		})
		return
	}

	var (
		gateErr    *service.GateError
		confirmErr *service.ConfirmationRequiredError
	)
	switch {
	case errors.As(err, &confirmErr):
		h.writeJSON(w, http.StatusPreconditionRequired, errorResponse{Message: confirmErr.Decision.Message, Gate: confirmErr.Decision})
	case errors.As(err, &gateErr):
		h.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Message: gateErr.Decision.Reason, Gate: gateErr.Decision})
	case errors.Is(err, service.ErrNoCampaign), errors.Is(err, service.ErrNoParticipants):
		h.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Message: err.Error()})
	case errors.Is(err, service.ErrDrawInProgress), errors.Is(err, service.ErrCampaignChanged):
		h.writeJSON(w, http.StatusConflict, errorResponse{Message: err.Error()})
	case errors.Is(err, service.ErrDrawFailed), errors.Is(err, service.ErrDrawRejected):
		h.writeJSON(w, http.StatusBadGateway, errorResponse{Message: err.Error()})
	case errors.Is(err, service.ErrClosed):
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
	default:
		h.logger.Error("draw error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// DismissReveal закрывает показ победителя.
func (h *Handler) DismissReveal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.ctrl.Dismiss(id); err != nil {
		if errors.Is(err, service.ErrNoPendingReveal) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("dismiss reveal error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DismissError сбрасывает сообщение об ошибке розыгрыша.
func (h *Handler) DismissError(w http.ResponseWriter, r *http.Request) {
	h.ctrl.DismissError()
	w.WriteHeader(http.StatusNoContent)
}
