// Package service реализует пульт розыгрыша: выбор кампании, проведение розыгрыша,
// показ победителя и синхронизацию с сервисом кампаний.
package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/roulette-draw/internal/gate"
	"github.com/mmeshcher/roulette-draw/internal/ledger"
	"github.com/mmeshcher/roulette-draw/internal/model"
	"github.com/mmeshcher/roulette-draw/internal/repository"
	"github.com/mmeshcher/roulette-draw/internal/validation"
	"github.com/mmeshcher/roulette-draw/internal/wheel"
)

// DrawService описывает внешний сервис кампаний и розыгрышей.
type DrawService interface {
	DrawOnce(ctx context.Context, campaignID string) (*model.DrawResult, error)
	FetchCampaignList(ctx context.Context) ([]model.Campaign, error)
	FetchCampaignDetail(ctx context.Context, id string) (*model.CampaignDetail, error)
	FetchPrizes(ctx context.Context, id string) ([]ledger.RawPrize, error)
}

// SelectionStore хранит последнюю выбранную кампанию.
type SelectionStore interface {
	GetSelectedCampaign(ctx context.Context) (string, error)
	SetSelectedCampaign(ctx context.Context, id string) error
	ClearSelectedCampaign(ctx context.Context) error
	Close() error
}

// Spinner анимирует колесо от текущего угла к целевому.
type Spinner interface {
	Start(from, target float64, onDone func()) float64
	Cancel()
	Animating() bool
}

// Publisher рассылает события интерфейсу оператора.
type Publisher interface {
	Publish(e model.Event)
}

// Options задаёт параметры пульта. Нулевые SettleDelay и StateInterval заменяются значениями
// по умолчанию, отрицательные отключают паузу и периодическую рассылку состояния.
type Options struct {
	PointerSide      wheel.PointerSide
	SettleDelay      time.Duration
	ConfirmThreshold time.Duration
	StateInterval    time.Duration
	Now              func() time.Time
	Intn             func(int) int
}

const (
	// DefaultSettleDelay задаёт паузу после закрытия показа победителя перед синхронизацией.
	DefaultSettleDelay = 800 * time.Millisecond
	// DefaultStateInterval задаёт период рассылки состояния, пока у окна кампании идёт отсчёт.
	DefaultStateInterval = time.Second
)

const resyncTimeout = 10 * time.Second

// Controller является единственным владельцем состояния колеса, списка призов и показа победителя.
type Controller struct {
	svc     DrawService
	store   SelectionStore
	spinner Spinner
	pub     Publisher
	ledger  *ledger.Ledger
	logger  *zap.Logger
	opts    Options

	mu        sync.Mutex
	campaigns []model.Campaign
	selected  *model.CampaignDetail
	prizes    []model.Prize
	heading   float64
	executing bool
	run       *drawRun
	reveal    *model.PendingWinnerReveal
	dismiss   chan struct{}
	lastError string
	selectGen uint64
	closed    bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewController создаёт пульт розыгрыша.
func NewController(svc DrawService, store SelectionStore, spinner Spinner, pub Publisher, logger *zap.Logger, opts Options) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.PointerSide == "" {
		opts.PointerSide = wheel.PointerRight
	}
	switch {
	case opts.SettleDelay == 0:
		opts.SettleDelay = DefaultSettleDelay
	case opts.SettleDelay < 0:
		opts.SettleDelay = 0
	}
	if opts.StateInterval == 0 {
		opts.StateInterval = DefaultStateInterval
	}
	if opts.ConfirmThreshold <= 0 {
		opts.ConfirmThreshold = gate.DefaultConfirmThreshold
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Intn == nil {
		opts.Intn = rand.IntN
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		svc:     svc,
		store:   store,
		spinner: spinner,
		pub:     pub,
		ledger:  ledger.New(),
		logger:  logger,
		opts:    opts,
		ctx:     ctx,
		cancel:  cancel,
	}

	if opts.StateInterval > 0 {
		c.wg.Add(1)
		go c.watchGate(opts.StateInterval)
	}

	return c
}

// watchGate периодически рассылает состояние, пока фаза окна зависит от времени,
// чтобы интерфейс видел актуальный отсчёт и смену фазы.
func (c *Controller) watchGate(interval time.Duration) {
	defer c.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if c.gateCountingDown() {
				c.publishState()
			}
		}
	}
}

func (c *Controller) gateCountingDown() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.selected == nil {
		return false
	}
	switch gate.Evaluate(c.selected.Window, c.opts.Now()).Phase {
	case gate.PhaseWaiting, gate.PhaseScheduledFuture, gate.PhaseActive:
		return true
	default:
		return false
	}
}

// Close останавливает анимацию, снимает все ожидания и закрывает хранилище выбора.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.cancel()
	c.spinner.Cancel()
	c.mu.Unlock()

	c.wg.Wait()

	if c.store != nil {
		return c.store.Close()
	}
	return nil
}

// Restore восстанавливает сохранённый выбор кампании. Если кампания больше не существует,
// сохранённый выбор удаляется.
func (c *Controller) Restore(ctx context.Context) error {
	list, err := c.RefreshCampaigns(ctx)
	if err != nil {
		return err
	}

	id, err := c.store.GetSelectedCampaign(ctx)
	if errors.Is(err, repository.ErrSelectionNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get selected campaign: %w", err)
	}

	if !containsCampaign(list, id) {
		c.logger.Info("stored campaign no longer listed, clearing selection", zap.String("campaign", id))
		if err := c.store.ClearSelectedCampaign(ctx); err != nil {
			return fmt.Errorf("clear selected campaign: %w", err)
		}
		return nil
	}

	return c.SelectCampaign(ctx, id)
}

// RefreshCampaigns перезагружает список кампаний из сервиса.
func (c *Controller) RefreshCampaigns(ctx context.Context) ([]model.Campaign, error) {
	list, err := c.svc.FetchCampaignList(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch campaign list: %w", err)
	}

	c.mu.Lock()
	c.campaigns = list
	c.mu.Unlock()

	return list, nil
}

// Campaigns возвращает кэшированный список кампаний, загружая его при первом обращении.
func (c *Controller) Campaigns(ctx context.Context) ([]model.Campaign, error) {
	c.mu.Lock()
	list := c.campaigns
	c.mu.Unlock()

	if list != nil {
		return list, nil
	}
	return c.RefreshCampaigns(ctx)
}

// SelectCampaign загружает кампанию и её призы и делает её текущей. Смена кампании
// прерывает текущий розыгрыш: ожидающий показ победителя снимается без подтверждения.
func (c *Controller) SelectCampaign(ctx context.Context, id string) error {
	if !validation.IsValidCampaignID(id) {
		return ErrInvalidCampaignID
	}

	c.leaveCampaign(id)

	var (
		detail *model.CampaignDetail
		raws   []ledger.RawPrize
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := c.svc.FetchCampaignDetail(gctx, id)
		if err != nil {
			return fmt.Errorf("fetch campaign detail: %w", err)
		}
		detail = d
		return nil
	})
	g.Go(func() error {
		r, err := c.svc.FetchPrizes(gctx, id)
		if err != nil {
			return fmt.Errorf("fetch prizes: %w", err)
		}
		raws = r
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}

	switched := c.selected == nil || c.selected.ID != id
	var dismissed *model.PendingWinnerReveal
	if switched {
		c.selectGen++
		dismissed = c.abortRunLocked()
		c.ledger.Reset()
	}
	c.selected = detail
	c.prizes = c.ledger.Load(raws)
	c.mu.Unlock()

	if dismissed != nil {
		c.pub.Publish(model.Event{Type: model.EventRevealDismissed, Payload: dismissed})
	}

	if err := c.store.SetSelectedCampaign(ctx, id); err != nil {
		c.logger.Warn("persist selected campaign", zap.String("campaign", id), zap.Error(err))
	}

	c.logger.Info("campaign selected",
		zap.String("campaign", id),
		zap.Int("participants", len(detail.Participants)),
		zap.Int("prizes", len(raws)),
	)
	c.publishState()
	return nil
}

// leaveCampaign сразу снимает показ победителя и прерывает розыгрыш, если выбирается другая кампания.
// Текущая кампания остаётся выбранной до успешной загрузки новой.
func (c *Controller) leaveCampaign(id string) {
	c.mu.Lock()
	if c.closed || c.selected == nil || c.selected.ID == id {
		c.mu.Unlock()
		return
	}
	busy := c.executing || c.run != nil || c.reveal != nil
	c.selectGen++
	dismissed := c.abortRunLocked()
	c.mu.Unlock()

	if dismissed != nil {
		c.pub.Publish(model.Event{Type: model.EventRevealDismissed, Payload: dismissed})
	}
	if busy {
		c.publishState()
	}
}

// abortRunLocked прерывает текущий розыгрыш и снимает показ победителя.
func (c *Controller) abortRunLocked() *model.PendingWinnerReveal {
	if c.run != nil {
		c.run.abortOnce.Do(func() { close(c.run.abort) })
		c.spinner.Cancel()
	}

	dismissed := c.reveal
	c.reveal = nil
	c.dismiss = nil
	return dismissed
}

// Dismiss закрывает показ победителя с идентификатором id и разблокирует розыгрыш.
func (c *Controller) Dismiss(id string) error {
	c.mu.Lock()
	if c.reveal == nil || c.reveal.ID != id {
		c.mu.Unlock()
		return ErrNoPendingReveal
	}
	reveal := c.reveal
	close(c.dismiss)
	c.reveal = nil
	c.dismiss = nil
	c.mu.Unlock()

	c.pub.Publish(model.Event{Type: model.EventRevealDismissed, Payload: reveal})
	return nil
}

// DismissError сбрасывает сообщение об ошибке розыгрыша.
func (c *Controller) DismissError() {
	c.mu.Lock()
	c.lastError = ""
	c.mu.Unlock()

	c.publishState()
}

// PrizeView содержит приз вместе с производным состоянием остатка.
type PrizeView struct {
	model.Prize
	Stock ledger.State `json:"stock"`
}

// State содержит снимок состояния пульта для интерфейса оператора.
type State struct {
	Campaign       *model.Campaign            `json:"campaign,omitempty"`
	Participants   []model.Participant        `json:"participants"`
	Prizes         []PrizeView                `json:"prizes"`
	AvailableStock int                        `json:"availableStock"`
	Gate           *gate.Decision             `json:"gate,omitempty"`
	Spin           model.SpinState            `json:"spin"`
	Executing      bool                       `json:"executing"`
	Reveal         *model.PendingWinnerReveal `json:"reveal,omitempty"`
	Error          string                     `json:"error,omitempty"`
}

// Snapshot возвращает текущее состояние пульта.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := State{
		Participants: []model.Participant{},
		Prizes:       make([]PrizeView, 0, len(c.prizes)),
		Spin: model.SpinState{
			CurrentHeadingDegrees: c.heading,
			IsAnimating:           c.spinner.Animating(),
		},
		Executing: c.executing,
		Reveal:    c.reveal,
		Error:     c.lastError,
	}

	for _, p := range c.prizes {
		s.Prizes = append(s.Prizes, PrizeView{Prize: p, Stock: ledger.DeriveState(p)})
	}
	s.AvailableStock = ledger.AvailableUnits(c.prizes)

	if c.selected != nil {
		campaign := c.selected.Campaign
		s.Campaign = &campaign
		s.Participants = c.selected.Participants
		d := gate.Check(campaign, s.AvailableStock, c.opts.Now(), c.opts.ConfirmThreshold)
		s.Gate = &d
	}

	return s
}

// Layout раскладывает участников текущей кампании по колесу.
func (c *Controller) Layout(mode wheel.DisplayMode, surface wheel.Surface) wheel.Layout {
	c.mu.Lock()
	var participants []model.Participant
	if c.selected != nil {
		participants = c.selected.Participants
	}
	c.mu.Unlock()

	return wheel.Build(participants, mode, surface)
}

func (c *Controller) publishState() {
	c.pub.Publish(model.Event{Type: model.EventState, Payload: c.Snapshot()})
}

func containsCampaign(list []model.Campaign, id string) bool {
	for _, c := range list {
		if c.ID == id {
			return true
		}
	}
	return false
}
