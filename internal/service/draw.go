package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/roulette-draw/internal/gate"
	"github.com/mmeshcher/roulette-draw/internal/ledger"
	"github.com/mmeshcher/roulette-draw/internal/model"
	"github.com/mmeshcher/roulette-draw/internal/validation"
	"github.com/mmeshcher/roulette-draw/internal/wheel"
)

// Outcome описывает запущенный розыгрыш.
type Outcome struct {
	CampaignID  string            `json:"campaignId"`
	Participant model.Participant `json:"participant"`
	WinnerIndex int               `json:"winnerIndex"`
	Matched     bool              `json:"matched"`
	Prize       *model.Prize      `json:"prize,omitempty"`
	FromHeading float64           `json:"fromHeading"`
	Heading     float64           `json:"heading"`

	run *drawRun
}

// Done закрывается, когда розыгрыш полностью завершён: показ закрыт и данные синхронизированы.
func (o *Outcome) Done() <-chan struct{} {
	return o.run.finished
}

type drawRun struct {
	campaignID  string
	gen         uint64
	participant model.Participant
	prize       *model.Prize
	spinDone    chan struct{}
	abort       chan struct{}
	abortOnce   sync.Once
	finished    chan struct{}
}

// ExecuteSingleDraw проводит один розыгрыш целиком: вызов сервиса, анимацию, показ победителя,
// ожидание подтверждения оператора и синхронизацию. Если ctx отменён раньше, розыгрыш
// продолжается в фоне, а метод возвращает ошибку контекста.
func (c *Controller) ExecuteSingleDraw(ctx context.Context, confirmed bool) (*Outcome, error) {
	out, err := c.StartDraw(ctx, confirmed)
	if err != nil {
		return nil, err
	}

	select {
	case <-out.Done():
		return out, nil
	case <-ctx.Done():
		return out, ctx.Err()
	}
}

// StartDraw проверяет условия, вызывает сервис розыгрыша и запускает анимацию.
// Показ победителя и синхронизация выполняются в фоне.
func (c *Controller) StartDraw(ctx context.Context, confirmed bool) (*Outcome, error) {
	campaign, participants, gen, err := c.acquire(confirmed)
	if err != nil {
		return nil, err
	}
	c.publishState()

	res, err := c.svc.DrawOnce(ctx, campaign)
	if err == nil {
		err = validation.CheckDrawResult(*res)
	}
	switch {
	case err != nil:
		return nil, c.fail(campaign, fmt.Errorf("%w: %w", ErrDrawFailed, err))
	case !res.Success:
		msg := res.Message
		if msg == "" {
			msg = "draw was not successful"
		}
		return nil, c.fail(campaign, fmt.Errorf("%w: %s", ErrDrawRejected, msg))
	}

	out, err := c.apply(campaign, participants, gen, res)
	if err != nil {
		c.publishState()
		return nil, err
	}

	c.logger.Info("draw started",
		zap.String("campaign", campaign),
		zap.String("winner", out.Participant.Name),
		zap.Int("winner_index", out.WinnerIndex),
		zap.Float64("heading", out.Heading),
	)
	c.publishState()

	go func() {
		defer c.wg.Done()
		c.finish(out.run)
	}()

	return out, nil
}

// acquire проверяет условия розыгрыша и помечает пульт занятым.
func (c *Controller) acquire(confirmed bool) (string, []model.Participant, uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return "", nil, 0, ErrClosed
	}
	if c.selected == nil {
		return "", nil, 0, ErrNoCampaign
	}
	if c.executing || c.spinner.Animating() {
		return "", nil, 0, ErrDrawInProgress
	}
	if len(c.selected.Participants) == 0 {
		return "", nil, 0, ErrNoParticipants
	}

	d := gate.Check(c.selected.Campaign, ledger.AvailableUnits(c.prizes), c.opts.Now(), c.opts.ConfirmThreshold)
	if !d.Permitted {
		return "", nil, 0, &GateError{Decision: d}
	}
	if d.NeedsConfirmation && !confirmed {
		return "", nil, 0, &ConfirmationRequiredError{Decision: d}
	}

	c.executing = true
	c.lastError = ""
	return c.selected.ID, c.selected.Participants, c.selectGen, nil
}

// fail показывает ошибку сервиса и освобождает пульт без изменения состояния.
func (c *Controller) fail(campaign string, err error) error {
	c.mu.Lock()
	c.executing = false
	c.lastError = err.Error()
	c.mu.Unlock()

	c.logger.Error("draw failed", zap.String("campaign", campaign), zap.Error(err))
	c.pub.Publish(model.Event{Type: model.EventError, Payload: err.Error()})
	c.publishState()
	return err
}

// apply применяет успешный результат: угол, списание приза и запуск анимации.
func (c *Controller) apply(campaign string, participants []model.Participant, gen uint64, res *model.DrawResult) (*Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.selectGen != gen {
		c.executing = false
		return nil, ErrCampaignChanged
	}

	idx, matched := wheel.ResolveWinnerIndex(participants, res.Winner, c.opts.Intn)
	if !matched {
		c.logger.Warn("winner not matched, falling back to random segment",
			zap.String("campaign", campaign),
			zap.String("winner_id", res.Winner.ID),
			zap.String("winner_name", res.Winner.Name),
			zap.Intp("winner_ordinal", res.Winner.OrdinalNumber),
			zap.Int("index", idx),
		)
	}

	target := wheel.HeadingForWinner(idx, len(participants), c.opts.PointerSide)
	if res.Angle != nil && *res.Angle != 0 {
		target = *res.Angle
	}
	revolutions := wheel.DefaultRevolutions
	if res.TotalSpins != nil {
		revolutions = *res.TotalSpins
	}
	from := c.heading
	final := wheel.FinalRotation(from, revolutions, wheel.ResolveRotationDelta(from, target))

	// Приз без идентификатора показывается, но остаток не списывается.
	prize := mergePrize(res.Prize, c.prizes)
	if res.Prize != nil && res.Prize.ID != "" {
		c.prizes = ledger.ApplyDrawResult(res.Prize.ID, c.prizes)
	}

	run := &drawRun{
		campaignID:  campaign,
		gen:         gen,
		participant: participants[idx],
		prize:       prize,
		spinDone:    make(chan struct{}),
		abort:       make(chan struct{}),
		finished:    make(chan struct{}),
	}
	c.run = run
	c.heading = c.spinner.Start(from, final, func() { close(run.spinDone) })
	// Горутина finish запускается в StartDraw, но учитывается здесь, пока Close не может начать ожидание.
	c.wg.Add(1)

	return &Outcome{
		CampaignID:  campaign,
		Participant: run.participant,
		WinnerIndex: idx,
		Matched:     matched,
		Prize:       prize,
		FromHeading: from,
		Heading:     c.heading,
		run:         run,
	}, nil
}

// mergePrize дополняет данные приза из ответа сервиса локальной записью.
func mergePrize(p *model.PrizePayload, local []model.Prize) *model.Prize {
	if p == nil {
		return nil
	}

	var (
		merged model.Prize
		ok     bool
	)
	if p.ID != "" {
		merged, ok = ledger.Find(local, p.ID)
	}
	if !ok {
		merged = model.Prize{ID: p.ID}
	}
	if p.Name != "" {
		merged.Name = p.Name
	}
	if p.Description != "" {
		merged.Description = p.Description
	}
	if p.ImageRef != "" {
		merged.ImageRef = p.ImageRef
	}
	if p.DisplayOrder != nil {
		merged.DisplayOrder = *p.DisplayOrder
	}
	return &merged
}

// finish ждёт конца анимации, показывает победителя, ждёт подтверждения оператора
// и синхронизирует данные.
func (c *Controller) finish(run *drawRun) {
	defer close(run.finished)
	defer c.release(run)

	select {
	case <-run.spinDone:
	case <-run.abort:
		return
	case <-c.ctx.Done():
		return
	}

	c.mu.Lock()
	if c.run != run {
		c.mu.Unlock()
		return
	}
	reveal := &model.PendingWinnerReveal{
		ID:          uuid.NewString(),
		CampaignID:  run.campaignID,
		Name:        run.participant.Name,
		Participant: run.participant,
		Prize:       run.prize,
		CreatedAt:   c.opts.Now(),
	}
	dismiss := make(chan struct{})
	c.reveal = reveal
	c.dismiss = dismiss
	c.mu.Unlock()

	c.pub.Publish(model.Event{Type: model.EventReveal, Payload: reveal})
	c.publishState()

	select {
	case <-dismiss:
	case <-run.abort:
		return
	case <-c.ctx.Done():
		return
	}

	if c.opts.SettleDelay > 0 {
		timer := time.NewTimer(c.opts.SettleDelay)
		select {
		case <-timer.C:
		case <-run.abort:
			timer.Stop()
			return
		case <-c.ctx.Done():
			timer.Stop()
			return
		}
	}

	ctx, cancel := context.WithTimeout(c.ctx, resyncTimeout)
	defer cancel()
	if err := c.resync(ctx, run.campaignID); err != nil {
		c.logger.Warn("resync after draw failed", zap.String("campaign", run.campaignID), zap.Error(err))
	}
}

func (c *Controller) release(run *drawRun) {
	c.mu.Lock()
	if c.run == run {
		c.run = nil
		c.executing = false
	}
	c.mu.Unlock()

	c.publishState()
}

// resync перезагружает список кампаний, текущую кампанию и её призы. Ошибки отдельных
// запросов собираются вместе, успешные части применяются.
func (c *Controller) resync(ctx context.Context, campaignID string) error {
	var (
		list      []model.Campaign
		detail    *model.CampaignDetail
		raws      []ledger.RawPrize
		listErr   error
		detailErr error
		prizesErr error
	)

	var g errgroup.Group
	g.Go(func() error {
		list, listErr = c.svc.FetchCampaignList(ctx)
		return listErr
	})
	g.Go(func() error {
		detail, detailErr = c.svc.FetchCampaignDetail(ctx, campaignID)
		return detailErr
	})
	g.Go(func() error {
		raws, prizesErr = c.svc.FetchPrizes(ctx, campaignID)
		return prizesErr
	})
	_ = g.Wait()

	err := multierr.Combine(
		wrapIf(listErr, "fetch campaign list"),
		wrapIf(detailErr, "fetch campaign detail"),
		wrapIf(prizesErr, "fetch prizes"),
	)

	c.mu.Lock()
	current := c.selected != nil && c.selected.ID == campaignID
	clearSelection := false
	if listErr == nil {
		c.campaigns = list
		if current && !containsCampaign(list, campaignID) {
			c.selected = nil
			c.prizes = nil
			c.ledger.Reset()
			c.selectGen++
			current = false
			clearSelection = true
		}
	}
	if current && detailErr == nil {
		c.selected = detail
	}
	if current && prizesErr == nil {
		c.prizes = c.ledger.Load(raws)
	}
	c.mu.Unlock()

	if clearSelection {
		c.logger.Info("selected campaign no longer listed, clearing selection", zap.String("campaign", campaignID))
		err = multierr.Append(err, c.store.ClearSelectedCampaign(ctx))
	}

	return err
}

func wrapIf(err error, op string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}
