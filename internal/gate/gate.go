// Package gate определяет, разрешён ли розыгрыш в данный момент: временное окно кампании,
// остаток призов и статус кампании.
package gate

import (
	"fmt"
	"strings"
	"time"

	"github.com/mmeshcher/roulette-draw/internal/model"
)

// Phase описывает временную фазу кампании.
type Phase string

const (
	PhaseWaiting         Phase = "waiting"
	PhaseScheduledFuture Phase = "scheduled_future"
	PhaseActive          Phase = "active"
	PhaseClosed          Phase = "closed"
	PhaseNoDates         Phase = "no_dates"
)

// DefaultConfirmThreshold задаёт остаток времени участия, начиная с которого нужен подтверждающий шаг оператора.
const DefaultConfirmThreshold = time.Hour

// Evaluation содержит результат оценки временного окна.
type Evaluation struct {
	Phase     Phase         `json:"phase"`
	Allowed   bool          `json:"allowed"`
	Remaining time.Duration `json:"-"`
	Message   string        `json:"message"`
}

// Evaluate определяет фазу окна на момент now. Проверки идут по порядку, выбирается первая совпавшая.
func Evaluate(w model.TemporalWindow, now time.Time) Evaluation {
	if w.ParticipationStart != nil && w.ParticipationStart.After(now) {
		left := w.ParticipationStart.Sub(now)
		return Evaluation{
			Phase:     PhaseWaiting,
			Remaining: left,
			Message:   fmt.Sprintf("Participation starts in %s", FormatRemaining(left)),
		}
	}

	if w.ScheduledDate != nil && w.ScheduledDate.After(now) {
		left := w.ScheduledDate.Sub(now)
		return Evaluation{
			Phase:     PhaseScheduledFuture,
			Remaining: left,
			Message:   fmt.Sprintf("Draw is scheduled in %s", FormatRemaining(left)),
		}
	}

	if w.ParticipationEnd != nil {
		if w.ParticipationEnd.After(now) {
			left := w.ParticipationEnd.Sub(now)
			return Evaluation{
				Phase:     PhaseActive,
				Allowed:   true,
				Remaining: left,
				Message:   fmt.Sprintf("Participation is open, closes in %s", FormatRemaining(left)),
			}
		}
		return Evaluation{
			Phase:   PhaseClosed,
			Allowed: true,
			Message: "Participation has closed, the draw may proceed",
		}
	}

	return Evaluation{
		Phase:   PhaseNoDates,
		Allowed: true,
		Message: "No dates configured",
	}
}

// RequiresConfirmation сообщает, нужно ли явное подтверждение оператора перед розыгрышем.
func RequiresConfirmation(e Evaluation, threshold time.Duration) bool {
	switch e.Phase {
	case PhaseScheduledFuture:
		return e.Remaining > 0
	case PhaseActive:
		return e.Remaining > threshold
	default:
		return false
	}
}

// Decision содержит сводное решение по всем условиям розыгрыша.
type Decision struct {
	Evaluation
	AvailableStock    int    `json:"availableStock"`
	Permitted         bool   `json:"permitted"`
	NeedsConfirmation bool   `json:"needsConfirmation"`
	Reason            string `json:"reason,omitempty"`
}

// Check объединяет временное окно, остаток призов и статус кампании.
// Permitted означает, что розыгрыш возможен (возможно, после подтверждения оператора).
// Фаза ожидания запланированной даты блокирует действие, но оператор может её переопределить.
func Check(c model.Campaign, availableStock int, now time.Time, threshold time.Duration) Decision {
	e := Evaluate(c.Window, now)
	d := Decision{
		Evaluation:     e,
		AvailableStock: availableStock,
	}

	switch {
	case c.Status != model.CampaignStatusActive && c.Status != model.CampaignStatusScheduled:
		d.Reason = fmt.Sprintf("Campaign status %q does not allow draws", c.Status)
	case c.FullyDrawn:
		d.Reason = "Campaign is already fully drawn"
	case availableStock <= 0:
		d.Reason = "No prize stock available"
	case e.Phase == PhaseWaiting:
		d.Reason = e.Message
	default:
		d.Permitted = true
		d.NeedsConfirmation = RequiresConfirmation(e, threshold)
	}

	return d
}

// FormatRemaining форматирует оставшееся время для оператора: "2d 3h", "3h 12m", "12m 5s", "5s".
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Truncate(time.Second)

	days := int(d / (24 * time.Hour))
	d -= time.Duration(days) * 24 * time.Hour
	hours := int(d / time.Hour)
	d -= time.Duration(hours) * time.Hour
	minutes := int(d / time.Minute)
	d -= time.Duration(minutes) * time.Minute
	seconds := int(d / time.Second)

	parts := make([]string, 0, 2)
	switch {
	case days > 0:
		parts = append(parts, fmt.Sprintf("%dd", days), fmt.Sprintf("%dh", hours))
	case hours > 0:
		parts = append(parts, fmt.Sprintf("%dh", hours), fmt.Sprintf("%dm", minutes))
	case minutes > 0:
		parts = append(parts, fmt.Sprintf("%dm", minutes), fmt.Sprintf("%ds", seconds))
	default:
		parts = append(parts, fmt.Sprintf("%ds", seconds))
	}
	return strings.Join(parts, " ")
}
