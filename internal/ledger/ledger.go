// Package ledger нормализует остатки призов из разнородных полей сервиса
// и применяет оптимистичное списание после розыгрыша.
package ledger

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/mmeshcher/roulette-draw/internal/model"
)

// LowStockThreshold задаёт остаток, начиная с которого приз считается заканчивающимся.
const LowStockThreshold = 2

const defaultInitialStock = 1

// RawPrize описывает приз в том виде, в каком его отдаёт сервис. Остаток может прийти
// в любом из полей Stock, RemainingStock, Quantity, Units.
type RawPrize struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	ImageRef       string `json:"imageRef"`
	DisplayOrder   int    `json:"displayOrder"`
	Stock          any    `json:"stock"`
	RemainingStock any    `json:"remainingStock"`
	Quantity       any    `json:"quantity"`
	Units          any    `json:"units"`
	InitialStock   *int   `json:"initialStock"`
	Awarded        bool   `json:"awarded"`
	Active         *bool  `json:"active"`
	Inactive       bool   `json:"inactive"`
	Disabled       bool   `json:"disabled"`
	Status         string `json:"status"`
}

// State описывает производное состояние приза.
type State struct {
	Initial   int               `json:"initial"`
	Current   int               `json:"current"`
	Awarded   int               `json:"awarded"`
	Exhausted bool              `json:"exhausted"`
	Low       bool              `json:"low"`
	Status    model.PrizeStatus `json:"status"`
}

// numeric извлекает число из значения, декодированного из JSON.
func numeric(v any) (int, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case int:
		return n, true
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int(math.Floor(n)), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return numeric(f)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return numeric(f)
	default:
		return 0, false
	}
}

func firstNumeric(raw RawPrize) (int, bool) {
	for _, v := range []any{raw.Stock, raw.RemainingStock, raw.Quantity, raw.Units} {
		if n, ok := numeric(v); ok {
			return n, true
		}
	}
	return 0, false
}

// Normalize приводит приз к каноническому виду. initial содержит ранее зафиксированный начальный остаток,
// если он уже был захвачен; иначе берётся initialStock сервиса, затем текущий остаток, затем 1.
func Normalize(raw RawPrize, initial *int) model.Prize {
	current, hasCurrent := firstNumeric(raw)
	current = max(0, current)

	var init int
	switch {
	case initial != nil:
		init = *initial
	case raw.InitialStock != nil:
		init = *raw.InitialStock
	case hasCurrent:
		init = current
	default:
		init = defaultInitialStock
	}
	init = max(0, init)

	if !hasCurrent {
		current = init
		if raw.Awarded && init <= 1 {
			current = 0
		}
	}

	inactive := raw.Inactive
	if raw.Active != nil && !*raw.Active {
		inactive = true
	}

	return model.Prize{
		ID:           raw.ID,
		Name:         raw.Name,
		Description:  raw.Description,
		ImageRef:     raw.ImageRef,
		DisplayOrder: raw.DisplayOrder,
		InitialStock: init,
		Current:      current,
		Awarded:      raw.Awarded,
		Inactive:     inactive,
		Disabled:     raw.Disabled,
		Status:       model.PrizeStatus(raw.Status),
	}
}

// DeriveState вычисляет производное состояние приза.
func DeriveState(p model.Prize) State {
	current := max(0, p.Current)
	exhausted := current <= 0 || p.Inactive || p.Disabled

	status := p.Status
	if status == "" {
		status = model.PrizeStatusPending
		if exhausted {
			status = model.PrizeStatusDrawn
		}
	}

	return State{
		Initial:   p.InitialStock,
		Current:   current,
		Awarded:   max(0, p.InitialStock-current),
		Exhausted: exhausted,
		Low:       current > 0 && current <= LowStockThreshold,
		Status:    status,
	}
}

// ApplyDrawResult списывает одну единицу приза prizeID и возвращает новый список.
// Исходный список не изменяется. Если приз не найден, возвращается копия без изменений.
func ApplyDrawResult(prizeID string, prizes []model.Prize) []model.Prize {
	out := make([]model.Prize, len(prizes))
	copy(out, prizes)

	for i := range out {
		if out[i].ID != prizeID {
			continue
		}
		p := &out[i]
		p.Current = max(0, p.Current-1)
		p.Awarded = true
		switch {
		case p.Current == 0:
			p.Status = model.PrizeStatusDrawn
		case p.Status != "" && p.Status != model.PrizeStatusDrawn:
			// явный статус сохраняется
		default:
			p.Status = model.PrizeStatusPending
		}
		break
	}

	return out
}

// AvailableUnits возвращает суммарный остаток по активным и не отключённым призам.
func AvailableUnits(prizes []model.Prize) int {
	total := 0
	for _, p := range prizes {
		if p.Inactive || p.Disabled {
			continue
		}
		total += max(0, p.Current)
	}
	return total
}

// Find возвращает приз по идентификатору.
func Find(prizes []model.Prize, id string) (model.Prize, bool) {
	for _, p := range prizes {
		if p.ID == id {
			return p, true
		}
	}
	return model.Prize{}, false
}

// Ledger хранит начальные остатки, захваченные при первой загрузке набора призов.
// Повторная загрузка того же набора сохраняет их, сброс нужен при смене кампании.
type Ledger struct {
	mu      sync.Mutex
	initial map[string]int
}

// New создаёт пустой журнал остатков.
func New() *Ledger {
	return &Ledger{initial: make(map[string]int)}
}

// Load нормализует призы сервиса, сохраняя ранее захваченные начальные остатки.
func (l *Ledger) Load(raws []RawPrize) []model.Prize {
	l.mu.Lock()
	defer l.mu.Unlock()

	prizes := make([]model.Prize, 0, len(raws))
	for _, raw := range raws {
		var captured *int
		if v, ok := l.initial[raw.ID]; ok {
			captured = &v
		}
		p := Normalize(raw, captured)
		if captured == nil {
			l.initial[raw.ID] = p.InitialStock
		}
		prizes = append(prizes, p)
	}
	return prizes
}

// Reset забывает захваченные начальные остатки.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	clear(l.initial)
}
