// Package validation содержит функции валидации входных данных.
package validation

import (
	"errors"
	"math"
	"unicode"

	"github.com/mmeshcher/roulette-draw/internal/model"
)

// Ошибки проверки ответа сервиса розыгрыша.
var (
	ErrInvalidAngle = errors.New("draw result angle is not finite")
	ErrInvalidSpins = errors.New("draw result total spins is negative")
)

const maxCampaignIDLength = 64

// IsValidCampaignID проверяет идентификатор кампании: непустой, без пробелов и разделителей пути.
func IsValidCampaignID(id string) bool {
	if id == "" || len(id) > maxCampaignIDLength {
		return false
	}

	for _, ch := range id {
		if ch == '-' || ch == '_' {
			continue
		}
		if !unicode.IsLetter(ch) && !unicode.IsDigit(ch) {
			return false
		}
	}

	return true
}

// CheckDrawResult проверяет успешный ответ сервиса перед тем, как он попадёт в анимацию.
// Неуспешные ответы не проверяются. Пустой победитель и приз без идентификатора допустимы:
// розыгрыш на сервисе уже состоялся.
func CheckDrawResult(r model.DrawResult) error {
	if !r.Success {
		return nil
	}

	if r.Angle != nil && (math.IsNaN(*r.Angle) || math.IsInf(*r.Angle, 0)) {
		return ErrInvalidAngle
	}

	if r.TotalSpins != nil && *r.TotalSpins < 0 {
		return ErrInvalidSpins
	}

	return nil
}
