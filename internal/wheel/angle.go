package wheel

import (
	"math"

	"github.com/mmeshcher/roulette-draw/internal/model"
)

// PointerSide описывает, где относительно нулевого угла колеса закреплён указатель.
type PointerSide string

const (
	PointerTop   PointerSide = "top"
	PointerRight PointerSide = "right"
)

// DefaultRevolutions задаёт число полных оборотов, если сервис не прислал totalSpins.
const DefaultRevolutions = 6

// NormalizeDegrees приводит угол к диапазону [0, 360).
func NormalizeDegrees(x float64) float64 {
	n := math.Mod(math.Mod(x, 360)+360, 360)
	// -1e-15 + 360 округляется до 360
	if n >= 360 {
		return 0
	}
	return n
}

// PointerOffset возвращает смещение указателя относительно нулевого угла.
func PointerOffset(side PointerSide) float64 {
	if side == PointerTop {
		return -90
	}
	return 0
}

// SegmentAngle возвращает угловой размер одного сектора.
func SegmentAngle(n int) float64 {
	if n <= 0 {
		return 360
	}
	return 360 / float64(n)
}

// HeadingForWinner возвращает угол колеса, при котором середина сектора победителя находится под указателем.
func HeadingForWinner(winnerIndex, n int, side PointerSide) float64 {
	seg := SegmentAngle(n)
	mid := float64(winnerIndex)*seg + seg/2
	return NormalizeDegrees(PointerOffset(side) - mid)
}

// ResolveRotationDelta возвращает строго положительный поворот от текущего угла к целевому.
// Совпадающие углы дают полный дополнительный оборот.
func ResolveRotationDelta(currentHeading, targetHeading float64) float64 {
	delta := NormalizeDegrees(targetHeading) - NormalizeDegrees(currentHeading)
	if delta <= 0 {
		delta += 360
	}
	return delta
}

// FinalRotation возвращает итоговый угол колеса после розыгрыша.
func FinalRotation(currentHeading float64, revolutions int, delta float64) float64 {
	if revolutions < 0 {
		revolutions = 0
	}
	return currentHeading + float64(revolutions)*360 + delta
}

// ResolveWinnerIndex сопоставляет описание победителя с локальной последовательностью участников.
// Порядок: порядковый номер, идентификатор, имя. Если совпадений нет, выбирается случайный индекс
// через intn и matched равен false.
func ResolveWinnerIndex(participants []model.Participant, w model.WinnerDescriptor, intn func(int) int) (index int, matched bool) {
	if len(participants) == 0 {
		return -1, false
	}

	if w.OrdinalNumber != nil {
		for i, p := range participants {
			if p.OrdinalNumber == *w.OrdinalNumber {
				return i, true
			}
		}
	}

	if w.ID != "" {
		for i, p := range participants {
			if p.ID == w.ID {
				return i, true
			}
		}
	}

	if w.Name != "" {
		for i, p := range participants {
			if p.Name == w.Name {
				return i, true
			}
		}
	}

	return intn(len(participants)), false
}
