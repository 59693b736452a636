// Package wheel содержит чистые функции геометрии колеса: раскладку секторов, размеры подписей
// и вычисление углов поворота.
package wheel

import (
	"math"
	"strconv"
	"strings"

	"github.com/mmeshcher/roulette-draw/internal/model"
)

// DisplayMode описывает режим отображения колеса.
type DisplayMode string

const (
	ModeFocus DisplayMode = "focus"
	ModePage  DisplayMode = "page"
)

// ParseDisplayMode возвращает режим по строке; неизвестные значения дают ModePage.
func ParseDisplayMode(s string) DisplayMode {
	if DisplayMode(s) == ModeFocus {
		return ModeFocus
	}
	return ModePage
}

// Surface описывает доступную область рисования.
type Surface struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

const (
	// После ordinalLabelThreshold секторов подпись заменяется порядковым номером.
	ordinalLabelThreshold = 150
	// После dividerThreshold секторов границы не рисуются.
	dividerThreshold = 100
	ellipsis         = "…"
)

type step[T any] struct {
	upTo  int
	value T
}

func pick[T any](n int, steps []step[T], last T) T {
	for _, s := range steps {
		if n <= s.upTo {
			return s.value
		}
	}
	return last
}

var (
	focusDiameterSteps = []step[float64]{{10, 0.72}, {30, 0.80}, {80, 0.88}, {150, 0.93}}
	pageDiameterSteps  = []step[float64]{{10, 0.56}, {30, 0.64}, {80, 0.74}, {150, 0.84}}

	labelRadiusSteps = []step[float64]{{12, 0.64}, {40, 0.60}, {100, 0.56}, {150, 0.52}}

	fontSizeSteps    = []step[int]{{8, 18}, {16, 16}, {30, 14}, {60, 12}, {100, 10}, {150, 9}}
	labelLengthSteps = []step[int]{{8, 22}, {16, 18}, {30, 14}, {60, 10}, {100, 8}, {150, 6}}
)

// DialDiameter возвращает диаметр колеса. Доля поверхности растёт с числом секторов,
// но диаметр никогда не превышает меньшую сторону поверхности.
func DialDiameter(n int, mode DisplayMode, s Surface) float64 {
	side := math.Min(s.Width, s.Height)
	if side <= 0 {
		return 0
	}

	var fraction float64
	if mode == ModeFocus {
		fraction = pick(n, focusDiameterSteps, 0.96)
	} else {
		fraction = pick(n, pageDiameterSteps, 0.90)
	}

	return math.Floor(side * fraction)
}

// LabelRadiusFraction возвращает долю радиуса, на которой ставится подпись.
// Чем плотнее колесо, тем ближе подписи к центру.
func LabelRadiusFraction(n int) float64 {
	return pick(n, labelRadiusSteps, 0.48)
}

// FontSize возвращает размер шрифта подписей.
func FontSize(n int, mode DisplayMode) int {
	size := pick(n, fontSizeSteps, 8)
	if mode == ModeFocus && n <= 30 {
		size += 2
	}
	return size
}

// MaxLabelLength возвращает максимальную длину подписи в символах; 0 означает только номер.
func MaxLabelLength(n int) int {
	return pick(n, labelLengthSteps, 0)
}

// ShowDividers сообщает, рисуются ли границы секторов.
func ShowDividers(n int) bool {
	return n <= dividerThreshold
}

// LabelRotation возвращает поворот подписи; на нижней половине круга подпись переворачивается.
func LabelRotation(midAngle float64) float64 {
	a := NormalizeDegrees(midAngle)
	if a > 90 && a < 270 {
		return a + 180
	}
	return a
}

// LabelText возвращает текст подписи сектора для колеса из n секторов.
func LabelText(p model.Participant, n int) string {
	if n > ordinalLabelThreshold {
		return strconv.Itoa(p.OrdinalNumber)
	}

	name := strings.TrimSpace(p.Name)
	if name == "" {
		return strconv.Itoa(p.OrdinalNumber)
	}

	limit := MaxLabelLength(n)
	runes := []rune(name)
	if limit <= 0 || len(runes) <= limit {
		return name
	}
	if limit == 1 {
		return string(runes[:1])
	}
	return string(runes[:limit-1]) + ellipsis
}

// SegmentLabel описывает один сектор и положение его подписи.
type SegmentLabel struct {
	Index      int     `json:"index"`
	Text       string  `json:"text"`
	StartAngle float64 `json:"startAngle"`
	EndAngle   float64 `json:"endAngle"`
	MidAngle   float64 `json:"midAngle"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Rotation   float64 `json:"rotation"`
}

// Layout описывает полную раскладку колеса.
type Layout struct {
	Mode           DisplayMode    `json:"mode"`
	Segments       int            `json:"segments"`
	Placeholder    bool           `json:"placeholder"`
	Diameter       float64        `json:"diameter"`
	Radius         float64        `json:"radius"`
	CenterX        float64        `json:"centerX"`
	CenterY        float64        `json:"centerY"`
	FontSize       int            `json:"fontSize"`
	MaxLabelLength int            `json:"maxLabelLength"`
	LabelRadius    float64        `json:"labelRadius"`
	ShowDividers   bool           `json:"showDividers"`
	OrdinalLabels  bool           `json:"ordinalLabels"`
	Labels         []SegmentLabel `json:"labels"`
}

// Build строит раскладку колеса для упорядоченной последовательности участников.
// При пустой последовательности возвращается заглушка из одного сектора на весь круг.
func Build(participants []model.Participant, mode DisplayMode, s Surface) Layout {
	n := len(participants)
	diameter := DialDiameter(n, mode, s)
	radius := diameter / 2

	l := Layout{
		Mode:           mode,
		Segments:       n,
		Diameter:       diameter,
		Radius:         radius,
		CenterX:        radius,
		CenterY:        radius,
		FontSize:       FontSize(n, mode),
		MaxLabelLength: MaxLabelLength(n),
		LabelRadius:    radius * LabelRadiusFraction(n),
		ShowDividers:   ShowDividers(n),
		OrdinalLabels:  n > ordinalLabelThreshold,
		Labels:         make([]SegmentLabel, 0, n),
	}

	if n == 0 {
		l.Placeholder = true
		l.Segments = 1
		l.ShowDividers = false
		return l
	}

	seg := SegmentAngle(n)
	for i, p := range participants {
		start := float64(i) * seg
		mid := start + seg/2
		rad := mid * math.Pi / 180
		l.Labels = append(l.Labels, SegmentLabel{
			Index:      i,
			Text:       LabelText(p, n),
			StartAngle: start,
			EndAngle:   start + seg,
			MidAngle:   mid,
			X:          l.CenterX + l.LabelRadius*math.Cos(rad),
			Y:          l.CenterY + l.LabelRadius*math.Sin(rad),
			Rotation:   LabelRotation(mid),
		})
	}

	return l
}
