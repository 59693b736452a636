package wheel

import (
	"fmt"
	"math"
	"testing"

	"github.com/mmeshcher/roulette-draw/internal/model"
)

func participants(n int) []model.Participant {
	res := make([]model.Participant, 0, n)
	for i := 0; i < n; i++ {
		res = append(res, model.Participant{
			ID:            fmt.Sprintf("p%d", i),
			OrdinalNumber: i + 1,
			Name:          fmt.Sprintf("Participant number %d", i+1),
		})
	}
	return res
}

func TestDialDiameter_MonotonicAndBounded(t *testing.T) {
	surfaces := []Surface{{Width: 800, Height: 600}, {Width: 300, Height: 1200}}
	for _, mode := range []DisplayMode{ModeFocus, ModePage} {
		for _, s := range surfaces {
			prev := 0.0
			for n := 0; n <= 400; n++ {
				d := DialDiameter(n, mode, s)
				if d < prev {
					t.Fatalf("mode=%s n=%d: diameter %v smaller than %v", mode, n, d, prev)
				}
				if d > math.Min(s.Width, s.Height) {
					t.Fatalf("mode=%s n=%d: diameter %v exceeds surface %+v", mode, n, d, s)
				}
				prev = d
			}
		}
	}
}

func TestDialDiameter_FocusLargerThanPage(t *testing.T) {
	s := Surface{Width: 1000, Height: 1000}
	if DialDiameter(20, ModeFocus, s) <= DialDiameter(20, ModePage, s) {
		t.Fatalf("focus mode must favor the dial")
	}
	if DialDiameter(20, ModeFocus, Surface{}) != 0 {
		t.Fatalf("empty surface must give zero diameter")
	}
}

func TestStepFunctions_NonIncreasing(t *testing.T) {
	for _, mode := range []DisplayMode{ModeFocus, ModePage} {
		prevFont, prevLen, prevRadius := math.MaxInt, math.MaxInt, math.Inf(1)
		for n := 1; n <= 300; n++ {
			font := FontSize(n, mode)
			length := MaxLabelLength(n)
			radius := LabelRadiusFraction(n)
			if font > prevFont || length > prevLen || radius > prevRadius {
				t.Fatalf("mode=%s n=%d: step function increased (font %d, len %d, radius %v)", mode, n, font, length, radius)
			}
			prevFont, prevLen, prevRadius = font, length, radius
		}
	}
}

func TestLabelRotation_FlipsLowerHalf(t *testing.T) {
	tests := []struct {
		mid  float64
		want float64
	}{
		{mid: 45, want: 45},
		{mid: 90, want: 90},
		{mid: 91, want: 271},
		{mid: 180, want: 360},
		{mid: 269, want: 449},
		{mid: 270, want: 270},
		{mid: 300, want: 300},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.mid), func(t *testing.T) {
			if got := LabelRotation(tt.mid); got != tt.want {
				t.Fatalf("LabelRotation(%v) = %v, want %v", tt.mid, got, tt.want)
			}
		})
	}
}

func TestLabelText(t *testing.T) {
	p := model.Participant{OrdinalNumber: 42, Name: "Maria Fernanda de los Angeles"}

	if got := LabelText(p, 4); got != "Maria Fernanda de los…" {
		t.Fatalf("LabelText(4) = %q", got)
	}
	if got := LabelText(p, 120); got != "Maria…" {
		t.Fatalf("LabelText(120) = %q", got)
	}
	if got := LabelText(p, 151); got != "42" {
		t.Fatalf("LabelText(151) = %q, want ordinal", got)
	}
	if got := LabelText(model.Participant{OrdinalNumber: 7, Name: "  "}, 3); got != "7" {
		t.Fatalf("blank name = %q, want ordinal", got)
	}
	if got := LabelText(model.Participant{Name: "Ana"}, 3); got != "Ana" {
		t.Fatalf("short name = %q", got)
	}
}

func TestBuild_Placeholder(t *testing.T) {
	l := Build(nil, ModeFocus, Surface{Width: 500, Height: 500})
	if !l.Placeholder || l.Segments != 1 || len(l.Labels) != 0 {
		t.Fatalf("unexpected placeholder layout: %+v", l)
	}
}

func TestBuild_Segments(t *testing.T) {
	l := Build(participants(4), ModePage, Surface{Width: 1000, Height: 800})

	if l.Segments != 4 || len(l.Labels) != 4 {
		t.Fatalf("segments = %d, labels = %d", l.Segments, len(l.Labels))
	}
	if !l.ShowDividers || l.OrdinalLabels {
		t.Fatalf("small dial must show dividers and names")
	}

	third := l.Labels[2]
	if third.MidAngle != 225 || third.StartAngle != 180 || third.EndAngle != 270 {
		t.Fatalf("unexpected angles: %+v", third)
	}
	if third.Rotation != 405 {
		t.Fatalf("rotation = %v, want flipped 405", third.Rotation)
	}

	// сектор 0 лежит в правой нижней четверти (ось Y экрана направлена вниз)
	first := l.Labels[0]
	if first.X <= l.CenterX || first.Y <= l.CenterY {
		t.Fatalf("label 0 at (%v, %v), center (%v, %v)", first.X, first.Y, l.CenterX, l.CenterY)
	}
	dist := math.Hypot(first.X-l.CenterX, first.Y-l.CenterY)
	if math.Abs(dist-l.LabelRadius) > 1e-9 {
		t.Fatalf("label distance %v, want %v", dist, l.LabelRadius)
	}
}

func TestBuild_Declutter(t *testing.T) {
	s := Surface{Width: 900, Height: 900}

	l := Build(participants(101), ModeFocus, s)
	if l.ShowDividers {
		t.Fatalf("dividers must be hidden beyond 100 segments")
	}
	if l.OrdinalLabels {
		t.Fatalf("names must be kept up to 150 segments")
	}

	l = Build(participants(151), ModeFocus, s)
	if !l.OrdinalLabels || l.Labels[9].Text != "10" {
		t.Fatalf("labels must be ordinals beyond 150 segments, got %q", l.Labels[9].Text)
	}
}
