package crop

import (
	"fmt"
	"math"

	"github.com/ivlev/scriptcam/internal/aspect"
)

type Size struct {
	W, H float64
}

type Point struct {
	X, Y float64
}

// Affine is a 2x3 transform in row-vector form:
//
//	x' = A*x + C*y + Tx
//	y' = B*x + D*y + Ty
type Affine struct {
	A, B, C, D, Tx, Ty float64
}

func Identity() Affine { return Affine{A: 1, D: 1} }

func Translation(x, y float64) Affine { return Affine{A: 1, D: 1, Tx: x, Ty: y} }

// Orientation is the transform that displays a frame of the natural size
// rotated clockwise by deg (a multiple of 90), keeping it in the positive
// quadrant.
func Orientation(deg int, natural Size) Affine {
	switch ((deg % 360) + 360) % 360 {
	case 90:
		return Affine{A: 0, B: 1, C: -1, D: 0, Tx: natural.H, Ty: 0}
	case 180:
		return Affine{A: -1, B: 0, C: 0, D: -1, Tx: natural.W, Ty: natural.H}
	case 270:
		return Affine{A: 0, B: -1, C: 1, D: 0, Tx: 0, Ty: natural.W}
	default:
		return Identity()
	}
}

// Then returns the transform applying t first and u second.
func (t Affine) Then(u Affine) Affine {
	return Affine{
		A:  t.A*u.A + t.B*u.C,
		B:  t.A*u.B + t.B*u.D,
		C:  t.C*u.A + t.D*u.C,
		D:  t.C*u.B + t.D*u.D,
		Tx: t.Tx*u.A + t.Ty*u.C + u.Tx,
		Ty: t.Tx*u.B + t.Ty*u.D + u.Ty,
	}
}

func (t Affine) Apply(p Point) Point {
	return Point{
		X: t.A*p.X + t.C*p.Y + t.Tx,
		Y: t.B*p.X + t.D*p.Y + t.Ty,
	}
}

// QuarterTurns is the clockwise rotation of t in quarter turns, 0..3.
func (t Affine) QuarterTurns() int {
	deg := math.Atan2(t.B, t.A) * 180 / math.Pi
	q := int(math.Round(deg / 90))
	return ((q % 4) + 4) % 4
}

// SwapsAxes reports a 90 or 270 degree rotation.
func (t Affine) SwapsAxes() bool { return t.QuarterTurns()%2 == 1 }

// Geometry is the center crop of one source against one ratio. Values stay
// float64; RenderRect truncates for the encoder.
type Geometry struct {
	Natural     Size
	Orientation Affine
	Display     Size
	Target      Size
	Offset      Point
	Transform   Affine
}

// Compute derives the crop of a frame of the natural size, displayed through
// orientation, to ratio (width/height).
func Compute(natural Size, orientation Affine, ratio float64) (Geometry, error) {
	if natural.W <= 0 || natural.H <= 0 {
		return Geometry{}, fmt.Errorf("invalid natural size %gx%g", natural.W, natural.H)
	}
	if ratio <= 0 || math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return Geometry{}, fmt.Errorf("invalid target ratio %g", ratio)
	}

	display := natural
	if orientation.SwapsAxes() {
		display = Size{W: natural.H, H: natural.W}
	}

	// same formula as the preview guide mask
	var target Size
	target.W, target.H = aspect.Policy{Ratio: ratio}.Fit(display.W, display.H)

	offset := Point{
		X: (display.W - target.W) / 2,
		Y: (display.H - target.H) / 2,
	}

	return Geometry{
		Natural:     natural,
		Orientation: orientation,
		Display:     display,
		Target:      target,
		Offset:      offset,
		Transform:   orientation.Then(Translation(-offset.X, -offset.Y)),
	}, nil
}

// RenderRect truncates the crop to whole, even pixels for a yuv420p encoder
// and keeps it inside the displayed frame.
func (g Geometry) RenderRect() (w, h, x, y int) {
	w = int(g.Target.W) &^ 1
	h = int(g.Target.H) &^ 1
	if w < 2 {
		w = 2
	}
	if h < 2 {
		h = 2
	}
	x = int(g.Offset.X)
	y = int(g.Offset.Y)
	if maxX := int(g.Display.W) - w; x > maxX {
		x = maxX
	}
	if maxY := int(g.Display.H) - h; y > maxY {
		y = maxY
	}
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	return w, h, x, y
}
