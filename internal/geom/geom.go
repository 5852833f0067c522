// Package geom implements Pass 3 of the compiler: evaluating OpenDRIVE's
// four parametric geometry primitives into sampled polylines, and exposing
// endpoint/full-polyline queries over a Road.
//
// 功能：几何求值引擎。将 line/arc/spiral/paramPoly3 转换为采样折线，
// 提供 road 起点/终点/完整折线查询。算法依据 spec §4.3 的采样规则；
// arc 采样密度公式、spiral 数值积分精度、paramPoly3 参数域处理均照此实现。
// 说明：本包不关心车道或拓扑，只关心几何——与 spec §9 的 tagged-variant
// 设计一致，所有对 Kind 的分支都是穷尽匹配，新增变体会在编译期暴露遗漏。
package geom

import (
	"math"

	"github.com/tsinghua-fib-lab/xodr-netcompile/internal/apperr"
	"github.com/tsinghua-fib-lab/xodr-netcompile/internal/xodr"
)

// Point is a 2D point in the road network's planar coordinate frame.
type Point struct {
	X, Y float64
}

const dedupeTolerance = 0.01 // 1 cm, spec §4.3 precision guarantee

// appendDeduped appends p to pts unless it is within dedupeTolerance of the
// last point already present.
func appendDeduped(pts []Point, p Point) []Point {
	if len(pts) > 0 {
		last := pts[len(pts)-1]
		if math.Abs(last.X-p.X) < dedupeTolerance && math.Abs(last.Y-p.Y) < dedupeTolerance {
			return pts
		}
	}
	return append(pts, p)
}

// EvaluateSegment samples one geometry segment into global-frame points,
// including both endpoints.
func EvaluateSegment(seg xodr.GeometrySegment) ([]Point, error) {
	switch seg.Kind {
	case xodr.GeomLine:
		return evalLine(seg), nil
	case xodr.GeomArc:
		return evalArc(seg), nil
	case xodr.GeomSpiral:
		return evalSpiral(seg), nil
	case xodr.GeomParamPoly3:
		return evalParamPoly3(seg), nil
	default:
		return nil, apperr.InvariantViolation("unknown geometry kind %d at s=%.3f", seg.Kind, seg.S)
	}
}

func evalLine(seg xodr.GeometrySegment) []Point {
	start := Point{seg.X0, seg.Y0}
	end := Point{
		X: seg.X0 + seg.Length*math.Cos(seg.Hdg),
		Y: seg.Y0 + seg.Length*math.Sin(seg.Hdg),
	}
	pts := []Point{start}
	return appendDeduped(pts, end)
}

// arcSampleCount implements spec §4.3's density formula:
// max(3, min(50, max(length/2m, |k*length|*180/pi/5deg))).
func arcSampleCount(length, curvature float64) int {
	byLength := length / 2.0
	byAngle := math.Abs(curvature*length) * 180.0 / math.Pi / 5.0
	n := math.Max(byLength, byAngle)
	n = math.Max(3, math.Min(50, n))
	return int(math.Ceil(n))
}

func evalArc(seg xodr.GeometrySegment) []Point {
	k := seg.Curvature
	if k == 0 {
		return evalLine(seg)
	}
	r := 1.0 / math.Abs(k)
	var cx, cy float64
	if k > 0 {
		cx = seg.X0 - r*math.Sin(seg.Hdg)
		cy = seg.Y0 + r*math.Cos(seg.Hdg)
	} else {
		cx = seg.X0 + r*math.Sin(seg.Hdg)
		cy = seg.Y0 - r*math.Cos(seg.Hdg)
	}

	n := arcSampleCount(seg.Length, k)
	angleChange := seg.Length * k

	pts := make([]Point, 0, n+1)
	for i := 0; i <= n; i++ {
		t := float64(i) / float64(n)
		angle := seg.Hdg + t*angleChange
		var x, y float64
		if k > 0 {
			x = cx + r*math.Sin(angle)
			y = cy - r*math.Cos(angle)
		} else {
			x = cx - r*math.Sin(angle)
			y = cy + r*math.Cos(angle)
		}
		pts = appendDeduped(pts, Point{x, y})
	}
	return pts
}

// ArcEndpoint returns the last sampled point of a pure arc, which tests
// compare against the closed-form solution to validate the sampling.
func ArcEndpoint(seg xodr.GeometrySegment) Point {
	pts := evalArc(seg)
	return pts[len(pts)-1]
}

// spiralSubstepsPerSample is the minimum numeric-integration density per
// output sample point, per spec §4.3.
const spiralSubstepsPerSample = 10

func spiralTheta(seg xodr.GeometrySegment, s float64) float64 {
	return seg.Hdg + seg.CurvStart*s + (seg.CurvEnd-seg.CurvStart)*s*s/(2*seg.Length)
}

func evalSpiral(seg xodr.GeometrySegment) []Point {
	if seg.CurvStart == seg.CurvEnd {
		// Degenerates to a constant-curvature arc (spec §8 boundary case).
		return evalArc(xodr.GeometrySegment{
			S: seg.S, X0: seg.X0, Y0: seg.Y0, Hdg: seg.Hdg, Length: seg.Length,
			Kind: xodr.GeomArc, Curvature: seg.CurvStart,
		})
	}

	n := arcSampleCount(seg.Length, math.Max(math.Abs(seg.CurvStart), math.Abs(seg.CurvEnd)))
	substeps := n * spiralSubstepsPerSample
	if substeps < spiralSubstepsPerSample {
		substeps = spiralSubstepsPerSample
	}

	ds := seg.Length / float64(substeps)
	x, y := seg.X0, seg.Y0

	pts := make([]Point, 0, n+1)
	pts = appendDeduped(pts, Point{x, y})

	samplesEvery := substeps / n
	if samplesEvery < 1 {
		samplesEvery = 1
	}

	for i := 1; i <= substeps; i++ {
		sMid := (float64(i) - 0.5) * ds
		theta := spiralTheta(seg, sMid)
		x += ds * math.Cos(theta)
		y += ds * math.Sin(theta)
		if i%samplesEvery == 0 || i == substeps {
			pts = appendDeduped(pts, Point{x, y})
		}
	}
	return pts
}

func evalParamPoly3(seg xodr.GeometrySegment) []Point {
	pMax := 1.0
	if seg.Range == xodr.RangeArcLength {
		pMax = seg.Length
	}
	n := arcSampleCount(seg.Length, 0) // curvature-agnostic: length-driven density
	if n < 2 {
		n = 2
	}
	cosH, sinH := math.Cos(seg.Hdg), math.Sin(seg.Hdg)

	pts := make([]Point, 0, n+1)
	for i := 0; i <= n; i++ {
		p := pMax * float64(i) / float64(n)
		u := seg.AU + seg.BU*p + seg.CU*p*p + seg.DU*p*p*p
		v := seg.AV + seg.BV*p + seg.CV*p*p + seg.DV*p*p*p
		// rotate (u,v) by hdg and translate to (x0,y0): the segment's local
		// frame transform, same convention used for line/arc.
		x := seg.X0 + u*cosH - v*sinH
		y := seg.Y0 + u*sinH + v*cosH
		pts = appendDeduped(pts, Point{x, y})
	}
	return pts
}

// RoadPolyline concatenates every segment's sampled polyline in source
// order, deduplicating at segment boundaries (spec §4.3).
func RoadPolyline(road *xodr.Road) ([]Point, error) {
	var pts []Point
	for _, seg := range road.Geometry {
		segPts, err := EvaluateSegment(seg)
		if err != nil {
			return nil, err
		}
		for _, p := range segPts {
			pts = appendDeduped(pts, p)
		}
	}
	return pts, nil
}

// RoadStart returns the first geometry segment's origin (spec §4.3).
func RoadStart(road *xodr.Road) (Point, bool) {
	if len(road.Geometry) == 0 {
		return Point{}, false
	}
	seg := road.Geometry[0]
	return Point{seg.X0, seg.Y0}, true
}

// RoadEnd returns the last sample of the last segment (spec §4.3).
func RoadEnd(road *xodr.Road) (Point, bool) {
	if len(road.Geometry) == 0 {
		return Point{}, false
	}
	last := road.Geometry[len(road.Geometry)-1]
	pts, err := EvaluateSegment(last)
	if err != nil || len(pts) == 0 {
		return Point{}, false
	}
	return pts[len(pts)-1], true
}
