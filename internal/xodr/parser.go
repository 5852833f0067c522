package xodr

import (
	"encoding/xml"
	"io"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/xodr-netcompile/internal/apperr"
)

var log = logrus.WithField("component", "parser")

// --- raw XML schema (only the elements/attributes spec §6 names) ---

type xmlOpenDrive struct {
	XMLName xml.Name    `xml:"OpenDRIVE"`
	Header  xmlHeader   `xml:"header"`
	Roads   []xmlRoad   `xml:"road"`
	Juncs   []xmlJunc   `xml:"junction"`
}

type xmlHeader struct {
	GeoReference string `xml:"geoReference"`
}

type xmlRoad struct {
	ID       string        `xml:"id,attr"`
	Name     string        `xml:"name,attr"`
	Junction string        `xml:"junction,attr"`
	Length   string        `xml:"length,attr"`
	PlanView xmlPlanView   `xml:"planView"`
	Type     []xmlRoadType `xml:"type"`
	Lanes    xmlLanes      `xml:"lanes"`
	Link     *xmlLink      `xml:"link"`
}

type xmlPlanView struct {
	Geometries []xmlGeometry `xml:"geometry"`
}

type xmlGeometry struct {
	S      string         `xml:"s,attr"`
	X      string         `xml:"x,attr"`
	Y      string         `xml:"y,attr"`
	Hdg    string         `xml:"hdg,attr"`
	Length string         `xml:"length,attr"`
	Line   *struct{}      `xml:"line"`
	Arc    *xmlArc        `xml:"arc"`
	Spiral *xmlSpiral     `xml:"spiral"`
	Poly3  *xmlParamPoly3 `xml:"paramPoly3"`
}

type xmlArc struct {
	Curvature string `xml:"curvature,attr"`
}

type xmlSpiral struct {
	CurvStart string `xml:"curvStart,attr"`
	CurvEnd   string `xml:"curvEnd,attr"`
}

type xmlParamPoly3 struct {
	AU     string `xml:"aU,attr"`
	BU     string `xml:"bU,attr"`
	CU     string `xml:"cU,attr"`
	DU     string `xml:"dU,attr"`
	AV     string `xml:"aV,attr"`
	BV     string `xml:"bV,attr"`
	CV     string `xml:"cV,attr"`
	DV     string `xml:"dV,attr"`
	PRange string `xml:"pRange,attr"`
}

type xmlRoadType struct {
	Type  string     `xml:"type,attr"`
	Speed *xmlSpeed  `xml:"speed"`
}

type xmlSpeed struct {
	Max  string `xml:"max,attr"`
	Unit string `xml:"unit,attr"`
}

type xmlLanes struct {
	Sections []xmlLaneSection `xml:"laneSection"`
}

type xmlLaneSection struct {
	Left  *xmlLaneSide `xml:"left"`
	Right *xmlLaneSide `xml:"right"`
}

type xmlLaneSide struct {
	Lanes []xmlLane `xml:"lane"`
}

type xmlLane struct {
	ID          string         `xml:"id,attr"`
	Type        string         `xml:"type,attr"`
	Widths      []xmlWidth     `xml:"width"`
	Link        *xmlLaneLinkEl `xml:"link"`
}

type xmlWidth struct {
	A string `xml:"a,attr"`
}

type xmlLaneLinkEl struct {
	Predecessor *xmlLaneLinkRef `xml:"predecessor"`
	Successor   *xmlLaneLinkRef `xml:"successor"`
}

type xmlLaneLinkRef struct {
	ID string `xml:"id,attr"`
}

type xmlLink struct {
	Predecessor *xmlLinkRef `xml:"predecessor"`
	Successor   *xmlLinkRef `xml:"successor"`
}

type xmlLinkRef struct {
	ElementType  string `xml:"elementType,attr"`
	ElementID    string `xml:"elementId,attr"`
	ContactPoint string `xml:"contactPoint,attr"`
}

type xmlJunc struct {
	ID          string         `xml:"id,attr"`
	Connections []xmlJuncConn  `xml:"connection"`
}

type xmlJuncConn struct {
	ID            string         `xml:"id,attr"`
	IncomingRoad  string         `xml:"incomingRoad,attr"`
	ConnectingRoad string        `xml:"connectingRoad,attr"`
	ContactPoint  string         `xml:"contactPoint,attr"`
	LaneLinks     []xmlLaneLink  `xml:"laneLink"`
}

type xmlLaneLink struct {
	From string `xml:"from,attr"`
	To   string `xml:"to,attr"`
}

// Parse reads and decodes an OpenDRIVE file into a Document.
//
// 功能：解析 OpenDRIVE XML 文件，构建 Road/Junction 对象模型。
// 契约（spec §4.1）：源文件中声明的每条 road 都出现在输出中；geometry
// 段顺序遵循源文件顺序；geometry 变体由互斥的子元素标签决定；未识别的
// lane 类型被静默丢弃。格式错误一律返回 apperr.SourceFormat。
func Parse(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperr.SourceFormatWrap(err, "cannot open %s", path)
	}
	defer f.Close()
	return parseReader(f)
}

func parseReader(r io.Reader) (*Document, error) {
	var raw xmlOpenDrive
	dec := xml.NewDecoder(r)
	if err := dec.Decode(&raw); err != nil {
		return nil, apperr.SourceFormatWrap(err, "malformed OpenDRIVE XML")
	}

	doc := NewDocument()
	doc.GeoReference = raw.Header.GeoReference

	for _, xr := range raw.Roads {
		road, err := parseRoad(xr)
		if err != nil {
			return nil, err
		}
		doc.AddRoad(road)
	}
	log.Infof("parsed %d roads", len(doc.Roads))

	for _, xj := range raw.Juncs {
		junc := &Junction{ID: xj.ID}
		for _, xc := range xj.Connections {
			conn, err := parseConnection(xc)
			if err != nil {
				return nil, err
			}
			junc.Connections = append(junc.Connections, conn)
		}
		doc.AddJunction(junc)
	}
	log.Infof("parsed %d junctions", len(doc.Junctions))

	return doc, nil
}

func parseFloat(s string, field string) (float64, error) {
	if s == "" {
		return 0, apperr.SourceFormat("missing required attribute %q", field)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, apperr.SourceFormatWrap(err, "bad float attribute %q=%q", field, s)
	}
	return v, nil
}

func parseRoad(xr xmlRoad) (*Road, error) {
	length, err := parseFloat(xr.Length, "road.length")
	if err != nil {
		return nil, err
	}
	road := &Road{
		ID:         xr.ID,
		Name:       xr.Name,
		JunctionID: xr.Junction,
		Length:     length,
		SpeedLimit: 13.89,
		RoadType:   "town",
	}
	if road.JunctionID == "" {
		road.JunctionID = "-1"
	}

	for _, g := range xr.PlanView.Geometries {
		seg, err := parseGeometry(g)
		if err != nil {
			return nil, err
		}
		road.Geometry = append(road.Geometry, seg)
	}

	if len(xr.Type) > 0 {
		t := xr.Type[0]
		if t.Type != "" {
			road.RoadType = t.Type
		}
		if t.Speed != nil && t.Speed.Max != "" {
			maxV, err := parseFloat(t.Speed.Max, "type/speed.max")
			if err != nil {
				return nil, err
			}
			road.SpeedLimit = normalizeSpeed(maxV, t.Speed.Unit)
		}
	}

	if len(xr.Lanes.Sections) > 0 {
		sec := xr.Lanes.Sections[0] // spec: no sub-sections beyond section 0
		if sec.Left != nil {
			for _, l := range sec.Left.Lanes {
				lane, ok, err := parseLane(l)
				if err != nil {
					return nil, err
				}
				if ok {
					road.LanesLeft = append(road.LanesLeft, lane)
				}
			}
		}
		if sec.Right != nil {
			for _, l := range sec.Right.Lanes {
				lane, ok, err := parseLane(l)
				if err != nil {
					return nil, err
				}
				if ok {
					road.LanesRight = append(road.LanesRight, lane)
				}
			}
		}
	}

	if xr.Link != nil {
		if xr.Link.Predecessor != nil {
			road.Predecessor = parseLinkRef(xr.Link.Predecessor)
		}
		if xr.Link.Successor != nil {
			road.Successor = parseLinkRef(xr.Link.Successor)
		}
	}

	if err := checkLengthBudget(road); err != nil {
		return nil, err
	}

	return road, nil
}

// checkLengthBudget enforces spec §3's invariant that segment lengths sum
// to the declared road length within 1%.
func checkLengthBudget(road *Road) error {
	if len(road.Geometry) == 0 {
		return nil
	}
	sum := 0.0
	for _, s := range road.Geometry {
		sum += s.Length
	}
	if road.Length == 0 {
		return nil
	}
	diff := sum - road.Length
	if diff < 0 {
		diff = -diff
	}
	if diff > 0.01*road.Length {
		return apperr.SourceFormat(
			"road %s: geometry length sum %.3f disagrees with declared length %.3f by more than 1%%",
			road.ID, sum, road.Length)
	}
	return nil
}

func normalizeSpeed(v float64, unit string) float64 {
	switch unit {
	case "kmh", "km/h":
		return v / 3.6
	case "mph":
		return v * 0.44704
	case "ms", "m/s", "":
		return v
	default:
		log.Warnf("unknown speed unit %q, treating as m/s", unit)
		return v
	}
}

func parseLinkRef(l *xmlLinkRef) *Link {
	kind := ElementRoad
	if l.ElementType == "junction" {
		kind = ElementJunction
	}
	cp := ContactPoint(l.ContactPoint)
	return &Link{Kind: kind, ElementID: l.ElementID, ContactPoint: cp}
}

func parseLane(l xmlLane) (Lane, bool, error) {
	lt := LaneType(l.Type)
	if !understoodLaneTypes[lt] {
		log.Debugf("dropping lane id=%s of unsupported type %q", l.ID, l.Type)
		return Lane{}, false, nil
	}
	id, err := strconv.Atoi(l.ID)
	if err != nil {
		return Lane{}, false, apperr.SourceFormatWrap(err, "bad lane id %q", l.ID)
	}
	width := 3.5
	for _, w := range l.Widths {
		a, err := strconv.ParseFloat(w.A, 64)
		if err != nil {
			continue
		}
		if a > 0.01 || a < -0.01 {
			width = a
			break
		}
	}
	lane := Lane{ID: id, Type: lt, Width: width}
	if l.Link != nil {
		if l.Link.Predecessor != nil {
			if v, err := strconv.Atoi(l.Link.Predecessor.ID); err == nil {
				lane.PredecessorLaneID = &v
			}
		}
		if l.Link.Successor != nil {
			if v, err := strconv.Atoi(l.Link.Successor.ID); err == nil {
				lane.SuccessorLaneID = &v
			}
		}
	}
	return lane, true, nil
}

func parseGeometry(g xmlGeometry) (GeometrySegment, error) {
	s, err := parseFloat(g.S, "geometry.s")
	if err != nil {
		return GeometrySegment{}, err
	}
	x, err := parseFloat(g.X, "geometry.x")
	if err != nil {
		return GeometrySegment{}, err
	}
	y, err := parseFloat(g.Y, "geometry.y")
	if err != nil {
		return GeometrySegment{}, err
	}
	hdg, err := parseFloat(g.Hdg, "geometry.hdg")
	if err != nil {
		return GeometrySegment{}, err
	}
	length, err := parseFloat(g.Length, "geometry.length")
	if err != nil {
		return GeometrySegment{}, err
	}

	seg := GeometrySegment{S: s, X0: x, Y0: y, Hdg: hdg, Length: length}

	switch {
	case g.Line != nil:
		seg.Kind = GeomLine
	case g.Arc != nil:
		seg.Kind = GeomArc
		k, err := parseFloat(g.Arc.Curvature, "arc.curvature")
		if err != nil {
			return GeometrySegment{}, err
		}
		seg.Curvature = k
	case g.Spiral != nil:
		seg.Kind = GeomSpiral
		ks, err := parseFloat(g.Spiral.CurvStart, "spiral.curvStart")
		if err != nil {
			return GeometrySegment{}, err
		}
		ke, err := parseFloat(g.Spiral.CurvEnd, "spiral.curvEnd")
		if err != nil {
			return GeometrySegment{}, err
		}
		seg.CurvStart = ks
		seg.CurvEnd = ke
	case g.Poly3 != nil:
		seg.Kind = GeomParamPoly3
		vals := []string{g.Poly3.AU, g.Poly3.BU, g.Poly3.CU, g.Poly3.DU,
			g.Poly3.AV, g.Poly3.BV, g.Poly3.CV, g.Poly3.DV}
		names := []string{"aU", "bU", "cU", "dU", "aV", "bV", "cV", "dV"}
		parsed := make([]float64, len(vals))
		for i, v := range vals {
			f, err := parseFloat(v, "paramPoly3."+names[i])
			if err != nil {
				return GeometrySegment{}, err
			}
			parsed[i] = f
		}
		seg.AU, seg.BU, seg.CU, seg.DU = parsed[0], parsed[1], parsed[2], parsed[3]
		seg.AV, seg.BV, seg.CV, seg.DV = parsed[4], parsed[5], parsed[6], parsed[7]
		if g.Poly3.PRange == "arcLength" {
			seg.Range = RangeArcLength
		} else {
			seg.Range = RangeNormalized
		}
	default:
		return GeometrySegment{}, apperr.SourceFormat(
			"geometry at s=%.3f has no recognized line|arc|spiral|paramPoly3 child", s)
	}

	return seg, nil
}

func parseConnection(xc xmlJuncConn) (Connection, error) {
	conn := Connection{
		ID:               xc.ID,
		IncomingRoadID:   xc.IncomingRoad,
		ConnectingRoadID: xc.ConnectingRoad,
		ContactPoint:     ContactPoint(xc.ContactPoint),
	}
	if conn.ContactPoint == "" {
		conn.ContactPoint = ContactStart
	}
	for _, ll := range xc.LaneLinks {
		from, err := strconv.Atoi(ll.From)
		if err != nil {
			return Connection{}, apperr.SourceFormatWrap(err, "bad laneLink from=%q", ll.From)
		}
		to, err := strconv.Atoi(ll.To)
		if err != nil {
			return Connection{}, apperr.SourceFormatWrap(err, "bad laneLink to=%q", ll.To)
		}
		conn.LaneLinks = append(conn.LaneLinks, LaneLink{From: from, To: to})
	}
	return conn, nil
}
