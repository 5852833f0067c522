// Package xodr holds the in-memory OpenDRIVE object model produced by the
// Parser pass and consumed by every later pass.
//
// 功能：定义 Road / Junction / Lane / GeometrySegment 等源数据结构，
// 对应 spec §3 的 Data Model；所有跨 pass 的交叉引用一律使用字符串 id，
// 通过 Document 的映射表解析，避免出现循环指针（参见 road/manager.go 的
// ID->对象映射模式，本包将其推广到地图编译场景）。
package xodr

// ContactPoint selects which end of a connecting/linked road is meant.
type ContactPoint string

const (
	ContactStart ContactPoint = "start"
	ContactEnd   ContactPoint = "end"
)

// ElementKind is the target kind of a predecessor/successor Link.
type ElementKind string

const (
	ElementRoad     ElementKind = "road"
	ElementJunction ElementKind = "junction"
)

// Link records a road's predecessor or successor reference.
type Link struct {
	Kind         ElementKind
	ElementID    string
	ContactPoint ContactPoint // only meaningful when Kind == ElementRoad
}

// LaneType enumerates the source lane types the parser understands.
// Unknown types are dropped silently per spec §4.1 contract (iv).
type LaneType string

const (
	LaneDriving  LaneType = "driving"
	LaneShoulder LaneType = "shoulder"
	LaneSidewalk LaneType = "sidewalk"
	LaneBiking   LaneType = "biking"
	LaneEntry    LaneType = "entry"
	LaneExit     LaneType = "exit"
	LaneOnRamp   LaneType = "onRamp"
	LaneOffRamp  LaneType = "offRamp"
)

// understoodLaneTypes is the set the parser keeps; everything else is
// dropped (spec §4.1 contract iv).
var understoodLaneTypes = map[LaneType]bool{
	LaneDriving:  true,
	LaneShoulder: true,
	LaneSidewalk: true,
	LaneBiking:   true,
	LaneEntry:    true,
	LaneExit:     true,
	LaneOnRamp:   true,
	LaneOffRamp:  true,
}

// Lane is a single signed-id lane within one side of one road.
type Lane struct {
	ID    int // signed; positive=left, negative=right
	Type  LaneType
	Width float64 // meters, > 0

	// Successor/Predecessor carry the source's explicit lane-link id, when
	// the road itself is used as a junction connecting road (spec §4.6
	// step 2). nil means "absent".
	SuccessorLaneID   *int
	PredecessorLaneID *int
}

// GeomKind tags the parametric primitive variant of a GeometrySegment.
type GeomKind int

const (
	GeomLine GeomKind = iota
	GeomArc
	GeomSpiral
	GeomParamPoly3
)

// RangeKind distinguishes ParamPoly3's parameter domain.
type RangeKind int

const (
	RangeNormalized RangeKind = iota // u,v in [0,1]
	RangeArcLength                   // u,v in [0,length]
)

// GeometrySegment is the tagged-variant primitive of spec §3. Only the
// fields relevant to Kind are populated; all sites that consume geometry
// switch exhaustively on Kind (design note in spec §9).
type GeometrySegment struct {
	S      float64
	X0, Y0 float64
	Hdg    float64
	Length float64
	Kind   GeomKind

	// Arc
	Curvature float64

	// Spiral
	CurvStart float64
	CurvEnd   float64

	// ParamPoly3
	AU, BU, CU, DU float64
	AV, BV, CV, DV float64
	Range          RangeKind
}

// Road is the source road object, spec §3.
type Road struct {
	ID          string
	Name        string
	JunctionID  string // "-1" for through-roads
	Length      float64
	Geometry    []GeometrySegment
	LanesLeft   []Lane // positive ids, ascending order as parsed
	LanesRight  []Lane // negative ids, ascending order as parsed
	Predecessor *Link
	Successor   *Link
	RoadType    string
	SpeedLimit  float64 // m/s, unit-normalized at parse time
}

// LaneLink is one from->to lane pairing inside a junction Connection.
type LaneLink struct {
	From int
	To   int
}

// Connection is one OpenDRIVE junction connection element, spec §3.
type Connection struct {
	ID              string
	IncomingRoadID  string
	ConnectingRoadID string
	ContactPoint    ContactPoint
	LaneLinks       []LaneLink
}

// Junction is the source junction object, spec §3.
type Junction struct {
	ID          string
	Connections []Connection
}

// Document is the fully parsed OpenDRIVE object model: the output of
// Pass 1 (Parser) and the input to Pass 2 (Classifier).
type Document struct {
	GeoReference string // optional coordinate-system reference string

	Roads        []*Road
	RoadByID     map[string]*Road
	Junctions    []*Junction
	JunctionByID map[string]*Junction
}

// NewDocument returns an empty, initialized Document.
func NewDocument() *Document {
	return &Document{
		RoadByID:     make(map[string]*Road),
		JunctionByID: make(map[string]*Junction),
	}
}

// AddRoad appends a road and indexes it by id.
func (d *Document) AddRoad(r *Road) {
	d.Roads = append(d.Roads, r)
	d.RoadByID[r.ID] = r
}

// AddJunction appends a junction and indexes it by id.
func (d *Document) AddJunction(j *Junction) {
	d.Junctions = append(d.Junctions, j)
	d.JunctionByID[j.ID] = j
}
