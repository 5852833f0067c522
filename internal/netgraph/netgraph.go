// Package netgraph holds the target-side network object model: the
// micro-traffic-simulator Node/Edge/Connection graph produced by Pass 4
// through Pass 6 and consumed by the Writer.
//
// 功能：目标网络的节点/边/连接/车道映射表数据结构，对应 spec §3 的
// Target Data Model。与 entity/road、entity/junction 的只读管理器模式
// 类似：每个 pass 只向自己拥有的切片/映射追加数据，下一个 pass 只读。
package netgraph

// Node is a network node: either a junction centroid, a free road
// endpoint, or one end of a materialized highway-merge.
type Node struct {
	ID string
	X  float64
	Y  float64
	// Type is one of "priority", "traffic_light", "dead_end" — spec §4.4.
	Type string
}

// Lane is one lane of an Edge, target-side.
type Lane struct {
	Index   int // 0-based, ascending source lane id (outward-to-inward for right lanes)
	Width   float64
	Disallow string // e.g. "all" for shoulder lanes; empty otherwise
}

// Edge is a directed network edge carrying one or more lanes.
type Edge struct {
	ID       string
	FromNode string
	ToNode   string
	Lanes    []Lane
	Shape    []Point // full polyline, including endpoints
	SpeedLimit float64
	SourceRoadID string // originating OpenDRIVE road, for diagnostics
}

// Point mirrors geom.Point without importing the geom package, keeping
// netgraph's data model independent of the geometry engine's internals.
type Point struct {
	X, Y float64
}

// Connection is one target-side junction movement: fromEdge/fromLane to
// toEdge/toLane, with an optional via-polyline.
type Connection struct {
	FromEdge string
	FromLane int
	ToEdge   string
	ToLane   int
	Via      []Point
}

// LaneKey is the exclusive key of the lane-mapping table (spec §3):
// (road_id, source_lane_id, direction) -> (edge_id, lane_index).
type LaneKey struct {
	RoadID   string
	SourceID int // OpenDRIVE signed lane id
	Forward  bool
}

// LaneTarget is the mapping table's value.
type LaneTarget struct {
	EdgeID string
	Index  int
}

// Graph is the full target-side network: the output of Pass 4-6.
type Graph struct {
	Nodes []*Node
	Edges []*Edge
	Conns []*Connection

	// LaneMap is populated once by the Edge & Lane Builder (Pass 5) and
	// read-only from Pass 6 onward.
	LaneMap map[LaneKey]LaneTarget
}

// NewGraph returns an empty, initialized Graph.
func NewGraph() *Graph {
	return &Graph{LaneMap: make(map[LaneKey]LaneTarget)}
}

// AddNode appends n to the graph.
func (g *Graph) AddNode(n *Node) { g.Nodes = append(g.Nodes, n) }

// AddEdge appends e to the graph.
func (g *Graph) AddEdge(e *Edge) { g.Edges = append(g.Edges, e) }

// AddConnection appends c to the graph.
func (g *Graph) AddConnection(c *Connection) { g.Conns = append(g.Conns, c) }

// MapLane records one (road,sourceID,direction) -> (edge,index) entry.
// Panics on a duplicate key: the lane-mapping table must be bijective
// (spec §3 invariant), and a collision is an internal-bug condition that
// the caller should have prevented, not a recoverable diagnostic.
func (g *Graph) MapLane(key LaneKey, target LaneTarget) {
	if _, exists := g.LaneMap[key]; exists {
		panic("netgraph: duplicate lane-mapping key " + key.RoadID)
	}
	g.LaneMap[key] = target
}

// LookupLane resolves a source lane reference to its target edge/index.
func (g *Graph) LookupLane(roadID string, sourceID int, forward bool) (LaneTarget, bool) {
	t, ok := g.LaneMap[LaneKey{RoadID: roadID, SourceID: sourceID, Forward: forward}]
	return t, ok
}
