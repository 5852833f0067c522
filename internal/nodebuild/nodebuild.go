// Package nodebuild implements Pass 4 of the compiler: materializing
// network Nodes from road endpoints, junction centers, and highway-merge
// start/end points, per spec §4.4 and §4.7.
//
// 功能：节点构建。为每条 through-road 的端点、每个非合流 junction、
// 以及每个 highway-merge 记录生成目标节点，1cm 容差去重。每个非合流
// junction 只生成一个节点，坐标取其所有关联端点（经过该 junction 的
// through-road 端点，以及属于该 junction 的每条 connecting road 的首尾点）
// 的算术质心。
// 说明：节点创建顺序固定（按 road id 排序后再按 junction id 排序），
// 保证同一输入多次编译产生完全一致的节点 id 分配（spec §8 幂等性要求）。
package nodebuild

import (
	"fmt"
	"math"
	"sort"

	"github.com/tsinghua-fib-lab/xodr-netcompile/internal/classify"
	"github.com/tsinghua-fib-lab/xodr-netcompile/internal/geom"
	"github.com/tsinghua-fib-lab/xodr-netcompile/internal/netgraph"
	"github.com/tsinghua-fib-lab/xodr-netcompile/internal/xodr"
)

const dedupTolerance = 0.01 // 1cm, spec §4.4

// trafficLightArmThreshold and trafficLightLaneThreshold implement the
// complexity rule of spec §4.4: a junction gets a traffic_light node instead
// of priority when it has at least trafficLightArmThreshold arms and more
// than 8 incoming driving lanes, or exactly trafficLightArmThreshold arms
// and more than trafficLightLaneThreshold incoming driving lanes.
const (
	trafficLightArmThreshold  = 4
	trafficLightLaneThreshold = 6
)

// Result records, for every road endpoint and every junction, which
// target node it resolved to. Pass 5 and Pass 6 read it; nothing writes
// it after BuildNodes returns.
type Result struct {
	// RoadStartNode / RoadEndNode map road id -> node id, for through-roads
	// and long-connector roads (spec §4.2's mistagged connectors).
	RoadStartNode map[string]string
	RoadEndNode   map[string]string

	// JunctionNode maps a non-highway-merge junction id to its centroid node.
	JunctionNode map[string]string
}

type nodeIndex struct {
	g      *netgraph.Graph
	byKey  map[string]*netgraph.Node
	serial int
}

func newNodeIndex(g *netgraph.Graph) *nodeIndex {
	return &nodeIndex{g: g, byKey: make(map[string]*netgraph.Node)}
}

func coordKey(p geom.Point) string {
	return fmt.Sprintf("%.2f,%.2f", p.X, p.Y)
}

// getOrCreate returns the existing node within dedupTolerance of p, or
// creates a new one of the given type.
func (idx *nodeIndex) getOrCreate(p geom.Point, typ string) *netgraph.Node {
	key := coordKey(p)
	if n, ok := idx.byKey[key]; ok {
		return n
	}
	for _, n := range idx.g.Nodes {
		if math.Abs(n.X-p.X) < dedupTolerance && math.Abs(n.Y-p.Y) < dedupTolerance {
			idx.byKey[key] = n
			return n
		}
	}
	idx.serial++
	n := &netgraph.Node{ID: fmt.Sprintf("n%d", idx.serial), X: p.X, Y: p.Y, Type: typ}
	idx.g.AddNode(n)
	idx.byKey[key] = n
	return n
}

func (idx *nodeIndex) newNode(p geom.Point, typ string) *netgraph.Node {
	idx.serial++
	n := &netgraph.Node{ID: fmt.Sprintf("n%d", idx.serial), X: p.X, Y: p.Y, Type: typ}
	idx.g.AddNode(n)
	return n
}

// BuildNodes runs Pass 4.
func BuildNodes(doc *xodr.Document, cls *classify.Result, g *netgraph.Graph) (*Result, error) {
	res := &Result{
		RoadStartNode: make(map[string]string),
		RoadEndNode:   make(map[string]string),
		JunctionNode:  make(map[string]string),
	}
	idx := newNodeIndex(g)

	roadIDs := materializedRoadIDs(doc, cls)

	merges := cls.HighwayMerges
	mergeRoadIDs := make(map[string]*classify.MergeRecord) // road id -> its merge record (main/ramp/outgoing)
	for _, rec := range merges {
		mergeRoadIDs[rec.MainRoadID] = rec
		mergeRoadIDs[rec.RampRoadID] = rec
		mergeRoadIDs[rec.OutgoingRoadID] = rec
	}

	// Pass A: highway-merge nodes first, so their coordinates seed the
	// dedup index before generic endpoint processing runs over the same
	// physical points.
	mergeIDs := sortedMergeJunctionIDs(merges)
	for _, jid := range mergeIDs {
		rec := merges[jid]
		main := doc.RoadByID[rec.MainRoadID]
		if main == nil {
			continue
		}
		startPt, ok := geom.RoadEnd(main)
		if !ok {
			startPt, _ = geom.RoadStart(main)
		}
		endPt, ok := geom.RoadStart(doc.RoadByID[rec.OutgoingRoadID])
		if !ok {
			endPt = startPt
		}
		startNode := idx.newNode(startPt, "priority")
		endNode := idx.newNode(endPt, "priority")
		rec.MergeStartNode = startNode.ID
		rec.MergeEndNode = endNode.ID
	}

	// Pass B1: one centroid node per non-merge junction that has any
	// associated endpoint, built before road endpoints so Pass B2 can just
	// look the node id up instead of re-deriving it from coordinates.
	junctionNodes := idx.buildJunctionNodes(doc, cls)
	for jid, n := range junctionNodes {
		res.JunctionNode[jid] = n.ID
	}

	// Pass B2: free and road-to-road endpoints.
	for _, rid := range roadIDs {
		road := doc.RoadByID[rid]
		if road == nil {
			continue
		}
		startPt, okS := geom.RoadStart(road)
		endPt, okE := geom.RoadEnd(road)

		if okS {
			res.RoadStartNode[rid] = idx.resolveEndpoint(road, road.Predecessor, startPt, mergeRoadIDs, res.JunctionNode)
		}
		if okE {
			res.RoadEndNode[rid] = idx.resolveEndpoint(road, road.Successor, endPt, mergeRoadIDs, res.JunctionNode)
		}
	}

	// Pass C: junction node type classification for every non-merge
	// junction that actually received a node.
	classifyJunctionTypes(doc, g, res)

	return res, nil
}

// buildJunctionNodes creates one node per non-merge junction referenced by
// any road, at the arithmetic centroid of (a) every through-road endpoint
// whose predecessor/successor targets the junction and (b) the start/end
// point of every road belonging to the junction (spec §4.4).
func (idx *nodeIndex) buildJunctionNodes(doc *xodr.Document, cls *classify.Result) map[string]*netgraph.Node {
	points := make(map[string][]geom.Point)
	add := func(jid string, p geom.Point, ok bool) {
		if !ok {
			return
		}
		points[jid] = append(points[jid], p)
	}

	for _, road := range doc.Roads {
		if road.Predecessor != nil && road.Predecessor.Kind == xodr.ElementJunction {
			if _, isMerge := cls.HighwayMerges[road.Predecessor.ElementID]; !isMerge {
				p, ok := geom.RoadStart(road)
				add(road.Predecessor.ElementID, p, ok)
			}
		}
		if road.Successor != nil && road.Successor.Kind == xodr.ElementJunction {
			if _, isMerge := cls.HighwayMerges[road.Successor.ElementID]; !isMerge {
				p, ok := geom.RoadEnd(road)
				add(road.Successor.ElementID, p, ok)
			}
		}
		if road.JunctionID != "-1" {
			if _, isMerge := cls.HighwayMerges[road.JunctionID]; !isMerge {
				if p, ok := geom.RoadStart(road); ok {
					add(road.JunctionID, p, true)
				}
				if p, ok := geom.RoadEnd(road); ok {
					add(road.JunctionID, p, true)
				}
			}
		}
	}

	ids := make([]string, 0, len(points))
	for jid := range points {
		ids = append(ids, jid)
	}
	sort.Strings(ids)

	nodes := make(map[string]*netgraph.Node, len(ids))
	for _, jid := range ids {
		pts := points[jid]
		var sx, sy float64
		for _, p := range pts {
			sx += p.X
			sy += p.Y
		}
		centroid := geom.Point{X: sx / float64(len(pts)), Y: sy / float64(len(pts))}
		nodes[jid] = idx.newNode(centroid, "priority")
	}
	return nodes
}

// resolveEndpoint returns the node id for one end of road, creating it if
// necessary. If the link at this end is a highway-merge participant, the
// pre-built merge node is reused; if it targets an ordinary junction, the
// junction's precomputed centroid node is reused.
func (idx *nodeIndex) resolveEndpoint(road *xodr.Road, link *xodr.Link, pt geom.Point, mergeRoadIDs map[string]*classify.MergeRecord, junctionNodes map[string]string) string {
	if rec, ok := mergeRoadIDs[road.ID]; ok && link != nil &&
		((link.Kind == xodr.ElementJunction && link.ElementID == rec.JunctionID) ||
			(link.Kind == xodr.ElementRoad && (link.ElementID == rec.MainConnectingRoadID || link.ElementID == rec.RampConnectingRoadID))) {
		switch road.ID {
		case rec.MainRoadID, rec.RampRoadID:
			return rec.MergeStartNode
		case rec.OutgoingRoadID:
			return rec.MergeEndNode
		}
	}

	if link == nil {
		return idx.getOrCreate(pt, "dead_end").ID
	}

	if link.Kind == xodr.ElementJunction {
		if nodeID, ok := junctionNodes[link.ElementID]; ok {
			return nodeID
		}
		// No centroid on record for this junction id (should not happen
		// once buildJunctionNodes has run over every road); fall back to a
		// coordinate-based node rather than dropping the endpoint.
		return idx.getOrCreate(pt, "priority").ID
	}

	return idx.getOrCreate(pt, "priority").ID // ElementRoad: a direct road-to-road splice
}

// materializedRoadIDs returns every road id that needs an endpoint node:
// all through-roads, plus mistagged long connectors (spec §4.2).
func materializedRoadIDs(doc *xodr.Document, cls *classify.Result) []string {
	var ids []string
	for _, r := range doc.Roads {
		if cls.IsThrough(r.ID) || cls.IsLongConnector(r.ID) {
			ids = append(ids, r.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

func sortedMergeJunctionIDs(merges map[string]*classify.MergeRecord) []string {
	ids := make([]string, 0, len(merges))
	for id := range merges {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// classifyJunctionTypes assigns each junction-derived node's Type based on
// the arm count and incoming driving-lane count of the through-roads that
// terminate there (spec §4.4).
func classifyJunctionTypes(doc *xodr.Document, g *netgraph.Graph, res *Result) {
	armsByNode := make(map[string]int)
	lanesByNode := make(map[string]int)

	record := func(nodeID, roadID string) {
		road := doc.RoadByID[roadID]
		if road == nil {
			return
		}
		armsByNode[nodeID]++
		lanesByNode[nodeID] += countDrivingLanes(road.LanesRight)
	}

	for rid, nodeID := range res.RoadStartNode {
		record(nodeID, rid)
	}
	for rid, nodeID := range res.RoadEndNode {
		record(nodeID, rid)
	}

	for _, n := range g.Nodes {
		if n.Type != "priority" {
			continue
		}
		arms := armsByNode[n.ID]
		lanes := lanesByNode[n.ID]
		// spec §4.4: two separate clauses, not a single arms-or-lanes
		// threshold — (arms>=4 AND lanes>8) OR (arms==4 AND lanes>6).
		if (arms >= trafficLightArmThreshold && lanes > 8) || (arms == trafficLightArmThreshold && lanes > trafficLightLaneThreshold) {
			n.Type = "traffic_light"
		}
	}
}

func countDrivingLanes(lanes []xodr.Lane) int {
	n := 0
	for _, l := range lanes {
		if l.Type == xodr.LaneDriving {
			n++
		}
	}
	return n
}
