// Package connbuild implements Pass 6 of the compiler: resolving every
// junction connection's lane-link chain into a target Connection, and
// materializing the highway-merge edge described by spec §4.7.
//
// 功能：连接构建。对每个 junction connection 解析 from-lane -> 经由
// connecting road -> to-lane 的完整链条，生成 via 折线；对高速合流
// junction，额外生成合流边及其专属的连接规则。缺失显式 successor/
// predecessor lane id 时按保号恒等映射处理；每条生成的 Connection 还需
// 通过 from_edge.to_node == junction_node == to_edge.from_node 校验。
// 说明：本 pass 只读取 Pass 4/5 产生的节点与车道映射表，只向
// netgraph.Graph 追加 Connection（以及合流场景下的 Edge），不回写
// 上游结构——沿用全流程单写者的数据所有权约定。
package connbuild

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/xodr-netcompile/internal/apperr"
	"github.com/tsinghua-fib-lab/xodr-netcompile/internal/classify"
	"github.com/tsinghua-fib-lab/xodr-netcompile/internal/edgebuild"
	"github.com/tsinghua-fib-lab/xodr-netcompile/internal/geom"
	"github.com/tsinghua-fib-lab/xodr-netcompile/internal/netgraph"
	"github.com/tsinghua-fib-lab/xodr-netcompile/internal/nodebuild"
	"github.com/tsinghua-fib-lab/xodr-netcompile/internal/xodr"
)

var log = logrus.WithField("component", "connbuilder")

// BuildConnections runs Pass 6: ordinary junction connections first, then
// highway-merge materialization for any junction the Classifier flagged.
func BuildConnections(doc *xodr.Document, cls *classify.Result, nodes *nodebuild.Result, edges *edgebuild.Result, g *netgraph.Graph) error {
	stats := connectionStats{}

	edgeByID := make(map[string]*netgraph.Edge, len(g.Edges))
	for _, e := range g.Edges {
		edgeByID[e.ID] = e
	}

	for _, j := range doc.Junctions {
		if _, isMerge := cls.HighwayMerges[j.ID]; isMerge {
			continue // handled by buildHighwayMerge below
		}
		junctionNode := nodes.JunctionNode[j.ID]
		for _, c := range j.Connections {
			stats.total++
			if err := resolveConnection(doc, g, edgeByID, junctionNode, c); err != nil {
				stats.skipped++
				log.Warnf("junction %s connection %s skipped: %v", j.ID, c.ID, err)
				continue
			}
			stats.resolved++
		}
	}

	ids := make([]string, 0, len(cls.HighwayMerges))
	for id := range cls.HighwayMerges {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := buildHighwayMerge(doc, cls.HighwayMerges[id], edges, g); err != nil {
			return err
		}
	}

	log.Infof("connections: %d/%d resolved, %d skipped", stats.resolved, stats.total, stats.skipped)
	return nil
}

// connectionStats tallies resolution outcomes across ordinary (non-merge)
// junction connections, for an end-of-pass operator summary.
type connectionStats struct {
	total    int
	resolved int
	skipped  int
}

// laneByID finds the lane with the given signed id among a road's two
// sides; connecting roads address lanes by a single signed id regardless
// of side, since every lane on a connecting road is on whichever side its
// sign implies.
func laneByID(road *xodr.Road, id int) *xodr.Lane {
	for i := range road.LanesLeft {
		if road.LanesLeft[i].ID == id {
			return &road.LanesLeft[i]
		}
	}
	for i := range road.LanesRight {
		if road.LanesRight[i].ID == id {
			return &road.LanesRight[i]
		}
	}
	return nil
}

// resolveConnection turns one OpenDRIVE junction connection into zero or
// more target Connections, one per lane-link. junctionNode is the centroid
// node this connection's junction resolved to (empty if the junction never
// received one); every emitted Connection must route through it (spec §4.6
// step 4 / §4.4's incidence invariant).
func resolveConnection(doc *xodr.Document, g *netgraph.Graph, edgeByID map[string]*netgraph.Edge, junctionNode string, c xodr.Connection) error {
	connRoad := doc.RoadByID[c.ConnectingRoadID]
	if connRoad == nil {
		return apperrSkip("connecting road %s not found", c.ConnectingRoadID)
	}

	var outgoingLink *xodr.Link
	if c.ContactPoint == xodr.ContactEnd {
		outgoingLink = connRoad.Predecessor
	} else {
		outgoingLink = connRoad.Successor
	}
	if outgoingLink == nil || outgoingLink.Kind != xodr.ElementRoad {
		return apperrSkip("connecting road %s has no resolvable outgoing road", c.ConnectingRoadID)
	}
	outgoingRoadID := outgoingLink.ElementID

	viaPts, err := viaPolyline(connRoad, c.ContactPoint)
	if err != nil {
		return err
	}

	for _, ll := range c.LaneLinks {
		connLane := laneByID(connRoad, ll.To)
		if connLane == nil {
			log.Warnf("connection %s: connecting lane %d not found, skipping link", c.ID, ll.To)
			continue
		}
		if connLane.Type == xodr.LaneShoulder {
			continue // shoulder lanes carry no routing (spec §4.6 skip policy)
		}

		fromForward := ll.From < 0
		fromTarget, ok := g.LookupLane(c.IncomingRoadID, ll.From, fromForward)
		if !ok {
			log.Warnf("connection %s: incoming lane (%s,%d) has no mapped edge, skipping", c.ID, c.IncomingRoadID, ll.From)
			continue
		}

		// spec §4.6 step 2: when the connecting lane carries no explicit
		// successor/predecessor lane id, assume identity mapping preserving
		// sign — the outgoing lane is ll.To itself, sign-flipped only on
		// the contact_point=end side, same as the explicit-link case.
		var outgoingLaneID int
		if c.ContactPoint == xodr.ContactEnd {
			if connLane.PredecessorLaneID != nil {
				outgoingLaneID = -*connLane.PredecessorLaneID
			} else {
				outgoingLaneID = -ll.To
			}
		} else {
			if connLane.SuccessorLaneID != nil {
				outgoingLaneID = *connLane.SuccessorLaneID
			} else {
				outgoingLaneID = ll.To
			}
		}

		outgoingForward := outgoingLaneID < 0
		toTarget, ok := g.LookupLane(outgoingRoadID, outgoingLaneID, outgoingForward)
		if !ok {
			log.Warnf("connection %s: outgoing lane (%s,%d) has no mapped edge, skipping", c.ID, outgoingRoadID, outgoingLaneID)
			continue
		}

		if junctionNode != "" {
			fromEdge, toEdge := edgeByID[fromTarget.EdgeID], edgeByID[toTarget.EdgeID]
			if fromEdge == nil || toEdge == nil || fromEdge.ToNode != junctionNode || toEdge.FromNode != junctionNode {
				log.Warnf("connection %s: node incidence mismatch (want junction node %s), skipping", c.ID, junctionNode)
				continue
			}
		}

		g.AddConnection(&netgraph.Connection{
			FromEdge: fromTarget.EdgeID, FromLane: fromTarget.Index,
			ToEdge: toTarget.EdgeID, ToLane: toTarget.Index,
			Via: viaPts,
		})
	}
	return nil
}

// viaPolyline extracts the connecting road's interior shape points (its
// first and last point are dropped since they coincide with the junction
// node already emitted at the incoming/outgoing edge's endpoint), reversed
// when the connection traverses it end-to-start.
func viaPolyline(connRoad *xodr.Road, cp xodr.ContactPoint) ([]netgraph.Point, error) {
	pts, err := geom.RoadPolyline(connRoad)
	if err != nil {
		return nil, err
	}
	if len(pts) <= 2 {
		return nil, nil
	}
	interior := pts[1 : len(pts)-1]
	out := make([]netgraph.Point, len(interior))
	if cp == xodr.ContactEnd {
		for i, p := range interior {
			out[len(interior)-1-i] = netgraph.Point{X: p.X, Y: p.Y}
		}
	} else {
		for i, p := range interior {
			out[i] = netgraph.Point{X: p.X, Y: p.Y}
		}
	}
	return out, nil
}

// buildHighwayMerge materializes the single merge edge of spec §4.7:
// main_road.right_lane_count+1 lanes, index 0 the acceleration lane fed by
// the ramp, indices 1..n fed by the main road's own lanes in order.
func buildHighwayMerge(doc *xodr.Document, rec *classify.MergeRecord, edges *edgebuild.Result, g *netgraph.Graph) error {
	mainRoad := doc.RoadByID[rec.MainRoadID]
	rampRoad := doc.RoadByID[rec.RampRoadID]
	outgoingRoad := doc.RoadByID[rec.OutgoingRoadID]
	mainConnRoad := doc.RoadByID[rec.MainConnectingRoadID]
	rampConnRoad := doc.RoadByID[rec.RampConnectingRoadID]
	if mainRoad == nil || rampRoad == nil || outgoingRoad == nil || mainConnRoad == nil {
		return apperrSkip("highway merge %s missing a participant road", rec.JunctionID)
	}

	shape, err := geom.RoadPolyline(mainConnRoad)
	if err != nil {
		return err
	}
	shapePts := make([]netgraph.Point, len(shape))
	for i, p := range shape {
		shapePts[i] = netgraph.Point{X: p.X, Y: p.Y}
	}

	mergeEdgeID := fmt.Sprintf("e_merge_%s", rec.JunctionID)
	mainLaneCount := len(mainRoad.LanesRight)
	edge := &netgraph.Edge{
		ID: mergeEdgeID, FromNode: rec.MergeStartNode, ToNode: rec.MergeEndNode,
		Shape: shapePts, SpeedLimit: mainRoad.SpeedLimit, SourceRoadID: mainConnRoad.ID,
	}

	accelWidth := 3.5
	if len(rampRoad.LanesRight) > 0 {
		accelWidth = rampRoad.LanesRight[0].Width
	}
	edge.Lanes = append(edge.Lanes, netgraph.Lane{Index: 0, Width: accelWidth})

	mainConnLanes := sortedDrivingLanes(mainConnRoad.LanesRight)
	for i, lane := range mainConnLanes {
		idx := i + 1
		edge.Lanes = append(edge.Lanes, netgraph.Lane{Index: idx, Width: lane.Width})
		g.MapLane(netgraph.LaneKey{RoadID: mainConnRoad.ID, SourceID: lane.ID, Forward: true}, netgraph.LaneTarget{EdgeID: mergeEdgeID, Index: idx})
	}
	if rampConnRoad != nil {
		rampLanes := sortedDrivingLanes(rampConnRoad.LanesRight)
		if len(rampLanes) > 0 {
			g.MapLane(netgraph.LaneKey{RoadID: rampConnRoad.ID, SourceID: rampLanes[0].ID, Forward: true}, netgraph.LaneTarget{EdgeID: mergeEdgeID, Index: 0})
		}
	}
	g.AddEdge(edge)

	outgoingEdgeID, ok := edges.ForwardEdge[outgoingRoad.ID]
	if !ok {
		return apperrSkip("highway merge %s: outgoing road %s has no forward edge", rec.JunctionID, outgoingRoad.ID)
	}
	mergeLaneCount := mainLaneCount + 1
	for i := 0; i < mergeLaneCount; i++ {
		g.AddConnection(&netgraph.Connection{
			FromEdge: mergeEdgeID, FromLane: i,
			ToEdge: outgoingEdgeID, ToLane: i,
		})
	}
	return nil
}

func sortedDrivingLanes(lanes []xodr.Lane) []xodr.Lane {
	var out []xodr.Lane
	for _, l := range lanes {
		if l.Type == xodr.LaneDriving {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func apperrSkip(format string, args ...any) error {
	return apperr.Diagnostic(format, args...)
}
