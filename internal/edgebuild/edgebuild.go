// Package edgebuild implements Pass 5 of the compiler: emitting forward
// and backward Edges from each through-road (and mistagged long
// connector), populating every lane, and filling in the lane-mapping
// table, per spec §4.5.
//
// 功能：边与车道构建。每条 road 最多生成两条 edge（forward 对应
// right lane，backward 对应 left lane），车道按 OpenDRIVE 有符号 id
// 升序映射到 0 基目标索引（right lane 即由外到内）；路肩车道标记 disallow="all"。
// 车道映射表在本 pass 一次性写满，之后只读（netgraph.Graph.LaneMap）。
package edgebuild

import (
	"fmt"
	"sort"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/xodr-netcompile/internal/classify"
	"github.com/tsinghua-fib-lab/xodr-netcompile/internal/geom"
	"github.com/tsinghua-fib-lab/xodr-netcompile/internal/netgraph"
	"github.com/tsinghua-fib-lab/xodr-netcompile/internal/nodebuild"
	"github.com/tsinghua-fib-lab/xodr-netcompile/internal/xodr"
)

var log = logrus.WithField("component", "edgebuilder")

// Result records, per road id, the forward/backward edge ids created for
// it, so the Connection Builder can resolve incoming/outgoing edges
// without re-deriving them.
type Result struct {
	ForwardEdge map[string]string // road id -> edge id (right lanes, road direction)
	BackwardEdge map[string]string // road id -> edge id (left lanes, reverse direction)
}

// BuildEdges runs Pass 5.
func BuildEdges(doc *xodr.Document, cls *classify.Result, nodes *nodebuild.Result, g *netgraph.Graph) (*Result, error) {
	res := &Result{
		ForwardEdge:  make(map[string]string),
		BackwardEdge: make(map[string]string),
	}

	roadIDs := lo.Keys(nodes.RoadStartNode)
	sort.Strings(roadIDs)

	for _, rid := range roadIDs {
		road := doc.RoadByID[rid]
		if road == nil {
			continue
		}
		startNode, hasStart := nodes.RoadStartNode[rid]
		endNode, hasEnd := nodes.RoadEndNode[rid]
		if !hasStart || !hasEnd {
			log.Warnf("road %s missing an endpoint node, skipping edge emission", rid)
			continue
		}

		shape, err := geom.RoadPolyline(road)
		if err != nil {
			return nil, err
		}
		shapePts := toNetgraphPoints(shape)

		if len(road.LanesRight) > 0 {
			edgeID := fmt.Sprintf("%s.0", rid)
			edge := &netgraph.Edge{
				ID: edgeID, FromNode: startNode, ToNode: endNode,
				Shape: shapePts, SpeedLimit: road.SpeedLimit, SourceRoadID: rid,
			}
			buildLanes(edge, road.LanesRight, true, rid, g)
			g.AddEdge(edge)
			res.ForwardEdge[rid] = edgeID
		}

		if len(road.LanesLeft) > 0 {
			edgeID := fmt.Sprintf("%s.1", rid)
			reversed := reversePoints(shapePts)
			edge := &netgraph.Edge{
				ID: edgeID, FromNode: endNode, ToNode: startNode,
				Shape: reversed, SpeedLimit: road.SpeedLimit, SourceRoadID: rid,
			}
			buildLanes(edge, road.LanesLeft, false, rid, g)
			g.AddEdge(edge)
			res.BackwardEdge[rid] = edgeID
		}
	}

	return res, nil
}

// buildLanes sorts lanes by ascending OpenDRIVE signed id (spec §4.5),
// assigns 0-based target indices in that order, and registers each lane
// in the lane-mapping table.
func buildLanes(edge *netgraph.Edge, source []xodr.Lane, forward bool, roadID string, g *netgraph.Graph) {
	sorted := make([]xodr.Lane, len(source))
	copy(sorted, source)
	sort.Slice(sorted, func(i, j int) bool {
		// right lanes: ids are negative; outward-most has the most negative
		// id, so ascending order runs outward-to-inward (-3,-2,-1 -> 0,1,2).
		// left lanes: ids are positive; ascending order puts lane 1, next
		// to the centre line, at index 0 (1,2,3 -> 0,1,2).
		return sorted[i].ID < sorted[j].ID
	})

	for i, lane := range sorted {
		disallow := ""
		if lane.Type == xodr.LaneShoulder {
			disallow = "all"
		}
		edge.Lanes = append(edge.Lanes, netgraph.Lane{
			Index: i, Width: lane.Width, Disallow: disallow,
		})
		g.MapLane(
			netgraph.LaneKey{RoadID: roadID, SourceID: lane.ID, Forward: forward},
			netgraph.LaneTarget{EdgeID: edge.ID, Index: i},
		)
	}
}

func toNetgraphPoints(pts []geom.Point) []netgraph.Point {
	out := make([]netgraph.Point, len(pts))
	for i, p := range pts {
		out[i] = netgraph.Point{X: p.X, Y: p.Y}
	}
	return out
}

func reversePoints(pts []netgraph.Point) []netgraph.Point {
	out := make([]netgraph.Point, len(pts))
	for i, p := range pts {
		out[len(pts)-1-i] = p
	}
	return out
}
