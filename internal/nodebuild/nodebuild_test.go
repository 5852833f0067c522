package nodebuild

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/xodr-netcompile/internal/classify"
	"github.com/tsinghua-fib-lab/xodr-netcompile/internal/netgraph"
	"github.com/tsinghua-fib-lab/xodr-netcompile/internal/xodr"
)

func straight(id string, x0 float64) *xodr.Road {
	return &xodr.Road{
		ID: id, JunctionID: "-1", Length: 50,
		Geometry: []xodr.GeometrySegment{{X0: x0, Y0: 0, Hdg: 0, Length: 50, Kind: xodr.GeomLine}},
		LanesRight: []xodr.Lane{{ID: -1, Type: xodr.LaneDriving, Width: 3.5}},
	}
}

func TestSharedEndpointDedupedWithin1cm(t *testing.T) {
	doc := xodr.NewDocument()
	r1 := straight("r1", 0)   // spans (0,0) -> (50,0)
	r2 := straight("r2", 50)  // starts at (50,0), exactly where r1 ends
	doc.AddRoad(r1)
	doc.AddRoad(r2)

	cls := classify.Classify(doc)
	g := netgraph.NewGraph()
	res, err := BuildNodes(doc, cls, g)
	assert.NoError(t, err)

	assert.Equal(t, res.RoadEndNode["r1"], res.RoadStartNode["r2"])
	// Four endpoints total, one shared: three distinct nodes.
	assert.Len(t, g.Nodes, 3)
}

func TestDeadEndNodeTypeWhenNoLink(t *testing.T) {
	doc := xodr.NewDocument()
	doc.AddRoad(straight("solo", 0))
	cls := classify.Classify(doc)
	g := netgraph.NewGraph()
	_, err := BuildNodes(doc, cls, g)
	assert.NoError(t, err)

	for _, n := range g.Nodes {
		assert.Equal(t, "dead_end", n.Type)
	}
}

// TestJunctionGetsSingleCentroidNode builds three arms whose endpoints at
// the junction are each more than 1cm apart (so the old coordinate-dedup
// scheme would have created three distinct boundary nodes) and checks
// that exactly one junction node is emitted, at the arithmetic centroid of
// the three arm endpoints.
func TestJunctionGetsSingleCentroidNode(t *testing.T) {
	doc := xodr.NewDocument()

	mkArm := func(id string, x0 float64) *xodr.Road {
		r := &xodr.Road{
			ID: id, JunctionID: "-1", Length: 50,
			Geometry:   []xodr.GeometrySegment{{X0: x0, Y0: 0, Hdg: 0, Length: 50, Kind: xodr.GeomLine}},
			LanesRight: []xodr.Lane{{ID: -1, Type: xodr.LaneDriving, Width: 3.5}},
			Successor:  &xodr.Link{Kind: xodr.ElementJunction, ElementID: "j1"},
		}
		return r
	}

	a := mkArm("a", 0)   // ends at (50,0)
	b := mkArm("b", 0.5) // ends at (50.5,0)
	c := mkArm("c", 1.0) // ends at (51.0,0)
	doc.AddRoad(a)
	doc.AddRoad(b)
	doc.AddRoad(c)

	cls := classify.Classify(doc)
	g := netgraph.NewGraph()
	res, err := BuildNodes(doc, cls, g)
	assert.NoError(t, err)

	jNode, ok := res.JunctionNode["j1"]
	if assert.True(t, ok) {
		assert.Equal(t, jNode, res.RoadEndNode["a"])
		assert.Equal(t, jNode, res.RoadEndNode["b"])
		assert.Equal(t, jNode, res.RoadEndNode["c"])
	}

	// 3 dead-end starts + 1 shared junction node.
	assert.Len(t, g.Nodes, 4)

	for _, n := range g.Nodes {
		if n.ID == jNode {
			assert.InDelta(t, 50.5, n.X, 1e-9) // centroid of 50, 50.5, 51.0
			assert.InDelta(t, 0.0, n.Y, 1e-9)
		}
	}
}
