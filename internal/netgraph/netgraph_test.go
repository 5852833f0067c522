package netgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookupLaneRoundTrip(t *testing.T) {
	g := NewGraph()
	key := LaneKey{RoadID: "r1", SourceID: -1, Forward: true}
	g.MapLane(key, LaneTarget{EdgeID: "e1", Index: 2})

	got, ok := g.LookupLane("r1", -1, true)
	assert.True(t, ok)
	assert.Equal(t, LaneTarget{EdgeID: "e1", Index: 2}, got)

	_, ok = g.LookupLane("r1", -1, false) // direction differs: no match
	assert.False(t, ok)
}

func TestMapLanePanicsOnDuplicateKey(t *testing.T) {
	g := NewGraph()
	key := LaneKey{RoadID: "r1", SourceID: -1, Forward: true}
	g.MapLane(key, LaneTarget{EdgeID: "e1", Index: 0})

	assert.Panics(t, func() {
		g.MapLane(key, LaneTarget{EdgeID: "e1", Index: 1})
	})
}

func TestAddNodeEdgeConnectionAppend(t *testing.T) {
	g := NewGraph()
	g.AddNode(&Node{ID: "n1"})
	g.AddEdge(&Edge{ID: "e1"})
	g.AddConnection(&Connection{FromEdge: "e1", ToEdge: "e1"})

	assert.Len(t, g.Nodes, 1)
	assert.Len(t, g.Edges, 1)
	assert.Len(t, g.Conns, 1)
}
