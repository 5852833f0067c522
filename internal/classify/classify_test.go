package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/xodr-netcompile/internal/xodr"
)

func road(id, junction string, length float64, lanesRight int) *xodr.Road {
	r := &xodr.Road{ID: id, JunctionID: junction, Length: length}
	for i := 1; i <= lanesRight; i++ {
		r.LanesRight = append(r.LanesRight, xodr.Lane{ID: -i, Type: xodr.LaneDriving, Width: 3.5})
	}
	return r
}

func TestClassifyThroughRoad(t *testing.T) {
	doc := xodr.NewDocument()
	doc.AddRoad(road("1", "-1", 100, 2))
	cls := Classify(doc)
	assert.True(t, cls.IsThrough("1"))
	assert.False(t, cls.IsConnecting("1"))
}

func TestClassifyConnectingRoadIsNotThrough(t *testing.T) {
	doc := xodr.NewDocument()
	doc.AddRoad(road("conn", "-1", 5, 1))
	doc.AddJunction(&xodr.Junction{
		ID: "j1",
		Connections: []xodr.Connection{
			{ID: "c1", IncomingRoadID: "a", ConnectingRoadID: "conn", ContactPoint: xodr.ContactStart},
		},
	})
	cls := Classify(doc)
	assert.False(t, cls.IsThrough("conn"))
	assert.True(t, cls.IsConnecting("conn"))
	assert.False(t, cls.IsLongConnector("conn")) // 5m < 10m threshold
}

func TestClassifyLongMistaggedConnector(t *testing.T) {
	doc := xodr.NewDocument()
	doc.AddRoad(road("conn", "-1", 15, 1))
	doc.AddJunction(&xodr.Junction{
		ID: "j1",
		Connections: []xodr.Connection{
			{ID: "c1", IncomingRoadID: "a", ConnectingRoadID: "conn", ContactPoint: xodr.ContactStart},
		},
	})
	cls := Classify(doc)
	assert.True(t, cls.IsLongConnector("conn"))
}

func TestDetectHighwayMerge(t *testing.T) {
	doc := xodr.NewDocument()
	main := road("main", "-1", 500, 3)
	ramp := road("ramp", "-1", 500, 1)
	outgoing := road("out", "-1", 500, 4)
	mainConn := road("mc", "-1", 200, 3)
	rampConn := road("rc", "-1", 200, 1)

	mainConn.Predecessor = &xodr.Link{Kind: xodr.ElementRoad, ElementID: "main"}
	mainConn.Successor = &xodr.Link{Kind: xodr.ElementRoad, ElementID: "out"}
	rampConn.Predecessor = &xodr.Link{Kind: xodr.ElementRoad, ElementID: "ramp"}
	rampConn.Successor = &xodr.Link{Kind: xodr.ElementRoad, ElementID: "out"}

	for _, r := range []*xodr.Road{main, ramp, outgoing, mainConn, rampConn} {
		doc.AddRoad(r)
	}
	doc.AddJunction(&xodr.Junction{
		ID: "jmerge",
		Connections: []xodr.Connection{
			{ID: "c1", IncomingRoadID: "main", ConnectingRoadID: "mc", ContactPoint: xodr.ContactStart},
			{ID: "c2", IncomingRoadID: "ramp", ConnectingRoadID: "rc", ContactPoint: xodr.ContactStart},
		},
	})

	cls := Classify(doc)
	rec, ok := cls.HighwayMerges["jmerge"]
	if assert.True(t, ok) {
		assert.Equal(t, "main", rec.MainRoadID) // higher right-lane count wins
		assert.Equal(t, "ramp", rec.RampRoadID)
		assert.Equal(t, "out", rec.OutgoingRoadID)
		assert.Equal(t, "mc", rec.MainConnectingRoadID)
		assert.Equal(t, "rc", rec.RampConnectingRoadID)
	}
}

func TestNoHighwayMergeWhenConnectorTooShort(t *testing.T) {
	doc := xodr.NewDocument()
	main := road("main", "-1", 500, 3)
	ramp := road("ramp", "-1", 500, 1)
	outgoing := road("out", "-1", 500, 4)
	mainConn := road("mc", "-1", 50, 3) // below the 150m threshold
	mainConn.Predecessor = &xodr.Link{Kind: xodr.ElementRoad, ElementID: "main"}
	mainConn.Successor = &xodr.Link{Kind: xodr.ElementRoad, ElementID: "out"}
	rampConn := road("rc", "-1", 50, 1)
	rampConn.Predecessor = &xodr.Link{Kind: xodr.ElementRoad, ElementID: "ramp"}
	rampConn.Successor = &xodr.Link{Kind: xodr.ElementRoad, ElementID: "out"}

	for _, r := range []*xodr.Road{main, ramp, outgoing, mainConn, rampConn} {
		doc.AddRoad(r)
	}
	doc.AddJunction(&xodr.Junction{
		ID: "jsmall",
		Connections: []xodr.Connection{
			{ID: "c1", IncomingRoadID: "main", ConnectingRoadID: "mc", ContactPoint: xodr.ContactStart},
			{ID: "c2", IncomingRoadID: "ramp", ConnectingRoadID: "rc", ContactPoint: xodr.ContactStart},
		},
	})

	cls := Classify(doc)
	_, ok := cls.HighwayMerges["jsmall"]
	assert.False(t, ok)
}
