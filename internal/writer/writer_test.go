package writer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/xodr-netcompile/internal/netgraph"
)

func sampleGraph() *netgraph.Graph {
	g := netgraph.NewGraph()
	g.AddNode(&netgraph.Node{ID: "n1", X: 0, Y: 0, Type: "priority"})
	g.AddNode(&netgraph.Node{ID: "n2", X: 100, Y: 0, Type: "dead_end"})
	g.AddEdge(&netgraph.Edge{
		ID: "e1", FromNode: "n1", ToNode: "n2", SpeedLimit: 13.89,
		Lanes: []netgraph.Lane{{Index: 0, Width: 3.5}},
		Shape: []netgraph.Point{{X: 0, Y: 0}, {X: 100, Y: 0}},
	})
	g.AddConnection(&netgraph.Connection{FromEdge: "e1", FromLane: 0, ToEdge: "e1", ToLane: 0})
	return g
}

func TestWriteProducesThreeFiles(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "out")
	err := Write(prefix, sampleGraph(), Offset{})
	assert.NoError(t, err)

	for _, suffix := range []string{".nod.xml", ".edg.xml", ".con.xml"} {
		data, err := os.ReadFile(prefix + suffix)
		assert.NoError(t, err)
		assert.Contains(t, string(data), "<?xml")
		// no leftover staging file.
		_, statErr := os.Stat(prefix + suffix + ".tmp")
		assert.True(t, os.IsNotExist(statErr))
	}
}

func TestWriteAppliesOffsetAndLocationElement(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "out")
	off := Offset{
		Present: true, X: 10, Y: 20,
		OrigMinX: -10, OrigMinY: -20, OrigMaxX: 90, OrigMaxY: 0,
		GeoRef: "+proj=utm +zone=32",
	}
	err := Write(prefix, sampleGraph(), off)
	assert.NoError(t, err)

	data, err := os.ReadFile(prefix + ".nod.xml")
	assert.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, `<location netOffset="10.000000,20.000000"`)
	assert.Contains(t, content, `projParameter="+proj=utm +zone=32"`)
	// n1 is at (0,0); with the offset applied it must be written as (10,20).
	assert.Contains(t, content, `x="10.000" y="20.000"`)
}

func TestWriteNoStagingFileLeftOnError(t *testing.T) {
	// A prefix under a nonexistent directory makes os.Create fail, so the
	// staged ".tmp" file must never be renamed into place.
	prefix := filepath.Join(t.TempDir(), "missing", "out")
	err := Write(prefix, sampleGraph(), Offset{})
	assert.Error(t, err)
	_, statErr := os.Stat(prefix + ".nod.xml.tmp")
	assert.True(t, os.IsNotExist(statErr))
}
