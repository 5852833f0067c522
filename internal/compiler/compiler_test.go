package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/xodr-netcompile/internal/config"
)

const fixtureXODR = `<?xml version="1.0"?>
<OpenDRIVE>
  <header><geoReference></geoReference></header>
  <road name="in" length="50.0" id="in" junction="-1">
    <planView>
      <geometry s="0" x="0" y="0" hdg="0" length="50.0"><line/></geometry>
    </planView>
    <lanes>
      <laneSection s="0">
        <right>
          <lane id="-1" type="driving">
            <width sOffset="0" a="3.5" b="0" c="0" d="0"/>
          </lane>
        </right>
      </laneSection>
    </lanes>
    <link>
      <successor elementType="junction" elementId="1"/>
    </link>
  </road>
  <road name="conn" length="5.0" id="conn" junction="1">
    <planView>
      <geometry s="0" x="50" y="0" hdg="0" length="5.0"><line/></geometry>
    </planView>
    <lanes>
      <laneSection s="0">
        <right>
          <lane id="-1" type="driving">
            <width sOffset="0" a="3.5" b="0" c="0" d="0"/>
            <link><successor id="-1"/></link>
          </lane>
        </right>
      </laneSection>
    </lanes>
    <link>
      <predecessor elementType="road" elementId="in" contactPoint="start"/>
      <successor elementType="road" elementId="out" contactPoint="start"/>
    </link>
  </road>
  <road name="out" length="50.0" id="out" junction="-1">
    <planView>
      <geometry s="0" x="55" y="0" hdg="0" length="50.0"><line/></geometry>
    </planView>
    <lanes>
      <laneSection s="0">
        <right>
          <lane id="-1" type="driving">
            <width sOffset="0" a="3.5" b="0" c="0" d="0"/>
          </lane>
        </right>
      </laneSection>
    </lanes>
    <link>
      <predecessor elementType="junction" elementId="1"/>
    </link>
  </road>
  <junction id="1">
    <connection id="c1" incomingRoad="in" connectingRoad="conn" contactPoint="start">
      <laneLink from="-1" to="-1"/>
    </connection>
  </junction>
</OpenDRIVE>
`

func TestCompileEndToEnd(t *testing.T) {
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "fixture.xodr")
	assert.NoError(t, os.WriteFile(inputPath, []byte(fixtureXODR), 0o644))

	outPrefix := filepath.Join(dir, "out")
	res, err := Compile(Options{
		InputPath:    inputPath,
		OutputPrefix: outPrefix,
		NoAssemble:   true,
		Assembler:    config.AssemblerConfig{},
	})
	assert.NoError(t, err)
	if assert.NotNil(t, res) {
		assert.False(t, res.AssemblerRan)
		assert.Nil(t, res.AssemblerError)
		assert.NotEmpty(t, res.Graph.Nodes)
		assert.NotEmpty(t, res.Graph.Edges)
		assert.Len(t, res.Graph.Conns, 1)
		assert.NotNil(t, res.Topology)
	}

	for _, suffix := range []string{".nod.xml", ".edg.xml", ".con.xml"} {
		_, statErr := os.Stat(outPrefix + suffix)
		assert.NoError(t, statErr)
	}
}

func TestCompileRejectsMalformedInput(t *testing.T) {
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "bad.xodr")
	assert.NoError(t, os.WriteFile(inputPath, []byte("not xml at all"), 0o644))

	_, err := Compile(Options{
		InputPath:    inputPath,
		OutputPrefix: filepath.Join(dir, "out"),
		NoAssemble:   true,
	})
	assert.Error(t, err)
}
