package xodr

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/xodr-netcompile/internal/apperr"
)

const sampleXODR = `<?xml version="1.0"?>
<OpenDRIVE>
  <header><geoReference>+proj=utm +zone=32</geoReference></header>
  <road name="r1" length="10.0" id="1" junction="-1">
    <planView>
      <geometry s="0" x="0" y="0" hdg="0" length="10.0">
        <line/>
      </geometry>
    </planView>
    <type s="0" type="town">
      <speed max="50" unit="km/h"/>
    </type>
    <lanes>
      <laneSection s="0">
        <left>
          <lane id="1" type="driving">
            <width sOffset="0" a="3.5" b="0" c="0" d="0"/>
          </lane>
        </left>
        <right>
          <lane id="-1" type="driving">
            <width sOffset="0" a="3.5" b="0" c="0" d="0"/>
          </lane>
          <lane id="-2" type="border">
            <width sOffset="0" a="2.0" b="0" c="0" d="0"/>
          </lane>
        </right>
      </laneSection>
    </lanes>
  </road>
</OpenDRIVE>
`

func TestParseBasicRoad(t *testing.T) {
	doc, err := parseReader(strings.NewReader(sampleXODR))
	assert.NoError(t, err)
	assert.Equal(t, "+proj=utm +zone=32", doc.GeoReference)

	r := doc.RoadByID["1"]
	if assert.NotNil(t, r) {
		assert.InDelta(t, 10.0, r.Length, 1e-9)
		assert.InDelta(t, 50.0/3.6, r.SpeedLimit, 1e-6) // km/h -> m/s
		assert.Len(t, r.LanesLeft, 1)
		// the border lane is an unrecognized type and must be silently dropped.
		assert.Len(t, r.LanesRight, 1)
		assert.Equal(t, -1, r.LanesRight[0].ID)
	}
}

func TestParseRejectsLengthBudgetViolation(t *testing.T) {
	// Replaces only the road's declared length attribute (the first
	// occurrence, in the <road> tag); the <geometry> element's own
	// length="10.0" is left untouched, so the sums now disagree by more
	// than the 1% budget.
	bad := strings.Replace(sampleXODR, `length="10.0"`, `length="50.0"`, 1)
	_, err := parseReader(strings.NewReader(bad))
	assert.Error(t, err)
}

func TestParseMissingRequiredAttributeIsSourceFormatError(t *testing.T) {
	malformed := strings.Replace(sampleXODR, `length="10.0" id="1"`, `id="1"`, 1)
	_, err := parseReader(strings.NewReader(malformed))
	assert.Error(t, err)
	assert.True(t, apperr.IsFatal(err))
}

func TestNormalizeSpeedUnits(t *testing.T) {
	assert.InDelta(t, 50.0/3.6, normalizeSpeed(50, "kmh"), 1e-6)
	assert.InDelta(t, 30*0.44704, normalizeSpeed(30, "mph"), 1e-6)
	assert.InDelta(t, 13.89, normalizeSpeed(13.89, "ms"), 1e-9)
}
