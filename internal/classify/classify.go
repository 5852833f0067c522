// Package classify implements Pass 2 of the compiler: labeling every road
// as a through-road, a junction-internal connecting road, or (both) a
// highway-merge participant, per spec §4.2.
//
// 功能：对每条 road 进行分类，并检测高速公路合流（highway merge）场景。
// 说明：分类结果仅追加在本 pass 产生的只读结构中，后续 pass（节点/边/
// 连接构建）只读取，不回写——沿用 entity/junction 的 manager 只读查询
// 模式，但这里没有运行时状态，只有一次性编译期分类。
package classify

import (
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/xodr-netcompile/internal/xodr"
)

var log = logrus.WithField("component", "classifier")

const (
	// longConnectorThreshold is spec §4.2/§9(a): a road tagged junction="-1"
	// but used as a connecting road is still materialized as an edge when
	// its length reaches this bound.
	longConnectorThreshold = 10.0
	// highwayMergeLengthThreshold is spec §4.2 criterion 3.
	highwayMergeLengthThreshold = 150.0
)

// MergeRecord is the highway-merge record of spec §3. MergeStartNode and
// MergeEndNode are populated later, by the Node Builder pass (§4.4); every
// other field is set once here and never mutated again.
type MergeRecord struct {
	JunctionID string

	MainRoadID string
	RampRoadID string
	OutgoingRoadID string

	MainConnectingRoadID string
	RampConnectingRoadID string

	MergeStartNode string
	MergeEndNode   string
}

// Result is the Classifier's output: Pass 3 onward read it but never
// write it (merge node ids excepted, see MergeRecord).
type Result struct {
	// ConnectingRoadIDs is the set of road ids referenced as connectingRoad
	// in any junction connection, regardless of their declared junction id.
	ConnectingRoadIDs map[string]bool

	// ThroughRoad reports, per road id, whether the road is a through-road:
	// junction == "-1" AND not used as a connecting road anywhere.
	ThroughRoad map[string]bool

	// LongConnectors holds connecting roads with junction=="-1" (mistagged)
	// whose length reaches longConnectorThreshold: spec §4.2 says these are
	// still materialized as an edge in addition to being used for via-points.
	LongConnectors map[string]bool

	// HighwayMerges is keyed by junction id, for junctions whose connection
	// topology satisfies the highway-merge predicate (spec §4.2).
	HighwayMerges map[string]*MergeRecord
}

// IsThrough reports whether roadID is a through-road.
func (r *Result) IsThrough(roadID string) bool { return r.ThroughRoad[roadID] }

// IsConnecting reports whether roadID is used as a connecting road by any
// junction connection.
func (r *Result) IsConnecting(roadID string) bool { return r.ConnectingRoadIDs[roadID] }

// IsLongConnector reports whether roadID is a mistagged (junction=="-1")
// connecting road long enough to also be materialized as an edge.
func (r *Result) IsLongConnector(roadID string) bool { return r.LongConnectors[roadID] }

// Classify runs Pass 2 over a parsed Document.
func Classify(doc *xodr.Document) *Result {
	res := &Result{
		ConnectingRoadIDs: make(map[string]bool),
		ThroughRoad:       make(map[string]bool),
		LongConnectors:    make(map[string]bool),
		HighwayMerges:     make(map[string]*MergeRecord),
	}

	for _, j := range doc.Junctions {
		for _, c := range j.Connections {
			res.ConnectingRoadIDs[c.ConnectingRoadID] = true
		}
	}

	for _, road := range doc.Roads {
		isThrough := road.JunctionID == "-1" && !res.ConnectingRoadIDs[road.ID]
		res.ThroughRoad[road.ID] = isThrough

		if road.JunctionID == "-1" && res.ConnectingRoadIDs[road.ID] && road.Length >= longConnectorThreshold {
			res.LongConnectors[road.ID] = true
		}
	}

	for _, j := range doc.Junctions {
		if rec := detectHighwayMerge(doc, j, res); rec != nil {
			res.HighwayMerges[j.ID] = rec
			log.Infof("junction %s classified as highway merge: main=%s ramp=%s outgoing=%s",
				j.ID, rec.MainRoadID, rec.RampRoadID, rec.OutgoingRoadID)
		}
	}

	return res
}

// connectingRoadSet returns the distinct connectingRoad ids referenced by
// junction j's connections.
func connectingRoadSet(j *xodr.Junction) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, c := range j.Connections {
		if !seen[c.ConnectingRoadID] {
			seen[c.ConnectingRoadID] = true
			ids = append(ids, c.ConnectingRoadID)
		}
	}
	return ids
}

// detectHighwayMerge implements the predicate of spec §4.2. Returns nil
// when the junction does not qualify.
func detectHighwayMerge(doc *xodr.Document, j *xodr.Junction, res *Result) *MergeRecord {
	connectingIDs := connectingRoadSet(j)

	incomingSet := make(map[string]bool) // through-road ids
	outgoingSet := make(map[string]bool)
	maxLen := 0.0
	connectingByMain := make(map[string]string) // through-road id -> its connecting road id (predecessor side)

	for _, cid := range connectingIDs {
		c := doc.RoadByID[cid]
		if c == nil {
			continue
		}
		if c.Length > maxLen {
			maxLen = c.Length
		}
		if c.Predecessor != nil && c.Predecessor.Kind == xodr.ElementRoad {
			pred := doc.RoadByID[c.Predecessor.ElementID]
			if pred != nil && res.IsThrough(pred.ID) {
				incomingSet[pred.ID] = true
				connectingByMain[pred.ID] = cid
			}
		}
		if c.Successor != nil && c.Successor.Kind == xodr.ElementRoad {
			succ := doc.RoadByID[c.Successor.ElementID]
			if succ != nil && res.IsThrough(succ.ID) {
				outgoingSet[succ.ID] = true
			}
		}
	}

	if len(incomingSet) != 2 || len(outgoingSet) != 1 || maxLen <= highwayMergeLengthThreshold {
		return nil
	}

	var outgoingRoad string
	for id := range outgoingSet {
		outgoingRoad = id
	}

	var incomingIDs []string
	for id := range incomingSet {
		incomingIDs = append(incomingIDs, id)
	}
	mainID, rampID := pickMainAndRamp(doc, incomingIDs[0], incomingIDs[1])

	return &MergeRecord{
		JunctionID:           j.ID,
		MainRoadID:           mainID,
		RampRoadID:           rampID,
		OutgoingRoadID:       outgoingRoad,
		MainConnectingRoadID: connectingByMain[mainID],
		RampConnectingRoadID: connectingByMain[rampID],
	}
}

// pickMainAndRamp picks the main road as whichever of a,b has more right
// (forward-direction) lanes of any parsed type, per spec §4.2; a tie goes
// to a.
func pickMainAndRamp(doc *xodr.Document, a, b string) (main, ramp string) {
	ra, rb := doc.RoadByID[a], doc.RoadByID[b]
	if ra == nil || rb == nil {
		return a, b
	}
	if len(ra.LanesRight) >= len(rb.LanesRight) {
		return a, b
	}
	return b, a
}
