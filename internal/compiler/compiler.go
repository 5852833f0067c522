// Package compiler wires the six compiler passes, the topology validator,
// the writer, and the optional assembler invocation into a single
// synchronous entry point, per spec §2/§5.
//
// 功能：顶层编排。按 Parser -> Classifier -> Geometry Engine ->
// Node Builder -> Edge & Lane Builder -> Connection Builder -> Validator
// -> Writer -> (可选) Assembler 的顺序单线程执行；Writer 之前任何一步出错
// 即中止，不产生产物。Assembler 失败只记录在 Result 中，不中止运行。
// 说明：与 task/simulet.go 的 Context 编排风格类似——一个结构体持有
// 全部配置与只读输入，一个方法串起整条流水线；但这里没有运行时状态、
// 没有并发（parallel.GoMap/GoFor 故意不用，见 DESIGN.md）。
package compiler

import (
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/xodr-netcompile/internal/apperr"
	"github.com/tsinghua-fib-lab/xodr-netcompile/internal/assembler"
	"github.com/tsinghua-fib-lab/xodr-netcompile/internal/classify"
	"github.com/tsinghua-fib-lab/xodr-netcompile/internal/config"
	"github.com/tsinghua-fib-lab/xodr-netcompile/internal/connbuild"
	"github.com/tsinghua-fib-lab/xodr-netcompile/internal/edgebuild"
	"github.com/tsinghua-fib-lab/xodr-netcompile/internal/netgraph"
	"github.com/tsinghua-fib-lab/xodr-netcompile/internal/nodebuild"
	"github.com/tsinghua-fib-lab/xodr-netcompile/internal/validate"
	"github.com/tsinghua-fib-lab/xodr-netcompile/internal/writer"
	"github.com/tsinghua-fib-lab/xodr-netcompile/internal/xodr"
)

var log = logrus.WithField("component", "compiler")

// Options configures one compilation run.
type Options struct {
	InputPath   string
	OutputPrefix string
	NoAssemble  bool
	Assembler   config.AssemblerConfig
}

// Result is what a completed run produced, for the CLI to report.
type Result struct {
	Graph          *netgraph.Graph
	Topology       *validate.Report
	AssemblerRan   bool
	AssemblerError error // non-nil BackendFailure; never aborts the run
}

// Compile runs the full pipeline described by spec §2. Any SourceFormat
// or InvariantViolation error aborts immediately and no artifacts are
// written (writer.Write stages to temp paths and renames only on success).
func Compile(opts Options) (*Result, error) {
	doc, err := xodr.Parse(opts.InputPath)
	if err != nil {
		return nil, err
	}
	log.Infof("parsed %d road(s), %d junction(s)", len(doc.Roads), len(doc.Junctions))

	cls := classify.Classify(doc)
	log.Infof("classified: %d highway merge(s) detected", len(cls.HighwayMerges))

	g := netgraph.NewGraph()

	nodes, err := nodebuild.BuildNodes(doc, cls, g)
	if err != nil {
		return nil, err
	}
	log.Infof("built %d node(s)", len(g.Nodes))

	edges, err := edgebuild.BuildEdges(doc, cls, nodes, g)
	if err != nil {
		return nil, err
	}
	log.Infof("built %d edge(s)", len(g.Edges))

	if err := connbuild.BuildConnections(doc, cls, nodes, edges, g); err != nil {
		return nil, err
	}
	log.Infof("built %d connection(s)", len(g.Conns))

	topo, err := validate.Check(g)
	if err != nil {
		return nil, apperr.InvariantViolation("topology validator failed: %v", err)
	}

	off := resolveOffset(doc, g)
	if err := writer.Write(opts.OutputPrefix, g, off); err != nil {
		return nil, err
	}
	log.Infof("wrote %s.{nod,edg,con}.xml", opts.OutputPrefix)

	res := &Result{Graph: g, Topology: topo}

	if !opts.NoAssemble {
		res.AssemblerRan = true
		if err := assembler.Run(opts.OutputPrefix, opts.Assembler); err != nil {
			res.AssemblerError = err
			log.Warnf("assembler step failed (artifacts were still written): %v", err)
		}
	}

	return res, nil
}

// resolveOffset implements spec §6's coordinate-offset preamble: when the
// source carried a geoReference string, translate so the network's
// bounding-box minimum sits at (0,0).
func resolveOffset(doc *xodr.Document, g *netgraph.Graph) writer.Offset {
	if doc.GeoReference == "" || len(g.Nodes) == 0 {
		return writer.Offset{}
	}
	minX, minY := g.Nodes[0].X, g.Nodes[0].Y
	maxX, maxY := minX, minY
	extend := func(x, y float64) {
		if x < minX {
			minX = x
		}
		if y < minY {
			minY = y
		}
		if x > maxX {
			maxX = x
		}
		if y > maxY {
			maxY = y
		}
	}
	for _, n := range g.Nodes {
		extend(n.X, n.Y)
	}
	for _, e := range g.Edges {
		for _, p := range e.Shape {
			extend(p.X, p.Y)
		}
	}
	for _, c := range g.Conns {
		for _, p := range c.Via {
			extend(p.X, p.Y)
		}
	}
	return writer.Offset{
		Present: true, X: -minX, Y: -minY,
		OrigMinX: minX, OrigMinY: minY, OrigMaxX: maxX, OrigMaxY: maxY,
		GeoRef: doc.GeoReference,
	}
}
