// Package writer emits the three plain-XML artifacts (P.nod.xml,
// P.edg.xml, P.con.xml) from a finished netgraph.Graph, staging each to a
// temp path and renaming atomically on success (spec §7).
//
// 功能：写出 nod/edg/con 三份 XML 产物。先写临时文件再 rename，保证
// 不会产生半成品；可选输出 <location> 坐标偏移前导元素。
// 说明：XML 由手写 Fprintf 按缩进逐行生成（与原始转换脚本的 ET.indent
// 输出风格一致），不使用 encoding/xml 的结构体 Marshal——属性顺序和数值
// 格式需要精确控制，手写 Fprintf 比结构体打标签更直接。
package writer

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tsinghua-fib-lab/xodr-netcompile/internal/netgraph"
)

// Offset is the optional single-translation coordinate offset applied to
// every emitted coordinate, derived from a source geoReference string
// (spec §6): translate so the network's bounding-box minimum sits at
// (0,0), and record both boundaries plus the projection string.
type Offset struct {
	Present             bool
	X, Y                float64 // translation applied: x' = x+X, y' = y+Y
	OrigMinX, OrigMinY  float64
	OrigMaxX, OrigMaxY  float64
	GeoRef              string
}

// Write emits prefix+".nod.xml", prefix+".edg.xml", prefix+".con.xml".
func Write(prefix string, g *netgraph.Graph, off Offset) error {
	if err := writeStaged(prefix+".nod.xml", func(w *bufio.Writer) error { return writeNodes(w, g, off) }); err != nil {
		return err
	}
	if err := writeStaged(prefix+".edg.xml", func(w *bufio.Writer) error { return writeEdges(w, g, off) }); err != nil {
		return err
	}
	if err := writeStaged(prefix+".con.xml", func(w *bufio.Writer) error { return writeConnections(w, g, off) }); err != nil {
		return err
	}
	return nil
}

// writeStaged writes to path+".tmp" and renames over path only once the
// writer callback returns without error.
func writeStaged(path string, fn func(*bufio.Writer) error) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	w := bufio.NewWriter(f)

	if err := fn(w); err != nil {
		w.Flush()
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, filepath.Clean(path)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s to %s: %w", tmp, path, err)
	}
	return nil
}

func applyOffset(x, y float64, off Offset) (float64, float64) {
	if !off.Present {
		return x, y
	}
	return x + off.X, y + off.Y
}

func writeLocation(w *bufio.Writer, off Offset) {
	if !off.Present {
		return
	}
	convMaxX := off.OrigMaxX + off.X
	convMaxY := off.OrigMaxY + off.Y
	fmt.Fprintf(w, "    <location netOffset=\"%.6f,%.6f\" origBoundary=\"%.3f,%.3f,%.3f,%.3f\" convBoundary=\"0.00,0.00,%.3f,%.3f\" projParameter=\"%s\"/>\n",
		off.X, off.Y, off.OrigMinX, off.OrigMinY, off.OrigMaxX, off.OrigMaxY, convMaxX, convMaxY, off.GeoRef)
}

func writeNodes(w *bufio.Writer, g *netgraph.Graph, off Offset) error {
	fmt.Fprintln(w, `<?xml version="1.0" encoding="UTF-8"?>`)
	fmt.Fprintln(w, `<nodes>`)
	writeLocation(w, off)
	for _, n := range g.Nodes {
		x, y := applyOffset(n.X, n.Y, off)
		fmt.Fprintf(w, "    <node id=\"%s\" x=\"%.3f\" y=\"%.3f\" type=\"%s\"/>\n", n.ID, x, y, n.Type)
	}
	fmt.Fprintln(w, `</nodes>`)
	return nil
}

func writeEdges(w *bufio.Writer, g *netgraph.Graph, off Offset) error {
	fmt.Fprintln(w, `<?xml version="1.0" encoding="UTF-8"?>`)
	fmt.Fprintln(w, `<edges>`)
	writeLocation(w, off)
	for _, e := range g.Edges {
		fmt.Fprintf(w, "    <edge id=\"%s\" from=\"%s\" to=\"%s\" numLanes=\"%d\" speed=\"%.2f\">\n",
			e.ID, e.FromNode, e.ToNode, len(e.Lanes), e.SpeedLimit)
		if len(e.Shape) > 2 {
			fmt.Fprint(w, "        <shape>")
			for i, p := range e.Shape {
				x, y := applyOffset(p.X, p.Y, off)
				if i > 0 {
					fmt.Fprint(w, " ")
				}
				fmt.Fprintf(w, "%.3f,%.3f", x, y)
			}
			fmt.Fprintln(w, "</shape>")
		}
		for _, l := range e.Lanes {
			if l.Disallow != "" {
				fmt.Fprintf(w, "        <lane index=\"%d\" width=\"%.2f\" disallow=\"%s\"/>\n", l.Index, l.Width, l.Disallow)
			} else {
				fmt.Fprintf(w, "        <lane index=\"%d\" width=\"%.2f\"/>\n", l.Index, l.Width)
			}
		}
		fmt.Fprintln(w, "    </edge>")
	}
	fmt.Fprintln(w, `</edges>`)
	return nil
}

func writeConnections(w *bufio.Writer, g *netgraph.Graph, off Offset) error {
	fmt.Fprintln(w, `<?xml version="1.0" encoding="UTF-8"?>`)
	fmt.Fprintln(w, `<connections>`)
	for _, c := range g.Conns {
		if len(c.Via) == 0 {
			fmt.Fprintf(w, "    <connection from=\"%s\" to=\"%s\" fromLane=\"%d\" toLane=\"%d\"/>\n",
				c.FromEdge, c.ToEdge, c.FromLane, c.ToLane)
			continue
		}
		fmt.Fprintf(w, "    <connection from=\"%s\" to=\"%s\" fromLane=\"%d\" toLane=\"%d\" via=\"",
			c.FromEdge, c.ToEdge, c.FromLane, c.ToLane)
		for i, p := range c.Via {
			if i > 0 {
				fmt.Fprint(w, " ")
			}
			x, y := applyOffset(p.X, p.Y, off)
			fmt.Fprintf(w, "%.3f,%.3f", x, y)
		}
		fmt.Fprintln(w, "\"/>")
	}
	fmt.Fprintln(w, `</connections>`)
	return nil
}
