// Package diagram draws the coordinator state machine.
//
// [ToDOT] turns [query.Transitions] into Graphviz DOT and [RenderSVG] lays it
// out in-process with [github.com/goccy/go-graphviz], so no graphviz binary
// needs to be installed.
package diagram

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/fetchq/pkg/query"
)

// Options configures the DOT output.
type Options struct {
	// Triggers labels edges with what causes them.
	Triggers bool
}

// settledColor marks the states a cycle ends in.
const settledColor = "honeydew"

// ToDOT converts transitions to a Graphviz digraph. Nodes appear in the order
// their status is first mentioned.
func ToDOT(transitions []query.Transition, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph fetchq {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  edge [fontsize=10];\n")
	buf.WriteString("\n")

	seen := make(map[query.Status]bool)
	node := func(s query.Status) {
		if seen[s] {
			return
		}
		seen[s] = true
		attrs := fmt.Sprintf("label=%q", s.String())
		if (query.State[struct{}]{Status: s}).Settled() {
			attrs += fmt.Sprintf(", fillcolor=%s", settledColor)
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", s.String(), attrs)
	}
	for _, t := range transitions {
		node(t.From)
		node(t.To)
	}

	buf.WriteString("\n")
	for _, t := range transitions {
		if opts.Triggers && t.Trigger != "" {
			fmt.Fprintf(&buf, "  %q -> %q [label=%q];\n", t.From.String(), t.To.String(), t.Trigger)
			continue
		}
		fmt.Fprintf(&buf, "  %q -> %q;\n", t.From.String(), t.To.String())
	}

	buf.WriteString("}\n")
	return buf.String()
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces graphviz's point-based svg header with one that
// scales cleanly when embedded.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	header := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(header))
}
