// Package nodelink renders concretized dependency graphs as node-link
// diagrams using Graphviz.
//
// Convert a materialized DAG to DOT, then render it:
//
//	dot := nodelink.ToDOT(res.Graph, nodelink.Options{Detailed: true})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//
// Nodes are labelled with their spec. Reused nodes get a green fill and
// edges satisfied through a virtual package are dashed. With
// [Options.Detailed] labels also carry the short hash, the row and the
// node metadata, and edges carry their dependency types.
//
// [ToDOT] output can also be saved and processed with external Graphviz
// tools. SVG rendering runs in-process via [github.com/goccy/go-graphviz];
// PDF and PNG conversion requires librsvg (rsvg-convert).
package nodelink
