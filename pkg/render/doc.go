// Package render draws concretized dependency graphs.
//
// The [nodelink] subpackage turns a materialized [dag.DAG] into Graphviz
// DOT and renders it in-process to SVG. [ToPDF] and [ToPNG] convert any SVG
// further using the external rsvg-convert tool (from librsvg):
//
//	dot := nodelink.ToDOT(res.Graph, nodelink.Options{})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//	pdf, err := render.ToPDF(ctx, svg)
//
// [nodelink]: github.com/matzehuels/stacksolve/pkg/render/nodelink
// [dag.DAG]: github.com/matzehuels/stacksolve/pkg/dag.DAG
package render
