package pipeline

import (
	"bytes"
	"context"

	"github.com/matzehuels/stacksolve/pkg/errors"
	sio "github.com/matzehuels/stacksolve/pkg/io"
	"github.com/matzehuels/stacksolve/pkg/materialize"
	"github.com/matzehuels/stacksolve/pkg/render/nodelink"
)

// Render generates output artifacts in the requested formats.
func Render(ctx context.Context, res *materialize.Result, formats []string, detailed bool) (map[string][]byte, error) {
	artifacts := make(map[string][]byte, len(formats))

	var dot string
	toDOT := func() string {
		if dot == "" {
			dot = nodelink.ToDOT(res.Graph, nodelink.Options{Detailed: detailed})
		}
		return dot
	}

	for _, format := range formats {
		var (
			data []byte
			err  error
		)
		switch format {
		case FormatJSON:
			var buf bytes.Buffer
			err = sio.WriteLock(res, &buf)
			data = buf.Bytes()
		case FormatGraph:
			var buf bytes.Buffer
			err = sio.WriteGraph(res.Graph, &buf)
			data = buf.Bytes()
		case FormatDOT:
			data = []byte(toDOT())
		case FormatSVG:
			data, err = nodelink.RenderSVG(ctx, toDOT())
		case FormatPNG:
			data, err = nodelink.RenderPNG(ctx, toDOT(), 2.0)
		case FormatPDF:
			data, err = nodelink.RenderPDF(ctx, toDOT())
		default:
			return nil, ValidateFormat(format)
		}
		if err != nil {
			if errors.GetCode(err) != "" {
				return nil, err
			}
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "render %s", format)
		}
		artifacts[format] = data
	}
	return artifacts, nil
}
