// Package chart renders the per-frame similarity trend as a PNG line chart.
package chart

import (
	"bytes"
	"errors"
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"tunevision/internal/artifacts"
)

const (
	width  = 8 * vg.Inch
	height = 4 * vg.Inch
)

// ErrNoScores is returned when there is nothing to plot.
var ErrNoScores = errors.New("no scores to plot")

// SimilarityPNG plots score against frame index. Frames whose names carry no
// index fall back to their position in scores.
func SimilarityPNG(title string, scores []artifacts.FrameScore) ([]byte, error) {
	if len(scores) == 0 {
		return nil, ErrNoScores
	}
	points := make(plotter.XYs, len(scores))
	for i, s := range scores {
		x := i
		if idx, ok := artifacts.ParseFrameIndex(s.Frame); ok {
			x = idx
		}
		points[i].X = float64(x)
		points[i].Y = s.Score
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Frame index"
	p.Y.Label.Text = "CLIP similarity"
	p.Add(plotter.NewGrid())

	line, markers, err := plotter.NewLinePoints(points)
	if err != nil {
		return nil, fmt.Errorf("build similarity series: %w", err)
	}
	p.Add(line, markers)

	writer, err := p.WriterTo(width, height, "png")
	if err != nil {
		return nil, fmt.Errorf("render similarity chart: %w", err)
	}
	var buf bytes.Buffer
	if _, err := writer.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encode similarity chart: %w", err)
	}
	return buf.Bytes(), nil
}
