package timetree

import (
	"log/slog"
	"math"

	"github.com/lucasmnt/timetree/internal/models"
)

// Display diameter bounds. Interpolation is linear in disc area, not
// diameter, so the drawn circle's size tracks duration perceptually.
const (
	minDiameter = 6
	maxDiameter = 100
)

// normalizeSizes rescales node_size for root and all its collected
// descendants. Each note's accumulated duration (own + aggregate) is mapped
// onto [minDiameter, maxDiameter] by interpolating the disc area between
// minDiameter² and maxDiameter² and taking the square root. When every note
// carries the same accumulated value, zero maps to the minimum diameter and
// anything else to the maximum.
func (e *Engine) normalizeSizes(root string) error {
	notes := append([]string{root}, e.CollectDescendants(root)...)

	acc := make(map[string]float64, len(notes))
	minAcc := math.Inf(1)
	maxAcc := math.Inf(-1)
	for _, path := range notes {
		own, err := e.attrs.Number(path, models.AttrElapsed)
		if err != nil {
			e.logger.Warn("tree: size read failed", slog.String("path", path), slog.String("error", err.Error()))
			continue
		}
		childSum, err := e.attrs.Number(path, e.cfg.ChildKey)
		if err != nil {
			e.logger.Warn("tree: size read failed", slog.String("path", path), slog.String("error", err.Error()))
			continue
		}
		a := own + childSum
		acc[path] = a
		minAcc = math.Min(minAcc, a)
		maxAcc = math.Max(maxAcc, a)
	}
	if len(acc) == 0 {
		return nil
	}

	for _, path := range notes {
		a, ok := acc[path]
		if !ok {
			continue
		}
		size := diameter(a, minAcc, maxAcc)
		err := e.attrs.Update(path, func(attrs map[string]interface{}) map[string]interface{} {
			attrs[models.AttrNodeSize] = size
			return attrs
		})
		if err != nil {
			e.logger.Warn("tree: size write failed", slog.String("path", path), slog.String("error", err.Error()))
		}
	}
	return nil
}

// diameter maps an accumulated duration onto the display range.
func diameter(acc, minAcc, maxAcc float64) float64 {
	if maxAcc == minAcc {
		if acc == 0 {
			return minDiameter
		}
		return maxDiameter
	}
	aMin := float64(minDiameter * minDiameter)
	aMax := float64(maxDiameter * maxDiameter)
	area := aMin + (acc-minAcc)/(maxAcc-minAcc)*(aMax-aMin)
	return round4(math.Sqrt(area))
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
