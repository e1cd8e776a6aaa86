package rnaseq

import (
	"errors"
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrEmptyLibrary indicates a sample whose counts sum to zero, for
	// which counts-per-million scaling is undefined.
	ErrEmptyLibrary = errors.New("empty library")
	// ErrZeroVarianceColumn indicates a gene column with zero variance,
	// for which the z-score is undefined.
	ErrZeroVarianceColumn = errors.New("zero variance column")
)

// FilterLowExpression drops gene columns that are weakly expressed across
// the run: column j survives only if at least minSampleFrac of the rows
// have m[i][j] ≥ minCount (the boundary is retained). The returned gene
// list names the surviving columns in order; callers must carry it forward
// because column pruning invalidates the original gene index. The input is
// not modified. Returns a nil matrix when no column survives.
func FilterLowExpression(m *mat.Dense, genes []string, minCount, minSampleFrac float64) (*mat.Dense, []string) {
	rows, cols := m.Dims()
	var keep []int
	kept := []string{}
	for j := 0; j < cols; j++ {
		n := 0
		for i := 0; i < rows; i++ {
			if m.At(i, j) >= minCount {
				n++
			}
		}
		if float64(n) >= minSampleFrac*float64(rows) {
			keep = append(keep, j)
			kept = append(kept, genes[j])
		}
	}
	if len(keep) == 0 {
		return nil, kept
	}
	out := mat.NewDense(rows, len(keep), nil)
	for i := 0; i < rows; i++ {
		for k, j := range keep {
			out.Set(i, k, m.At(i, j))
		}
	}
	return out, kept
}

// CPM scales each row to counts per million: every value is divided by the
// row sum and multiplied by 1e6, so each sample's row sums to one million
// regardless of library size. The input is not modified.
func CPM(m *mat.Dense) (*mat.Dense, error) {
	rows, cols := m.Dims()
	out := mat.NewDense(rows, cols, nil)
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(row, i, m)
		sum := floats.Sum(row)
		if sum == 0 {
			return nil, fmt.Errorf("sample row %d sums to zero: %w", i, ErrEmptyLibrary)
		}
		for j, v := range row {
			row[j] = v / sum * 1e6
		}
		out.SetRow(i, row)
	}
	return out, nil
}

// Log2 applies log2(x+1) elementwise. The +1 offset keeps zero counts
// finite and is fixed. The input is not modified.
func Log2(m *mat.Dense) *mat.Dense {
	rows, cols := m.Dims()
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out.Set(i, j, math.Log2(m.At(i, j)+1))
		}
	}
	return out
}

// ZScore standardizes each column to mean 0 and standard deviation 1,
// using the population standard deviation. The input is not modified.
func ZScore(m *mat.Dense) (*mat.Dense, error) {
	rows, cols := m.Dims()
	out := mat.NewDense(rows, cols, nil)
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, m)
		mean := floats.Sum(col) / float64(rows)
		ss := 0.0
		for _, v := range col {
			d := v - mean
			ss += d * d
		}
		sd := math.Sqrt(ss / float64(rows))
		if sd == 0 {
			return nil, fmt.Errorf("gene column %d: %w", j, ErrZeroVarianceColumn)
		}
		for i, v := range col {
			out.Set(i, j, (v-mean)/sd)
		}
	}
	return out, nil
}

// Preprocess runs the full normalization chain over a raw counts matrix:
// low-expression filter, counts-per-million scaling, log2 compression,
// per-gene z-score, strictly in that order. Each stage returns a fresh
// matrix; the raw matrix is never mutated and remains the authoritative
// record of the run, since the chain is not invertible.
func Preprocess(cm *CountMatrix, cfg CountsConfig) (*NormalizedMatrix, error) {
	log.Infof("preprocessing %d samples × %d genes (min count %d, min sample fraction %g)",
		cm.Rows(), cm.Cols(), cfg.MinCount, cfg.MinSampleFrac)
	filtered, genes := FilterLowExpression(cm.Dense(), cm.Genes, float64(cfg.MinCount), cfg.MinSampleFrac)
	if len(genes) == 0 {
		return nil, fmt.Errorf("no gene passed the low-expression filter (min count %d in ≥ %g of samples)", cfg.MinCount, cfg.MinSampleFrac)
	}
	log.Infof("%d of %d genes passed the low-expression filter", len(genes), cm.Cols())
	cpm, err := CPM(filtered)
	if err != nil {
		return nil, err
	}
	z, err := ZScore(Log2(cpm))
	if err != nil {
		return nil, err
	}
	return &NormalizedMatrix{
		Samples: append([]string(nil), cm.Samples...),
		Genes:   genes,
		Data:    z,
	}, nil
}
