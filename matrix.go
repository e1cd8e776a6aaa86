package rnaseq

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// CountMatrix is the dense samples×genes matrix of raw read counts for one
// run, together with the identifier maps for both axes. Data is laid out
// row-major, Data[row*len(Genes)+col]. A cell whose (sample, gene) pair did
// not appear in the sample's count file is a true zero, not a missing
// value. The matrix is built once per run and treated as immutable by every
// downstream stage.
type CountMatrix struct {
	Samples   []string
	Genes     []string
	SampleMap map[string]int
	GeneMap   map[string]int
	Data      []int64
}

func (m *CountMatrix) Rows() int { return len(m.Samples) }
func (m *CountMatrix) Cols() int { return len(m.Genes) }

// At returns the raw count for sample row i, gene column j.
func (m *CountMatrix) At(i, j int) int64 {
	return m.Data[i*len(m.Genes)+j]
}

// Dense copies the counts into a float64 gonum matrix. The copy is owned by
// the caller; the raw matrix is never aliased.
func (m *CountMatrix) Dense() *mat.Dense {
	data := make([]float64, len(m.Data))
	for i, v := range m.Data {
		data[i] = float64(v)
	}
	return mat.NewDense(len(m.Samples), len(m.Genes), data)
}

// Metadata is the structured sidecar persisted next to the numeric matrix
// blob. The maps and lists are redundant on purpose: the lists carry axis
// order, the maps make identifier lookup cheap, and the blob is
// uninterpretable without them.
type Metadata struct {
	GeneMap   map[string]int `json:"gene_map"`
	Genes     []string       `json:"genes"`
	SampleMap map[string]int `json:"sample_map"`
	Samples   []string       `json:"samples"`
}

func (m *CountMatrix) metadata() *Metadata {
	return &Metadata{
		GeneMap:   m.GeneMap,
		Genes:     m.Genes,
		SampleMap: m.SampleMap,
		Samples:   m.Samples,
	}
}

// check verifies that the lists and maps describe the same bijection and
// that the indexes are contiguous from zero.
func (md *Metadata) check() error {
	if len(md.Genes) != len(md.GeneMap) {
		return fmt.Errorf("metadata: %d genes but %d gene_map entries", len(md.Genes), len(md.GeneMap))
	}
	if len(md.Samples) != len(md.SampleMap) {
		return fmt.Errorf("metadata: %d samples but %d sample_map entries", len(md.Samples), len(md.SampleMap))
	}
	for i, g := range md.Genes {
		if md.GeneMap[g] != i {
			return fmt.Errorf("metadata: gene %q listed at %d but mapped to %d", g, i, md.GeneMap[g])
		}
	}
	for i, s := range md.Samples {
		if md.SampleMap[s] != i {
			return fmt.Errorf("metadata: sample %q listed at %d but mapped to %d", s, i, md.SampleMap[s])
		}
	}
	return nil
}

// NormalizedMatrix is the output of the preprocessing chain: a real-valued
// samples×genes matrix restricted to the genes that survived filtering. It
// replaces the raw matrix for analysis purposes but never overwrites it;
// the raw counts stay separately retrievable because the chain is lossy.
type NormalizedMatrix struct {
	Samples []string
	Genes   []string
	Data    *mat.Dense
}
