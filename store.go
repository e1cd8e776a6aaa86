package rnaseq

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kshedden/gonpy"
)

const (
	countsMatrixFile   = "counts_matrix.npy"
	countsMetadataFile = "counts_metadata.json"
	pcaScoresFile      = "pca_scores.npy"
	pcaVarianceFile    = "pca_variance.npy"
)

// Store persists run artifacts under one directory: the raw counts matrix
// as a numpy blob with a JSON metadata sidecar, and PCA outputs as numpy
// arrays. The sidecar is required to interpret the blob; row and column
// order are reconstructed exactly as persisted, because order ties the
// numeric axes to sample and gene identity.
type Store struct {
	Dir string
}

func (s *Store) writeNpy(name string, shape []int, write func(*gonpy.NpyWriter) error) error {
	f, err := os.OpenFile(filepath.Join(s.Dir, name), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0666)
	if err != nil {
		return err
	}
	defer f.Close()
	bufw := bufio.NewWriter(f)
	npw, err := gonpy.NewWriter(nopCloser{bufw})
	if err != nil {
		return err
	}
	npw.Shape = shape
	if err := write(npw); err != nil {
		return err
	}
	if err := bufw.Flush(); err != nil {
		return err
	}
	return f.Close()
}

// SaveCounts writes the raw matrix as counts_matrix.npy (int64, shape
// samples×genes) and its identifier maps as counts_metadata.json.
func (s *Store) SaveCounts(m *CountMatrix) error {
	err := s.writeNpy(countsMatrixFile, []int{m.Rows(), m.Cols()}, func(npw *gonpy.NpyWriter) error {
		return npw.WriteInt64(m.Data)
	})
	if err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(s.Dir, countsMetadataFile), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0666)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "    ")
	if err := enc.Encode(m.metadata()); err != nil {
		return err
	}
	return f.Close()
}

// LoadCounts reads the persisted matrix and sidecar back into a
// CountMatrix, validating that the two artifacts describe the same shape
// and that the identifier maps are consistent with the ordered lists.
func (s *Store) LoadCounts() (*CountMatrix, error) {
	f, err := os.Open(filepath.Join(s.Dir, countsMatrixFile))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	npy, err := gonpy.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", countsMatrixFile, err)
	}
	if len(npy.Shape) != 2 {
		return nil, fmt.Errorf("%s: expected 2-dimensional array, got shape %v", countsMatrixFile, npy.Shape)
	}
	data, err := npy.GetInt64()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", countsMatrixFile, err)
	}

	mdf, err := os.Open(filepath.Join(s.Dir, countsMetadataFile))
	if err != nil {
		return nil, err
	}
	defer mdf.Close()
	var md Metadata
	if err := json.NewDecoder(mdf).Decode(&md); err != nil {
		return nil, fmt.Errorf("%s: %w", countsMetadataFile, err)
	}
	if err := md.check(); err != nil {
		return nil, err
	}
	if npy.Shape[0] != len(md.Samples) || npy.Shape[1] != len(md.Genes) {
		return nil, fmt.Errorf("%s shape %v does not match metadata (%d samples, %d genes)", countsMatrixFile, npy.Shape, len(md.Samples), len(md.Genes))
	}
	return &CountMatrix{
		Samples:   md.Samples,
		Genes:     md.Genes,
		SampleMap: md.SampleMap,
		GeneMap:   md.GeneMap,
		Data:      data,
	}, nil
}

// SavePCA writes the score matrix as pca_scores.npy (float64, shape
// samples×components) and the variance-explained ratios as
// pca_variance.npy (float64, 1-dimensional), ordered identically.
func (s *Store) SavePCA(r *PCAResult) error {
	rows, cols := r.Scores.Dims()
	out := make([]float64, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out[i*cols+j] = r.Scores.At(i, j)
		}
	}
	err := s.writeNpy(pcaScoresFile, []int{rows, cols}, func(npw *gonpy.NpyWriter) error {
		return npw.WriteFloat64(out)
	})
	if err != nil {
		return err
	}
	return s.writeNpy(pcaVarianceFile, []int{len(r.VarianceRatio)}, func(npw *gonpy.NpyWriter) error {
		return npw.WriteFloat64(r.VarianceRatio)
	})
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
