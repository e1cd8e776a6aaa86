package rnaseq

import (
	"os"

	"github.com/kshedden/gonpy"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/check.v1"
)

type storeSuite struct{}

var _ = check.Suite(&storeSuite{})

func testCountMatrix() *CountMatrix {
	return &CountMatrix{
		Samples:   []string{"S1", "S2"},
		Genes:     []string{"g1", "g2", "g3"},
		SampleMap: map[string]int{"S1": 0, "S2": 1},
		GeneMap:   map[string]int{"g1": 0, "g2": 1, "g3": 2},
		Data:      []int64{1, 0, 3, 0, 5, 6},
	}
}

func (s *storeSuite) TestCountsRoundTrip(c *check.C) {
	store := &Store{Dir: c.MkDir()}
	orig := testCountMatrix()
	c.Assert(store.SaveCounts(orig), check.IsNil)

	loaded, err := store.LoadCounts()
	c.Assert(err, check.IsNil)
	c.Check(loaded, check.DeepEquals, orig)
}

func (s *storeSuite) TestNpyBlobShape(c *check.C) {
	store := &Store{Dir: c.MkDir()}
	c.Assert(store.SaveCounts(testCountMatrix()), check.IsNil)

	f, err := os.Open(store.Dir + "/counts_matrix.npy")
	c.Assert(err, check.IsNil)
	defer f.Close()
	npy, err := gonpy.NewReader(f)
	c.Assert(err, check.IsNil)
	c.Check(npy.Shape, check.DeepEquals, []int{2, 3})
	data, err := npy.GetInt64()
	c.Assert(err, check.IsNil)
	c.Check(data, check.DeepEquals, []int64{1, 0, 3, 0, 5, 6})
}

func (s *storeSuite) TestLoadRejectsInconsistentSidecar(c *check.C) {
	store := &Store{Dir: c.MkDir()}
	c.Assert(store.SaveCounts(testCountMatrix()), check.IsNil)

	// swap two gene indexes in the sidecar
	err := os.WriteFile(store.Dir+"/counts_metadata.json", []byte(`{
	    "gene_map": {"g1": 1, "g2": 0, "g3": 2},
	    "genes": ["g1", "g2", "g3"],
	    "sample_map": {"S1": 0, "S2": 1},
	    "samples": ["S1", "S2"]
	}`), 0644)
	c.Assert(err, check.IsNil)
	_, err = store.LoadCounts()
	c.Check(err, check.ErrorMatches, `metadata: gene "g1".*`)
}

func (s *storeSuite) TestLoadRejectsShapeMismatch(c *check.C) {
	store := &Store{Dir: c.MkDir()}
	c.Assert(store.SaveCounts(testCountMatrix()), check.IsNil)

	err := os.WriteFile(store.Dir+"/counts_metadata.json", []byte(`{
	    "gene_map": {"g1": 0, "g2": 1},
	    "genes": ["g1", "g2"],
	    "sample_map": {"S1": 0, "S2": 1},
	    "samples": ["S1", "S2"]
	}`), 0644)
	c.Assert(err, check.IsNil)
	_, err = store.LoadCounts()
	c.Check(err, check.ErrorMatches, `.*does not match metadata.*`)
}

func (s *storeSuite) TestSavePCA(c *check.C) {
	store := &Store{Dir: c.MkDir()}
	result := &PCAResult{
		Scores:        mat.NewDense(3, 2, []float64{1.5, -0.5, -2.25, 0.75, 0.75, -0.25}),
		VarianceRatio: []float64{0.8, 0.15},
	}
	c.Assert(store.SavePCA(result), check.IsNil)

	f, err := os.Open(store.Dir + "/pca_scores.npy")
	c.Assert(err, check.IsNil)
	defer f.Close()
	npy, err := gonpy.NewReader(f)
	c.Assert(err, check.IsNil)
	c.Check(npy.Shape, check.DeepEquals, []int{3, 2})
	scores, err := npy.GetFloat64()
	c.Assert(err, check.IsNil)
	c.Check(scores, check.DeepEquals, []float64{1.5, -0.5, -2.25, 0.75, 0.75, -0.25})

	vf, err := os.Open(store.Dir + "/pca_variance.npy")
	c.Assert(err, check.IsNil)
	defer vf.Close()
	vnpy, err := gonpy.NewReader(vf)
	c.Assert(err, check.IsNil)
	c.Check(vnpy.Shape, check.DeepEquals, []int{2})
	ratios, err := vnpy.GetFloat64()
	c.Assert(err, check.IsNil)
	c.Check(ratios, check.DeepEquals, []float64{0.8, 0.15})
}
