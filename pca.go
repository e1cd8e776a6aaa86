package rnaseq

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ErrTooManyComponents indicates a PCA request for more components than
// min(num_samples, num_genes) permits.
var ErrTooManyComponents = errors.New("too many components")

// PCAResult holds the outcome of one PCA invocation: one score vector per
// sample (rows of Scores, length k) and the fraction of total variance
// explained by each component, descending. The result is tied to the
// matrix it was computed from; recompute it if the matrix changes.
//
// The sign of each component is arbitrary (eigenvector sign ambiguity), so
// scores are only comparable across implementations up to a per-component
// sign flip.
type PCAResult struct {
	Scores        *mat.Dense
	VarianceRatio []float64
}

// PCA projects the rows of m onto its top k principal components. Columns
// are centered here even though the z-score stage already centers them, so
// the engine stays correct on matrices that did not pass through the
// normalization chain.
func PCA(m mat.Matrix, k int) (*PCAResult, error) {
	rows, cols := m.Dims()
	max := rows
	if cols < max {
		max = cols
	}
	if k < 1 || k > max {
		return nil, fmt.Errorf("requested %d components from a %d×%d matrix (max %d): %w", k, rows, cols, max, ErrTooManyComponents)
	}

	centered := mat.NewDense(rows, cols, nil)
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, m)
		mean := floats.Sum(col) / float64(rows)
		for i, v := range col {
			centered.Set(i, j, v-mean)
		}
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(centered, nil); !ok {
		return nil, fmt.Errorf("principal component decomposition failed on %d×%d matrix", rows, cols)
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	vars := pc.VarsTo(nil)

	var scores mat.Dense
	scores.Mul(centered, vecs.Slice(0, cols, 0, k))

	total := floats.Sum(vars)
	ratio := make([]float64, k)
	if total > 0 {
		for i := 0; i < k; i++ {
			ratio[i] = vars[i] / total
		}
	}
	return &PCAResult{Scores: &scores, VarianceRatio: ratio}, nil
}

type pcaCmd struct{}

func (cmd *pcaCmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	inputDir := flags.String("input-dir", "", "`directory` containing counts_matrix.npy and counts_metadata.json")
	outputDir := flags.String("output-dir", "", "output `directory` for PCA artifacts (default: input directory)")
	configFile := flags.String("config", "", "YAML config `file` (overrides the flags below)")
	cfg := DefaultCountsConfig()
	flags.IntVar(&cfg.Components, "components", cfg.Components, "number of principal components")
	flags.IntVar(&cfg.MinCount, "min-count", cfg.MinCount, "low-expression filter count threshold")
	flags.Float64Var(&cfg.MinSampleFrac, "min-sample-frac", cfg.MinSampleFrac, "fraction of samples that must reach -min-count")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	}
	if *inputDir == "" {
		err = errors.New("-input-dir is required")
		return 2
	}
	if *outputDir == "" {
		*outputDir = *inputDir
	}
	if *configFile != "" {
		cfg, err = LoadCountsConfig(*configFile)
		if err != nil {
			return 1
		}
	} else if err = cfg.Validate(); err != nil {
		return 2
	}

	store := &Store{Dir: *inputDir}
	m, err := store.LoadCounts()
	if err != nil {
		return 1
	}
	norm, err := Preprocess(m, cfg)
	if err != nil {
		return 1
	}
	log.Info("fitting")
	result, err := PCA(norm.Data, cfg.Components)
	if err != nil {
		return 1
	}
	for i, r := range result.VarianceRatio {
		log.Infof("PC%d explains %.2f%% of variance", i+1, r*100)
	}
	err = (&Store{Dir: *outputDir}).SavePCA(result)
	if err != nil {
		return 1
	}
	fmt.Fprintf(stdout, "%s\n", filepath.Join(*outputDir, pcaScoresFile))
	return 0
}
