package rnaseq

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
)

var (
	// ErrNoSamplesFound indicates a run directory containing no count files.
	ErrNoSamplesFound = errors.New("no count files found")
	// ErrGeneSetMismatch indicates a count file whose gene set diverges
	// from the canonical set established by the first file of the run.
	ErrGeneSetMismatch = errors.New("gene set mismatch")
	// ErrDuplicateSampleName indicates two count files that reduce to the
	// same derived sample identifier.
	ErrDuplicateSampleName = errors.New("duplicate sample name")
)

const countFileSuffix = "_counts.txt"

// findCountFiles returns every count file under dir, in lexicographic path
// order. Filesystem enumeration order is unspecified across platforms, so
// the sort is what makes reassembly reproducible.
func findCountFiles(dir string) ([]string, error) {
	var paths []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, countFileSuffix) || strings.HasSuffix(path, countFileSuffix+".gz") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%s: %w", dir, ErrNoSamplesFound)
	}
	sort.Strings(paths)
	return paths, nil
}

// sampleName derives the sample identifier from a count file path by
// trimming the artifact suffix from the base name, so
// "tumor_rep1_counts.txt.gz" becomes "tumor_rep1".
func sampleName(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, ".gz")
	return strings.TrimSuffix(base, countFileSuffix)
}

// AssembleRun discovers every per-sample count file under dir and builds
// the dense counts matrix for the run. The first file (in lexicographic
// path order) establishes the canonical gene index; every later file must
// draw its gene ids from that set. Genes absent from a later file stay
// zero. All samples of a run are expected to share one annotation, so an
// unknown gene id aborts assembly instead of silently misaligning columns.
func AssembleRun(dir string) (*CountMatrix, error) {
	paths, err := findCountFiles(dir)
	if err != nil {
		return nil, err
	}
	log.Infof("found %d count files under %s", len(paths), dir)

	m := &CountMatrix{
		SampleMap: map[string]int{},
		GeneMap:   map[string]int{},
	}
	for row, path := range paths {
		name := sampleName(path)
		if prev, ok := m.SampleMap[name]; ok {
			return nil, fmt.Errorf("%s and %s both reduce to sample %q: %w", paths[prev], path, name, ErrDuplicateSampleName)
		}
		m.SampleMap[name] = row
		m.Samples = append(m.Samples, name)

		cf, err := ParseCountFile(path)
		if err != nil {
			return nil, err
		}
		if row == 0 {
			for col, gene := range cf.Genes {
				m.GeneMap[gene] = col
			}
			m.Genes = cf.Genes
			m.Data = make([]int64, len(paths)*len(cf.Genes))
		}
		cols := len(m.Genes)
		for _, gene := range cf.Genes {
			col, ok := m.GeneMap[gene]
			if !ok {
				return nil, fmt.Errorf("%s: gene %q not in canonical gene set: %w", path, gene, ErrGeneSetMismatch)
			}
			m.Data[row*cols+col] = cf.Counts[gene]
		}
	}
	log.Infof("assembled %d samples × %d genes", m.Rows(), m.Cols())
	return m, nil
}

type assemble struct{}

func (cmd *assemble) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	runDir := flags.String("run-dir", "", "run `directory` to scan for count files")
	outputDir := flags.String("output-dir", "", "output `directory` for matrix artifacts (default: run directory)")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	}
	if *runDir == "" {
		err = errors.New("-run-dir is required")
		return 2
	}
	if *outputDir == "" {
		*outputDir = *runDir
	}

	m, err := AssembleRun(*runDir)
	if err != nil {
		return 1
	}
	store := &Store{Dir: *outputDir}
	err = store.SaveCounts(m)
	if err != nil {
		return 1
	}
	fmt.Fprintf(stdout, "%s\n", filepath.Join(*outputDir, countsMatrixFile))
	return 0
}
