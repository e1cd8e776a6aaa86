package rnaseq

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/pgzip"
)

// ErrMalformedCountFile indicates a count file that does not follow the
// featureCounts output format (tab-separated, gene id first, count last).
var ErrMalformedCountFile = errors.New("malformed count file")

// CountFile is the parsed form of one per-sample count file: an ordered
// gene list and the count for each gene. Gene order matches the file.
type CountFile struct {
	Genes  []string
	Counts map[string]int64
}

// ParseCountFile reads one featureCounts-style count file. The file may
// contain #-prefixed comment lines, then one header line, then one
// tab-separated data line per gene with the gene id in the first field and
// the count in the last. Files ending in .gz are decompressed on the fly.
func ParseCountFile(path string) (*CountFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var rdr io.Reader = bufio.NewReaderSize(f, 1<<20)
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(rdr)
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", path, err, ErrMalformedCountFile)
		}
		defer gz.Close()
		rdr = gz
	}
	return parseCounts(rdr, path)
}

func parseCounts(rdr io.Reader, path string) (*CountFile, error) {
	cf := &CountFile{Counts: map[string]int64{}}
	scanner := bufio.NewScanner(rdr)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<24)
	sawHeader := false
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		if !sawHeader {
			sawHeader = true
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			return nil, fmt.Errorf("%s line %d: expected at least 2 tab-separated fields: %w", path, lineno, ErrMalformedCountFile)
		}
		gene := fields[0]
		count, err := strconv.ParseInt(fields[len(fields)-1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: count %q is not an integer: %w", path, lineno, fields[len(fields)-1], ErrMalformedCountFile)
		}
		if count < 0 {
			return nil, fmt.Errorf("%s line %d: negative count for gene %q: %w", path, lineno, gene, ErrMalformedCountFile)
		}
		if _, dup := cf.Counts[gene]; dup {
			return nil, fmt.Errorf("%s line %d: duplicate gene id %q: %w", path, lineno, gene, ErrMalformedCountFile)
		}
		cf.Genes = append(cf.Genes, gene)
		cf.Counts[gene] = count
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cf, nil
}
