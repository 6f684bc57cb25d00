// Package loader populates a relationship store from the HPO release
// annotation files.
package loader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/phenotype-mcp/internal/logging"
	"github.com/dshills/phenotype-mcp/internal/storage"
)

// Release file names as published by the HPO project
const (
	FileAnnotations      = "phenotype.hpoa"
	FileGenesToDisease   = "genes_to_disease.txt"
	FileGenesToPhenotype = "genes_to_phenotype.txt"
	FilePhenotypeToGenes = "phenotype_to_genes.txt"
)

// Files locates the four release files
type Files struct {
	Annotations      string
	GenesToDisease   string
	GenesToPhenotype string
	PhenotypeToGenes string
}

// FilesIn returns the standard file names under dir
func FilesIn(dir string) Files {
	return Files{
		Annotations:      filepath.Join(dir, FileAnnotations),
		GenesToDisease:   filepath.Join(dir, FileGenesToDisease),
		GenesToPhenotype: filepath.Join(dir, FileGenesToPhenotype),
		PhenotypeToGenes: filepath.Join(dir, FilePhenotypeToGenes),
	}
}

// Statistics reports what a load wrote
type Statistics struct {
	Rows              map[string]int
	NormalizedGeneIDs int64
	Duration          time.Duration
}

// Loader parses release files and writes them through a storage.Writer
type Loader struct {
	log *logging.Logger
}

// New creates a Loader
func New(log *logging.Logger) *Loader {
	if log == nil {
		log = logging.Nop()
	}
	return &Loader{log: log}
}

// Load parses all four files concurrently, then replaces each table's rows
// and strips the NCBIGene: prefix from gene ids. Any unreadable file aborts
// the load before anything is written.
func (l *Loader) Load(ctx context.Context, w *storage.Writer, files Files) (*Statistics, error) {
	start := time.Now()

	var (
		annotations []storage.Annotation
		g2d         []storage.GeneDisease
		g2p         []storage.GenePhenotype
		p2g         []storage.TermGene
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		annotations, err = readAnnotations(gctx, files.Annotations)
		return err
	})
	g.Go(func() (err error) {
		g2d, err = readGenesToDisease(gctx, files.GenesToDisease)
		return err
	})
	g.Go(func() (err error) {
		g2p, err = readGenesToPhenotype(gctx, files.GenesToPhenotype)
		return err
	})
	g.Go(func() (err error) {
		p2g, err = readPhenotypeToGenes(gctx, files.PhenotypeToGenes)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats := &Statistics{Rows: make(map[string]int, len(storage.AssociationTables))}

	steps := []struct {
		table string
		write func() (int, error)
	}{
		{storage.TableAnnotations, func() (int, error) { return w.ReplaceAnnotations(ctx, annotations) }},
		{storage.TableGenesToDisease, func() (int, error) { return w.ReplaceGenesToDisease(ctx, g2d) }},
		{storage.TableGenesToPhenotype, func() (int, error) { return w.ReplaceGenesToPhenotype(ctx, g2p) }},
		{storage.TablePhenotypeToGenes, func() (int, error) { return w.ReplacePhenotypeToGenes(ctx, p2g) }},
	}
	for _, s := range steps {
		n, err := s.write()
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", s.table, err)
		}
		stats.Rows[s.table] = n
		l.log.Info("table loaded", "table", s.table, "rows", n)
	}

	n, err := w.NormalizeGeneIDs(ctx)
	if err != nil {
		return nil, err
	}
	stats.NormalizedGeneIDs = n
	stats.Duration = time.Since(start)

	l.log.Info("store loaded", "path", w.Path(), "normalized_gene_ids", n, "duration", stats.Duration)
	return stats, nil
}

// readTSV calls fn for each data row of path. Lines starting with '#' are
// skipped; when header is set the first remaining line is skipped too.
// Rows are padded to width so short lines never index out of range.
func readTSV(ctx context.Context, path string, width int, header bool, fn func([]string)) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", filepath.Base(path), err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.Comma = '\t'
	r.Comment = '#'
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	skipHeader := header
	for line := 1; ; line++ {
		if line%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
		}
		if skipHeader {
			skipHeader = false
			continue
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}

		row := make([]string, width)
		copy(row, rec)
		fn(row)
	}
}

func readAnnotations(ctx context.Context, path string) ([]storage.Annotation, error) {
	var out []storage.Annotation
	err := readTSV(ctx, path, 12, true, func(r []string) {
		out = append(out, storage.Annotation{
			DiseaseID:     r[0],
			DiseaseName:   r[1],
			Qualifier:     r[2],
			HPOID:         r[3],
			Reference:     r[4],
			Evidence:      r[5],
			Onset:         r[6],
			Frequency:     r[7],
			Sex:           r[8],
			Modifier:      r[9],
			Aspect:        r[10],
			BiocurationBy: r[11],
		})
	})
	return out, err
}

func readGenesToDisease(ctx context.Context, path string) ([]storage.GeneDisease, error) {
	var out []storage.GeneDisease
	err := readTSV(ctx, path, 5, true, func(r []string) {
		out = append(out, storage.GeneDisease{
			GeneID:          r[0],
			GeneSymbol:      r[1],
			AssociationType: r[2],
			DiseaseID:       r[3],
			Source:          r[4],
		})
	})
	return out, err
}

func readGenesToPhenotype(ctx context.Context, path string) ([]storage.GenePhenotype, error) {
	var out []storage.GenePhenotype
	err := readTSV(ctx, path, 6, true, func(r []string) {
		out = append(out, storage.GenePhenotype{
			GeneID:     r[0],
			GeneSymbol: r[1],
			HPOID:      r[2],
			HPOName:    r[3],
			Frequency:  r[4],
			DiseaseID:  r[5],
		})
	})
	return out, err
}

// phenotype_to_genes carries extra trailing columns; only the first four are kept
func readPhenotypeToGenes(ctx context.Context, path string) ([]storage.TermGene, error) {
	var out []storage.TermGene
	err := readTSV(ctx, path, 4, true, func(r []string) {
		out = append(out, storage.TermGene{
			HPOID:      r[0],
			HPOName:    r[1],
			GeneID:     r[2],
			GeneSymbol: r[3],
		})
	})
	return out, err
}
