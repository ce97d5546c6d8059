// Package export writes generated datasets and computed indicators to disk: versioned
// CSV tables with YAML metadata, indicator tables, an xlsx workbook and the report in
// YAML and CBOR.
package export

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/mobility-cli/internal/dataset"
	"github.com/sells-group/mobility-cli/internal/model"
)

// Compression modes for dataset files.
const (
	CompressionNone = "none"
	CompressionZstd = "zstd"
)

// Options describes how a dataset version was produced.
type Options struct {
	Compression string
	Seed        int64
	StartDate   string
	Days        int
	Sampler     string
	Indexer     string
	Now         func() time.Time
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now().UTC()
	}
	return time.Now().UTC()
}

// NewVersion formats t as a dataset version stamp.
func NewVersion(t time.Time) string {
	return t.UTC().Format(dataset.VersionLayout)
}

// WriteDataset writes the four tables of ds under dir and the metadata describing them.
// The returned metadata is what was written.
func WriteDataset(dir, version string, ds *model.Dataset, opts Options) (*dataset.Metadata, error) {
	if ds == nil {
		return nil, eris.New("export: nil dataset")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "export: create %s", dir)
	}
	compression := opts.Compression
	if compression == "" {
		compression = CompressionNone
	}

	fp, err := Fingerprint(ds)
	if err != nil {
		return nil, err
	}

	meta := &dataset.Metadata{
		Version:     version,
		GeneratedAt: opts.now(),
		Seed:        opts.Seed,
		NUsers:      len(ds.Users),
		StartDate:   opts.StartDate,
		Days:        opts.Days,
		Sampler:     opts.Sampler,
		Indexer:     opts.Indexer,
		Compression: compression,
		Fingerprint: fp,
		Datasets:    make(map[string]dataset.FileInfo, len(dataset.Tables)),
	}

	writers := map[string]func(string) (dataset.FileInfo, error){
		dataset.TableUsers:     func(p string) (dataset.FileInfo, error) { return writeTable(p, ds.Users) },
		dataset.TableUsage:     func(p string) (dataset.FileInfo, error) { return writeTable(p, ds.Usage) },
		dataset.TableMigration: func(p string) (dataset.FileInfo, error) { return writeTable(p, ds.Migration) },
		dataset.TableMobility:  func(p string) (dataset.FileInfo, error) { return writeTable(p, ds.Mobility) },
	}
	for _, table := range dataset.Tables {
		name := dataset.FileName(table, version, compression)
		info, err := writers[table](filepath.Join(dir, name))
		if err != nil {
			return nil, eris.Wrapf(err, "export: write %s", table)
		}
		info.File = name
		meta.Datasets[table] = info
	}

	if err := dataset.WriteMetadata(dir, meta); err != nil {
		return nil, err
	}

	zap.L().Info("dataset written",
		zap.String("component", "export.dataset"),
		zap.String("dir", dir),
		zap.String("version", version),
		zap.String("fingerprint", fp),
		zap.Int("users", len(ds.Users)),
		zap.Int("usage", len(ds.Usage)),
		zap.Int("migration", len(ds.Migration)),
		zap.Int("mobility", len(ds.Mobility)),
	)
	return meta, nil
}

func writeTable[T any](path string, rows []T) (dataset.FileInfo, error) {
	w, err := dataset.Create(path)
	if err != nil {
		return dataset.FileInfo{}, err
	}
	if err := dataset.WriteCSV(w, rows); err != nil {
		_ = w.Close()
		return dataset.FileInfo{}, err
	}
	if err := w.Close(); err != nil {
		return dataset.FileInfo{}, eris.Wrapf(err, "export: close %s", path)
	}
	return dataset.FileInfo{Rows: len(rows), Columns: dataset.Header[T]()}, nil
}
