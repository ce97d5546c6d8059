package dataset

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Table names of a generated dataset.
const (
	TableUsers     = "users"
	TableUsage     = "usage"
	TableMigration = "migration"
	TableMobility  = "mobility"
)

// Tables lists the generated tables in write order.
var Tables = []string{TableUsers, TableUsage, TableMigration, TableMobility}

const (
	metadataPrefix = "metadata_"
	metadataExt    = ".yml"
)

// VersionLayout formats the version stamp of a generated dataset.
const VersionLayout = "20060102_150405"

// Metadata describes one generated dataset version.
type Metadata struct {
	Version     string              `yaml:"version"`
	GeneratedAt time.Time           `yaml:"generated_at"`
	Seed        int64               `yaml:"seed"`
	NUsers      int                 `yaml:"n_users"`
	StartDate   string              `yaml:"start_date"`
	Days        int                 `yaml:"days"`
	Sampler     string              `yaml:"sampler"`
	Indexer     string              `yaml:"indexer"`
	Compression string              `yaml:"compression"`
	Fingerprint string              `yaml:"fingerprint"`
	Datasets    map[string]FileInfo `yaml:"datasets"`
}

// FileInfo describes one written table.
type FileInfo struct {
	File    string   `yaml:"file"`
	Rows    int      `yaml:"rows"`
	Columns []string `yaml:"columns"`
}

// FileName returns the file name of a table for a version.
func FileName(table, version, compression string) string {
	name := table + "_" + version + ".csv"
	if compression == "zstd" {
		name += ZstdExt
	}
	return name
}

// MetadataPath returns the metadata file path of a version.
func MetadataPath(dir, version string) string {
	return filepath.Join(dir, metadataPrefix+version+metadataExt)
}

// WriteMetadata writes m as YAML next to the dataset files.
func WriteMetadata(dir string, m *Metadata) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return eris.Wrap(err, "dataset: marshal metadata")
	}
	if err := os.WriteFile(MetadataPath(dir, m.Version), data, 0o644); err != nil {
		return eris.Wrap(err, "dataset: write metadata")
	}
	return nil
}

// ReadMetadata reads the metadata of a version.
func ReadMetadata(dir, version string) (*Metadata, error) {
	data, err := os.ReadFile(MetadataPath(dir, version))
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: read metadata %s", version)
	}
	var m Metadata
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrapf(err, "dataset: parse metadata %s", version)
	}
	return &m, nil
}
