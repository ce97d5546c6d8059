// Package dataset reads and writes generated datasets and the tables indicator engines
// consume.
package dataset

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/mobility-cli/internal/model"
)

// ErrNoDataset is returned when the repository directory holds no generated version
// or nothing has been loaded yet.
var ErrNoDataset = eris.New("dataset: no generated dataset")

// Repository is a caller-owned handle on a directory of generated datasets. It caches
// the loaded version until Reload is called again.
type Repository struct {
	dir string

	mu   sync.RWMutex
	meta *Metadata
	ds   *model.Dataset
}

// NewRepository returns a repository over dir. Nothing is read until Reload.
func NewRepository(dir string) *Repository {
	return &Repository{dir: dir}
}

// Dir returns the repository directory.
func (r *Repository) Dir() string { return r.dir }

// Versions lists the generated versions in the directory, oldest first.
func (r *Repository) Versions() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "dataset: list %s", r.dir)
	}
	var versions []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, metadataPrefix) || !strings.HasSuffix(name, metadataExt) {
			continue
		}
		versions = append(versions, strings.TrimSuffix(strings.TrimPrefix(name, metadataPrefix), metadataExt))
	}
	sort.Strings(versions)
	return versions, nil
}

// Reload loads the newest version, replacing any previously loaded one.
func (r *Repository) Reload(ctx context.Context) error {
	versions, err := r.Versions()
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		return ErrNoDataset
	}
	return r.Load(ctx, versions[len(versions)-1])
}

// Load loads a specific version.
func (r *Repository) Load(ctx context.Context, version string) error {
	meta, err := ReadMetadata(r.dir, version)
	if err != nil {
		return err
	}

	ds := &model.Dataset{}
	if ds.Users, err = readTable[model.UserProfile](ctx, r.dir, meta, TableUsers); err != nil {
		return err
	}
	if ds.Usage, err = readTable[model.UsageObservation](ctx, r.dir, meta, TableUsage); err != nil {
		return err
	}
	if ds.Migration, err = readTable[model.MigrationEvent](ctx, r.dir, meta, TableMigration); err != nil {
		return err
	}
	if ds.Mobility, err = readTable[model.MobilityTrip](ctx, r.dir, meta, TableMobility); err != nil {
		return err
	}

	r.mu.Lock()
	r.meta, r.ds = meta, ds
	r.mu.Unlock()

	zap.L().Info("dataset loaded",
		zap.String("component", "dataset.repository"),
		zap.String("version", version),
		zap.Any("rows", ds.Counts()),
	)
	return nil
}

// Snapshot returns the loaded dataset. Callers must not mutate it.
func (r *Repository) Snapshot() (*model.Dataset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.ds == nil {
		return nil, ErrNoDataset
	}
	return r.ds, nil
}

// Metadata returns the metadata of the loaded version.
func (r *Repository) Metadata() (*Metadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.meta == nil {
		return nil, ErrNoDataset
	}
	return r.meta, nil
}

// Version returns the loaded version, or "" when nothing is loaded.
func (r *Repository) Version() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.meta == nil {
		return ""
	}
	return r.meta.Version
}

// Table reads one table of the loaded version without typing it.
func (r *Repository) Table(ctx context.Context, name string) (*Table, error) {
	meta, err := r.Metadata()
	if err != nil {
		return nil, err
	}
	info, ok := meta.Datasets[name]
	if !ok {
		return nil, eris.Errorf("dataset: version %s has no %s table", meta.Version, name)
	}
	return ReadTableFile(ctx, filepath.Join(r.dir, info.File))
}

func readTable[T any](ctx context.Context, dir string, meta *Metadata, name string) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "dataset: load cancelled")
	}
	info, ok := meta.Datasets[name]
	if !ok {
		return nil, nil
	}
	rc, err := Open(filepath.Join(dir, info.File))
	if err != nil {
		return nil, err
	}
	defer rc.Close() //nolint:errcheck

	rows, err := ReadCSV[T](rc)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: load %s", name)
	}
	return rows, nil
}
