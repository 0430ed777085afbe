package storage

import (
	"context"
	"errors"
	"time"

	"rulegraph/internal/extractor"
)

// ErrSnapshotNotFound is returned when no snapshot exists for a country.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// ParameterFile is one raw parameter document of a snapshot, tagged with
// the parameters directory (stage) it came from and that stage's lookup
// position.
type ParameterFile struct {
	Stage   string
	Order   int
	RelPath string
	Data    []byte
}

// Snapshot is a self-contained copy of one country's corpus: definitions
// with their module sources, enums and raw parameter files.
type Snapshot struct {
	Country        string
	Version        string
	CreatedAt      time.Time
	Variables      []*extractor.VariableDefinition
	Enums          []*extractor.EnumDefinition
	ParameterFiles []ParameterFile
}

// SnapshotInfo summarizes a stored snapshot.
type SnapshotInfo struct {
	Country   string    `json:"country"`
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	Variables int       `json:"variables"`
}

// SnapshotStore persists corpus snapshots. Saving a country replaces its
// previous snapshot entirely.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap *Snapshot) error
	LoadSnapshot(ctx context.Context, country string) (*Snapshot, error)
	ListSnapshots(ctx context.Context) ([]SnapshotInfo, error)
	Close() error
}
