// Package localdata owns the on-disk layout under the configured
// data_dir: bind-mount roots, per-server log directories, and the state
// database file path (named bind-mounts, per-purpose log files, the
// layout).
package localdata

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Purpose distinguishes the two kinds of per-server resource this agent
// manages: the disposable installer and the long-running server.
type Purpose string

const (
	PurposeInstaller Purpose = "installer"
	PurposeServer    Purpose = "server"
)

// Paths resolves every on-disk location derived from data_dir.
type Paths struct {
	DataDir string
}

// New validates that data_dir exists (creating it if necessary) and
// returns a Paths bound to it.
func New(dataDir string) (*Paths, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dataDir, err)
	}
	p := &Paths{DataDir: dataDir}
	if err := os.MkdirAll(p.mountsRoot(), 0700); err != nil {
		return nil, fmt.Errorf("failed to create mounts root: %w", err)
	}
	if err := os.MkdirAll(p.logsRoot(), 0700); err != nil {
		return nil, fmt.Errorf("failed to create logs root: %w", err)
	}
	return p, nil
}

func (p *Paths) mountsRoot() string { return filepath.Join(p.DataDir, "mounts") }
func (p *Paths) logsRoot() string   { return filepath.Join(p.DataDir, "logs") }

// DBFile returns the path to the single-writer JSON state document.
func (p *Paths) DBFile() string { return filepath.Join(p.DataDir, "db.json") }

// AuditFile returns the path to the supplemental SQLite transition ledger.
func (p *Paths) AuditFile() string { return filepath.Join(p.DataDir, "audit.db") }

// MountDir returns the host directory backing a named bind mount for the
// given server and purpose: {data_dir}/mounts/{uuid}_{purpose}.
func (p *Paths) MountDir(id uuid.UUID, purpose Purpose) string {
	return filepath.Join(p.mountsRoot(), fmt.Sprintf("%s_%s", id, purpose))
}

// LogDir returns {data_dir}/logs/{uuid}/{purpose}.
func (p *Paths) LogDir(id uuid.UUID, purpose Purpose) string {
	return filepath.Join(p.logsRoot(), id.String(), string(purpose))
}

// ContainerName returns the deterministic container name for a server and
// purpose: {uuid}_{purpose}. Same scheme as MountDir's directory name,
// matching the container naming convention.
func ContainerName(id uuid.UUID, purpose Purpose) string {
	return fmt.Sprintf("%s_%s", id, purpose)
}
