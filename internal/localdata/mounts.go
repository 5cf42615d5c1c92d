package localdata

import (
	"fmt"
	"os"

	"github.com/google/uuid"
)

// Mounts provides bind-mount directory management scoped to one server.
// Recreate guarantees the directory exists and is empty on return;
// Get guarantees existence, creating as needed.
type Mounts struct {
	paths *Paths
	id    uuid.UUID
}

// MountsOf returns a Mounts handle scoped to the given server.
func (p *Paths) MountsOf(id uuid.UUID) Mounts {
	return Mounts{paths: p, id: id}
}

// Recreate ensures the named mount directory exists and is empty,
// removing any pre-existing contents (including foreign, non-agent
// directories left by a prior crash or a dirty reinstall).
func (m Mounts) Recreate(purpose Purpose) (string, error) {
	dir := m.paths.MountDir(m.id, purpose)
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("failed to clear mount directory %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create mount directory %s: %w", dir, err)
	}
	return dir, nil
}

// Get ensures the named mount directory exists without clearing existing
// contents, used when attaching to an already-installed server mount.
func (m Mounts) Get(purpose Purpose) (string, error) {
	dir := m.paths.MountDir(m.id, purpose)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create mount directory %s: %w", dir, err)
	}
	return dir, nil
}
