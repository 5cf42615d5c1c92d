package dockeradapter

import (
	"github.com/docker/docker/api/types/mount"
)

// BindMount renders a host directory as a non-recursive read-write bind
// mount configuration for the container engine's bind_mount.recreate call.
// Directory creation/clearing itself is internal/localdata's job; this
// function only shapes the engine-facing value.
func BindMount(hostPath, containerPath string) mount.Mount {
	return mount.Mount{
		Type:     mount.TypeBind,
		Source:   hostPath,
		Target:   containerPath,
		ReadOnly: false,
		BindOptions: &mount.BindOptions{
			NonRecursive: true,
		},
	}
}
