package panel

import "github.com/google/uuid"

// BuildConfig is the resource-limit envelope the panel supplies per
// server. Memory/swap/disk in MiB, cpu_limit in percent
// (0 = unbounded), threads is a cpuset string.
type BuildConfig struct {
	MemoryLimit int64  `json:"memory_limit"`
	Swap        int64  `json:"swap"`
	IOWeight    int    `json:"io_weight"`
	CPULimit    int64  `json:"cpu_limit"`
	Threads     string `json:"threads"`
	DiskSpace   int64  `json:"disk_space"`
	OOMDisabled bool   `json:"oom_disabled"`
}

// ProcessConfiguration carries the image and startup command for a
// server's runtime container.
type ProcessConfiguration struct {
	Image      string   `json:"image"`
	Entrypoint []string `json:"entrypoint"`
	Startup    string   `json:"startup"`
}

// ServerSettings is the full server configuration envelope returned by
// GET /api/remote/servers/{uuid} and embedded in the paginated list.
type ServerSettings struct {
	UUID        uuid.UUID         `json:"uuid"`
	BuildConfig BuildConfig       `json:"build"`
	Process     ProcessConfiguration `json:"process"`
	Environment map[string]string `json:"environment"`
}

// ServerListItem is one entry in the paginated servers list.
type ServerListItem struct {
	UUID     uuid.UUID      `json:"uuid"`
	Settings ServerSettings `json:"settings"`
}

// pagination mirrors the panel's standard page envelope.
type pagination struct {
	CurrentPage int `json:"current_page"`
	LastPage    int `json:"last_page"`
}

type listServersResponse struct {
	Data []ServerListItem `json:"data"`
	Meta struct {
		Pagination pagination `json:"pagination"`
	} `json:"meta"`
}

type getServerResponse struct {
	Settings ServerSettings `json:"settings"`
}

// InstallInstructions is the egg/install recipe.
type InstallInstructions struct {
	ContainerImage string `json:"container_image"`
	Entrypoint     string `json:"entrypoint"`
	Script         string `json:"script"`
}

// InstallStatus is the body posted back at the end of installation.
type InstallStatus struct {
	Successful bool `json:"successful"`
	Reinstall  bool `json:"reinstall"`
}
