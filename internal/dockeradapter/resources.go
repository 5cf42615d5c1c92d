package dockeradapter

import "github.com/docker/docker/api/types/container"

// BuildConfig is the resource envelope the panel supplies per server
// Mirrors panel.BuildConfig's shape without importing
// that package, keeping this adapter independent of the panel wire
// format.
type BuildConfig struct {
	MemoryLimitMiB int64
	CPULimitPct    int64
	Threads        string
}

const (
	cpuPeriodMicros = 100000
	cpuShares       = 1024
	bytesPerUnit    = 1_000_000 // memory hard limit = max(0, memory_limit) * 10^6
)

// ResourceLimitsFromBuildConfig derives the container engine's resource
// limits from BuildConfig: memory hard limit =
// max(0, memory_limit) * 10^6; reservation = hard limit * 1.2; CPU period
// 100000µs, shares 1024, quota = cpu_limit * 1000 only when cpu_limit > 0.
//
// This replaces the original Rust source's fixed 4GiB
// placeholder everywhere a container is configured — the core spec
// prescribes BuildConfig-derived limits unconditionally.
func ResourceLimitsFromBuildConfig(bc BuildConfig) container.Resources {
	memLimit := bc.MemoryLimitMiB
	if memLimit < 0 {
		memLimit = 0
	}
	hardLimit := memLimit * bytesPerUnit
	reservation := int64(float64(hardLimit) * 1.2)

	resources := container.Resources{
		Memory:            hardLimit,
		MemoryReservation: reservation,
		CPUPeriod:         cpuPeriodMicros,
		CPUShares:         cpuShares,
		CpusetCpus:        bc.Threads,
	}

	if bc.CPULimitPct > 0 {
		resources.CPUQuota = bc.CPULimitPct * 1000
	}

	return resources
}
