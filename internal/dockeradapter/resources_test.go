package dockeradapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResourceLimitsFromBuildConfig(t *testing.T) {
	limits := ResourceLimitsFromBuildConfig(BuildConfig{MemoryLimitMiB: 1024, CPULimitPct: 200, Threads: "0-1"})

	assert.EqualValues(t, 1024*1_000_000, limits.Memory)
	assert.EqualValues(t, float64(1024*1_000_000)*1.2, limits.MemoryReservation)
	assert.EqualValues(t, 100000, limits.CPUPeriod)
	assert.EqualValues(t, 1024, limits.CPUShares)
	assert.EqualValues(t, 200*1000, limits.CPUQuota)
	assert.Equal(t, "0-1", limits.CpusetCpus)
}

func TestResourceLimitsUnlimitedMemoryAndNoCPUQuota(t *testing.T) {
	limits := ResourceLimitsFromBuildConfig(BuildConfig{MemoryLimitMiB: -1, CPULimitPct: 0})

	assert.EqualValues(t, 0, limits.Memory)
	assert.EqualValues(t, 0, limits.MemoryReservation)
	assert.EqualValues(t, 0, limits.CPUQuota)
}
