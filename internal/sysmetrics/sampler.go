// Package sysmetrics samples host CPU, memory and disk utilisation and renders
// the values in the string form used by the health report.
package sysmetrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
)

// Snapshot is one numeric reading of the host
type Snapshot struct {
	CPUPercent      float64
	MemoryPercent   float64
	MemoryAvailable uint64 // bytes
	DiskPercent     float64
	DiskFree        uint64 // bytes
}

// Sampler takes a Snapshot of the host
type Sampler interface {
	Sample(ctx context.Context) (Snapshot, error)
}

// SamplerFunc adapts a function to the Sampler interface
type SamplerFunc func(ctx context.Context) (Snapshot, error)

func (f SamplerFunc) Sample(ctx context.Context) (Snapshot, error) {
	return f(ctx)
}

// GopsutilSampler reads the host through gopsutil. CPU usage is measured over
// a blocking window of Interval; disk figures refer to the filesystem holding
// DiskPath.
type GopsutilSampler struct {
	Interval time.Duration
	DiskPath string
}

// NewGopsutilSampler creates a sampler with the given CPU window and disk path
func NewGopsutilSampler(interval time.Duration, diskPath string) *GopsutilSampler {
	return &GopsutilSampler{
		Interval: interval,
		DiskPath: diskPath,
	}
}

func (s *GopsutilSampler) Sample(ctx context.Context) (Snapshot, error) {
	percents, err := cpu.PercentWithContext(ctx, s.Interval, false)
	if err != nil {
		return Snapshot{}, fmt.Errorf("sample cpu: %w", err)
	}
	if len(percents) == 0 {
		return Snapshot{}, errors.New("sample cpu: no reading returned")
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("sample memory: %w", err)
	}

	usage, err := disk.UsageWithContext(ctx, s.DiskPath)
	if err != nil {
		return Snapshot{}, fmt.Errorf("sample disk %q: %w", s.DiskPath, err)
	}

	return Snapshot{
		CPUPercent:      percents[0],
		MemoryPercent:   vm.UsedPercent,
		MemoryAvailable: vm.Available,
		DiskPercent:     usage.UsedPercent,
		DiskFree:        usage.Free,
	}, nil
}
