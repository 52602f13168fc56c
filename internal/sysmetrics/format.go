package sysmetrics

import "fmt"

const (
	mebibyte = 1 << 20
	gibibyte = 1 << 30
)

// Metrics is the wire form of a Snapshot
type Metrics struct {
	CPUUsage        string `json:"cpu_usage"`
	MemoryUsage     string `json:"memory_usage"`
	MemoryAvailable string `json:"memory_available"`
	DiskUsage       string `json:"disk_usage"`
	DiskFree        string `json:"disk_free"`
}

// Format renders percentages with one decimal and sizes as whole MB/GB,
// truncating toward zero.
func Format(s Snapshot) Metrics {
	return Metrics{
		CPUUsage:        percent(s.CPUPercent),
		MemoryUsage:     percent(s.MemoryPercent),
		MemoryAvailable: fmt.Sprintf("%d MB", s.MemoryAvailable/mebibyte),
		DiskUsage:       percent(s.DiskPercent),
		DiskFree:        fmt.Sprintf("%d GB", s.DiskFree/gibibyte),
	}
}

func percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}
