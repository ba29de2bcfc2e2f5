package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

var startedAt = time.Now()

// SysHealth represents real-time system metrics.
type SysHealth struct {
	AllocMB      uint64
	TotalAllocMB uint64
	SysMB        uint64
	NumGC        uint32
	Goroutines   int
	Uptime       time.Duration
	DataDiskSize string
}

// GetSysHealth collects real-time health data. The disk size covers every
// given data path.
func GetSysHealth(dataPaths ...string) SysHealth {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	var size int64
	for _, p := range dataPaths {
		size += dirSize(p)
	}

	return SysHealth{
		AllocMB:      m.Alloc / 1024 / 1024,
		TotalAllocMB: m.TotalAlloc / 1024 / 1024,
		SysMB:        m.Sys / 1024 / 1024,
		NumGC:        m.NumGC,
		Goroutines:   runtime.NumGoroutine(),
		Uptime:       time.Since(startedAt).Truncate(time.Second),
		DataDiskSize: FormatBytes(size),
	}
}

func dirSize(path string) int64 {
	var size int64
	_ = filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size
}

// FormatBytes renders a byte count with a binary unit suffix.
func FormatBytes(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
