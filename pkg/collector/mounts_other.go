//go:build !linux

package collector

import (
	"fmt"
	"runtime"

	"sysobs/pkg/stats"
)

// readMounts is only implemented for Linux; other platforms report the
// filesystem subsystem as unavailable.
func (c *Collector) readMounts() ([]stats.MountStats, error) {
	return nil, fmt.Errorf("filesystem stats not supported on %s", runtime.GOOS)
}
