//go:build linux

package collector

import (
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"sysobs/pkg/stats"
)

// Pseudo-filesystem types that report no real capacity and only add noise.
var skippedFSTypes = map[string]bool{
	"proc": true, "sysfs": true, "devtmpfs": true, "devpts": true,
	"cgroup": true, "cgroup2": true, "overlay": true, "squashfs": true,
	"tmpfs": true, "securityfs": true, "debugfs": true, "tracefs": true,
	"fusectl": true, "configfs": true, "pstore": true, "bpf": true,
	"mqueue": true, "hugetlbfs": true, "autofs": true, "binfmt_misc": true,
}

// readMounts lists mounted filesystems with nonzero capacity, reading the
// mount table from /proc/mounts and sizes via statfs.
func (c *Collector) readMounts() ([]stats.MountStats, error) {
	data, err := os.ReadFile(filepath.Join(c.procRoot, "mounts"))
	if err != nil {
		return nil, err
	}

	var mounts []stats.MountStats
	seen := make(map[string]bool)

	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		// device mountpoint fstype options dump pass
		if len(fields) < 3 {
			continue
		}
		device, mountPoint, fsType := fields[0], fields[1], fields[2]

		if skippedFSTypes[fsType] || seen[mountPoint] {
			continue
		}
		seen[mountPoint] = true

		var sfs syscall.Statfs_t
		if err := syscall.Statfs(mountPoint, &sfs); err != nil {
			c.debugUnavailable("mount "+mountPoint, err)
			continue
		}

		blockSize := uint64(sfs.Bsize)
		total := sfs.Blocks * blockSize
		if total == 0 {
			continue
		}
		used := (sfs.Blocks - sfs.Bavail) * blockSize

		mounts = append(mounts, stats.MountStats{
			FSType:      fsType,
			MountedFrom: device,
			MountedOn:   mountPoint,
			UsedMB:      used / bytesPerMB,
			TotalMB:     total / bytesPerMB,
		})
	}
	return mounts, nil
}
