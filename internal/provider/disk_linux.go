//go:build linux

package provider

import (
	"os"
	"path/filepath"
	"strings"
)

var sysBlockDir = "/sys/block"

// blockDeviceType reports the kind of a block device ("SSD" or "HD") and
// whether name is a whole disk rather than a partition or pseudo device.
func blockDeviceType(name string) (string, bool) {
	if strings.HasPrefix(name, "loop") || strings.HasPrefix(name, "ram") {
		return "", false
	}
	dir := filepath.Join(sysBlockDir, name)
	if _, err := os.Stat(dir); err != nil {
		return "", false
	}
	data, err := os.ReadFile(filepath.Join(dir, "queue", "rotational"))
	if err != nil {
		return "", true
	}
	if strings.TrimSpace(string(data)) == "1" {
		return "HD", true
	}
	return "SSD", true
}
