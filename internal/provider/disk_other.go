//go:build !linux

package provider

// blockDeviceType has no portable source for the device kind outside Linux;
// every counter gopsutil reports is treated as a whole disk.
func blockDeviceType(name string) (string, bool) {
	return "", true
}
