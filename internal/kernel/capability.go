package kernel

import "os"

// Capabilities detects which optional kernel features the host supports and
// implements graph.CapabilityChecker.
type Capabilities struct {
	detected map[string]bool
}

// DetectCapabilities probes the host for the capabilities lnmgr's feature
// set may need: bridge VLAN filtering (via the sysfs bridge module knob) and
// DSA switch support (via the dsa sysfs class).
func DetectCapabilities() *Capabilities {
	c := &Capabilities{detected: make(map[string]bool)}

	c.detected["vlan_filtering"] = pathExists("/sys/class/net/br0/bridge/vlan_filtering") ||
		pathExists("/proc/sys/net/bridge")

	c.detected["dsa"] = pathExists("/sys/class/dsa")

	return c
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// HasCapability implements graph.CapabilityChecker. Unknown names are
// treated as unsupported rather than erroring.
func (c *Capabilities) HasCapability(name string) bool {
	return c.detected[name]
}
