package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCapability_ReturnsDetectedValue(t *testing.T) {
	c := &Capabilities{detected: map[string]bool{"vlan_filtering": true}}

	assert.True(t, c.HasCapability("vlan_filtering"))
}

func TestHasCapability_UnknownNameIsUnsupported(t *testing.T) {
	c := &Capabilities{detected: map[string]bool{"vlan_filtering": true}}

	assert.False(t, c.HasCapability("dsa"))
	assert.False(t, c.HasCapability("nonexistent"))
}

func TestPathExists_TrueForRootFalseForGarbage(t *testing.T) {
	assert.True(t, pathExists("/"))
	assert.False(t, pathExists("/no/such/path/lnmgr-test-sentinel"))
}

func TestDetectCapabilities_ReturnsNonNilMap(t *testing.T) {
	c := DetectCapabilities()
	assert.NotNil(t, c.detected)
}
