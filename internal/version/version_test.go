package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsVersionGreaterOrEqualThan(t *testing.T) {
	tests := []struct {
		version string
		target  string
		want    bool
	}{
		{"1.2.0", "1.2.0", true},
		{"1.3.0", "1.2.9", true},
		{"2.0.0", "1.9.9", true},
		{"1.2.0", "1.2.1", false},
		{"0.9.0", "1.0.0", false},
		{"1.10.0", "1.9.0", true},
	}
	for _, tt := range tests {
		got := IsVersionGreaterOrEqualThan(tt.version, tt.target)
		assert.Equal(t, tt.want, got, "%s >= %s", tt.version, tt.target)
	}
}

func TestGetCurrentVersion(t *testing.T) {
	assert.Equal(t, DevVersion, GetCurrentVersion("dev"))
	assert.Equal(t, DevVersion, GetCurrentVersion("demo"))
	assert.Equal(t, Version, GetCurrentVersion("prod"))
}
