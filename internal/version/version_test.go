package version

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseISOTime(t *testing.T) {
	testCases := []struct {
		in   string
		want time.Time
	}{
		{"2026-03-01T10:20:30Z", time.Date(2026, 3, 1, 10, 20, 30, 0, time.UTC)},
		{"2026-03-01T10:20:30", time.Date(2026, 3, 1, 10, 20, 30, 0, time.UTC)},
		{"2026-03-01 10:20:30", time.Date(2026, 3, 1, 10, 20, 30, 0, time.UTC)},
		{"unknown", time.Time{}},
		{"", time.Time{}},
		{"yesterday", time.Time{}},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			assert.True(t, tc.want.Equal(parseISOTime(tc.in)))
		})
	}
}

func TestLdflagsVersion(t *testing.T) {
	oldVersion, oldCommit := Version, GitCommit
	defer func() { Version, GitCommit = oldVersion, oldCommit }()

	Version = "1.2.0"
	GitCommit = "0123456789abcdef"

	assert.Equal(t, "1.2.0", GetVersion())
	assert.Equal(t, "1.2.0 (0123456)", GetShortVersion())
	assert.True(t, IsRelease())

	info := GetBuildInfo("0.4.40")
	assert.Equal(t, "0.4.40", info.MdbookVersion)
	assert.Equal(t, "0123456789abcdef", info.GitCommit)
	assert.NotEmpty(t, info.GoVersion)
	assert.Contains(t, info.Platform, "/")
}
