package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveCommit(t *testing.T) {
	withRevision := func(rev string) func() (*debug.BuildInfo, bool) {
		return func() (*debug.BuildInfo, bool) {
			return &debug.BuildInfo{Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: rev}}}, true
		}
	}
	noInfo := func() (*debug.BuildInfo, bool) { return nil, false }

	assert.Equal(t, "abcdef12", resolveCommit("abcdef1234567890", noInfo), "override wins and is shortened")
	assert.Equal(t, "abc", resolveCommit("abc", withRevision("ffffffffff")))
	assert.Equal(t, "12345678", resolveCommit("", withRevision("1234567890abcdef")))
	assert.Equal(t, "dev", resolveCommit("", withRevision("")))
	assert.Equal(t, "dev", resolveCommit("", noInfo))
}

func TestFull(t *testing.T) {
	assert.Equal(t, "adaa/"+GitCommit, Full())
}
