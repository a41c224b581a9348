package v1alpha1

import (
	"testing"
	"time"

	api "github.com/petrorag/petrorag/api/v1alpha1"
	"github.com/stretchr/testify/assert"
)

func TestHeartbeatDueOnlyAfterSilence(t *testing.T) {
	now := time.Now()

	assert.False(t, heartbeatDue(now, now))
	assert.False(t, heartbeatDue(now.Add(-heartbeatInterval/2), now))
	assert.True(t, heartbeatDue(now.Add(-heartbeatInterval), now))
	assert.True(t, heartbeatDue(now.Add(-2*heartbeatInterval), now))
}

func TestAllTerminal(t *testing.T) {
	assert.True(t, allTerminal(map[string]api.FileStatus{}))
	assert.True(t, allTerminal(map[string]api.FileStatus{
		"a.pdf": api.FileStatusCompleted,
		"b.pdf": api.FileStatusFailed,
	}))
	assert.False(t, allTerminal(map[string]api.FileStatus{
		"a.pdf": api.FileStatusCompleted,
		"b.pdf": api.FileStatusProcessing,
	}))
}
