package background

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetJobStatus(t *testing.T) {
	js := NewJobScheduler(nil)
	defer func() {
		_ = js.Stop()
	}()

	status := js.GetJobStatus()
	assert.Equal(t, 2, status["total_jobs"])
	assert.ElementsMatch(t, []string{"period-end-sweep", "stale-pending-sweep"}, status["jobs"])
}
