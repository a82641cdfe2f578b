package ralph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStopReasonExitCodes(t *testing.T) {
	assert.Equal(t, 0, StopNormal.ExitCode())
	assert.Equal(t, 0, StopAllRetired.ExitCode())
	assert.Equal(t, 0, StopOnce.ExitCode())
	assert.Equal(t, 0, StopMaxTasks.ExitCode())
	assert.Equal(t, 5, StopCancelled.ExitCode())
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "12s", formatDuration(12*time.Second))
	assert.Equal(t, "2m34s", formatDuration(2*time.Minute+34*time.Second))
	assert.Equal(t, "1h12m", formatDuration(time.Hour+12*time.Minute))
}

func TestFormatSummaryOmitsZeroSections(t *testing.T) {
	s := formatSummary(&Summary{Succeeded: 2, StopReason: StopNormal, Duration: 3 * time.Second})

	assert.Contains(t, s, "2 task(s) succeeded")
	assert.NotContains(t, s, "failure(s)")
	assert.NotContains(t, s, "retired")
	assert.Contains(t, s, "Stop: normal")
}

func TestTruncateLongContent(t *testing.T) {
	long := make([]rune, 100)
	for i := range long {
		long[i] = 'x'
	}
	got := truncate(string(long), 60)
	assert.Len(t, []rune(got), 60)
	assert.Equal(t, '…', []rune(got)[59])
}
