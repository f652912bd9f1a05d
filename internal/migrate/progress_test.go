package migrate

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCLIReporterRendersPhaseLifecycle(t *testing.T) {
	var buf bytes.Buffer
	r := NewCLIReporter(&buf)
	phase := Phase{Name: "Channels", Index: 2, Total: 4}

	r.StartPhase(phase, 3)
	r.Progress(phase, 2, 3)
	r.CompletePhase(phase, 3, 1500*time.Millisecond)

	out := buf.String()
	assert.Contains(t, out, "Channels")
	assert.Contains(t, out, "0 of 3")
	assert.Contains(t, out, "2 of 3")
	assert.Contains(t, out, "3 done in 1.5s")
	assert.True(t, strings.HasSuffix(out, "\n"), "the final render ends the line")
}

func TestCLIReporterEmptyPhase(t *testing.T) {
	var buf bytes.Buffer
	r := NewCLIReporter(&buf)
	phase := Phase{Name: "Assets", Index: 4, Total: 4}

	r.StartPhase(phase, 0)
	r.Progress(phase, 0, 0)
	r.CompletePhase(phase, 0, time.Millisecond)

	assert.Contains(t, buf.String(), "nothing to create")
}

func TestCLIReporterWarnBreaksProgressLine(t *testing.T) {
	var buf bytes.Buffer
	r := NewCLIReporter(&buf)
	phase := Phase{Name: "Structure", Index: 1, Total: 4}

	r.StartPhase(phase, 2)
	r.Warn("emoji skipped")

	assert.Contains(t, buf.String(), "\n  warning: emoji skipped\n")
}

func TestFormatBytes(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{256 << 10, "256.0 KiB"},
		{10 << 20, "10.0 MiB"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatBytes(tc.in))
	}
}
