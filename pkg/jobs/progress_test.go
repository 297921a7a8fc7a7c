package jobs

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlyphReporter(t *testing.T) {
	var out bytes.Buffer
	reporter := &GlyphReporter{Out: &out}

	for i := 1; i <= 3; i++ {
		reporter.JobDone(&Job{ID: i}, i, 3)
	}
	reporter.BatchDone(3)

	assert.Equal(t, "███\n", out.String())

	out.Reset()
	reporter.BatchDone(0)
	assert.Empty(t, out.String())
}

func TestBarReporterCounts(t *testing.T) {
	var out bytes.Buffer
	reporter := NewBarReporter(&out, "Compiling")

	for i := 1; i <= 4; i++ {
		reporter.JobDone(&Job{ID: i}, i, 4)
	}
	reporter.BatchDone(4)

	assert.Contains(t, out.String(), "Compiling")
	assert.Contains(t, out.String(), "4/4")
}

func TestBarReporterUnknownTotal(t *testing.T) {
	var out bytes.Buffer
	reporter := NewBarReporter(&out, "Running")

	reporter.JobDone(&Job{ID: 1}, 1, 0)
	reporter.JobDone(&Job{ID: 2}, 2, 0)
	reporter.BatchDone(2)

	assert.Equal(t, strings.Repeat(DefaultGlyph, 2)+"\n", out.String())

	// the next batch starts over with a bar
	out.Reset()
	reporter.JobDone(&Job{ID: 3}, 1, 1)
	reporter.BatchDone(1)
	assert.Contains(t, out.String(), "1/1")
}

func TestNewReporter(t *testing.T) {
	t.Setenv("CI", "")

	reporter, err := NewReporter("bar", &bytes.Buffer{})
	require.NoError(t, err)
	assert.IsType(t, &BarReporter{}, reporter)

	reporter, err = NewReporter("glyph", &bytes.Buffer{})
	require.NoError(t, err)
	assert.IsType(t, &GlyphReporter{}, reporter)

	reporter, err = NewReporter("none", &bytes.Buffer{})
	require.NoError(t, err)
	assert.IsType(t, NopReporter{}, reporter)

	t.Setenv("CI", "true")
	reporter, err = NewReporter("bar", &bytes.Buffer{})
	require.NoError(t, err)
	assert.IsType(t, &GlyphReporter{}, reporter)

	_, err = NewReporter("fireworks", &bytes.Buffer{})
	assert.Error(t, err)
}
