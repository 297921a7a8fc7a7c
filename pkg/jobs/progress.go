package jobs

import (
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/schollz/progressbar/v3"
)

// Reporter renders progress while a batch drains. Both methods are called from the
// goroutine running Await.
type Reporter interface {
	// JobDone is called once per finished job. total is zero if the batch size isn't
	// known because jobs were submitted while the batch was already draining.
	JobDone(job *Job, done, total int)
	// BatchDone is called when Await returns.
	BatchDone(done int)
}

// NopReporter doesn't report anything
type NopReporter struct{}

func (NopReporter) JobDone(*Job, int, int) {}
func (NopReporter) BatchDone(int)          {}

// DefaultGlyph is printed by GlyphReporter for each finished job.
const DefaultGlyph = "█"

// GlyphReporter prints one glyph per finished job and a line break at the end of the batch.
type GlyphReporter struct {
	Out   io.Writer
	Glyph string
}

func (r *GlyphReporter) JobDone(job *Job, done, total int) {
	glyph := r.Glyph
	if glyph == "" {
		glyph = DefaultGlyph
	}

	fmt.Fprint(r.Out, glyph)
}

func (r *GlyphReporter) BatchDone(done int) {
	if done > 0 {
		fmt.Fprint(r.Out, "\n")
	}
}

// BarReporter renders a done/total progress bar. If the total isn't known it switches to
// glyphs for the rest of the batch.
type BarReporter struct {
	Out         io.Writer
	Description string

	bar       *progressbar.ProgressBar
	glyphs    GlyphReporter
	glyphMode bool
}

// NewBarReporter creates a BarReporter writing to out
func NewBarReporter(out io.Writer, description string) *BarReporter {
	return &BarReporter{
		Out:         out,
		Description: description,
		glyphs:      GlyphReporter{Out: out},
	}
}

func (r *BarReporter) JobDone(job *Job, done, total int) {
	if total <= 0 || r.glyphMode {
		if !r.glyphMode && r.bar != nil {
			fmt.Fprint(r.Out, "\n")
		}

		r.glyphMode = true
		r.glyphs.JobDone(job, done, total)
		return
	}

	if r.bar == nil {
		r.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(r.Out),
			progressbar.OptionSetDescription(r.Description),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(false),
		)
	} else if r.bar.GetMax() != total {
		r.bar.ChangeMax(total)
	}

	_ = r.bar.Set(done)
}

func (r *BarReporter) BatchDone(done int) {
	if r.glyphMode {
		r.glyphs.BatchDone(done)
	} else if r.bar != nil {
		_ = r.bar.Finish()
		fmt.Fprint(r.Out, "\n")
	}

	r.bar = nil
	r.glyphMode = false
}

// NewReporter returns the reporter for the given mode: "bar", "glyph" or "none".
// Bars are replaced by glyphs on CI systems since they don't render well in build logs.
func NewReporter(mode string, out io.Writer) (Reporter, error) {
	switch mode {
	case "bar":
		if os.Getenv("CI") == "true" {
			return &GlyphReporter{Out: out}, nil
		}
		return NewBarReporter(out, "Running"), nil
	case "glyph":
		return &GlyphReporter{Out: out}, nil
	case "none", "":
		return NopReporter{}, nil
	default:
		return nil, eris.Errorf("unknown progress mode %s", mode)
	}
}
