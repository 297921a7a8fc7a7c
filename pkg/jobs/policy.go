package jobs

import "runtime"

// DefaultLimit is used when the processor count can't be determined.
const DefaultLimit = 8

// Policy decides how many jobs may run at the same time.
type Policy struct {
	// Override wins over detection if it's greater than zero.
	Override int
	// Detect returns the number of logical processors. Defaults to runtime.NumCPU.
	Detect func() int
}

// Limit returns the concurrency limit. It always returns a value greater than zero;
// detection failures (including panics) fall back to DefaultLimit.
func (p Policy) Limit() int {
	if p.Override > 0 {
		return p.Override
	}

	detect := p.Detect
	if detect == nil {
		detect = runtime.NumCPU
	}

	if count := safeDetect(detect); count > 0 {
		return count
	}

	return DefaultLimit
}

func safeDetect(detect func() int) (count int) {
	defer func() {
		if recover() != nil {
			count = 0
		}
	}()

	return detect()
}
