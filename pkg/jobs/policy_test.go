package jobs

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPolicyLimit(t *testing.T) {
	tests := []struct {
		name     string
		policy   Policy
		expected int
	}{
		{"override wins", Policy{Override: 3, Detect: func() int { return 64 }}, 3},
		{"detected", Policy{Detect: func() int { return 12 }}, 12},
		{"detection failed", Policy{Detect: func() int { return 0 }}, DefaultLimit},
		{"detection panicked", Policy{Detect: func() int { panic("no cpuinfo") }}, DefaultLimit},
		{"negative override", Policy{Override: -2, Detect: func() int { return 4 }}, 4},
		{"host", Policy{}, runtime.NumCPU()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.policy.Limit())
		})
	}
}

func TestSchedulerUsesPolicy(t *testing.T) {
	sched := New(UsePolicy(Policy{Detect: func() int { return 5 }}))
	assert.Equal(t, 5, sched.Limit())

	sched = New(UsePolicy(Policy{Detect: func() int { return 5 }}), Limit(1))
	assert.Equal(t, 1, sched.Limit())
}
