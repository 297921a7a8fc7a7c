package buildsys

import (
	"fmt"
	"strings"
)

// TargetMissing is returned when a target or one of its dependencies isn't declared.
type TargetMissing struct {
	Name     string
	Required string
}

var _ error = (*TargetMissing)(nil)

func (e TargetMissing) Error() string {
	if e.Required != "" {
		return fmt.Sprintf("The target %s (required by %s) is not declared.", e.Name, e.Required)
	}
	return fmt.Sprintf("The target %s is not declared.", e.Name)
}

// CycleError is returned when targets depend on each other.
type CycleError struct {
	Chain []string
}

var _ error = (*CycleError)(nil)

func (e CycleError) Error() string {
	return fmt.Sprintf("Dependency cycle detected: %s", strings.Join(e.Chain, " -> "))
}
