package engine

import "fmt"

// Side names one side of a join in configuration errors.
type Side string

const (
	// SideFrom is the source side of a join.
	SideFrom Side = "from"
	// SideTo is the destination side of a join.
	SideTo Side = "to"
)

// ConfigError reports a join that cannot run against the given fields. It
// is returned for missing fields, fields without a value index, empty value
// spaces, and strategy and field type mismatches.
type ConfigError struct {
	// Side is the side of the join the error refers to.
	Side Side
	// Field is the offending field name.
	Field string
	// Reason describes why the join cannot run.
	Reason string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("join %s field %q: %s", e.Side, e.Field, e.Reason)
}
