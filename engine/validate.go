package engine

import "github.com/hupe1980/joingo/index"

// Validate checks that both join fields exist, carry a value index, and
// have a non-empty value space. Misconfigured fields fail with a ConfigError
// instead of silently producing an empty result. Execute validates on its
// own; callers that prepare a join ahead of running it can call Validate to
// fail fast.
func Validate(p Params) error {
	if err := validateSide(p.From, p.FromField, SideFrom); err != nil {
		return err
	}

	return validateSide(p.To, p.ToField, SideTo)
}

func validateSide(s index.Searcher, field string, side Side) error {
	info, ok := s.FieldInfo(field)
	if !ok {
		return &ConfigError{Side: side, Field: field, Reason: "field does not exist"}
	}

	if !info.HasValueIndex {
		return &ConfigError{Side: side, Field: field, Reason: "field has no value index"}
	}

	dv, err := s.Values(field)
	if err != nil {
		return err
	}

	if dv.ValueCount() == 0 {
		return &ConfigError{Side: side, Field: field, Reason: "field has an empty value space"}
	}

	return nil
}
