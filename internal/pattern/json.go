package pattern

import "encoding/json"

// UnmarshalJSON validates the decoded list the same way construction
// does: consecutive indices, known kinds, compilable regex tokens.
func (l *List) UnmarshalJSON(data []byte) error {
	var raw []Pattern
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decoded := List(raw)
	if err := decoded.Validate(); err != nil {
		return err
	}
	*l = decoded
	return nil
}
