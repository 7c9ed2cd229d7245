package log

// Field is a single structured logging attribute.
type Field struct {
	Key   string
	Value interface{}
}

// F constructs a Field.
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Err wraps an error as a conventional "error" field. A nil error yields an
// empty value so callers do not need to branch.
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: ""}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Fields is a map of field names to values.
type Fields map[string]interface{}
