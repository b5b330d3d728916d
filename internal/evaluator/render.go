package evaluator

import "fmt"

// renderValue produces the printable form of an evaluated value used for
// both value_rendering in EvalResult and builtin output (puts/warn).
func renderValue(v any) string {
	if v == nil {
		return "nil"
	}
	switch val := v.(type) {
	case string:
		return val
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", val)
	}
}

// renderTypeName produces the dynamic type name used for value_type_name
// in EvalResult. Names follow the evaluator's own value model (int64,
// float64, string, bool) rather than any host language's class names,
// since this is a Go-native evaluation language rather than a port of one
// (see DESIGN.md).
func renderTypeName(v any) string {
	switch v.(type) {
	case nil:
		return "NilClass"
	case int64:
		return "Integer"
	case float64:
		return "Float"
	case string:
		return "String"
	case bool:
		return "Boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}
