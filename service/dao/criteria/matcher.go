package criteria

import (
	"fmt"

	"github.com/viant/artifex/service/dao"
)

// Matches reports whether every parameter naming one of fields is satisfied.
// A parameter value is either a single value or a []string of alternatives;
// parameters naming unknown fields are ignored.
func Matches(fields map[string]string, parameters []*dao.Parameter) bool {
	for _, parameter := range parameters {
		if parameter == nil {
			continue
		}
		actual, ok := fields[parameter.Name]
		if !ok {
			continue
		}
		if !matchValue(actual, parameter.Value) {
			return false
		}
	}
	return true
}

// FilterByState reports whether state satisfies State parameter, if any
func FilterByState(state string, parameters []*dao.Parameter) bool {
	return Matches(map[string]string{dao.ParamState: state}, parameters)
}

func matchValue(actual string, expected interface{}) bool {
	switch value := expected.(type) {
	case string:
		return actual == value
	case []string:
		for _, candidate := range value {
			if actual == candidate {
				return true
			}
		}
		return false
	case nil:
		return true
	default:
		return actual == fmt.Sprint(value)
	}
}
