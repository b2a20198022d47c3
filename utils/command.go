package utils

import (
	"encoding/json"
	"strings"

	"github.com/bitonicnl/fireworks/internal/core/domain"
)

// ParseCommandArgs turns a list of name=value strings into named command
// arguments. Values are decoded as JSON when possible (numbers are kept as
// json.Number to avoid losing precision) and kept as raw strings otherwise.
func ParseCommandArgs(args []string) (map[string]any, error) {
	params := make(map[string]any, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, domain.CommandFailed(
				"invalid argument '%s': expected name=value", arg,
			)
		}
		params[name] = decodeArgValue(value)
	}
	return params, nil
}

func decodeArgValue(value string) any {
	dec := json.NewDecoder(strings.NewReader(value))
	dec.UseNumber()

	var decoded any
	if err := dec.Decode(&decoded); err != nil {
		return value
	}
	// trailing data means this wasn't a single JSON value
	if strings.TrimSpace(value[dec.InputOffset():]) != "" {
		return value
	}
	return decoded
}
