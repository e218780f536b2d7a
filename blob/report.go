package blob

import (
	"strings"

	"github.com/pkg/errors"
)

/*
The blob substrate reports through line-oriented "Key: value" text. Field
lookup is by literal key prefix, so a reordered report still decodes, but
a renamed or missing key fails loudly here instead of silently leaving a
zero value downstream.
*/
type reportSchema struct {
	required []string
	optional []string
}

func (s reportSchema) decode(out []byte) (map[string]string, error) {
	fields := make(map[string]string)

	for _, line := range strings.Split(string(out), "\n") {
		for _, key := range s.required {
			if v, ok := cutField(line, key); ok {
				fields[key] = v
			}
		}
		for _, key := range s.optional {
			if v, ok := cutField(line, key); ok {
				fields[key] = v
			}
		}
	}

	var missing []string
	for _, key := range s.required {
		if _, ok := fields[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, errors.Errorf("substrate report missing required field(s): %s", strings.Join(missing, ", "))
	}
	return fields, nil
}

func cutField(line, key string) (string, bool) {
	rest, ok := strings.CutPrefix(line, key+":")
	if !ok {
		return "", false
	}
	return strings.TrimSpace(rest), true
}
