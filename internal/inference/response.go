package inference

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownShape reports a response body that is neither the list nor
	// the object form the endpoint is known to produce. Stringifying an
	// unrecognized payload into a medical report is never acceptable, so
	// this is a hard error.
	ErrUnknownShape = errors.New("unrecognized response shape")
	// ErrEmptyGeneration reports that the endpoint answered with no usable
	// text.
	ErrEmptyGeneration = errors.New("model returned no text")
)

// DecodeResponse extracts the generated text from an endpoint response.
// Deployments answer either `[{"generated_text": …}]` or
// `{"generated_text": …}`; both forms may use `text` as the field name.
func DecodeResponse(body []byte) (string, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return "", fmt.Errorf("%w: empty body", ErrUnknownShape)
	}

	if trimmed[0] == '[' {
		var list []map[string]any
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return "", fmt.Errorf("%w: %v", ErrUnknownShape, err)
		}
		if len(list) == 0 {
			return "", fmt.Errorf("%w: empty list", ErrEmptyGeneration)
		}
		return textField(list[0])
	}

	var obj map[string]any
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnknownShape, err)
	}
	if obj == nil {
		return "", fmt.Errorf("%w: null body", ErrUnknownShape)
	}
	return textField(obj)
}

func textField(m map[string]any) (string, error) {
	sawEmpty := false
	for _, key := range []string{"generated_text", "text"} {
		v, ok := m[key]
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return "", fmt.Errorf("%w: field %q holds %T, not a string", ErrUnknownShape, key, v)
		}
		// An empty generated_text falls through to text.
		if strings.TrimSpace(s) == "" {
			sawEmpty = true
			continue
		}
		return s, nil
	}
	if sawEmpty {
		return "", ErrEmptyGeneration
	}
	return "", fmt.Errorf("%w: neither generated_text nor text present", ErrUnknownShape)
}
