package masking

import "strings"

const maskToken = "****"

// MaskSecret redacts all but the last four characters of value.
func MaskSecret(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	if len(trimmed) <= 4 {
		return maskToken
	}
	return maskToken + trimmed[len(trimmed)-4:]
}

// MaskFields returns a copy of input where the string values under keys are
// redacted. Nested maps are walked.
func MaskFields(input map[string]any, keys ...string) map[string]any {
	if len(input) == 0 {
		return nil
	}

	sensitive := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		sensitive[strings.ToLower(strings.TrimSpace(key))] = struct{}{}
	}

	return maskMap(input, sensitive)
}

func maskMap(input map[string]any, sensitive map[string]struct{}) map[string]any {
	masked := make(map[string]any, len(input))
	for key, value := range input {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			continue
		}
		switch cast := value.(type) {
		case string:
			if _, ok := sensitive[strings.ToLower(trimmedKey)]; ok {
				masked[trimmedKey] = MaskSecret(cast)
				continue
			}
			masked[trimmedKey] = cast
		case map[string]any:
			masked[trimmedKey] = maskMap(cast, sensitive)
		default:
			masked[trimmedKey] = value
		}
	}
	return masked
}
