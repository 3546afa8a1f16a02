package perception

import (
	"encoding/json"
	"fmt"
)

// findJSONCandidates scans the input string for top-level JSON object candidates.
// It returns a slice of strings, each representing a potential JSON object.
// It handles nested braces and string escaping to correctly identify boundaries,
// so markdown fences and prose around the object are skipped.
//
// Note: It is safe to iterate bytes for ASCII delimiters ({, }, ", \) because
// UTF-8 encoding guarantees that ASCII bytes never appear as part of a multi-byte sequence.
func findJSONCandidates(s string) []string {
	var candidates []string
	var depth int
	var start int = -1
	var inString bool
	var escape bool

	for i := 0; i < len(s); i++ {
		b := s[i]

		if escape {
			escape = false
			continue
		}

		if inString {
			if b == '\\' {
				escape = true
			} else if b == '"' {
				inString = false
			}
			continue
		}

		// Quotes only open a string inside an object; prose apostrophes
		// and stray quotes outside braces are ignored.
		if b == '"' && depth > 0 {
			inString = true
			continue
		}

		if b == '{' {
			if depth == 0 {
				start = i
			}
			depth++
		} else if b == '}' {
			if depth > 0 {
				depth--
				if depth == 0 && start != -1 {
					candidates = append(candidates, s[start:i+1])
					start = -1
				}
			}
		}
	}

	return candidates
}

// decodeFirstObject unmarshals the first candidate object in s that is
// valid JSON into v.
func decodeFirstObject(s string, v interface{}) error {
	candidates := findJSONCandidates(s)
	if len(candidates) == 0 {
		return fmt.Errorf("no JSON object in response")
	}
	for _, cand := range candidates {
		if !json.Valid([]byte(cand)) {
			continue
		}
		return json.Unmarshal([]byte(cand), v)
	}
	return fmt.Errorf("no valid JSON object in response")
}
