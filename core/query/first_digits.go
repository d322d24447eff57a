package query

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// Bucket returns the facet bucket of value. ok is false when value carries no
// leading integer and numeric extraction is enabled.
//
//	Bucket("2014-05-01", FirstDigits{N: 3}) == "201"
//	Bucket("-523", FirstDigits{N: 2})       == "-52"
func (fd FirstDigits) Bucket(value string) (bucket string, ok bool) {
	if !fd.Enabled() {
		return value, true
	}

	s := strings.TrimLeftFunc(value, unicode.IsSpace)
	negative := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		negative = s[0] == '-'
		s = s[1:]
	}

	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return "", false
	}

	digits := strings.TrimLeft(s[:end], "0")
	if digits == "" {
		return "0", true
	}
	if !fd.Full && len(digits) > fd.N {
		digits = digits[:fd.N]
	}
	if negative {
		return "-" + digits, true
	}
	return digits, true
}

// Pattern returns a POSIX regular expression matching the textual values that
// fall in bucket. It is the inverse of Bucket and is used to narrow results on
// an active first-digits facet.
func (fd FirstDigits) Pattern(bucket string) (string, error) {
	if !fd.Enabled() {
		return "", fmt.Errorf("first digits is not enabled")
	}

	digits := strings.TrimPrefix(bucket, "-")
	negative := len(digits) != len(bucket)
	if digits == "" || strings.TrimFunc(digits, isDigit) != "" {
		return "", fmt.Errorf("invalid bucket %q", bucket)
	}
	if digits == "0" {
		return `^\s*[-+]?0+([^0-9]|$)`, nil
	}
	if digits[0] == '0' || (!fd.Full && len(digits) > fd.N) {
		return "", fmt.Errorf("invalid bucket %q", bucket)
	}

	sign := `\+?`
	if negative {
		sign = `-`
	}
	pattern := `^\s*` + sign + `0*` + digits
	if fd.Full || len(digits) < fd.N {
		pattern += `([^0-9]|$)`
	}
	return pattern, nil
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func (fd FirstDigits) MarshalJSON() ([]byte, error) {
	switch {
	case fd.Full:
		return []byte("true"), nil
	case fd.N > 0:
		return json.Marshal(fd.N)
	}
	return []byte("false"), nil
}

func (fd *FirstDigits) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*fd = FirstDigits{}
	case bool:
		*fd = FirstDigits{Full: t}
	case float64:
		if t < 0 || t != float64(int(t)) {
			return fmt.Errorf("invalid first_digits %v", t)
		}
		*fd = FirstDigits{N: int(t)}
	case string:
		parsed, err := ParseFirstDigits(t)
		if err != nil {
			return err
		}
		*fd = parsed
	default:
		return fmt.Errorf("invalid first_digits %s", string(data))
	}
	return nil
}
