package model

import (
	"bytes"
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Numeric is a decimal value that arrives either as a JSON number or as a numeric string
// (the API serialises decimal columns as strings, e.g. "12.50"). The raw text is kept so a
// round trip does not change what the API sent.
type Numeric struct {
	raw string
	set bool
}

// NumericFrom builds a Numeric from a float.
func NumericFrom(v float64) Numeric {
	return Numeric{raw: strconv.FormatFloat(v, 'f', -1, 64), set: true}
}

// NumericString builds a Numeric from text, which may not be numeric at all.
func NumericString(s string) Numeric {
	return Numeric{raw: s, set: true}
}

// IsSet reports whether a value (possibly an empty string) was provided.
func (n Numeric) IsSet() bool { return n.set }

// IsEmpty reports whether the value is absent or blank.
func (n Numeric) IsEmpty() bool { return !n.set || strings.TrimSpace(n.raw) == "" }

// String returns the raw text.
func (n Numeric) String() string { return n.raw }

// Float parses the value with parseFloat semantics. Absent or unparseable values yield NaN.
func (n Numeric) Float() float64 {
	if !n.set {
		return math.NaN()
	}
	return ParseNumber(n.raw)
}

func (n Numeric) MarshalJSON() ([]byte, error) {
	if !n.set {
		return []byte("null"), nil
	}
	return json.Marshal(n.raw)
}

func (n *Numeric) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*n = Numeric{}
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = NumericString(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return err
	}
	*n = NumericString(num.String())
	return nil
}

var leadingNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// ParseNumber parses the longest numeric prefix of s after trimming whitespace, the way
// browsers' parseFloat does ("12.5kg" is 12.5). It returns NaN when there is no numeric prefix.
func ParseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v
	}
	prefix := leadingNumber.FindString(s)
	if prefix == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(prefix, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
