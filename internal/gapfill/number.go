package gapfill

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	usThousands = regexp.MustCompile(`^\d{1,3}(,\d{3})+$`)
	euThousands = regexp.MustCompile(`^\d{1,3}(\.\d{3}){2,}$`)
)

var magnitudes = map[byte]float64{
	'T': 1e12,
	'B': 1e9,
	'M': 1e6,
}

// ParseNumber reads a number the way financial sites print it. Both
// "1,234.56" and "1.234,56" parse to 1234.56, a trailing "%" or "x" is
// dropped and a trailing T, B or M scales the result.
func ParseNumber(s string) (float64, error) {
	str := strings.TrimSpace(s)
	if str == "" {
		return 0, fmt.Errorf("parse number: empty input")
	}

	mult := 1.0
	if m, ok := magnitudes[str[len(str)-1]]; ok {
		mult = m
		str = strings.TrimSpace(str[:len(str)-1])
	}
	str = strings.TrimSpace(strings.TrimRight(str, "xX%"))

	comma := strings.LastIndex(str, ",")
	dot := strings.LastIndex(str, ".")
	switch {
	case comma >= 0 && dot >= 0:
		if comma < dot {
			str = strings.ReplaceAll(str, ",", "")
		} else {
			str = strings.ReplaceAll(str, ".", "")
			str = strings.ReplaceAll(str, ",", ".")
		}
	case comma >= 0:
		// 1,234 is grouping, 12,34 is a decimal comma.
		if usThousands.MatchString(str) {
			str = strings.ReplaceAll(str, ",", "")
		} else {
			str = strings.ReplaceAll(str, ",", ".")
		}
	case euThousands.MatchString(str):
		str = strings.ReplaceAll(str, ".", "")
	}

	v, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return 0, fmt.Errorf("parse number %q: %w", s, err)
	}
	return v * mult, nil
}
