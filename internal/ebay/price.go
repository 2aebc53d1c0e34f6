package ebay

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidPrice means a price text carried no numeric content at all.
var ErrInvalidPrice = errors.New("price has no numeric content")

// CleanPrice normalizes a raw price to a float. Numeric inputs pass through
// unchanged; strings keep only digits and the decimal point, dropping
// currency symbols, grouping separators and whitespace.
func CleanPrice(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		var b strings.Builder
		for _, r := range v {
			if (r >= '0' && r <= '9') || r == '.' {
				b.WriteRune(r)
			}
		}
		if b.Len() == 0 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidPrice, v)
		}
		f, err := strconv.ParseFloat(b.String(), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidPrice, v)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: unsupported type %T", ErrInvalidPrice, raw)
	}
}

// PassesThreshold reports whether a price clears the minimum-price policy.
// An absent price never excludes; a present price is excluded only when
// strictly below minPrice.
func PassesThreshold(price *int, minPrice int) bool {
	return price == nil || *price >= minPrice
}
