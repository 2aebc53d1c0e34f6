package ebay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanPrice(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected float64
		hasError bool
	}{
		{
			name:     "currency symbol and thousands separator",
			input:    "$1,299.00",
			expected: 1299.0,
		},
		{
			name:     "int passes through",
			input:    45,
			expected: 45.0,
		},
		{
			name:     "float passes through",
			input:    19.99,
			expected: 19.99,
		},
		{
			name:     "no numeric content",
			input:    "N/A",
			hasError: true,
		},
		{
			name:     "empty string",
			input:    "",
			hasError: true,
		},
		{
			name:     "whitespace and currency words",
			input:    "EUR 1 234.50",
			expected: 1234.50,
		},
		{
			name:     "price range keeps digits only",
			input:    "$55.00",
			expected: 55.0,
		},
		{
			name:     "multiple decimal points fail",
			input:    "1.2.3.4.5.6",
			hasError: true,
		},
		{
			name:     "unsupported type",
			input:    []string{"55"},
			hasError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := CleanPrice(tt.input)

			if tt.hasError {
				assert.ErrorIs(t, err, ErrInvalidPrice)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestPassesThreshold(t *testing.T) {
	price := func(n int) *int { return &n }

	assert.True(t, PassesThreshold(nil, 100), "absent price never excludes")
	assert.True(t, PassesThreshold(price(100), 100), "equal price passes")
	assert.True(t, PassesThreshold(price(150), 100))
	assert.False(t, PassesThreshold(price(99), 100), "strictly below excludes")
	assert.True(t, PassesThreshold(price(0), 0))
}
