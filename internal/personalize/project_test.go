package personalize_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/personalize-migrate/internal/failures"
	"github.com/temirov/personalize-migrate/internal/personalize"
)

func TestParseProjectUID(testInstance *testing.T) {
	testCases := []struct {
		name        string
		value       string
		expectError bool
	}{
		{name: "empty_value_rejected", value: "", expectError: true},
		{name: "whitespace_value_rejected", value: "   ", expectError: true},
		{name: "two_characters_rejected", value: "ab", expectError: true},
		{name: "embedded_space_rejected", value: "ab ce", expectError: true},
		{name: "punctuation_rejected", value: "proj.ect", expectError: true},
		{name: "mixed_charset_accepted", value: "ab_3-X", expectError: false},
		{name: "minimum_length_accepted", value: "abc", expectError: false},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			projectUID, parseError := personalize.ParseProjectUID(testCase.value)
			if testCase.expectError {
				require.Error(testInstance, parseError)
				require.True(testInstance, failures.IsKind(parseError, failures.KindValidation))
				require.Empty(testInstance, projectUID)
				return
			}

			require.NoError(testInstance, parseError)
			require.Equal(testInstance, testCase.value, projectUID.String())
		})
	}
}
