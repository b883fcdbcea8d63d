package migrate_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	migrate "github.com/temirov/personalize-migrate/internal/migrate"
)

const (
	sourceAttributeIdentifierConstant     = "attr_src_1"
	targetAttributeIdentifierConstant     = "attr_tgt_9"
	sourceAudienceIdentifierConstant      = "aud_src_1"
	targetAudienceIdentifierConstant      = "aud_tgt_7"
	secondSourceAudienceConstant          = "aud_src_2"
	secondTargetAudienceConstant          = "aud_tgt_8"
	unmappedIdentifierConstant            = "unknown_uid"
	unresolvedReferenceLogMessageConstant = "Reference left unchanged because it has no mapping"
)

func newTable(pairs ...string) migrate.IdentifierTable {
	table := migrate.NewIdentifierTable()
	for index := 0; index+1 < len(pairs); index += 2 {
		table.Add(pairs[index], pairs[index+1])
	}
	return table
}

func TestRewriteAttributeReferences(testInstance *testing.T) {
	attributes := newTable(sourceAttributeIdentifierConstant, targetAttributeIdentifierConstant)

	testCases := []struct {
		name       string
		definition any
		expected   any
	}{
		{
			name:       "top_level_reference",
			definition: map[string]any{"ref": sourceAttributeIdentifierConstant},
			expected:   map[string]any{"ref": targetAttributeIdentifierConstant},
		},
		{
			name: "nested_rules",
			definition: map[string]any{
				"__type": "RuleCombination",
				"rules": []any{
					map[string]any{"attribute": map[string]any{"ref": sourceAttributeIdentifierConstant}, "value": "18"},
					map[string]any{"attribute": map[string]any{"ref": unmappedIdentifierConstant}},
				},
			},
			expected: map[string]any{
				"__type": "RuleCombination",
				"rules": []any{
					map[string]any{"attribute": map[string]any{"ref": targetAttributeIdentifierConstant}, "value": "18"},
					map[string]any{"attribute": map[string]any{"ref": unmappedIdentifierConstant}},
				},
			},
		},
		{
			name:       "non_string_reference_untouched",
			definition: map[string]any{"ref": []any{sourceAttributeIdentifierConstant}},
			expected:   map[string]any{"ref": []any{sourceAttributeIdentifierConstant}},
		},
		{
			name:       "scalar_definition",
			definition: "plain",
			expected:   "plain",
		},
		{
			name:       "nil_definition",
			definition: nil,
			expected:   nil,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			rewriter := migrate.NewReferenceRewriter(zap.NewNop())
			require.Equal(testInstance, testCase.expected, rewriter.RewriteAttributeReferences(testCase.definition, attributes))
		})
	}
}

func TestRewriteAttributeReferencesDoesNotMutateInput(testInstance *testing.T) {
	definition := map[string]any{
		"rules": []any{map[string]any{"ref": sourceAttributeIdentifierConstant}},
	}

	rewriter := migrate.NewReferenceRewriter(zap.NewNop())
	rewritten := rewriter.RewriteAttributeReferences(definition, newTable(sourceAttributeIdentifierConstant, targetAttributeIdentifierConstant))

	require.Equal(testInstance, sourceAttributeIdentifierConstant, definition["rules"].([]any)[0].(map[string]any)["ref"])
	require.Equal(testInstance, targetAttributeIdentifierConstant, rewritten.(map[string]any)["rules"].([]any)[0].(map[string]any)["ref"])
}

func TestRewriteAudienceReferences(testInstance *testing.T) {
	audiences := newTable(
		sourceAudienceIdentifierConstant, targetAudienceIdentifierConstant,
		secondSourceAudienceConstant, secondTargetAudienceConstant,
	)

	testCases := []struct {
		name      string
		targeting any
		expected  any
	}{
		{
			name:      "audience_string",
			targeting: map[string]any{"audience": sourceAudienceIdentifierConstant},
			expected:  map[string]any{"audience": targetAudienceIdentifierConstant},
		},
		{
			name: "audience_list",
			targeting: map[string]any{
				"audience": map[string]any{
					"type":      "ANY",
					"audiences": []any{sourceAudienceIdentifierConstant, unmappedIdentifierConstant, secondSourceAudienceConstant},
				},
			},
			expected: map[string]any{
				"audience": map[string]any{
					"type":      "ANY",
					"audiences": []any{targetAudienceIdentifierConstant, unmappedIdentifierConstant, secondTargetAudienceConstant},
				},
			},
		},
		{
			name: "nested_targeting",
			targeting: map[string]any{
				"rules": []any{map[string]any{"audience": sourceAudienceIdentifierConstant}},
			},
			expected: map[string]any{
				"rules": []any{map[string]any{"audience": targetAudienceIdentifierConstant}},
			},
		},
		{
			name:      "top_level_audiences_key_is_not_rewritten",
			targeting: map[string]any{"audiences": []any{sourceAudienceIdentifierConstant}},
			expected:  map[string]any{"audiences": []any{sourceAudienceIdentifierConstant}},
		},
		{
			name:      "missing_targeting",
			targeting: nil,
			expected:  nil,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			rewriter := migrate.NewReferenceRewriter(zap.NewNop())
			require.Equal(testInstance, testCase.expected, rewriter.RewriteAudienceReferences(testCase.targeting, audiences))
		})
	}
}

func TestRewriteVariants(testInstance *testing.T) {
	audiences := newTable(sourceAudienceIdentifierConstant, targetAudienceIdentifierConstant)
	variants := []map[string]any{
		{"name": "control", "shortUid": "0", "audiences": []any{sourceAudienceIdentifierConstant, unmappedIdentifierConstant}},
		{"name": "treatment", "shortUid": "1"},
	}

	rewriter := migrate.NewReferenceRewriter(zap.NewNop())
	rewritten := rewriter.RewriteVariants(variants, audiences)

	require.Equal(testInstance, []map[string]any{
		{"name": "control", "audiences": []any{targetAudienceIdentifierConstant, unmappedIdentifierConstant}},
		{"name": "treatment"},
	}, rewritten)
	require.Equal(testInstance, "0", variants[0]["shortUid"])
	require.Equal(testInstance, []map[string]any{}, rewriter.RewriteVariants(nil, audiences))
}

func TestUnresolvedReferencesAreLoggedAtDebug(testInstance *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	rewriter := migrate.NewReferenceRewriter(zap.New(core))

	rewriter.RewriteAttributeReferences(map[string]any{"ref": unmappedIdentifierConstant}, migrate.NewIdentifierTable())

	entries := recorded.FilterMessage(unresolvedReferenceLogMessageConstant).All()
	require.Len(testInstance, entries, 1)
	require.Equal(testInstance, zapcore.DebugLevel, entries[0].Level)
	require.Equal(testInstance, unmappedIdentifierConstant, entries[0].ContextMap()["source_uid"])
	require.Equal(testInstance, "ref", entries[0].ContextMap()["reference_key"])
}

func TestIdentifierTableKeepsFirstMapping(testInstance *testing.T) {
	table := newTable(
		sourceAttributeIdentifierConstant, targetAttributeIdentifierConstant,
		sourceAttributeIdentifierConstant, "attr_tgt_other",
	)

	targetUID, mapped := table.Lookup(sourceAttributeIdentifierConstant)
	require.True(testInstance, mapped)
	require.Equal(testInstance, targetAttributeIdentifierConstant, targetUID)
	require.Equal(testInstance, 1, table.Len())

	_, mapped = table.Lookup(unmappedIdentifierConstant)
	require.False(testInstance, mapped)
}

func TestDefinitionsEqual(testInstance *testing.T) {
	testCases := []struct {
		name     string
		first    any
		second   any
		expected bool
	}{
		{
			name:     "key_order_ignored",
			first:    map[string]any{"a": "1", "b": []any{"x", "y"}},
			second:   map[string]any{"b": []any{"x", "y"}, "a": "1"},
			expected: true,
		},
		{
			name:     "array_order_significant",
			first:    []any{"x", "y"},
			second:   []any{"y", "x"},
			expected: false,
		},
		{
			name:     "value_type_significant",
			first:    map[string]any{"value": "18"},
			second:   map[string]any{"value": 18},
			expected: false,
		},
		{
			name:     "both_nil",
			first:    nil,
			second:   nil,
			expected: true,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			require.Equal(testInstance, testCase.expected, migrate.DefinitionsEqual(testCase.first, testCase.second))
		})
	}
}
