package migrate

import (
	"go.uber.org/zap"
)

const (
	attributeReferenceKeyConstant       = "ref"
	audienceReferenceKeyConstant        = "audience"
	audienceListReferenceKeyConstant    = "audiences"
	variantShortIdentifierKeyConstant   = "shortUid"
	unresolvedReferenceMessageConstant  = "Reference left unchanged because it has no mapping"
	logFieldReferenceKeyConstant        = "reference_key"
	logFieldUnresolvedReferenceConstant = "source_uid"
)

// referenceRewrite produces the replacement for a value stored under a reference-carrying key.
type referenceRewrite func(value any) any

// structureVisitor walks untyped JSON values (objects, arrays, scalars) and
// returns a rewritten copy. Values stored under referenceKeys are handed to
// the associated rewrite and never recursed.
type structureVisitor struct {
	referenceKeys map[string]referenceRewrite
}

func (visitor structureVisitor) visit(value any) any {
	switch typedValue := value.(type) {
	case map[string]any:
		return visitor.visitObject(typedValue)
	case []any:
		return visitor.visitArray(typedValue)
	default:
		return value
	}
}

func (visitor structureVisitor) visitObject(object map[string]any) map[string]any {
	rewritten := make(map[string]any, len(object))
	for key, value := range object {
		if rewrite, isReferenceKey := visitor.referenceKeys[key]; isReferenceKey {
			rewritten[key] = rewrite(value)
			continue
		}
		rewritten[key] = visitor.visit(value)
	}
	return rewritten
}

func (visitor structureVisitor) visitArray(array []any) []any {
	rewritten := make([]any, len(array))
	for index, element := range array {
		rewritten[index] = visitor.visit(element)
	}
	return rewritten
}

func cloneValue(value any) any {
	return structureVisitor{}.visit(value)
}

// ReferenceRewriter replaces source identifiers embedded in audience
// definitions and experience versions with their target identifiers.
// Unmapped identifiers pass through unchanged.
type ReferenceRewriter struct {
	logger *zap.Logger
}

// NewReferenceRewriter constructs a ReferenceRewriter.
func NewReferenceRewriter(logger *zap.Logger) *ReferenceRewriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReferenceRewriter{logger: logger}
}

// RewriteAttributeReferences rewrites every string held under a "ref" key.
func (rewriter *ReferenceRewriter) RewriteAttributeReferences(definition any, attributes IdentifierTable) any {
	visitor := structureVisitor{referenceKeys: map[string]referenceRewrite{
		attributeReferenceKeyConstant: func(value any) any {
			return rewriter.rewriteIdentifier(attributeReferenceKeyConstant, value, attributes)
		},
	}}
	return visitor.visit(definition)
}

// RewriteAudienceReferences rewrites audience identifiers in experience targeting.
// It handles a string under "audience" and a list under "audience.audiences";
// neither key is recursed further.
func (rewriter *ReferenceRewriter) RewriteAudienceReferences(targeting any, audiences IdentifierTable) any {
	visitor := structureVisitor{referenceKeys: map[string]referenceRewrite{
		audienceReferenceKeyConstant: func(value any) any {
			return rewriter.rewriteAudienceValue(value, audiences)
		},
		audienceListReferenceKeyConstant: cloneValue,
	}}
	return visitor.visit(targeting)
}

// RewriteVariants copies each variant, strips its source-scoped short
// identifier, and rewrites its "audiences" list.
func (rewriter *ReferenceRewriter) RewriteVariants(variants []map[string]any, audiences IdentifierTable) []map[string]any {
	rewrittenVariants := make([]map[string]any, 0, len(variants))
	for _, variant := range variants {
		rewrittenVariant := structureVisitor{}.visitObject(variant)
		delete(rewrittenVariant, variantShortIdentifierKeyConstant)

		if audienceList, isList := rewrittenVariant[audienceListReferenceKeyConstant].([]any); isList {
			rewrittenVariant[audienceListReferenceKeyConstant] = rewriter.rewriteIdentifierList(audienceListReferenceKeyConstant, audienceList, audiences)
		}

		rewrittenVariants = append(rewrittenVariants, rewrittenVariant)
	}
	return rewrittenVariants
}

func (rewriter *ReferenceRewriter) rewriteAudienceValue(value any, audiences IdentifierTable) any {
	switch typedValue := value.(type) {
	case string:
		return rewriter.rewriteIdentifier(audienceReferenceKeyConstant, typedValue, audiences)
	case map[string]any:
		rewrittenAudience := structureVisitor{}.visitObject(typedValue)
		if audienceList, isList := rewrittenAudience[audienceListReferenceKeyConstant].([]any); isList {
			rewrittenAudience[audienceListReferenceKeyConstant] = rewriter.rewriteIdentifierList(audienceListReferenceKeyConstant, audienceList, audiences)
		}
		return rewrittenAudience
	default:
		return cloneValue(value)
	}
}

func (rewriter *ReferenceRewriter) rewriteIdentifierList(referenceKey string, identifiers []any, table IdentifierTable) []any {
	rewritten := make([]any, len(identifiers))
	for index, identifier := range identifiers {
		rewritten[index] = rewriter.rewriteIdentifier(referenceKey, identifier, table)
	}
	return rewritten
}

func (rewriter *ReferenceRewriter) rewriteIdentifier(referenceKey string, value any, table IdentifierTable) any {
	sourceUID, isString := value.(string)
	if !isString {
		return cloneValue(value)
	}

	targetUID, mapped := table.Lookup(sourceUID)
	if !mapped {
		rewriter.logger.Debug(
			unresolvedReferenceMessageConstant,
			zap.String(logFieldReferenceKeyConstant, referenceKey),
			zap.String(logFieldUnresolvedReferenceConstant, sourceUID),
		)
		return sourceUID
	}

	return targetUID
}
