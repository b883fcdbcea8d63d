package migrate

import (
	"bytes"
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/temirov/personalize-migrate/internal/failures"
	"github.com/temirov/personalize-migrate/internal/personalize"
)

const (
	attributeMigrationComponentConstant   = "AttributeMigration"
	audienceMigrationComponentConstant    = "AudienceMigration"
	experienceMigrationComponentConstant  = "ExperienceMigration"
	versionMigrationComponentConstant     = "ExperienceVersionMigration"
	reusingAttributeMessageConstant       = "Skipping existing attribute"
	creatingAttributeMessageConstant      = "Creating attribute"
	reusingAudienceMessageConstant        = "Skipping existing audience"
	creatingAudienceMessageConstant       = "Creating audience"
	reusingExperienceMessageConstant      = "Using existing experience"
	creatingExperienceMessageConstant     = "Creating experience"
	migratingVersionMessageConstant       = "Migrating experience version"
	versionPayloadStatusKeyConstant       = "status"
	versionPayloadVariantsKeyConstant     = "variants"
	versionPayloadTargetingKeyConstant    = "targeting"
	versionPayloadMetricsKeyConstant      = "metrics"
	versionPayloadVariantSplitKeyConstant = "variantSplit"
	logFieldEntityNameConstant            = "entity_name"
	logFieldSourceUIDConstant             = "source_uid"
	logFieldTargetUIDConstant             = "target_uid"
	logFieldPositionConstant              = "position"
	logFieldTotalConstant                 = "total"
	logFieldVersionUIDConstant            = "version_uid"
	logFieldVersionSlotConstant           = "version_slot"
	logFieldExperienceTypeConstant        = "experience_type"
)

// IdentityResolver decides, per entity, whether the target already holds an
// equivalent entity to reuse or whether a new one has to be created. Existing
// target entities are listed once per phase.
type IdentityResolver struct {
	logger   *zap.Logger
	rewriter *ReferenceRewriter
}

// NewIdentityResolver constructs an IdentityResolver.
func NewIdentityResolver(logger *zap.Logger, rewriter *ReferenceRewriter) *IdentityResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rewriter == nil {
		rewriter = NewReferenceRewriter(logger)
	}
	return &IdentityResolver{logger: logger, rewriter: rewriter}
}

// MigrateAttributes maps every source attribute onto the target by (name, type).
func (resolver *IdentityResolver) MigrateAttributes(executionContext context.Context, target ProjectOperations, attributes []personalize.Attribute) ([]AttributeMapping, error) {
	existingAttributes, listError := target.ListAttributes(executionContext)
	if listError != nil {
		return nil, failures.Normalize(attributeMigrationComponentConstant, listError)
	}

	mappings := make([]AttributeMapping, 0, len(attributes))
	for attributeIndex, attribute := range attributes {
		entityFields := resolver.progressFields(attribute.Name, attribute.UID, attributeIndex, len(attributes))

		mapping := AttributeMapping{
			SourceUID: attribute.UID,
			Name:      attribute.Name,
			Type:      attribute.Type,
		}

		if existingAttribute, found := findAttribute(existingAttributes, attribute.Name, attribute.Type); found {
			resolver.logger.Info(reusingAttributeMessageConstant, append(entityFields, zap.String(logFieldTargetUIDConstant, existingAttribute.UID))...)
			mapping.TargetUID = existingAttribute.UID
			mapping.Outcome = MappingOutcomeReused
			mappings = append(mappings, mapping)
			continue
		}

		resolver.logger.Info(creatingAttributeMessageConstant, entityFields...)
		createdAttribute, createError := target.CreateAttribute(executionContext, personalize.AttributePayload{
			Name:        attribute.Name,
			Description: attribute.Description,
			Key:         attribute.Key,
		})
		if createError != nil {
			return nil, failures.Normalize(attributeMigrationComponentConstant, createError)
		}

		mapping.TargetUID = createdAttribute.UID
		mapping.Outcome = MappingOutcomeCreated
		mappings = append(mappings, mapping)
	}

	return mappings, nil
}

// MigrateAudiences rewrites attribute references into target space and then
// maps every audience onto the target by (name, structurally equal definition).
func (resolver *IdentityResolver) MigrateAudiences(executionContext context.Context, target ProjectOperations, audiences []personalize.Audience, attributes IdentifierTable) ([]AudienceMapping, error) {
	existingAudiences, listError := target.ListAudiences(executionContext)
	if listError != nil {
		return nil, failures.Normalize(audienceMigrationComponentConstant, listError)
	}

	mappings := make([]AudienceMapping, 0, len(audiences))
	for audienceIndex, audience := range audiences {
		entityFields := resolver.progressFields(audience.Name, audience.UID, audienceIndex, len(audiences))
		rewrittenDefinition := resolver.rewriter.RewriteAttributeReferences(audience.Definition, attributes)

		mapping := AudienceMapping{
			SourceUID:   audience.UID,
			Name:        audience.Name,
			Description: audience.Description,
		}

		if existingAudience, found := findAudience(existingAudiences, audience.Name, rewrittenDefinition); found {
			resolver.logger.Info(reusingAudienceMessageConstant, append(entityFields, zap.String(logFieldTargetUIDConstant, existingAudience.UID))...)
			mapping.TargetUID = existingAudience.UID
			mapping.Outcome = MappingOutcomeReused
			mappings = append(mappings, mapping)
			continue
		}

		resolver.logger.Info(creatingAudienceMessageConstant, entityFields...)
		createdAudience, createError := target.CreateAudience(executionContext, personalize.AudiencePayload{
			Name:        audience.Name,
			Description: audience.Description,
			Definition:  rewrittenDefinition,
		})
		if createError != nil {
			return nil, failures.Normalize(audienceMigrationComponentConstant, createError)
		}

		mapping.TargetUID = createdAudience.UID
		mapping.Outcome = MappingOutcomeCreated
		mappings = append(mappings, mapping)
	}

	return mappings, nil
}

// MigrateExperiences maps every experience onto the target by (name, type)
// and replays its versions into the resolved target experience.
func (resolver *IdentityResolver) MigrateExperiences(executionContext context.Context, target ProjectOperations, experiencesWithVersions []ExperienceWithVersions, audiences IdentifierTable) ([]ExperienceMapping, error) {
	existingExperiences, listError := target.ListExperiences(executionContext)
	if listError != nil {
		return nil, failures.Normalize(experienceMigrationComponentConstant, listError)
	}

	mappings := make([]ExperienceMapping, 0, len(experiencesWithVersions))
	for experienceIndex, experienceWithVersions := range experiencesWithVersions {
		experience := experienceWithVersions.Experience
		entityFields := resolver.progressFields(experience.Name, experience.UID, experienceIndex, len(experiencesWithVersions))

		outcome := MappingOutcomeReused
		targetExperience, found := findExperience(existingExperiences, experience.Name, experience.Type)
		if found {
			resolver.logger.Info(reusingExperienceMessageConstant, append(entityFields, zap.String(logFieldTargetUIDConstant, targetExperience.UID))...)
		} else {
			resolver.logger.Info(creatingExperienceMessageConstant, entityFields...)
			createdExperience, createError := target.CreateExperience(executionContext, personalize.ExperiencePayload{
				Name:        experience.Name,
				Description: experience.Description,
				Type:        experience.Type,
			})
			if createError != nil {
				return nil, failures.Normalize(experienceMigrationComponentConstant, createError)
			}
			targetExperience = createdExperience
			outcome = MappingOutcomeCreated
		}

		if len(targetExperience.Type) == 0 {
			targetExperience.Type = experience.Type
		}

		versionsMigrated, versionError := resolver.migrateExperienceVersions(executionContext, target, targetExperience, experienceWithVersions.Versions, audiences)
		if versionError != nil {
			return nil, versionError
		}

		mappings = append(mappings, ExperienceMapping{
			SourceUID:        experience.UID,
			TargetUID:        targetExperience.UID,
			Name:             experience.Name,
			Description:      experience.Description,
			Type:             experience.Type,
			LatestVersion:    targetExperience.LatestVersion,
			Outcome:          outcome,
			VersionsMigrated: versionsMigrated,
		})
	}

	return mappings, nil
}

func (resolver *IdentityResolver) migrateExperienceVersions(executionContext context.Context, target ProjectWriter, targetExperience personalize.Experience, versions []personalize.ExperienceVersion, audiences IdentifierTable) (int, error) {
	versionSlot := targetExperience.LatestVersion
	if len(versionSlot) == 0 {
		versionSlot = personalize.LatestVersionToken
	}

	for _, version := range versions {
		resolver.logger.Info(
			migratingVersionMessageConstant,
			zap.String(logFieldVersionUIDConstant, version.UID),
			zap.String(logFieldEntityNameConstant, targetExperience.Name),
			zap.String(logFieldTargetUIDConstant, targetExperience.UID),
			zap.String(logFieldVersionSlotConstant, versionSlot),
			zap.String(logFieldExperienceTypeConstant, string(targetExperience.Type)),
		)

		payload := resolver.BuildVersionPayload(targetExperience.Type, version, audiences)
		if updateError := target.UpdateExperienceVersion(executionContext, targetExperience.UID, versionSlot, payload); updateError != nil {
			return 0, failures.Normalize(versionMigrationComponentConstant, updateError)
		}
	}

	return len(versions), nil
}

// BuildVersionPayload prepares a version for submission to the target.
// The version is always activated. AB_TEST experiences additionally carry
// targeting, metrics, and variant split; SEGMENTED experiences omit them.
func (resolver *IdentityResolver) BuildVersionPayload(experienceType personalize.ExperienceType, version personalize.ExperienceVersion, audiences IdentifierTable) personalize.VersionPayload {
	payload := personalize.VersionPayload{
		versionPayloadStatusKeyConstant:   personalize.VersionStatusActive,
		versionPayloadVariantsKeyConstant: resolver.rewriter.RewriteVariants(version.Variants, audiences),
	}

	if experienceType != personalize.ExperienceTypeABTest {
		return payload
	}

	metrics := version.Metrics
	if metrics == nil {
		metrics = []any{}
	}

	payload[versionPayloadTargetingKeyConstant] = resolver.rewriter.RewriteAudienceReferences(version.Targeting, audiences)
	payload[versionPayloadMetricsKeyConstant] = cloneValue(metrics)
	payload[versionPayloadVariantSplitKeyConstant] = version.VariantSplit

	return payload
}

func (resolver *IdentityResolver) progressFields(entityName string, sourceUID string, index int, total int) []zap.Field {
	return []zap.Field{
		zap.String(logFieldEntityNameConstant, entityName),
		zap.String(logFieldSourceUIDConstant, sourceUID),
		zap.Int(logFieldPositionConstant, index+1),
		zap.Int(logFieldTotalConstant, total),
	}
}

func findAttribute(attributes []personalize.Attribute, name string, attributeType string) (personalize.Attribute, bool) {
	for _, attribute := range attributes {
		if attribute.Name == name && attribute.Type == attributeType {
			return attribute, true
		}
	}
	return personalize.Attribute{}, false
}

func findAudience(audiences []personalize.Audience, name string, definition any) (personalize.Audience, bool) {
	for _, audience := range audiences {
		if audience.Name == name && DefinitionsEqual(audience.Definition, definition) {
			return audience, true
		}
	}
	return personalize.Audience{}, false
}

func findExperience(experiences []personalize.Experience, name string, experienceType personalize.ExperienceType) (personalize.Experience, bool) {
	for _, experience := range experiences {
		if experience.Name == name && experience.Type == experienceType {
			return experience, true
		}
	}
	return personalize.Experience{}, false
}

// DefinitionsEqual reports whether two definitions serialize identically.
// Object keys are serialized in sorted order; array order and value types are significant.
func DefinitionsEqual(first any, second any) bool {
	firstBytes, firstError := json.Marshal(first)
	if firstError != nil {
		return false
	}
	secondBytes, secondError := json.Marshal(second)
	if secondError != nil {
		return false
	}
	return bytes.Equal(firstBytes, secondBytes)
}
