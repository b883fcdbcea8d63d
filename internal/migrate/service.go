package migrate

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/temirov/personalize-migrate/internal/failures"
	"github.com/temirov/personalize-migrate/internal/personalize"
)

const (
	orchestratorComponentConstant         = "MigrationService"
	projectProviderMissingMessageConstant = "project operations provider not configured"
	migrationStartedMessageConstant       = "Migration started"
	phaseStartedMessageConstant           = "Migration phase started"
	phaseCompletedMessageConstant         = "Migration phase completed"
	migrationCompletedMessageConstant     = "Migration complete"
	migrationFailedMessageConstant        = "Migration failed"
	partialWritesWarningTemplateConstant  = "%d write(s) were applied to target project %s before the failure and were not rolled back"
	logFieldRunIdentifierConstant         = "migration_run_id"
	logFieldTargetProjectConstant         = "target_project"
	logFieldPhaseConstant                 = "phase"
	logFieldMappedCountConstant           = "mapped"
	logFieldCreatedCountConstant          = "created"
	logFieldErrorKindConstant             = "error_kind"
	logFieldErrorComponentConstant        = "error_component"
	logFieldTargetWritesConstant          = "target_writes"
	logFieldAttributesMigratedConstant    = "attributes_migrated"
	logFieldAudiencesMigratedConstant     = "audiences_migrated"
	logFieldExperiencesMigratedConstant   = "experiences_migrated"
	logFieldVersionsMigratedConstant      = "versions_migrated"
)

// MigrationPhase names a step of the linear migration state machine.
type MigrationPhase string

// Migration phases in execution order.
const (
	PhaseFetchSource        MigrationPhase = MigrationPhase("FETCH_SOURCE")
	PhaseMigrateAttributes  MigrationPhase = MigrationPhase("MIGRATE_ATTRIBUTES")
	PhaseMigrateAudiences   MigrationPhase = MigrationPhase("MIGRATE_AUDIENCES")
	PhaseMigrateExperiences MigrationPhase = MigrationPhase("MIGRATE_EXPERIENCES")
	PhaseDone               MigrationPhase = MigrationPhase("DONE")
	PhaseFailed             MigrationPhase = MigrationPhase("FAILED")
)

var errProjectProviderMissing = errors.New(projectProviderMissingMessageConstant)

// ProjectOperationsProvider builds project-scoped API access for a validated project.
type ProjectOperationsProvider func(projectUID personalize.ProjectUID) (ProjectOperations, error)

// ServiceDependencies describes required collaborators for migration.
type ServiceDependencies struct {
	Logger                  *zap.Logger
	ProjectProvider         ProjectOperationsProvider
	VersionFetchConcurrency int
	RunIdentifierGenerator  func() string
}

// MigrationOptions names the source and target projects of a run.
type MigrationOptions struct {
	SourceProject string
	TargetProject string
}

// MigrationResult is the aggregated outcome of a run. On failure every count is zero.
type MigrationResult struct {
	Success             bool     `json:"success" yaml:"success"`
	RunID               string   `json:"runId" yaml:"run_id"`
	AttributesMigrated  int      `json:"attributesMigrated" yaml:"attributes_migrated"`
	AudiencesMigrated   int      `json:"audiencesMigrated" yaml:"audiences_migrated"`
	ExperiencesMigrated int      `json:"experiencesMigrated" yaml:"experiences_migrated"`
	AttributesCreated   int      `json:"attributesCreated" yaml:"attributes_created"`
	AudiencesCreated    int      `json:"audiencesCreated" yaml:"audiences_created"`
	ExperiencesCreated  int      `json:"experiencesCreated" yaml:"experiences_created"`
	VersionsMigrated    int      `json:"versionsMigrated" yaml:"versions_migrated"`
	FailedPhase         string   `json:"failedPhase,omitempty" yaml:"failed_phase,omitempty"`
	Errors              []string `json:"errors" yaml:"errors"`
}

// MigrationExecutor runs a migration between two projects.
type MigrationExecutor interface {
	Execute(executionContext context.Context, options MigrationOptions) (MigrationResult, error)
}

// Service orchestrates attribute, audience, and experience migration in dependency order.
type Service struct {
	logger                  *zap.Logger
	projectProvider         ProjectOperationsProvider
	versionFetchConcurrency int
	runIdentifierGenerator  func() string
}

// NewService constructs a Service with the provided dependencies.
func NewService(dependencies ServiceDependencies) (*Service, error) {
	if dependencies.ProjectProvider == nil {
		return nil, errProjectProviderMissing
	}

	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	runIdentifierGenerator := dependencies.RunIdentifierGenerator
	if runIdentifierGenerator == nil {
		runIdentifierGenerator = uuid.NewString
	}

	return &Service{
		logger:                  logger,
		projectProvider:         dependencies.ProjectProvider,
		versionFetchConcurrency: dependencies.VersionFetchConcurrency,
		runIdentifierGenerator:  runIdentifierGenerator,
	}, nil
}

// Execute validates both project identifiers and then runs every phase.
// Validation failures are returned as errors before any network call; every
// later failure is reported through a failed MigrationResult.
func (service *Service) Execute(executionContext context.Context, options MigrationOptions) (MigrationResult, error) {
	sourceProject, sourceValidationError := personalize.ParseProjectUID(options.SourceProject)
	if sourceValidationError != nil {
		return MigrationResult{}, sourceValidationError
	}

	targetProject, targetValidationError := personalize.ParseProjectUID(options.TargetProject)
	if targetValidationError != nil {
		return MigrationResult{}, targetValidationError
	}

	runIdentifier := service.runIdentifierGenerator()
	runLogger := service.logger.With(
		zap.String(logFieldRunIdentifierConstant, runIdentifier),
		zap.String(logFieldSourceProjectConstant, sourceProject.String()),
		zap.String(logFieldTargetProjectConstant, targetProject.String()),
	)
	runLogger.Info(migrationStartedMessageConstant)

	run := migrationRun{
		service:       service,
		logger:        runLogger,
		fetcher:       NewConfigurationFetcher(runLogger, service.versionFetchConcurrency),
		resolver:      NewIdentityResolver(runLogger, NewReferenceRewriter(runLogger)),
		runIdentifier: runIdentifier,
		targetProject: targetProject,
	}

	return run.execute(executionContext, sourceProject), nil
}

type migrationRun struct {
	service       *Service
	logger        *zap.Logger
	fetcher       *ConfigurationFetcher
	resolver      *IdentityResolver
	runIdentifier string
	targetProject personalize.ProjectUID
	target        *recordingTarget
}

func (run *migrationRun) execute(executionContext context.Context, sourceProject personalize.ProjectUID) MigrationResult {
	source, sourceError := run.service.projectProvider(sourceProject)
	if sourceError != nil {
		return run.fail(PhaseFetchSource, failures.Normalize(orchestratorComponentConstant, sourceError))
	}

	targetOperations, targetError := run.service.projectProvider(run.targetProject)
	if targetError != nil {
		return run.fail(PhaseFetchSource, failures.Normalize(orchestratorComponentConstant, targetError))
	}
	run.target = &recordingTarget{ProjectOperations: targetOperations}

	run.logPhaseStart(PhaseFetchSource)
	configuration, fetchError := run.fetcher.Fetch(executionContext, source)
	if fetchError != nil {
		return run.fail(PhaseFetchSource, fetchError)
	}

	run.logPhaseStart(PhaseMigrateAttributes)
	attributeMappings, attributeError := run.resolver.MigrateAttributes(executionContext, run.target, configuration.Attributes)
	if attributeError != nil {
		return run.fail(PhaseMigrateAttributes, attributeError)
	}
	run.logPhaseCompletion(PhaseMigrateAttributes, len(attributeMappings), countAttributesCreated(attributeMappings))

	run.logPhaseStart(PhaseMigrateAudiences)
	audienceMappings, audienceError := run.resolver.MigrateAudiences(executionContext, run.target, configuration.Audiences, NewAttributeTable(attributeMappings))
	if audienceError != nil {
		return run.fail(PhaseMigrateAudiences, audienceError)
	}
	run.logPhaseCompletion(PhaseMigrateAudiences, len(audienceMappings), countAudiencesCreated(audienceMappings))

	run.logPhaseStart(PhaseMigrateExperiences)
	experienceMappings, experienceError := run.resolver.MigrateExperiences(executionContext, run.target, configuration.ExperiencesWithVersions, NewAudienceTable(audienceMappings))
	if experienceError != nil {
		return run.fail(PhaseMigrateExperiences, experienceError)
	}
	experiencesCreated, versionsMigrated := countExperiencesCreated(experienceMappings)
	run.logPhaseCompletion(PhaseMigrateExperiences, len(experienceMappings), experiencesCreated)

	result := MigrationResult{
		Success:             true,
		RunID:               run.runIdentifier,
		AttributesMigrated:  len(attributeMappings),
		AudiencesMigrated:   len(audienceMappings),
		ExperiencesMigrated: len(experienceMappings),
		AttributesCreated:   countAttributesCreated(attributeMappings),
		AudiencesCreated:    countAudiencesCreated(audienceMappings),
		ExperiencesCreated:  experiencesCreated,
		VersionsMigrated:    versionsMigrated,
		Errors:              []string{},
	}

	run.logger.Info(
		migrationCompletedMessageConstant,
		zap.String(logFieldPhaseConstant, string(PhaseDone)),
		zap.Int(logFieldAttributesMigratedConstant, result.AttributesMigrated),
		zap.Int(logFieldAudiencesMigratedConstant, result.AudiencesMigrated),
		zap.Int(logFieldExperiencesMigratedConstant, result.ExperiencesMigrated),
		zap.Int(logFieldVersionsMigratedConstant, result.VersionsMigrated),
	)

	return result
}

func (run *migrationRun) fail(phase MigrationPhase, failure error) MigrationResult {
	normalizedFailure := failures.Normalize(orchestratorComponentConstant, failure)

	errorMessages := []string{normalizedFailure.Error()}
	targetWrites := 0
	if run.target != nil {
		targetWrites = run.target.writes
	}
	if targetWrites > 0 {
		errorMessages = append(errorMessages, fmt.Sprintf(partialWritesWarningTemplateConstant, targetWrites, run.targetProject))
	}

	var typedFailure failures.Error
	errors.As(normalizedFailure, &typedFailure)

	run.logger.Error(
		migrationFailedMessageConstant,
		zap.String(logFieldPhaseConstant, string(phase)),
		zap.String(logFieldErrorKindConstant, string(typedFailure.Kind)),
		zap.String(logFieldErrorComponentConstant, typedFailure.Component),
		zap.Int(logFieldTargetWritesConstant, targetWrites),
		zap.Error(normalizedFailure),
	)

	return MigrationResult{
		Success:     false,
		RunID:       run.runIdentifier,
		FailedPhase: string(phase),
		Errors:      errorMessages,
	}
}

func (run *migrationRun) logPhaseStart(phase MigrationPhase) {
	run.logger.Info(phaseStartedMessageConstant, zap.String(logFieldPhaseConstant, string(phase)))
}

func (run *migrationRun) logPhaseCompletion(phase MigrationPhase, mappedCount int, createdCount int) {
	run.logger.Info(
		phaseCompletedMessageConstant,
		zap.String(logFieldPhaseConstant, string(phase)),
		zap.Int(logFieldMappedCountConstant, mappedCount),
		zap.Int(logFieldCreatedCountConstant, createdCount),
	)
}

// recordingTarget counts successful writes so a failed run can report what was not rolled back.
type recordingTarget struct {
	ProjectOperations
	writes int
}

func (target *recordingTarget) CreateAttribute(executionContext context.Context, payload personalize.AttributePayload) (personalize.Attribute, error) {
	created, createError := target.ProjectOperations.CreateAttribute(executionContext, payload)
	if createError == nil {
		target.writes++
	}
	return created, createError
}

func (target *recordingTarget) CreateAudience(executionContext context.Context, payload personalize.AudiencePayload) (personalize.Audience, error) {
	created, createError := target.ProjectOperations.CreateAudience(executionContext, payload)
	if createError == nil {
		target.writes++
	}
	return created, createError
}

func (target *recordingTarget) CreateExperience(executionContext context.Context, payload personalize.ExperiencePayload) (personalize.Experience, error) {
	created, createError := target.ProjectOperations.CreateExperience(executionContext, payload)
	if createError == nil {
		target.writes++
	}
	return created, createError
}

func (target *recordingTarget) UpdateExperienceVersion(executionContext context.Context, experienceUID string, versionID string, payload personalize.VersionPayload) error {
	updateError := target.ProjectOperations.UpdateExperienceVersion(executionContext, experienceUID, versionID, payload)
	if updateError == nil {
		target.writes++
	}
	return updateError
}
