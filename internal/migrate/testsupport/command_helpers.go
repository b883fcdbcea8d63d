package testsupport

import (
	"context"
	"fmt"
	"sync"

	migrate "github.com/temirov/personalize-migrate/internal/migrate"
	"github.com/temirov/personalize-migrate/internal/personalize"
)

// Operation names recorded by InMemoryProject.
const (
	OperationListAttributes          = "ListAttributes"
	OperationListAudiences           = "ListAudiences"
	OperationListExperiences         = "ListExperiences"
	OperationListExperienceVersions  = "ListExperienceVersions"
	OperationCreateAttribute         = "CreateAttribute"
	OperationCreateAudience          = "CreateAudience"
	OperationCreateExperience        = "CreateExperience"
	OperationUpdateExperienceVersion = "UpdateExperienceVersion"
)

// CreatedAttributeType is the type the Personalize API assigns to attributes created through the API.
const CreatedAttributeType = "CUSTOM"

const generatedIdentifierTemplateConstant = "%s_%d"

// VersionUpdate captures a single experience version write.
type VersionUpdate struct {
	ExperienceUID string
	VersionID     string
	Payload       personalize.VersionPayload
}

// InMemoryProject is a project backed by slices. It is safe for concurrent reads.
type InMemoryProject struct {
	IdentifierPrefix string
	Attributes       []personalize.Attribute
	Audiences        []personalize.Audience
	Experiences      []personalize.Experience
	Versions         map[string][]personalize.ExperienceVersion
	Failures         map[string]error
	VersionUpdates   []VersionUpdate
	Operations       []string

	mutex            sync.Mutex
	identifierSerial int
}

// ListAttributes returns a copy of the stored attributes.
func (project *InMemoryProject) ListAttributes(context.Context) ([]personalize.Attribute, error) {
	if failure := project.record(OperationListAttributes); failure != nil {
		return nil, failure
	}
	project.mutex.Lock()
	defer project.mutex.Unlock()
	return append([]personalize.Attribute{}, project.Attributes...), nil
}

// ListAudiences returns a copy of the stored audiences.
func (project *InMemoryProject) ListAudiences(context.Context) ([]personalize.Audience, error) {
	if failure := project.record(OperationListAudiences); failure != nil {
		return nil, failure
	}
	project.mutex.Lock()
	defer project.mutex.Unlock()
	return append([]personalize.Audience{}, project.Audiences...), nil
}

// ListExperiences returns a copy of the stored experiences.
func (project *InMemoryProject) ListExperiences(context.Context) ([]personalize.Experience, error) {
	if failure := project.record(OperationListExperiences); failure != nil {
		return nil, failure
	}
	project.mutex.Lock()
	defer project.mutex.Unlock()
	return append([]personalize.Experience{}, project.Experiences...), nil
}

// ListExperienceVersions returns the versions stored for the experience.
func (project *InMemoryProject) ListExperienceVersions(_ context.Context, experienceUID string) ([]personalize.ExperienceVersion, error) {
	if failure := project.record(OperationListExperienceVersions); failure != nil {
		return nil, failure
	}
	project.mutex.Lock()
	defer project.mutex.Unlock()
	return append([]personalize.ExperienceVersion{}, project.Versions[experienceUID]...), nil
}

// CreateAttribute stores a new attribute with a generated identifier.
func (project *InMemoryProject) CreateAttribute(_ context.Context, payload personalize.AttributePayload) (personalize.Attribute, error) {
	if failure := project.record(OperationCreateAttribute); failure != nil {
		return personalize.Attribute{}, failure
	}
	project.mutex.Lock()
	defer project.mutex.Unlock()
	attribute := personalize.Attribute{
		UID:         project.nextIdentifier(),
		Name:        payload.Name,
		Key:         payload.Key,
		Description: payload.Description,
		Type:        CreatedAttributeType,
	}
	project.Attributes = append(project.Attributes, attribute)
	return attribute, nil
}

// CreateAudience stores a new audience with a generated identifier.
func (project *InMemoryProject) CreateAudience(_ context.Context, payload personalize.AudiencePayload) (personalize.Audience, error) {
	if failure := project.record(OperationCreateAudience); failure != nil {
		return personalize.Audience{}, failure
	}
	project.mutex.Lock()
	defer project.mutex.Unlock()
	audience := personalize.Audience{
		UID:         project.nextIdentifier(),
		Name:        payload.Name,
		Description: payload.Description,
		Definition:  payload.Definition,
	}
	project.Audiences = append(project.Audiences, audience)
	return audience, nil
}

// CreateExperience stores a new experience with a generated identifier.
func (project *InMemoryProject) CreateExperience(_ context.Context, payload personalize.ExperiencePayload) (personalize.Experience, error) {
	if failure := project.record(OperationCreateExperience); failure != nil {
		return personalize.Experience{}, failure
	}
	project.mutex.Lock()
	defer project.mutex.Unlock()
	experience := personalize.Experience{
		UID:         project.nextIdentifier(),
		Name:        payload.Name,
		Description: payload.Description,
		Type:        payload.Type,
	}
	project.Experiences = append(project.Experiences, experience)
	return experience, nil
}

// UpdateExperienceVersion records the version write.
func (project *InMemoryProject) UpdateExperienceVersion(_ context.Context, experienceUID string, versionID string, payload personalize.VersionPayload) error {
	if failure := project.record(OperationUpdateExperienceVersion); failure != nil {
		return failure
	}
	project.mutex.Lock()
	defer project.mutex.Unlock()
	project.VersionUpdates = append(project.VersionUpdates, VersionUpdate{
		ExperienceUID: experienceUID,
		VersionID:     versionID,
		Payload:       payload,
	})
	return nil
}

// RecordedOperations returns a copy of the operations invoked so far.
func (project *InMemoryProject) RecordedOperations() []string {
	project.mutex.Lock()
	defer project.mutex.Unlock()
	return append([]string{}, project.Operations...)
}

func (project *InMemoryProject) record(operation string) error {
	project.mutex.Lock()
	defer project.mutex.Unlock()
	project.Operations = append(project.Operations, operation)
	if project.Failures == nil {
		return nil
	}
	return project.Failures[operation]
}

func (project *InMemoryProject) nextIdentifier() string {
	project.identifierSerial++
	prefix := project.IdentifierPrefix
	if len(prefix) == 0 {
		prefix = "uid"
	}
	return fmt.Sprintf(generatedIdentifierTemplateConstant, prefix, project.identifierSerial)
}

// ProjectRegistry resolves project identifiers to in-memory projects.
type ProjectRegistry struct {
	Projects      map[personalize.ProjectUID]*InMemoryProject
	RequestedUIDs []personalize.ProjectUID
	ProviderError error
}

// Provide implements migrate.ProjectOperationsProvider.
func (registry *ProjectRegistry) Provide(projectUID personalize.ProjectUID) (migrate.ProjectOperations, error) {
	registry.RequestedUIDs = append(registry.RequestedUIDs, projectUID)
	if registry.ProviderError != nil {
		return nil, registry.ProviderError
	}
	project, exists := registry.Projects[projectUID]
	if !exists {
		return nil, fmt.Errorf("no project registered for %s", projectUID)
	}
	return project, nil
}

// ServiceStub captures migration execution requests for verification.
type ServiceStub struct {
	Result               migrate.MigrationResult
	Error                error
	ExecutedOptions      []migrate.MigrationOptions
	ReceivedDependencies []migrate.ServiceDependencies
}

// Provide implements migrate.ServiceProvider.
func (service *ServiceStub) Provide(dependencies migrate.ServiceDependencies) (migrate.MigrationExecutor, error) {
	service.ReceivedDependencies = append(service.ReceivedDependencies, dependencies)
	return service, nil
}

// Execute returns the configured outcome.
func (service *ServiceStub) Execute(_ context.Context, options migrate.MigrationOptions) (migrate.MigrationResult, error) {
	service.ExecutedOptions = append(service.ExecutedOptions, options)
	return service.Result, service.Error
}
