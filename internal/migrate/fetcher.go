package migrate

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/personalize-migrate/internal/failures"
	"github.com/temirov/personalize-migrate/internal/personalize"
)

const (
	fetcherComponentConstant               = "ConfigurationFetcher"
	fetchStartedMessageConstant            = "Fetching source configuration"
	fetchCompletedMessageConstant          = "Source configuration fetched"
	logFieldAttributeCountConstant         = "attributes"
	logFieldAudienceCountConstant          = "audiences"
	logFieldExperienceCountConstant        = "experiences"
	logFieldVersionCountConstant           = "experience_versions"
	logFieldSourceProjectConstant          = "source_project"
	defaultVersionFetchConcurrencyConstant = 4
)

// ProjectReader lists the entities of one project.
type ProjectReader interface {
	ListAttributes(executionContext context.Context) ([]personalize.Attribute, error)
	ListAudiences(executionContext context.Context) ([]personalize.Audience, error)
	ListExperiences(executionContext context.Context) ([]personalize.Experience, error)
	ListExperienceVersions(executionContext context.Context, experienceUID string) ([]personalize.ExperienceVersion, error)
}

// ProjectWriter creates and updates entities in one project.
type ProjectWriter interface {
	CreateAttribute(executionContext context.Context, payload personalize.AttributePayload) (personalize.Attribute, error)
	CreateAudience(executionContext context.Context, payload personalize.AudiencePayload) (personalize.Audience, error)
	CreateExperience(executionContext context.Context, payload personalize.ExperiencePayload) (personalize.Experience, error)
	UpdateExperienceVersion(executionContext context.Context, experienceUID string, versionID string, payload personalize.VersionPayload) error
}

// ProjectOperations combines read and write access to a project.
type ProjectOperations interface {
	ProjectReader
	ProjectWriter
}

// ExperienceWithVersions pairs an experience with the versions it owns.
type ExperienceWithVersions struct {
	Experience personalize.Experience
	Versions   []personalize.ExperienceVersion
}

// SourceConfiguration is the full entity graph read from a source project.
type SourceConfiguration struct {
	Attributes              []personalize.Attribute
	Audiences               []personalize.Audience
	ExperiencesWithVersions []ExperienceWithVersions
}

// VersionCount reports the total number of experience versions.
func (configuration SourceConfiguration) VersionCount() int {
	versionCount := 0
	for _, experienceWithVersions := range configuration.ExperiencesWithVersions {
		versionCount += len(experienceWithVersions.Versions)
	}
	return versionCount
}

// ConfigurationFetcher reads a complete configuration tree from a project.
type ConfigurationFetcher struct {
	logger                  *zap.Logger
	versionFetchConcurrency int
}

// NewConfigurationFetcher constructs a fetcher. A non-positive concurrency selects the default bound.
func NewConfigurationFetcher(logger *zap.Logger, versionFetchConcurrency int) *ConfigurationFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if versionFetchConcurrency <= 0 {
		versionFetchConcurrency = defaultVersionFetchConcurrencyConstant
	}
	return &ConfigurationFetcher{logger: logger, versionFetchConcurrency: versionFetchConcurrency}
}

// Fetch reads attributes, audiences, and experiences with their versions concurrently.
// Either the whole configuration is returned or an error; partial results are discarded.
func (fetcher *ConfigurationFetcher) Fetch(executionContext context.Context, source ProjectReader) (SourceConfiguration, error) {
	fetcher.logger.Info(fetchStartedMessageConstant)

	var (
		attributes              []personalize.Attribute
		audiences               []personalize.Audience
		experiencesWithVersions []ExperienceWithVersions
		fetchGroup              errgroup.Group
	)

	fetchGroup.Go(func() error {
		fetchedAttributes, fetchError := source.ListAttributes(executionContext)
		attributes = fetchedAttributes
		return fetchError
	})
	fetchGroup.Go(func() error {
		fetchedAudiences, fetchError := source.ListAudiences(executionContext)
		audiences = fetchedAudiences
		return fetchError
	})
	fetchGroup.Go(func() error {
		fetchedExperiences, fetchError := fetcher.fetchExperiencesWithVersions(executionContext, source)
		experiencesWithVersions = fetchedExperiences
		return fetchError
	})

	if fetchError := fetchGroup.Wait(); fetchError != nil {
		return SourceConfiguration{}, failures.Normalize(fetcherComponentConstant, fetchError)
	}

	configuration := SourceConfiguration{
		Attributes:              attributes,
		Audiences:               audiences,
		ExperiencesWithVersions: experiencesWithVersions,
	}

	fetcher.logger.Info(
		fetchCompletedMessageConstant,
		zap.Int(logFieldAttributeCountConstant, len(configuration.Attributes)),
		zap.Int(logFieldAudienceCountConstant, len(configuration.Audiences)),
		zap.Int(logFieldExperienceCountConstant, len(configuration.ExperiencesWithVersions)),
		zap.Int(logFieldVersionCountConstant, configuration.VersionCount()),
	)

	return configuration, nil
}

func (fetcher *ConfigurationFetcher) fetchExperiencesWithVersions(executionContext context.Context, source ProjectReader) ([]ExperienceWithVersions, error) {
	experiences, listError := source.ListExperiences(executionContext)
	if listError != nil {
		return nil, listError
	}

	experiencesWithVersions := make([]ExperienceWithVersions, len(experiences))

	var versionGroup errgroup.Group
	versionGroup.SetLimit(fetcher.versionFetchConcurrency)

	for experienceIndex, experience := range experiences {
		experienceIndex, experience := experienceIndex, experience
		versionGroup.Go(func() error {
			versions, versionsError := source.ListExperienceVersions(executionContext, experience.UID)
			if versionsError != nil {
				return versionsError
			}
			experiencesWithVersions[experienceIndex] = ExperienceWithVersions{Experience: experience, Versions: versions}
			return nil
		})
	}

	if waitError := versionGroup.Wait(); waitError != nil {
		return nil, waitError
	}

	return experiencesWithVersions, nil
}
