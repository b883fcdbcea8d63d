package migrate

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/personalize-migrate/internal/personalize"
	"github.com/temirov/personalize-migrate/internal/utils/flags"
)

const (
	commandUseConstant                   = "migrate <source-project-uid> <target-project-uid>"
	commandShortDescriptionConstant      = "Migrate personalization configuration between projects"
	commandLongDescriptionConstant       = "migrate copies attributes, audiences, experiences, and experience versions from the source project into the target project, reusing entities that already exist in the target and rewriting cross-entity references."
	commandArgumentCountConstant         = 2
	outputFlagNameConstant               = "output"
	outputFlagUsageConstant              = "Report format written to standard output"
	migrationFailedErrorTemplateConstant = "migration failed: %s"
	migrationErrorSeparatorConstant      = "; "
	clientCreationErrorTemplateConstant  = "unable to construct Personalize client: %w"
	reportWriterCreationErrorTemplate    = "invalid report configuration: %w"
	migrationFinishedMessageConstant     = "Migration finished"
	logFieldSuccessConstant              = "success"
	logFieldAttributesCreatedConstant    = "attributes_created"
	logFieldAudiencesCreatedConstant     = "audiences_created"
	logFieldExperiencesCreatedConstant   = "experiences_created"
	logFieldErrorsConstant               = "errors"
)

// ServiceProvider constructs a migration executor from dependencies.
type ServiceProvider func(dependencies ServiceDependencies) (MigrationExecutor, error)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ClientConfigurationProvider supplies Personalize API settings.
type ClientConfigurationProvider func() personalize.ClientConfiguration

type commandOptions struct {
	outputFormat            string
	versionFetchConcurrency int
}

// CommandBuilder assembles the migrate Cobra command.
type CommandBuilder struct {
	LoggerProvider              LoggerProvider
	ConfigurationProvider       func() CommandConfiguration
	ClientConfigurationProvider ClientConfigurationProvider
	ProjectProvider             ProjectOperationsProvider
	ServiceProvider             ServiceProvider
}

// Build constructs the migrate command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:           commandUseConstant,
		Short:         commandShortDescriptionConstant,
		Long:          commandLongDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.ExactArgs(commandArgumentCountConstant),
		RunE:          builder.runMigration,
	}

	defaultConfiguration := builder.resolveConfiguration()
	command.Flags().String(
		outputFlagNameConstant,
		defaultConfiguration.OutputFormat,
		flags.FormatChoiceUsage(defaultConfiguration.OutputFormat, SupportedOutputFormats, outputFlagUsageConstant),
	)

	return command, nil
}

func (builder *CommandBuilder) runMigration(command *cobra.Command, arguments []string) error {
	options := builder.parseOptions(command)

	reportWriter, reportWriterError := NewReportWriter(options.outputFormat)
	if reportWriterError != nil {
		return fmt.Errorf(reportWriterCreationErrorTemplate, reportWriterError)
	}

	logger := resolveCommandLogger(builder.LoggerProvider)

	service, serviceError := builder.resolveService(ServiceDependencies{
		Logger:                  logger,
		ProjectProvider:         resolveProjectProvider(builder.ProjectProvider, builder.ClientConfigurationProvider, logger),
		VersionFetchConcurrency: options.versionFetchConcurrency,
	})
	if serviceError != nil {
		return serviceError
	}

	result, executionError := service.Execute(command.Context(), MigrationOptions{
		SourceProject: arguments[0],
		TargetProject: arguments[1],
	})
	if executionError != nil {
		return executionError
	}

	builder.logSummary(logger, result)

	if writeError := reportWriter.Write(command.OutOrStdout(), result); writeError != nil {
		return writeError
	}

	if !result.Success {
		return fmt.Errorf(migrationFailedErrorTemplateConstant, strings.Join(result.Errors, migrationErrorSeparatorConstant))
	}

	return nil
}

func (builder *CommandBuilder) parseOptions(command *cobra.Command) commandOptions {
	configuration := builder.resolveConfiguration()

	outputFormat := configuration.OutputFormat
	if command != nil && command.Flags().Changed(outputFlagNameConstant) {
		flagValue, _ := command.Flags().GetString(outputFlagNameConstant)
		outputFormat = strings.ToLower(strings.TrimSpace(flagValue))
	}

	return commandOptions{
		outputFormat:            outputFormat,
		versionFetchConcurrency: configuration.VersionFetchConcurrency,
	}
}

func (builder *CommandBuilder) resolveService(dependencies ServiceDependencies) (MigrationExecutor, error) {
	if builder.ServiceProvider != nil {
		return builder.ServiceProvider(dependencies)
	}
	return NewService(dependencies)
}

func (builder *CommandBuilder) resolveConfiguration() CommandConfiguration {
	if builder.ConfigurationProvider == nil {
		return DefaultCommandConfiguration()
	}

	provided := builder.ConfigurationProvider()
	return provided.Sanitize()
}

func (builder *CommandBuilder) logSummary(logger *zap.Logger, result MigrationResult) {
	logger.Info(
		migrationFinishedMessageConstant,
		zap.String(logFieldRunIdentifierConstant, result.RunID),
		zap.Bool(logFieldSuccessConstant, result.Success),
		zap.Int(logFieldAttributesMigratedConstant, result.AttributesMigrated),
		zap.Int(logFieldAttributesCreatedConstant, result.AttributesCreated),
		zap.Int(logFieldAudiencesMigratedConstant, result.AudiencesMigrated),
		zap.Int(logFieldAudiencesCreatedConstant, result.AudiencesCreated),
		zap.Int(logFieldExperiencesMigratedConstant, result.ExperiencesMigrated),
		zap.Int(logFieldExperiencesCreatedConstant, result.ExperiencesCreated),
		zap.Int(logFieldVersionsMigratedConstant, result.VersionsMigrated),
		zap.Strings(logFieldErrorsConstant, result.Errors),
	)
}

func resolveCommandLogger(provider LoggerProvider) *zap.Logger {
	var logger *zap.Logger
	if provider != nil {
		logger = provider()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger
}

// resolveProjectProvider returns the configured provider or one backed by a
// Personalize client. The client is built on first use so identifier
// validation happens before any configuration failure can surface.
func resolveProjectProvider(provider ProjectOperationsProvider, clientConfigurationProvider ClientConfigurationProvider, logger *zap.Logger) ProjectOperationsProvider {
	if provider != nil {
		return provider
	}

	var client *personalize.Client
	return func(projectUID personalize.ProjectUID) (ProjectOperations, error) {
		if client == nil {
			var clientConfiguration personalize.ClientConfiguration
			if clientConfigurationProvider != nil {
				clientConfiguration = clientConfigurationProvider()
			}
			clientConfiguration.Logger = logger

			createdClient, clientError := personalize.NewClient(clientConfiguration)
			if clientError != nil {
				return nil, fmt.Errorf(clientCreationErrorTemplateConstant, clientError)
			}
			client = createdClient
		}
		return client.Project(projectUID), nil
	}
}
