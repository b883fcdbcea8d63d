package migrate

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/temirov/personalize-migrate/internal/failures"
	"github.com/temirov/personalize-migrate/internal/personalize"
	"github.com/temirov/personalize-migrate/internal/utils/flags"
)

const (
	previewCommandUseConstant              = "preview <source-project-uid>"
	previewCommandShortDescriptionConstant = "Summarize the configuration a migration would read"
	previewCommandLongDescriptionConstant  = "preview fetches attributes, audiences, experiences, and experience versions from the source project and reports their counts without writing anything."
	previewComponentConstant               = "MigrationPreview"
	previewFailedErrorTemplateConstant     = "preview failed: %w"
)

// PreviewCommandBuilder assembles the preview Cobra command.
type PreviewCommandBuilder struct {
	LoggerProvider              LoggerProvider
	ConfigurationProvider       func() CommandConfiguration
	ClientConfigurationProvider ClientConfigurationProvider
	ProjectProvider             ProjectOperationsProvider
}

// Build constructs the preview command.
func (builder *PreviewCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:           previewCommandUseConstant,
		Short:         previewCommandShortDescriptionConstant,
		Long:          previewCommandLongDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.ExactArgs(1),
		RunE:          builder.runPreview,
	}

	configuration := builder.resolveConfiguration()
	command.Flags().String(
		outputFlagNameConstant,
		configuration.OutputFormat,
		flags.FormatChoiceUsage(configuration.OutputFormat, SupportedOutputFormats, outputFlagUsageConstant),
	)

	return command, nil
}

func (builder *PreviewCommandBuilder) runPreview(command *cobra.Command, arguments []string) error {
	sourceProject, validationError := personalize.ParseProjectUID(arguments[0])
	if validationError != nil {
		return validationError
	}

	migrationBuilder := CommandBuilder{ConfigurationProvider: builder.ConfigurationProvider}
	options := migrationBuilder.parseOptions(command)

	reportWriter, reportWriterError := NewReportWriter(options.outputFormat)
	if reportWriterError != nil {
		return fmt.Errorf(reportWriterCreationErrorTemplate, reportWriterError)
	}

	logger := resolveCommandLogger(builder.LoggerProvider)
	projectProvider := resolveProjectProvider(builder.ProjectProvider, builder.ClientConfigurationProvider, logger)

	source, sourceError := projectProvider(sourceProject)
	if sourceError != nil {
		return fmt.Errorf(previewFailedErrorTemplateConstant, failures.Normalize(previewComponentConstant, sourceError))
	}

	fetcher := NewConfigurationFetcher(logger, options.versionFetchConcurrency)
	configuration, fetchError := fetcher.Fetch(command.Context(), source)
	if fetchError != nil {
		return fmt.Errorf(previewFailedErrorTemplateConstant, fetchError)
	}

	return reportWriter.Write(command.OutOrStdout(), NewPreviewReport(sourceProject.String(), configuration))
}

func (builder *PreviewCommandBuilder) resolveConfiguration() CommandConfiguration {
	if builder.ConfigurationProvider == nil {
		return DefaultCommandConfiguration()
	}

	provided := builder.ConfigurationProvider()
	return provided.Sanitize()
}
