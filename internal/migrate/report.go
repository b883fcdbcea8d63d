package migrate

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/temirov/personalize-migrate/internal/utils/flags"
)

const (
	reportJSONIndentConstant                = "  "
	reportYAMLIndentConstant                = 2
	unsupportedOutputFormatTemplateConstant = "unsupported output format %q"
	reportEncodingErrorTemplateConstant     = "unable to write %s report: %w"
)

// PreviewReport summarizes the configuration that a migration would read from a source project.
type PreviewReport struct {
	SourceProject      string `json:"sourceProject" yaml:"source_project"`
	Attributes         int    `json:"attributes" yaml:"attributes"`
	Audiences          int    `json:"audiences" yaml:"audiences"`
	Experiences        int    `json:"experiences" yaml:"experiences"`
	ExperienceVersions int    `json:"experienceVersions" yaml:"experience_versions"`
}

// NewPreviewReport derives a PreviewReport from a fetched configuration.
func NewPreviewReport(sourceProject string, configuration SourceConfiguration) PreviewReport {
	return PreviewReport{
		SourceProject:      sourceProject,
		Attributes:         len(configuration.Attributes),
		Audiences:          len(configuration.Audiences),
		Experiences:        len(configuration.ExperiencesWithVersions),
		ExperienceVersions: configuration.VersionCount(),
	}
}

// ReportWriter renders reports in the configured output format.
type ReportWriter struct {
	outputFormat string
}

// NewReportWriter validates the output format and constructs a ReportWriter.
func NewReportWriter(outputFormat string) (ReportWriter, error) {
	matchedFormat, matched := flags.MatchChoice(outputFormat, SupportedOutputFormats)
	if !matched {
		return ReportWriter{}, fmt.Errorf(unsupportedOutputFormatTemplateConstant, outputFormat)
	}
	return ReportWriter{outputFormat: matchedFormat}, nil
}

// Write encodes the report to the provided writer.
func (writer ReportWriter) Write(output io.Writer, report any) error {
	var encodingError error
	switch writer.outputFormat {
	case OutputFormatJSON:
		encoder := json.NewEncoder(output)
		encoder.SetIndent("", reportJSONIndentConstant)
		encodingError = encoder.Encode(report)
	default:
		encoder := yaml.NewEncoder(output)
		encoder.SetIndent(reportYAMLIndentConstant)
		encodingError = encoder.Encode(report)
		if encodingError == nil {
			encodingError = encoder.Close()
		}
	}

	if encodingError != nil {
		return fmt.Errorf(reportEncodingErrorTemplateConstant, writer.outputFormat, encodingError)
	}
	return nil
}
