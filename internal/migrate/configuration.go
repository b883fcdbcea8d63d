package migrate

import "strings"

const (
	// OutputFormatYAML renders the migration report as YAML.
	OutputFormatYAML = "yaml"
	// OutputFormatJSON renders the migration report as indented JSON.
	OutputFormatJSON = "json"
)

// SupportedOutputFormats lists the report encodings accepted by the migrate command.
var SupportedOutputFormats = []string{OutputFormatYAML, OutputFormatJSON}

// CommandConfiguration captures persisted configuration for project migration.
type CommandConfiguration struct {
	EnableDebugLogging      bool   `mapstructure:"debug"`
	OutputFormat            string `mapstructure:"output"`
	VersionFetchConcurrency int    `mapstructure:"version_fetch_concurrency"`
}

// DefaultCommandConfiguration returns baseline configuration values for project migration.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		EnableDebugLogging:      false,
		OutputFormat:            OutputFormatYAML,
		VersionFetchConcurrency: defaultVersionFetchConcurrencyConstant,
	}
}

// Sanitize normalizes the output format and replaces unusable values with defaults.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	sanitized := configuration

	sanitized.OutputFormat = strings.ToLower(strings.TrimSpace(configuration.OutputFormat))
	if len(sanitized.OutputFormat) == 0 {
		sanitized.OutputFormat = OutputFormatYAML
	}

	if sanitized.VersionFetchConcurrency <= 0 {
		sanitized.VersionFetchConcurrency = defaultVersionFetchConcurrencyConstant
	}

	return sanitized
}

// DefaultConfigurationValues exposes viper defaults rooted at the provided key prefix.
func DefaultConfigurationValues(keyPrefix string) map[string]any {
	defaults := DefaultCommandConfiguration()
	return map[string]any{
		keyPrefix + ".debug":                     defaults.EnableDebugLogging,
		keyPrefix + ".output":                    defaults.OutputFormat,
		keyPrefix + ".version_fetch_concurrency": defaults.VersionFetchConcurrency,
	}
}
