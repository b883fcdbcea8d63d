package cli

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/temirov/personalize-migrate/internal/authcheck"
	"github.com/temirov/personalize-migrate/internal/migrate"
	"github.com/temirov/personalize-migrate/internal/personalize"
	"github.com/temirov/personalize-migrate/internal/utils"
)

const (
	applicationNameConstant                     = "personalize-migrate"
	applicationShortDescriptionConstant         = "Copy Contentstack Personalize configuration between projects"
	applicationLongDescriptionConstant          = "personalize-migrate copies attributes, audiences, experiences and experience versions from a source Personalize project into a target project, reusing entities that already exist by name."
	configFileFlagNameConstant                  = "config"
	configFileFlagUsageConstant                 = "Optional path to a configuration file (YAML or JSON)."
	logLevelFlagNameConstant                    = "log-level"
	logLevelFlagUsageConstant                   = "Override the configured log level."
	logFormatFlagNameConstant                   = "log-format"
	logFormatFlagUsageConstant                  = "Override the configured log format (structured or console)."
	commonConfigurationKeyConstant              = "common"
	commonLogLevelConfigKeyConstant             = commonConfigurationKeyConstant + ".log_level"
	commonLogFormatConfigKeyConstant            = commonConfigurationKeyConstant + ".log_format"
	personalizeConfigurationKeyConstant         = "personalize"
	personalizeAuthTokenConfigKeyConstant       = personalizeConfigurationKeyConstant + ".auth_token"
	personalizeAPIURLConfigKeyConstant          = personalizeConfigurationKeyConstant + ".api_url"
	personalizeContentstackURLConfigKeyConstant = personalizeConfigurationKeyConstant + ".contentstack_base_url"
	personalizeRequestTimeoutConfigKeyConstant  = personalizeConfigurationKeyConstant + ".request_timeout"
	toolsConfigurationKeyConstant               = "tools"
	migrateConfigurationKeyConstant             = toolsConfigurationKeyConstant + ".migrate"
	legacyAuthTokenVariableConstant             = "CONTENTSTACK_AUTH_TOKEN"
	legacyContentstackURLVariableConstant       = "CONTENTSTACK_BASE_URL"
	legacyAPIURLVariableConstant                = "PERSONALIZE_API_URL"
	defaultAPIURLConstant                       = "https://personalize-api.contentstack.com"
	defaultContentstackURLConstant              = "https://api.contentstack.io"
	defaultRequestTimeoutConstant               = 30 * time.Second
	environmentPrefixConstant                   = "PERSONALIZEMIGRATE"
	environmentFileNameConstant                 = ".env"
	configurationNameConstant                   = "config"
	configurationTypeConstant                   = "yaml"
	configurationInitializedMessageConstant     = "configuration initialized"
	configurationLogLevelFieldConstant          = "log_level"
	configurationLogFormatFieldConstant         = "log_format"
	configurationFileFieldConstant              = "config_file"
	configurationEnvironmentFilesFieldConstant  = "environment_files"
	configurationLoadErrorTemplateConstant      = "unable to load configuration: %w"
	loggerCreationErrorTemplateConstant         = "unable to create logger: %w"
	loggerSyncErrorTemplateConstant             = "unable to flush logger: %w"
	rootCommandInfoMessageConstant              = "personalize-migrate CLI executed"
	rootCommandDebugMessageConstant             = "personalize-migrate CLI diagnostics"
	logFieldCommandNameConstant                 = "command_name"
	logFieldArgumentCountConstant               = "argument_count"
	logFieldArgumentsConstant                   = "arguments"
	loggerNotInitializedMessageConstant         = "logger not initialized"
	defaultConfigurationSearchPathConstant      = "."
)

// ApplicationConfiguration describes the persisted configuration for the CLI entrypoint.
type ApplicationConfiguration struct {
	Common      ApplicationCommonConfiguration      `mapstructure:"common"`
	Personalize ApplicationPersonalizeConfiguration `mapstructure:"personalize"`
	Tools       ApplicationToolsConfiguration       `mapstructure:"tools"`
}

// ApplicationCommonConfiguration stores logging configuration shared across commands.
type ApplicationCommonConfiguration struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// ApplicationPersonalizeConfiguration stores credentials and endpoints for the Personalize API.
type ApplicationPersonalizeConfiguration struct {
	AuthToken           string        `mapstructure:"auth_token"`
	APIURL              string        `mapstructure:"api_url"`
	ContentstackBaseURL string        `mapstructure:"contentstack_base_url"`
	RequestTimeout      time.Duration `mapstructure:"request_timeout"`
}

// ApplicationToolsConfiguration holds configuration for CLI subcommands grouped by tool family.
type ApplicationToolsConfiguration struct {
	Migrate migrate.CommandConfiguration `mapstructure:"migrate"`
}

// Application wires the Cobra root command, configuration loader, and structured logger.
type Application struct {
	rootCommand            *cobra.Command
	configurationLoader    *utils.ConfigurationLoader
	loggerFactory          *utils.LoggerFactory
	logger                 *zap.Logger
	configuration          ApplicationConfiguration
	configurationMetadata  utils.LoadedConfiguration
	configurationFilePath  string
	logLevelFlagValue      string
	logFormatFlagValue     string
	commandContextAccessor utils.CommandContextAccessor
}

// NewApplication assembles a fully wired CLI application instance.
func NewApplication() *Application {
	configurationLoader := utils.NewConfigurationLoader(
		configurationNameConstant,
		configurationTypeConstant,
		environmentPrefixConstant,
		[]string{defaultConfigurationSearchPathConstant},
	)
	configurationLoader.SetEmbeddedConfiguration(EmbeddedDefaultConfiguration())
	configurationLoader.SetEnvironmentBindings(map[string][]string{
		personalizeAuthTokenConfigKeyConstant:       {legacyAuthTokenVariableConstant},
		personalizeContentstackURLConfigKeyConstant: {legacyContentstackURLVariableConstant},
		personalizeAPIURLConfigKeyConstant:          {legacyAPIURLVariableConstant},
	})
	configurationLoader.SetEnvironmentFiles(environmentFileNameConstant)

	application := &Application{
		configurationLoader:    configurationLoader,
		loggerFactory:          utils.NewLoggerFactory(),
		logger:                 zap.NewNop(),
		commandContextAccessor: utils.NewCommandContextAccessor(),
	}

	cobraCommand := &cobra.Command{
		Use:           applicationNameConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			return application.initializeConfiguration(command)
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			return application.runRootCommand(command, arguments)
		},
	}

	cobraCommand.SetContext(context.Background())
	cobraCommand.PersistentFlags().StringVar(&application.configurationFilePath, configFileFlagNameConstant, "", configFileFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logLevelFlagValue, logLevelFlagNameConstant, "", logLevelFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logFormatFlagValue, logFormatFlagNameConstant, "", logFormatFlagUsageConstant)

	migrateBuilder := migrate.CommandBuilder{
		LoggerProvider: func() *zap.Logger {
			return application.logger
		},
		ConfigurationProvider:       application.migrateConfiguration,
		ClientConfigurationProvider: application.clientConfiguration,
	}
	migrateCommand, migrateBuildError := migrateBuilder.Build()
	if migrateBuildError == nil {
		cobraCommand.AddCommand(migrateCommand)
	}

	previewBuilder := migrate.PreviewCommandBuilder{
		LoggerProvider: func() *zap.Logger {
			return application.logger
		},
		ConfigurationProvider:       application.migrateConfiguration,
		ClientConfigurationProvider: application.clientConfiguration,
	}
	previewCommand, previewBuildError := previewBuilder.Build()
	if previewBuildError == nil {
		cobraCommand.AddCommand(previewCommand)
	}

	authBuilder := authcheck.CommandBuilder{
		LoggerProvider: func() *zap.Logger {
			return application.logger
		},
		ClientConfigurationProvider: application.clientConfiguration,
	}
	authCommand, authBuildError := authBuilder.Build()
	if authBuildError == nil {
		cobraCommand.AddCommand(authCommand)
	}

	application.rootCommand = cobraCommand

	return application
}

// Execute runs the configured Cobra command hierarchy and ensures logger flushing.
func (application *Application) Execute() error {
	executionError := application.rootCommand.Execute()
	if syncError := application.flushLogger(); syncError != nil {
		return fmt.Errorf(loggerSyncErrorTemplateConstant, syncError)
	}
	return executionError
}

// Execute builds a fresh application instance and executes the root command hierarchy.
func Execute() error {
	return NewApplication().Execute()
}

func (application *Application) initializeConfiguration(command *cobra.Command) error {
	defaultValues := map[string]any{
		commonLogLevelConfigKeyConstant:             string(utils.LogLevelInfo),
		commonLogFormatConfigKeyConstant:            string(utils.LogFormatStructured),
		personalizeAuthTokenConfigKeyConstant:       "",
		personalizeAPIURLConfigKeyConstant:          defaultAPIURLConstant,
		personalizeContentstackURLConfigKeyConstant: defaultContentstackURLConstant,
		personalizeRequestTimeoutConfigKeyConstant:  defaultRequestTimeoutConstant.String(),
	}
	for configurationKey, configurationValue := range migrate.DefaultConfigurationValues(migrateConfigurationKeyConstant) {
		defaultValues[configurationKey] = configurationValue
	}

	loadedConfiguration, loadError := application.configurationLoader.LoadConfiguration(application.configurationFilePath, defaultValues, &application.configuration)
	if loadError != nil {
		return fmt.Errorf(configurationLoadErrorTemplateConstant, loadError)
	}

	application.configurationMetadata = loadedConfiguration

	logLevelFlagChanged := application.persistentFlagChanged(command, logLevelFlagNameConstant)
	if logLevelFlagChanged {
		application.configuration.Common.LogLevel = application.logLevelFlagValue
	} else if application.configuration.Tools.Migrate.EnableDebugLogging {
		application.configuration.Common.LogLevel = string(utils.LogLevelDebug)
	}

	if application.persistentFlagChanged(command, logFormatFlagNameConstant) {
		application.configuration.Common.LogFormat = application.logFormatFlagValue
	}

	logger, loggerCreationError := application.loggerFactory.CreateLogger(
		utils.LogLevel(application.configuration.Common.LogLevel),
		utils.LogFormat(application.configuration.Common.LogFormat),
	)
	if loggerCreationError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, loggerCreationError)
	}

	application.logger = logger

	application.logger.Info(
		configurationInitializedMessageConstant,
		zap.String(configurationLogLevelFieldConstant, application.configuration.Common.LogLevel),
		zap.String(configurationLogFormatFieldConstant, application.configuration.Common.LogFormat),
		zap.String(configurationFileFieldConstant, application.configurationMetadata.ConfigFileUsed),
		zap.Strings(configurationEnvironmentFilesFieldConstant, application.configurationMetadata.EnvironmentFilesUsed),
	)

	if command != nil {
		updatedContext := application.commandContextAccessor.WithLoadedConfiguration(
			command.Context(),
			application.configurationMetadata,
		)
		command.SetContext(updatedContext)
		if rootCommand := command.Root(); rootCommand != nil {
			rootCommand.SetContext(updatedContext)
		}
	}

	return nil
}

func (application *Application) migrateConfiguration() migrate.CommandConfiguration {
	return application.configuration.Tools.Migrate
}

func (application *Application) clientConfiguration() personalize.ClientConfiguration {
	personalizeConfiguration := application.configuration.Personalize
	return personalize.ClientConfiguration{
		AuthToken:           personalizeConfiguration.AuthToken,
		APIBaseURL:          personalizeConfiguration.APIURL,
		ContentstackBaseURL: personalizeConfiguration.ContentstackBaseURL,
		RequestTimeout:      personalizeConfiguration.RequestTimeout,
		Logger:              application.logger,
	}
}

func (application *Application) runRootCommand(command *cobra.Command, arguments []string) error {
	if application.logger == nil {
		return errors.New(loggerNotInitializedMessageConstant)
	}

	application.logger.Info(
		rootCommandInfoMessageConstant,
		zap.String(logFieldCommandNameConstant, command.Name()),
		zap.Int(logFieldArgumentCountConstant, len(arguments)),
	)

	application.logger.Debug(
		rootCommandDebugMessageConstant,
		zap.Strings(logFieldArgumentsConstant, arguments),
	)

	if len(arguments) == 0 {
		return command.Help()
	}

	return nil
}

func (application *Application) flushLogger() error {
	if application.logger == nil {
		return nil
	}

	syncError := application.logger.Sync()
	switch {
	case syncError == nil:
		return nil
	case errors.Is(syncError, syscall.ENOTSUP):
		return nil
	case errors.Is(syncError, syscall.EINVAL):
		return nil
	default:
		return syncError
	}
}

func (application *Application) persistentFlagChanged(command *cobra.Command, flagName string) bool {
	if command == nil {
		return false
	}

	flagSetsToInspect := []*pflag.FlagSet{
		command.PersistentFlags(),
		command.InheritedFlags(),
	}

	if rootCommand := command.Root(); rootCommand != nil {
		flagSetsToInspect = append(flagSetsToInspect, rootCommand.PersistentFlags())
	}

	for _, flagSet := range flagSetsToInspect {
		if flagSet != nil && flagSet.Changed(flagName) {
			return true
		}
	}

	return false
}
