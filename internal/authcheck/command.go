package authcheck

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/personalize-migrate/internal/personalize"
	"github.com/temirov/personalize-migrate/internal/utils"
)

const (
	commandUseConstant                   = "auth"
	commandShortDescriptionConstant      = "Validate the configured authentication token"
	commandLongDescriptionConstant       = "auth calls the Contentstack user endpoint with the configured token and reports whether the token is accepted."
	authenticationFailedTemplateConstant = "authentication check failed: %w"
	authenticationSucceededOutput        = "Authentication token is valid\n"
	authenticationSucceededMessage       = "Authentication token verified"
	authenticationFailedMessage          = "Authentication token rejected"
	logFieldConfigurationFileConstant    = "config_file"
)

// TokenVerifier confirms that an authentication token is accepted.
type TokenVerifier interface {
	VerifyAuthToken(executionContext context.Context) error
}

// VerifierProvider constructs a TokenVerifier from client configuration.
type VerifierProvider func(configuration personalize.ClientConfiguration) (TokenVerifier, error)

// CommandBuilder assembles the auth Cobra command.
type CommandBuilder struct {
	LoggerProvider              func() *zap.Logger
	ClientConfigurationProvider func() personalize.ClientConfiguration
	VerifierProvider            VerifierProvider
}

// Build constructs the auth command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	return &cobra.Command{
		Use:           commandUseConstant,
		Short:         commandShortDescriptionConstant,
		Long:          commandLongDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE:          builder.runAuthCheck,
	}, nil
}

func (builder *CommandBuilder) runAuthCheck(command *cobra.Command, _ []string) error {
	logger := builder.resolveLogger()

	var clientConfiguration personalize.ClientConfiguration
	if builder.ClientConfigurationProvider != nil {
		clientConfiguration = builder.ClientConfigurationProvider()
	}
	clientConfiguration.Logger = logger

	verifier, verifierError := builder.resolveVerifier(clientConfiguration)
	if verifierError != nil {
		return fmt.Errorf(authenticationFailedTemplateConstant, verifierError)
	}

	configurationFile, _ := utils.NewCommandContextAccessor().ConfigurationFilePath(command.Context())

	if verificationError := verifier.VerifyAuthToken(command.Context()); verificationError != nil {
		logger.Warn(
			authenticationFailedMessage,
			zap.String(logFieldConfigurationFileConstant, configurationFile),
			zap.Error(verificationError),
		)
		return fmt.Errorf(authenticationFailedTemplateConstant, verificationError)
	}

	logger.Info(authenticationSucceededMessage, zap.String(logFieldConfigurationFileConstant, configurationFile))
	_, writeError := fmt.Fprint(command.OutOrStdout(), authenticationSucceededOutput)
	return writeError
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}
	if logger := builder.LoggerProvider(); logger != nil {
		return logger
	}
	return zap.NewNop()
}

func (builder *CommandBuilder) resolveVerifier(configuration personalize.ClientConfiguration) (TokenVerifier, error) {
	if builder.VerifierProvider != nil {
		return builder.VerifierProvider(configuration)
	}
	client, clientError := personalize.NewClient(configuration)
	if clientError != nil {
		return nil, clientError
	}
	return client, nil
}
