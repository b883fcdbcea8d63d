package cli_test

import (
	"bytes"
	"testing"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/temirov/personalize-migrate/cmd/cli"
	"github.com/temirov/personalize-migrate/internal/migrate"
	"github.com/temirov/personalize-migrate/internal/utils"
)

const (
	embeddedDefaultAPIURLConstant          = "https://personalize-api.contentstack.com"
	embeddedDefaultContentstackURLConstant = "https://api.contentstack.io"
	embeddedDefaultRequestTimeoutConstant  = 30 * time.Second
)

func TestApplicationEmbeddedDefaults(testInstance *testing.T) {
	configuration := loadEmbeddedConfiguration(testInstance)

	testCases := []struct {
		name      string
		assertion func(testing.TB, cli.ApplicationConfiguration)
	}{
		{
			name: "CommonDefaults",
			assertion: func(assertionTarget testing.TB, configuration cli.ApplicationConfiguration) {
				assertions := require.New(assertionTarget)
				assertions.Equal(string(utils.LogLevelInfo), configuration.Common.LogLevel)
				assertions.Equal(string(utils.LogFormatStructured), configuration.Common.LogFormat)
			},
		},
		{
			name: "PersonalizeDefaults",
			assertion: func(assertionTarget testing.TB, configuration cli.ApplicationConfiguration) {
				assertions := require.New(assertionTarget)
				assertions.Empty(configuration.Personalize.AuthToken)
				assertions.Equal(embeddedDefaultAPIURLConstant, configuration.Personalize.APIURL)
				assertions.Equal(embeddedDefaultContentstackURLConstant, configuration.Personalize.ContentstackBaseURL)
				assertions.Equal(embeddedDefaultRequestTimeoutConstant, configuration.Personalize.RequestTimeout)
			},
		},
		{
			name: "MigrateDefaults",
			assertion: func(assertionTarget testing.TB, configuration cli.ApplicationConfiguration) {
				require.Equal(assertionTarget, migrate.DefaultCommandConfiguration(), configuration.Tools.Migrate)
			},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			testCase.assertion(testInstance, configuration)
		})
	}
}

func TestApplicationEmbeddedMigrateSectionDecodes(testInstance *testing.T) {
	configurationData, configurationType := cli.EmbeddedDefaultConfiguration()
	viperInstance := viper.New()
	viperInstance.SetConfigType(configurationType)
	require.NoError(testInstance, viperInstance.ReadConfig(bytes.NewReader(configurationData)))

	var configuration migrate.CommandConfiguration
	decoder, decoderError := mapstructure.NewDecoder(&mapstructure.DecoderConfig{TagName: "mapstructure", Result: &configuration})
	require.NoError(testInstance, decoderError)
	require.NoError(testInstance, decoder.Decode(viperInstance.GetStringMap("tools.migrate")))

	require.Equal(testInstance, configuration, configuration.Sanitize())
}

func TestEmbeddedDefaultConfigurationReturnsCopy(testInstance *testing.T) {
	firstCopy, _ := cli.EmbeddedDefaultConfiguration()
	require.NotEmpty(testInstance, firstCopy)
	firstCopy[0] = '#'

	secondCopy, _ := cli.EmbeddedDefaultConfiguration()
	require.NotEqual(testInstance, firstCopy[0], secondCopy[0])
}

func loadEmbeddedConfiguration(testingInstance testing.TB) cli.ApplicationConfiguration {
	testingInstance.Helper()

	configurationData, configurationType := cli.EmbeddedDefaultConfiguration()
	viperInstance := viper.New()
	viperInstance.SetConfigType(configurationType)

	readError := viperInstance.ReadConfig(bytes.NewReader(configurationData))
	require.NoError(testingInstance, readError)

	var configuration cli.ApplicationConfiguration
	unmarshalError := viperInstance.Unmarshal(&configuration)
	require.NoError(testingInstance, unmarshalError)

	return configuration
}
