package utils

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	environmentKeySeparatorOldConstant              = "."
	environmentKeySeparatorNewConstant              = "_"
	environmentPrefixSeparatorConstant              = "_"
	homeDirectoryShortcutConstant                   = "~"
	listValueSeparatorConstant                      = ","
	configurationReadErrorTemplateConstant          = "failed to read configuration: %w"
	configurationUnmarshalErrorTemplateConstant     = "failed to parse configuration: %w"
	embeddedConfigurationMergeErrorTemplateConstant = "failed to merge embedded configuration: %w"
	environmentBindingErrorTemplateConstant         = "failed to bind environment variables for %s: %w"
	environmentFileLoadErrorTemplateConstant        = "failed to load environment file %s: %w"
)

// ConfigurationLoader wraps Viper to load structured configuration files and environment overrides.
type ConfigurationLoader struct {
	configurationName         string
	configurationType         string
	environmentPrefix         string
	searchPaths               []string
	environmentKeyReplacer    *strings.Replacer
	embeddedConfiguration     []byte
	embeddedConfigurationType string
	environmentBindings       map[string][]string
	environmentFiles          []string
}

// LoadedConfiguration surfaces metadata about the resolved configuration.
type LoadedConfiguration struct {
	ConfigFileUsed       string
	EnvironmentFilesUsed []string
}

// NewConfigurationLoader creates a loader that searches known paths and respects an environment prefix.
func NewConfigurationLoader(configurationName string, configurationType string, environmentPrefix string, searchPaths []string) *ConfigurationLoader {
	duplicatedSearchPaths := make([]string, len(searchPaths))
	copy(duplicatedSearchPaths, searchPaths)

	return &ConfigurationLoader{
		configurationName:      configurationName,
		configurationType:      configurationType,
		environmentPrefix:      environmentPrefix,
		searchPaths:            duplicatedSearchPaths,
		environmentKeyReplacer: strings.NewReplacer(environmentKeySeparatorOldConstant, environmentKeySeparatorNewConstant),
		environmentBindings:    map[string][]string{},
	}
}

// SetEmbeddedConfiguration stores embedded configuration data merged before user-provided configuration files.
func (loader *ConfigurationLoader) SetEmbeddedConfiguration(configurationData []byte, configurationType string) {
	if loader == nil {
		return
	}

	loader.embeddedConfiguration = nil
	loader.embeddedConfigurationType = strings.TrimSpace(configurationType)

	if len(configurationData) == 0 {
		return
	}

	duplicatedData := make([]byte, len(configurationData))
	copy(duplicatedData, configurationData)
	loader.embeddedConfiguration = duplicatedData
}

// SetEnvironmentBindings registers additional environment variable names for configuration keys.
// The prefixed variable derived from the key keeps precedence over the additional names.
func (loader *ConfigurationLoader) SetEnvironmentBindings(bindings map[string][]string) {
	if loader == nil {
		return
	}

	loader.environmentBindings = make(map[string][]string, len(bindings))
	for configurationKey, environmentVariables := range bindings {
		loader.environmentBindings[configurationKey] = append([]string{}, environmentVariables...)
	}
}

// SetEnvironmentFiles lists dotenv files loaded into the process environment before configuration is resolved.
// Missing files are skipped; variables already present in the environment are not overwritten.
func (loader *ConfigurationLoader) SetEnvironmentFiles(environmentFiles ...string) {
	if loader == nil {
		return
	}
	loader.environmentFiles = append([]string{}, environmentFiles...)
}

// LoadConfiguration populates targetConfiguration using configuration files, defaults, and environment variables.
func (loader *ConfigurationLoader) LoadConfiguration(configurationFilePath string, defaultValues map[string]any, targetConfiguration any) (LoadedConfiguration, error) {
	environmentFilesUsed, environmentFileError := loader.loadEnvironmentFiles()
	if environmentFileError != nil {
		return LoadedConfiguration{}, environmentFileError
	}

	viperInstance := viper.New()
	viperInstance.SetConfigName(loader.configurationName)
	viperInstance.SetConfigType(loader.configurationType)

	if len(loader.embeddedConfiguration) > 0 {
		configurationType := loader.configurationType
		if len(loader.embeddedConfigurationType) > 0 {
			configurationType = loader.embeddedConfigurationType
		}

		viperInstance.SetConfigType(configurationType)
		mergeError := viperInstance.MergeConfig(bytes.NewReader(loader.embeddedConfiguration))
		if mergeError != nil {
			return LoadedConfiguration{}, fmt.Errorf(embeddedConfigurationMergeErrorTemplateConstant, mergeError)
		}

		viperInstance.SetConfigType(loader.configurationType)
	}

	for _, searchPath := range loader.searchPaths {
		viperInstance.AddConfigPath(expandHomeDirectory(searchPath))
	}

	viperInstance.SetEnvPrefix(loader.environmentPrefix)
	if loader.environmentKeyReplacer != nil {
		viperInstance.SetEnvKeyReplacer(loader.environmentKeyReplacer)
	}
	viperInstance.AutomaticEnv()

	for configurationKey, environmentVariables := range loader.environmentBindings {
		bindingNames := append([]string{loader.prefixedEnvironmentVariable(configurationKey)}, environmentVariables...)
		if bindError := viperInstance.BindEnv(append([]string{configurationKey}, bindingNames...)...); bindError != nil {
			return LoadedConfiguration{}, fmt.Errorf(environmentBindingErrorTemplateConstant, configurationKey, bindError)
		}
	}

	for defaultKey, defaultValue := range defaultValues {
		viperInstance.SetDefault(defaultKey, defaultValue)
	}

	if len(configurationFilePath) > 0 {
		viperInstance.SetConfigFile(expandHomeDirectory(configurationFilePath))
	}

	readError := viperInstance.MergeInConfig()
	if readError != nil {
		var notFoundError viper.ConfigFileNotFoundError
		if !errors.As(readError, &notFoundError) {
			return LoadedConfiguration{}, fmt.Errorf(configurationReadErrorTemplateConstant, readError)
		}
	}

	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(listValueSeparatorConstant),
		mapstructure.TextUnmarshallerHookFunc(),
	))
	unmarshalError := viperInstance.Unmarshal(targetConfiguration, decodeHook)
	if unmarshalError != nil {
		return LoadedConfiguration{}, fmt.Errorf(configurationUnmarshalErrorTemplateConstant, unmarshalError)
	}

	loadedConfiguration := LoadedConfiguration{
		ConfigFileUsed:       viperInstance.ConfigFileUsed(),
		EnvironmentFilesUsed: environmentFilesUsed,
	}

	return loadedConfiguration, nil
}

func (loader *ConfigurationLoader) loadEnvironmentFiles() ([]string, error) {
	loadedFiles := []string{}
	for _, environmentFile := range loader.environmentFiles {
		resolvedPath := expandHomeDirectory(environmentFile)
		if _, statError := os.Stat(resolvedPath); statError != nil {
			if errors.Is(statError, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf(environmentFileLoadErrorTemplateConstant, resolvedPath, statError)
		}
		if loadError := godotenv.Load(resolvedPath); loadError != nil {
			return nil, fmt.Errorf(environmentFileLoadErrorTemplateConstant, resolvedPath, loadError)
		}
		loadedFiles = append(loadedFiles, resolvedPath)
	}
	return loadedFiles, nil
}

func (loader *ConfigurationLoader) prefixedEnvironmentVariable(configurationKey string) string {
	environmentKey := strings.ToUpper(configurationKey)
	if loader.environmentKeyReplacer != nil {
		environmentKey = loader.environmentKeyReplacer.Replace(environmentKey)
	}
	if len(loader.environmentPrefix) == 0 {
		return environmentKey
	}
	return strings.ToUpper(loader.environmentPrefix) + environmentPrefixSeparatorConstant + environmentKey
}

// expandHomeDirectory resolves a leading ~ to the current user's home directory.
func expandHomeDirectory(candidatePath string) string {
	if !strings.HasPrefix(candidatePath, homeDirectoryShortcutConstant) {
		return candidatePath
	}

	homeDirectory, homeDirectoryError := os.UserHomeDir()
	if homeDirectoryError != nil || len(homeDirectory) == 0 {
		return candidatePath
	}

	if candidatePath == homeDirectoryShortcutConstant {
		return homeDirectory
	}

	relativePath := strings.TrimPrefix(candidatePath, homeDirectoryShortcutConstant)
	if !strings.HasPrefix(relativePath, "/") && !strings.HasPrefix(relativePath, string(os.PathSeparator)) {
		return candidatePath
	}
	return filepath.Join(homeDirectory, relativePath)
}
