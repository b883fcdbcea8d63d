package utils

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	logLevelDebugStringConstant          = "debug"
	logLevelInfoStringConstant           = "info"
	logLevelWarnStringConstant           = "warn"
	logLevelErrorStringConstant          = "error"
	logFormatStructuredStringConstant    = "structured"
	logFormatConsoleStringConstant       = "console"
	jsonZapEncodingStringConstant        = "json"
	consoleZapEncodingStringConstant     = "console"
	standardErrorOutputPathConstant      = "stderr"
	timestampFieldNameConstant           = "timestamp"
	unsupportedLogLevelTemplateConstant  = "unsupported log level: %s"
	unsupportedLogFormatTemplateConstant = "unsupported log format: %s"
)

// LogLevel enumerates supported logging granularities.
type LogLevel string

// Exported log level constants for reuse across packages.
const (
	LogLevelDebug LogLevel = LogLevel(logLevelDebugStringConstant)
	LogLevelInfo  LogLevel = LogLevel(logLevelInfoStringConstant)
	LogLevelWarn  LogLevel = LogLevel(logLevelWarnStringConstant)
	LogLevelError LogLevel = LogLevel(logLevelErrorStringConstant)
)

// LogFormat enumerates supported logger output encodings.
type LogFormat string

// Exported log format constants for reuse across packages.
const (
	LogFormatStructured LogFormat = LogFormat(logFormatStructuredStringConstant)
	LogFormatConsole    LogFormat = LogFormat(logFormatConsoleStringConstant)
)

// LoggerFactory builds zap.Logger instances that write to standard error.
type LoggerFactory struct{}

var logLevelMapping = map[LogLevel]zapcore.Level{
	LogLevelDebug: zapcore.DebugLevel,
	LogLevelInfo:  zapcore.InfoLevel,
	LogLevelWarn:  zapcore.WarnLevel,
	LogLevelError: zapcore.ErrorLevel,
}

var logFormatEncodingMapping = map[LogFormat]string{
	LogFormatStructured: jsonZapEncodingStringConstant,
	LogFormatConsole:    consoleZapEncodingStringConstant,
}

// NewLoggerFactory constructs a new logger factory.
func NewLoggerFactory() *LoggerFactory {
	return &LoggerFactory{}
}

// ParseLogLevel normalizes user input into a supported LogLevel.
func ParseLogLevel(rawLogLevel string) (LogLevel, error) {
	candidate := LogLevel(strings.ToLower(strings.TrimSpace(rawLogLevel)))
	if _, exists := logLevelMapping[candidate]; !exists {
		return "", fmt.Errorf(unsupportedLogLevelTemplateConstant, rawLogLevel)
	}
	return candidate, nil
}

// ParseLogFormat normalizes user input into a supported LogFormat.
func ParseLogFormat(rawLogFormat string) (LogFormat, error) {
	candidate := LogFormat(strings.ToLower(strings.TrimSpace(rawLogFormat)))
	if _, exists := logFormatEncodingMapping[candidate]; !exists {
		return "", fmt.Errorf(unsupportedLogFormatTemplateConstant, rawLogFormat)
	}
	return candidate, nil
}

// CreateLogger produces a zap.Logger honoring the requested log level and format.
// Log output goes to standard error so command reports on standard output stay parseable.
func (factory *LoggerFactory) CreateLogger(requestedLogLevel LogLevel, requestedLogFormat LogFormat) (*zap.Logger, error) {
	normalizedLevel, levelError := ParseLogLevel(string(requestedLogLevel))
	if levelError != nil {
		return nil, levelError
	}

	normalizedFormat, formatError := ParseLogFormat(string(requestedLogFormat))
	if formatError != nil {
		return nil, formatError
	}

	configuration := zap.NewProductionConfig()
	configuration.Level = zap.NewAtomicLevelAt(logLevelMapping[normalizedLevel])
	configuration.Encoding = logFormatEncodingMapping[normalizedFormat]
	configuration.OutputPaths = []string{standardErrorOutputPathConstant}
	configuration.ErrorOutputPaths = []string{standardErrorOutputPathConstant}
	configuration.EncoderConfig.TimeKey = timestampFieldNameConstant
	configuration.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if normalizedFormat == LogFormatConsole {
		configuration.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	logger, buildError := configuration.Build()
	if buildError != nil {
		return nil, buildError
	}

	return logger, nil
}
