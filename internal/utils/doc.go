// Package utils exposes reusable helpers consumed by multiple commands.
//
// ConfigurationLoader layers embedded defaults, configuration files, dotenv
// files and environment variables through Viper. LoggerFactory builds zap
// loggers that write to standard error so command reports stay on standard
// output.
package utils
