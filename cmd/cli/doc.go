// Package cli constructs the personalize-migrate command-line interface,
// wiring the Cobra command hierarchy, the configuration loader, the
// Personalize client settings and structured logging. Execute runs the
// default command set.
package cli
