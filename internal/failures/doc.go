// Package failures defines the error taxonomy shared by the migration engine.
//
// Validation, API, configuration, and unknown failures are carried by a single
// Error value so that every component boundary can normalize what it returns
// while preserving the original message and cause.
package failures
