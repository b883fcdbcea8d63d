// Package authcheck provides the auth command that confirms the configured
// Contentstack token is accepted before a migration is attempted.
package authcheck
