// Package personalize wraps the Personalize REST API used by the migration engine.
//
// It exposes typed entity structures, validates project identifiers, and
// scopes requests to a project through the x-project-uid header. Every failure
// is returned as a failures.Error so callers never inspect raw transport errors.
package personalize
