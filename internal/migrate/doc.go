// Package migrate implements the personalization migration engine. It fetches
// the configuration graph of a source project, reconciles every attribute,
// audience, and experience against the target project, rewrites identifier
// references into target space, and replays the configuration in dependency
// order without duplicating entities that already exist.
package migrate
