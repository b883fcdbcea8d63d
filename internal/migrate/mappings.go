package migrate

import "github.com/temirov/personalize-migrate/internal/personalize"

// MappingOutcome records whether a target entity was created or reused.
type MappingOutcome string

// Supported mapping outcomes.
const (
	MappingOutcomeCreated MappingOutcome = MappingOutcome("created")
	MappingOutcomeReused  MappingOutcome = MappingOutcome("reused")
)

// AttributeMapping links a source attribute to its target counterpart.
type AttributeMapping struct {
	SourceUID string
	TargetUID string
	Name      string
	Type      string
	Outcome   MappingOutcome
}

// AudienceMapping links a source audience to its target counterpart.
type AudienceMapping struct {
	SourceUID   string
	TargetUID   string
	Name        string
	Description string
	Outcome     MappingOutcome
}

// ExperienceMapping links a source experience to its target counterpart.
type ExperienceMapping struct {
	SourceUID        string
	TargetUID        string
	Name             string
	Description      string
	Type             personalize.ExperienceType
	LatestVersion    string
	Outcome          MappingOutcome
	VersionsMigrated int
}

// IdentifierTable resolves source identifiers to target identifiers.
// The first mapping registered for a source identifier wins.
type IdentifierTable struct {
	targets map[string]string
}

// NewIdentifierTable constructs an empty table.
func NewIdentifierTable() IdentifierTable {
	return IdentifierTable{targets: map[string]string{}}
}

// Add registers a mapping unless the source identifier is already known.
func (table IdentifierTable) Add(sourceUID string, targetUID string) {
	if _, exists := table.targets[sourceUID]; exists {
		return
	}
	table.targets[sourceUID] = targetUID
}

// Lookup returns the target identifier mapped to sourceUID.
func (table IdentifierTable) Lookup(sourceUID string) (string, bool) {
	targetUID, exists := table.targets[sourceUID]
	return targetUID, exists
}

// Len reports the number of mapped identifiers.
func (table IdentifierTable) Len() int {
	return len(table.targets)
}

// NewAttributeTable indexes attribute mappings by source identifier.
func NewAttributeTable(mappings []AttributeMapping) IdentifierTable {
	table := NewIdentifierTable()
	for _, mapping := range mappings {
		table.Add(mapping.SourceUID, mapping.TargetUID)
	}
	return table
}

// NewAudienceTable indexes audience mappings by source identifier.
func NewAudienceTable(mappings []AudienceMapping) IdentifierTable {
	table := NewIdentifierTable()
	for _, mapping := range mappings {
		table.Add(mapping.SourceUID, mapping.TargetUID)
	}
	return table
}

func countAttributesCreated(mappings []AttributeMapping) int {
	createdCount := 0
	for _, mapping := range mappings {
		if mapping.Outcome == MappingOutcomeCreated {
			createdCount++
		}
	}
	return createdCount
}

func countAudiencesCreated(mappings []AudienceMapping) int {
	createdCount := 0
	for _, mapping := range mappings {
		if mapping.Outcome == MappingOutcomeCreated {
			createdCount++
		}
	}
	return createdCount
}

func countExperiencesCreated(mappings []ExperienceMapping) (int, int) {
	createdCount := 0
	versionCount := 0
	for _, mapping := range mappings {
		if mapping.Outcome == MappingOutcomeCreated {
			createdCount++
		}
		versionCount += mapping.VersionsMigrated
	}
	return createdCount, versionCount
}
