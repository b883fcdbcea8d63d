package personalize

// ExperienceType distinguishes single-audience and multi-variant experiences.
type ExperienceType string

// Supported experience types.
const (
	ExperienceTypeSegmented ExperienceType = ExperienceType("SEGMENTED")
	ExperienceTypeABTest    ExperienceType = ExperienceType("AB_TEST")
)

// VersionStatus describes the lifecycle state of an experience version.
type VersionStatus string

// Supported version states.
const (
	VersionStatusDraft    VersionStatus = VersionStatus("DRAFT")
	VersionStatusActive   VersionStatus = VersionStatus("ACTIVE")
	VersionStatusArchived VersionStatus = VersionStatus("ARCHIVED")
	VersionStatusPaused   VersionStatus = VersionStatus("PAUSED")
)

// LatestVersionToken addresses the newest version slot when no identifier is known.
const LatestVersionToken = "latest"

// Attribute is a named, typed data field usable in audience rules.
type Attribute struct {
	UID         string `json:"uid"`
	Name        string `json:"name"`
	Key         string `json:"key"`
	Description string `json:"description,omitempty"`
	Type        string `json:"__type"`
}

// Audience is a named segment whose definition may reference attributes.
type Audience struct {
	UID         string `json:"uid"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Definition  any    `json:"definition"`
}

// Experience is a personalization campaign.
type Experience struct {
	UID           string         `json:"uid"`
	Name          string         `json:"name"`
	Description   string         `json:"description,omitempty"`
	Type          ExperienceType `json:"__type"`
	LatestVersion string         `json:"latestVersion,omitempty"`
}

// ExperienceVersion is an activatable configuration of an experience.
type ExperienceVersion struct {
	UID          string           `json:"uid"`
	Status       VersionStatus    `json:"status"`
	CreatedAt    string           `json:"createdAt,omitempty"`
	UpdatedAt    string           `json:"updatedAt,omitempty"`
	Variants     []map[string]any `json:"variants"`
	Targeting    any              `json:"targeting,omitempty"`
	Metrics      []any            `json:"metrics,omitempty"`
	VariantSplit string           `json:"variantSplit,omitempty"`
}

// AttributePayload is the body submitted when creating an attribute.
type AttributePayload struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Key         string `json:"key"`
}

// AudiencePayload is the body submitted when creating an audience.
type AudiencePayload struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Definition  any    `json:"definition"`
}

// ExperiencePayload is the body submitted when creating an experience.
type ExperiencePayload struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Type        ExperienceType `json:"__type"`
}

// VersionPayload is the body submitted when replacing an experience version.
// Its keys depend on the experience type, so it stays untyped.
type VersionPayload map[string]any
