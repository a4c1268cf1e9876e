package feature

// Audiences a snapshot can be resolved for. Portal sessions always resolve
// against the secure audience; the public audience serves anonymous pages.
const (
	AudienceSecure = "secure"
	AudiencePublic = "public"
)

// Feature codes known to the gateway. The backend owns the full catalog;
// these are the ones portal code branches on.
const (
	CodeTeacherRosterGroups = "teacherRosterGroups"
	CodeStudentSelfEnroll   = "studentSelfEnroll"
	CodeAssistantGrading    = "assistantGrading"
	CodeLiveClassrooms      = "liveClassrooms"
)

// Entitlement keys.
const (
	EntStudentLimit   = "student_limit"
	EntStorageQuotaMB = "storage_quota_mb"
)

// Context identifies the principal scope a snapshot is resolved for.
// It is derived from session state at call time, never cached.
type Context struct {
	Tenant   string
	Role     string
	Audience string
}

// Snapshot is the complete set of resolved features and entitlements for one
// principal context at one point in time. It is replaced wholesale on every
// successful refresh, never merged.
type Snapshot struct {
	Features     map[string]bool        `json:"features"`
	Entitlements map[string]interface{} `json:"entitlements"`
	Plan         string                 `json:"plan"`
	Version      int                    `json:"version"`

	// Fallback marks a snapshot synthesized locally after a fetch failure;
	// all features resolve disabled.
	Fallback bool `json:"fallback"`
}

// EventFeaturesInvalidated is the only push event the gateway acts on.
const EventFeaturesInvalidated = "featuresInvalidated"

// InvalidationEvent is the inbound push message indicating a tenant's feature
// configuration changed and cached snapshots should be refreshed.
type InvalidationEvent struct {
	Event  string `json:"event"`
	Tenant string `json:"tenant"`
}
