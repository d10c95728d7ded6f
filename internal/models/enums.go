package models

// Content item types.
const (
	ContentTypeArticle     = "article"
	ContentTypeSlideshow   = "slideshow"
	ContentTypeVideo       = "video"
	ContentTypePodcast     = "podcast"
	ContentTypeInteractive = "interactive"
)

// Content item provenances.
const (
	ProvenanceManual = "manual"
	ProvenanceRecipe = "recipe"
)

// Event statuses. Deleted is a soft-delete marker; the row stays so that
// re-ingestion of the same upstream source does not create a duplicate.
const (
	EventStatusPending  = "pending"
	EventStatusApproved = "approved"
	EventStatusDeleted  = "deleted"
)

// Tag types.
const (
	TagTypeImpact  = "impact"
	TagTypeSubject = "subject"
)

// All is accepted wherever a filter may be switched off explicitly.
const All = "all"

var (
	ContentItemTypes       = []string{ContentTypeArticle, ContentTypeSlideshow, ContentTypeVideo, ContentTypePodcast, ContentTypeInteractive}
	ContentItemProvenances = []string{ProvenanceManual, ProvenanceRecipe}
	EventStatuses          = []string{EventStatusPending, EventStatusApproved, EventStatusDeleted}
	TagTypes               = []string{TagTypeImpact, TagTypeSubject}
	TagCategories          = []string{"promotion", "citation", "change", "achievement", "other"}
	TagLevels              = []string{"individual", "community", "institution", "media", "internal"}

	// ContentSearchVectors name the full-text vectors a content search can
	// run against. "all" is the union of every other vector.
	ContentSearchVectors = []string{All, "title", "body", "description", "meta", "authors"}
)

// Contains reports whether v is one of values.
func Contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

// Strings converts a []string to []any, as ozzo's In rule expects.
func Strings(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
