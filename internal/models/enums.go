package models

// TagCategory names one of the multi-valued submission fields. The value is
// both the JSON field name and the suffix of its tag table.
type TagCategory string

const (
	TagDeliverables   TagCategory = "deliverables"
	TagAudience       TagCategory = "audience"
	TagDataSources    TagCategory = "data_sources"
	TagIntegrations   TagCategory = "integrations"
	TagInteractivity  TagCategory = "interactivity"
	TagAccessLevels   TagCategory = "access_levels"
	TagCustomizations TagCategory = "customizations"
)

// TagCategories is the fixed iteration order for tag categories.
var TagCategories = []TagCategory{
	TagDeliverables,
	TagAudience,
	TagDataSources,
	TagIntegrations,
	TagInteractivity,
	TagAccessLevels,
	TagCustomizations,
}

// Table returns the tag table backing the category.
func (c TagCategory) Table() string {
	return "submission_" + string(c)
}

// TagSet maps a category to its values in retrieval order.
type TagSet map[TagCategory][]string

// Get returns the values of a category, never nil.
func (t TagSet) Get(category TagCategory) []string {
	if values, ok := t[category]; ok && values != nil {
		return values
	}
	return []string{}
}

type SubmissionEventType string

const (
	EventSubmissionCreated SubmissionEventType = "submission.created"
	EventSubmissionUpdated SubmissionEventType = "submission.updated"
	EventSubmissionDeleted SubmissionEventType = "submission.deleted"
	EventReportGenerated   SubmissionEventType = "submission.report_generated"
)
