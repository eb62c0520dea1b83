// Package codec maps between the nested submission document exchanged over the
// API and the flat relational form kept by the repository: one scalar row plus
// one ordered value list per tag category.
package codec

import (
	"pricing-service/internal/models"
)

// optionalString binds a nullable text column to its document and record slots.
type optionalString struct {
	column string
	doc    func(*models.SubmissionDocument) **string
	record func(*models.SubmissionRecord) **string
}

var optionalStrings = []optionalString{
	{"industry_sector", func(d *models.SubmissionDocument) **string { return &d.IndustrySector }, func(r *models.SubmissionRecord) **string { return &r.IndustrySector }},
	{"company_size", func(d *models.SubmissionDocument) **string { return &d.CompanySize }, func(r *models.SubmissionRecord) **string { return &r.CompanySize }},
	{"annual_revenue", func(d *models.SubmissionDocument) **string { return &d.AnnualRevenue }, func(r *models.SubmissionRecord) **string { return &r.AnnualRevenue }},
	{"primary_contact_name", func(d *models.SubmissionDocument) **string { return &d.PrimaryContactName }, func(r *models.SubmissionRecord) **string { return &r.PrimaryContactName }},
	{"email", func(d *models.SubmissionDocument) **string { return &d.Email }, func(r *models.SubmissionRecord) **string { return &r.Email }},
	{"phone_number", func(d *models.SubmissionDocument) **string { return &d.PhoneNumber }, func(r *models.SubmissionRecord) **string { return &r.PhoneNumber }},
	{"project_title", func(d *models.SubmissionDocument) **string { return &d.ProjectTitle }, func(r *models.SubmissionRecord) **string { return &r.ProjectTitle }},
	{"project_description", func(d *models.SubmissionDocument) **string { return &d.ProjectDescription }, func(r *models.SubmissionRecord) **string { return &r.ProjectDescription }},
	{"business_objective", func(d *models.SubmissionDocument) **string { return &d.BusinessObjective }, func(r *models.SubmissionRecord) **string { return &r.BusinessObjective }},
	{"data_volume", func(d *models.SubmissionDocument) **string { return &d.DataVolume }, func(r *models.SubmissionRecord) **string { return &r.DataVolume }},
	{"engagement_type", func(d *models.SubmissionDocument) **string { return &d.EngagementType }, func(r *models.SubmissionRecord) **string { return &r.EngagementType }},
	{"delivery_model", func(d *models.SubmissionDocument) **string { return &d.DeliveryModel }, func(r *models.SubmissionRecord) **string { return &r.DeliveryModel }},
	{"support_plan", func(d *models.SubmissionDocument) **string { return &d.SupportPlan }, func(r *models.SubmissionRecord) **string { return &r.SupportPlan }},
	{"budget_range", func(d *models.SubmissionDocument) **string { return &d.BudgetRange }, func(r *models.SubmissionRecord) **string { return &r.BudgetRange }},
	{"competitor_comparison", func(d *models.SubmissionDocument) **string { return &d.CompetitorComparison }, func(r *models.SubmissionRecord) **string { return &r.CompetitorComparison }},
	{"roi_expectations", func(d *models.SubmissionDocument) **string { return &d.ROIExpectations }, func(r *models.SubmissionRecord) **string { return &r.ROIExpectations }},
	{"tiered_pricing_details", func(d *models.SubmissionDocument) **string { return &d.TieredPricingDetails }, func(r *models.SubmissionRecord) **string { return &r.TieredPricingDetails }},
	{"analyst_notes", func(d *models.SubmissionDocument) **string { return &d.AnalystNotes }, func(r *models.SubmissionRecord) **string { return &r.AnalystNotes }},
	{"suggested_pricing_model", func(d *models.SubmissionDocument) **string { return &d.SuggestedPricingModel }, func(r *models.SubmissionRecord) **string { return &r.SuggestedPricingModel }},
	{"risk_factors", func(d *models.SubmissionDocument) **string { return &d.RiskFactors }, func(r *models.SubmissionRecord) **string { return &r.RiskFactors }},
	{"next_steps", func(d *models.SubmissionDocument) **string { return &d.NextSteps }, func(r *models.SubmissionRecord) **string { return &r.NextSteps }},
}

// Encode validates a complete document and flattens it into a scalar record and
// its tag values. Absent tag categories encode as empty lists. It has no side
// effects; ID and timestamps are left for the repository to assign.
func Encode(doc models.SubmissionDocument) (models.SubmissionRecord, models.TagSet, error) {
	if err := validate.Struct(rulesFor(&doc)); err != nil {
		return models.SubmissionRecord{}, nil, toValidationErrors(err)
	}

	record := models.SubmissionRecord{
		ClientName:          *doc.ClientName,
		ClientType:          *doc.ClientType,
		TieredPricingNeeded: cloneBool(doc.TieredPricingNeeded),
	}
	for _, f := range optionalStrings {
		*f.record(&record) = cloneString(*f.doc(&doc))
	}

	var err error
	if record.EstimatedStartDate, err = parseDate("estimated_start_date", doc.EstimatedStartDate); err != nil {
		return models.SubmissionRecord{}, nil, err
	}
	if record.EstimatedEndDate, err = parseDate("estimated_end_date", doc.EstimatedEndDate); err != nil {
		return models.SubmissionRecord{}, nil, err
	}

	tags := make(models.TagSet, len(models.TagCategories))
	for _, category := range models.TagCategories {
		if values := *doc.Tags(category); values != nil {
			tags[category] = cloneTags(*values)
		} else {
			tags[category] = []string{}
		}
	}

	return record, tags, nil
}

// EncodePatch validates the fields present in a partial document and returns
// only those, keyed by column. Tag categories present in the document are
// returned whole and replace the stored set; absent ones stay untouched.
func EncodePatch(doc models.SubmissionDocument) (models.SubmissionPatch, error) {
	if present := presentRuleFields(&doc); len(present) > 0 {
		if err := validate.StructPartial(rulesFor(&doc), present...); err != nil {
			return models.SubmissionPatch{}, toValidationErrors(err)
		}
	}

	patch := models.SubmissionPatch{
		Fields: map[string]any{},
		Tags:   models.TagSet{},
	}

	if doc.ClientName != nil {
		patch.Fields["client_name"] = *doc.ClientName
	}
	if doc.ClientType != nil {
		patch.Fields["client_type"] = *doc.ClientType
	}
	for _, f := range optionalStrings {
		if v := *f.doc(&doc); v != nil {
			patch.Fields[f.column] = *v
		}
	}
	if doc.TieredPricingNeeded != nil {
		patch.Fields["tiered_pricing_needed"] = *doc.TieredPricingNeeded
	}
	if doc.EstimatedStartDate != nil {
		d, err := parseDate("estimated_start_date", doc.EstimatedStartDate)
		if err != nil {
			return models.SubmissionPatch{}, err
		}
		patch.Fields["estimated_start_date"] = d
	}
	if doc.EstimatedEndDate != nil {
		d, err := parseDate("estimated_end_date", doc.EstimatedEndDate)
		if err != nil {
			return models.SubmissionPatch{}, err
		}
		patch.Fields["estimated_end_date"] = d
	}

	for _, category := range models.TagCategories {
		if values := *doc.Tags(category); values != nil {
			patch.Tags[category] = cloneTags(*values)
		}
	}

	if patch.IsEmpty() {
		return models.SubmissionPatch{}, models.ValidationErrors{{Message: "no fields to update"}}
	}
	return patch, nil
}

// Decode rebuilds the API document from a stored row and its tags. Every tag
// category is present as a list, in the order the store returned it.
func Decode(record models.SubmissionRecord, tags models.TagSet) models.SubmissionDocument {
	id := record.ID
	createdAt := record.CreatedAt
	updatedAt := record.UpdatedAt

	doc := models.SubmissionDocument{
		ID:                  &id,
		CreatedAt:           &createdAt,
		UpdatedAt:           &updatedAt,
		ClientName:          cloneString(&record.ClientName),
		ClientType:          cloneString(&record.ClientType),
		TieredPricingNeeded: cloneBool(record.TieredPricingNeeded),
		EstimatedStartDate:  formatDate(record.EstimatedStartDate),
		EstimatedEndDate:    formatDate(record.EstimatedEndDate),
	}
	for _, f := range optionalStrings {
		*f.doc(&doc) = cloneString(*f.record(&record))
	}
	for _, category := range models.TagCategories {
		values := cloneTags(tags.Get(category))
		*doc.Tags(category) = &values
	}

	return doc
}

// DecodeStored is Decode over a repository result.
func DecodeStored(s models.StoredSubmission) models.SubmissionDocument {
	return Decode(s.Record, s.Tags)
}

// parseDate treats nil and "" as no date. Callers validate the layout first;
// the error path guards direct use.
func parseDate(field string, s *string) (models.NullDate, error) {
	if s == nil || *s == "" {
		return models.NullDate{}, nil
	}
	d, err := models.ParseNullDate(*s)
	if err != nil {
		return models.NullDate{}, models.ValidationErrors{{
			Field:   field,
			Message: "must be an ISO calendar date (YYYY-MM-DD)",
		}}
	}
	return d, nil
}

func formatDate(d models.NullDate) *string {
	if !d.Valid {
		return nil
	}
	s := d.String()
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneBool(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}

func cloneTags(values []string) []string {
	out := make([]string, len(values))
	copy(out, values)
	return out
}
