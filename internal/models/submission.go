package models

import (
	"time"
)

// ============================================================================
// API DOCUMENT
// ============================================================================

// SubmissionDocument is the nested shape exchanged over the API. Pointer fields
// distinguish "not provided" from zero values so the same type serves create,
// partial update and read.
type SubmissionDocument struct {
	ID        *int64     `json:"id,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`

	// Client Information
	ClientName         *string `json:"client_name"`
	ClientType         *string `json:"client_type"`
	IndustrySector     *string `json:"industry_sector"`
	CompanySize        *string `json:"company_size"`
	AnnualRevenue      *string `json:"annual_revenue"`
	PrimaryContactName *string `json:"primary_contact_name"`
	Email              *string `json:"email"`
	PhoneNumber        *string `json:"phone_number"`

	// Project Overview
	ProjectTitle       *string   `json:"project_title"`
	ProjectDescription *string   `json:"project_description"`
	BusinessObjective  *string   `json:"business_objective"`
	Deliverables       *[]string `json:"deliverables"`
	Audience           *[]string `json:"audience"`

	// Technical Scope
	DataSources  *[]string `json:"data_sources"`
	DataVolume   *string   `json:"data_volume"`
	Integrations *[]string `json:"integrations"`

	// Features & Functionalities
	Interactivity  *[]string `json:"interactivity"`
	AccessLevels   *[]string `json:"access_levels"`
	Customizations *[]string `json:"customizations"`

	// Pricing Factors
	EngagementType     *string `json:"engagement_type"`
	EstimatedStartDate *string `json:"estimated_start_date"`
	EstimatedEndDate   *string `json:"estimated_end_date"`
	DeliveryModel      *string `json:"delivery_model"`
	SupportPlan        *string `json:"support_plan"`

	// Competitive/Value-based Inputs
	BudgetRange          *string `json:"budget_range"`
	CompetitorComparison *string `json:"competitor_comparison"`
	ROIExpectations      *string `json:"roi_expectations"`
	TieredPricingNeeded  *bool   `json:"tiered_pricing_needed"`
	TieredPricingDetails *string `json:"tiered_pricing_details"`

	// Analyst Notes & Recommendations
	AnalystNotes          *string `json:"analyst_notes"`
	SuggestedPricingModel *string `json:"suggested_pricing_model"`
	RiskFactors           *string `json:"risk_factors"`
	NextSteps             *string `json:"next_steps"`
}

// Tags returns a pointer to the document slot that holds the given category.
func (d *SubmissionDocument) Tags(category TagCategory) **[]string {
	switch category {
	case TagDeliverables:
		return &d.Deliverables
	case TagAudience:
		return &d.Audience
	case TagDataSources:
		return &d.DataSources
	case TagIntegrations:
		return &d.Integrations
	case TagInteractivity:
		return &d.Interactivity
	case TagAccessLevels:
		return &d.AccessLevels
	case TagCustomizations:
		return &d.Customizations
	default:
		return nil
	}
}

// ============================================================================
// STORAGE ROW
// ============================================================================

// SubmissionRecord is the flat scalar row of the submissions table.
type SubmissionRecord struct {
	ID        int64     `json:"id" db:"id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	ClientName         string  `json:"client_name" db:"client_name"`
	ClientType         string  `json:"client_type" db:"client_type"`
	IndustrySector     *string `json:"industry_sector,omitempty" db:"industry_sector"`
	CompanySize        *string `json:"company_size,omitempty" db:"company_size"`
	AnnualRevenue      *string `json:"annual_revenue,omitempty" db:"annual_revenue"`
	PrimaryContactName *string `json:"primary_contact_name,omitempty" db:"primary_contact_name"`
	Email              *string `json:"email,omitempty" db:"email"`
	PhoneNumber        *string `json:"phone_number,omitempty" db:"phone_number"`

	ProjectTitle       *string `json:"project_title,omitempty" db:"project_title"`
	ProjectDescription *string `json:"project_description,omitempty" db:"project_description"`
	BusinessObjective  *string `json:"business_objective,omitempty" db:"business_objective"`
	DataVolume         *string `json:"data_volume,omitempty" db:"data_volume"`

	EngagementType     *string  `json:"engagement_type,omitempty" db:"engagement_type"`
	EstimatedStartDate NullDate `json:"estimated_start_date" db:"estimated_start_date"`
	EstimatedEndDate   NullDate `json:"estimated_end_date" db:"estimated_end_date"`
	DeliveryModel      *string  `json:"delivery_model,omitempty" db:"delivery_model"`
	SupportPlan        *string  `json:"support_plan,omitempty" db:"support_plan"`

	BudgetRange          *string `json:"budget_range,omitempty" db:"budget_range"`
	CompetitorComparison *string `json:"competitor_comparison,omitempty" db:"competitor_comparison"`
	ROIExpectations      *string `json:"roi_expectations,omitempty" db:"roi_expectations"`
	TieredPricingNeeded  *bool   `json:"tiered_pricing_needed,omitempty" db:"tiered_pricing_needed"`
	TieredPricingDetails *string `json:"tiered_pricing_details,omitempty" db:"tiered_pricing_details"`

	AnalystNotes          *string `json:"analyst_notes,omitempty" db:"analyst_notes"`
	SuggestedPricingModel *string `json:"suggested_pricing_model,omitempty" db:"suggested_pricing_model"`
	RiskFactors           *string `json:"risk_factors,omitempty" db:"risk_factors"`
	NextSteps             *string `json:"next_steps,omitempty" db:"next_steps"`
}

// SubmissionColumns lists the writable scalar columns in table order.
var SubmissionColumns = []string{
	"client_name", "client_type", "industry_sector", "company_size", "annual_revenue",
	"primary_contact_name", "email", "phone_number",
	"project_title", "project_description", "business_objective", "data_volume",
	"engagement_type", "estimated_start_date", "estimated_end_date", "delivery_model", "support_plan",
	"budget_range", "competitor_comparison", "roi_expectations", "tiered_pricing_needed", "tiered_pricing_details",
	"analyst_notes", "suggested_pricing_model", "risk_factors", "next_steps",
}

// SubmissionPatch is the flat form of a partial update. Only columns and tag
// categories present in the incoming document appear here.
type SubmissionPatch struct {
	Fields map[string]any
	Tags   TagSet
}

// IsEmpty reports whether the patch would change nothing besides updated_at.
func (p SubmissionPatch) IsEmpty() bool {
	return len(p.Fields) == 0 && len(p.Tags) == 0
}

// StoredSubmission is a scalar row together with its tag rows.
type StoredSubmission struct {
	Record SubmissionRecord
	Tags   TagSet
}
