package services

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"pricing-service/internal/config"
	"pricing-service/internal/models"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// TEST HELPERS
// ============================================================================

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func tagsPtr(values ...string) *[]string { return &values }

var reportTime = time.Date(2025, 2, 3, 14, 5, 9, 0, time.UTC)

func createReportDocument() models.SubmissionDocument {
	id := int64(42)
	return models.SubmissionDocument{
		ID:                   &id,
		ClientName:           strPtr("Acme"),
		ClientType:           strPtr("B2B"),
		IndustrySector:       strPtr("Retail"),
		AnnualRevenue:        strPtr("$10M-$50M"),
		PrimaryContactName:   strPtr("Jordan Lee"),
		Email:                strPtr("jordan@acme.test"),
		ProjectTitle:         strPtr("Sales cockpit"),
		ProjectDescription:   strPtr("Unified sales dashboards"),
		Deliverables:         tagsPtr("Dashboard", "Report"),
		Audience:             tagsPtr(),
		DataSources:          tagsPtr("PostgreSQL", "Salesforce"),
		DataVolume:           strPtr("10-100 GB"),
		Interactivity:        tagsPtr("Filters"),
		AccessLevels:         tagsPtr("Admin", "Viewer"),
		Customizations:       tagsPtr(),
		EngagementType:       strPtr("Fixed price"),
		EstimatedStartDate:   strPtr("2025-02-01"),
		DeliveryModel:        strPtr("Remote"),
		SupportPlan:          strPtr("  "),
		BudgetRange:          strPtr("$50k-$100k"),
		ROIExpectations:      strPtr("Payback in 6 months"),
		TieredPricingNeeded:  boolPtr(true),
		TieredPricingDetails: strPtr("Per-seat above 50 users"),
		AnalystNotes:         strPtr("Strong fit"),
		RiskFactors:          strPtr("Data quality unknown"),
		NextSteps:            strPtr("Schedule discovery call"),
	}
}

func newTestReportService() *ReportService {
	s := NewReportService(config.ReportConfig{Title: "Data Visualization Pricing Analysis", Compress: false})
	s.now = func() time.Time { return reportTime }
	return s
}

func findRow(t *testing.T, layout ReportLayout, label string) ReportRow {
	t.Helper()
	for _, section := range layout.Sections {
		for _, row := range section.Rows {
			if row.Label == label {
				return row
			}
		}
	}
	t.Fatalf("row %q not found", label)
	return ReportRow{}
}

// ============================================================================
// TEST SUITE 1: LAYOUT
// ============================================================================

func TestBuildReportLayout_Golden(t *testing.T) {
	layout := BuildReportLayout("Data Visualization Pricing Analysis", createReportDocument(), reportTime)

	g := goldie.New(t)
	g.Assert(t, "report_layout", []byte(layout.Text()))
}

func TestBuildReportLayout_SectionOrder(t *testing.T) {
	layout := BuildReportLayout("Report", models.SubmissionDocument{}, reportTime)

	headings := make([]string, len(layout.Sections))
	for i, s := range layout.Sections {
		headings[i] = s.Heading
	}
	assert.Equal(t, []string{
		"1. Client Information",
		"2. Project Overview",
		"3. Technical Scope",
		"4. Features & Functionalities",
		"5. Pricing Factors",
		"6. Competitive/Value-based Inputs",
		"7. Analyst Notes & Recommendations",
	}, headings)
}

func TestBuildReportLayout_StableShapeForEmptyDocument(t *testing.T) {
	full := BuildReportLayout("Report", createReportDocument(), reportTime)
	empty := BuildReportLayout("Report", models.SubmissionDocument{}, reportTime)

	require.Len(t, empty.Sections, len(full.Sections))
	for i := range full.Sections {
		require.Len(t, empty.Sections[i].Rows, len(full.Sections[i].Rows))
		for j, row := range empty.Sections[i].Rows {
			assert.Equal(t, full.Sections[i].Rows[j].Label, row.Label)
			assert.NotEmpty(t, row.Lines)
		}
	}
	assert.Empty(t, empty.Subtitle)
	assert.Equal(t, []string{"Not specified"}, findRow(t, empty, "Client Name").Lines)
	assert.Equal(t, []string{"None"}, findRow(t, empty, "Expected Deliverables").Lines)
	assert.Equal(t, []string{"Not specified"}, findRow(t, empty, "Tiered Pricing Model Needed").Lines)
}

func TestBuildReportLayout_Dates(t *testing.T) {
	doc := models.SubmissionDocument{
		EstimatedStartDate: strPtr("2025-12-31"),
		EstimatedEndDate:   strPtr("31/12/2025"),
	}

	row := findRow(t, BuildReportLayout("Report", doc, reportTime), "Estimated Timeline")
	assert.Equal(t, []string{"Start: December 31, 2025", "End: Not specified"}, row.Lines)
}

func TestBuildReportLayout_TieredPricingNo(t *testing.T) {
	doc := models.SubmissionDocument{TieredPricingNeeded: boolPtr(false)}

	row := findRow(t, BuildReportLayout("Report", doc, reportTime), "Tiered Pricing Model Needed")
	assert.Equal(t, []string{"No"}, row.Lines)
}

// ============================================================================
// TEST SUITE 2: PDF RENDERING
// ============================================================================

func TestRender_ProducesVerifiedPDF(t *testing.T) {
	report, err := newTestReportService().Render(createReportDocument())
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(report.Data, []byte("%PDF-")))
	assert.GreaterOrEqual(t, report.Pages, 1)
	assert.Equal(t, "submission_42_20250203_140509.pdf", report.FileName)
	assert.Equal(t, reportTime, report.GeneratedAt)

	assert.True(t, bytes.Contains(report.Data, []byte("Client Information")))
	assert.True(t, bytes.Contains(report.Data, []byte("Acme")))
	assert.True(t, bytes.Contains(report.Data, []byte("Analyst Notes")))
}

func TestRender_LongTextSpansPages(t *testing.T) {
	doc := createReportDocument()
	doc.ProjectDescription = strPtr(strings.Repeat("A long description of the engagement. ", 400))
	doc.AnalystNotes = strPtr(strings.Repeat("Unbroken", 80))

	report, err := newTestReportService().Render(doc)
	require.NoError(t, err)
	assert.Greater(t, report.Pages, 1)
}

func TestRender_NonLatinTextDoesNotFail(t *testing.T) {
	doc := createReportDocument()
	doc.ClientName = strPtr("Café Ünïcode – 東京")

	report, err := newTestReportService().Render(doc)
	require.NoError(t, err)
	assert.NotEmpty(t, report.Data)
}

func TestRender_CompressedOutputIsValid(t *testing.T) {
	s := NewReportService(config.ReportConfig{Title: "Report", Compress: true})

	report, err := s.Render(createReportDocument())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, report.Pages, 1)
}
