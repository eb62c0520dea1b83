package services

import (
	"fmt"
	"strings"
	"time"

	"pricing-service/internal/models"
)

const (
	placeholderMissing = "Not specified"
	placeholderNone    = "None"
	reportDateLayout   = "January 02, 2006"
	generatedLayout    = "January 02, 2006 at 15:04"
)

// ReportLayout is the drawing-independent content of a submission report.
// The PDF renderer only places what the layout says, so the layout alone
// decides which text appears and in which order.
type ReportLayout struct {
	Title    string
	Subtitle string
	Footer   string
	Sections []ReportSection
}

type ReportSection struct {
	Heading string
	Rows    []ReportRow
}

// ReportRow is one labelled entry. Bullets marks a list value; a list with no
// items carries the "None" placeholder as a plain line instead.
type ReportRow struct {
	Label   string
	Lines   []string
	Bullets bool
}

// BuildReportLayout lays out the seven report sections for doc. Every field
// produces a row; missing values use placeholders so the layout is the same
// shape for every submission.
func BuildReportLayout(title string, doc models.SubmissionDocument, generatedAt time.Time) ReportLayout {
	layout := ReportLayout{
		Title:  title,
		Footer: "Generated on " + generatedAt.Format(generatedLayout),
	}
	if doc.ID != nil {
		layout.Subtitle = fmt.Sprintf("Submission #%d", *doc.ID)
	}

	layout.Sections = []ReportSection{
		{
			Heading: "1. Client Information",
			Rows: []ReportRow{
				textRow("Client Name", doc.ClientName),
				textRow("Client Type", doc.ClientType),
				textRow("Industry Sector", doc.IndustrySector),
				textRow("Company Size", doc.CompanySize),
				textRow("Annual Revenue", doc.AnnualRevenue),
				textRow("Primary Contact", doc.PrimaryContactName),
				textRow("Email", doc.Email),
				textRow("Phone Number", doc.PhoneNumber),
			},
		},
		{
			Heading: "2. Project Overview",
			Rows: []ReportRow{
				textRow("Project Title", doc.ProjectTitle),
				textRow("Project Description", doc.ProjectDescription),
				textRow("Business Objective", doc.BusinessObjective),
				listRow("Expected Deliverables", doc.Deliverables),
				listRow("Target Audience", doc.Audience),
			},
		},
		{
			Heading: "3. Technical Scope",
			Rows: []ReportRow{
				listRow("Data Sources", doc.DataSources),
				textRow("Volume of Data", doc.DataVolume),
				listRow("Required Integrations", doc.Integrations),
			},
		},
		{
			Heading: "4. Features & Functionalities",
			Rows: []ReportRow{
				listRow("Interactivity Needed", doc.Interactivity),
				listRow("User Access Levels", doc.AccessLevels),
				listRow("Customization Needs", doc.Customizations),
			},
		},
		{
			Heading: "5. Pricing Factors",
			Rows: []ReportRow{
				textRow("Engagement Type", doc.EngagementType),
				{
					Label: "Estimated Timeline",
					Lines: []string{
						"Start: " + formatReportDate(doc.EstimatedStartDate),
						"End: " + formatReportDate(doc.EstimatedEndDate),
					},
				},
				textRow("Delivery Model", doc.DeliveryModel),
				textRow("Support Plan Required", doc.SupportPlan),
			},
		},
		{
			Heading: "6. Competitive/Value-based Inputs",
			Rows: []ReportRow{
				textRow("Budget Range", doc.BudgetRange),
				textRow("Competitor Comparison", doc.CompetitorComparison),
				textRow("ROI Expectations", doc.ROIExpectations),
				boolRow("Tiered Pricing Model Needed", doc.TieredPricingNeeded),
				textRow("Tiered Pricing Details", doc.TieredPricingDetails),
			},
		},
		{
			Heading: "7. Analyst Notes & Recommendations",
			Rows: []ReportRow{
				textRow("Internal Analyst Notes", doc.AnalystNotes),
				textRow("Suggested Pricing Model", doc.SuggestedPricingModel),
				textRow("Risk Factors / Considerations", doc.RiskFactors),
				textRow("Suggested Next Steps", doc.NextSteps),
			},
		},
	}

	return layout
}

func textRow(label string, value *string) ReportRow {
	if value == nil || strings.TrimSpace(*value) == "" {
		return ReportRow{Label: label, Lines: []string{placeholderMissing}}
	}
	return ReportRow{Label: label, Lines: []string{*value}}
}

func listRow(label string, values *[]string) ReportRow {
	if values == nil || len(*values) == 0 {
		return ReportRow{Label: label, Lines: []string{placeholderNone}}
	}
	lines := make([]string, len(*values))
	copy(lines, *values)
	return ReportRow{Label: label, Lines: lines, Bullets: true}
}

func boolRow(label string, value *bool) ReportRow {
	switch {
	case value == nil:
		return ReportRow{Label: label, Lines: []string{placeholderMissing}}
	case *value:
		return ReportRow{Label: label, Lines: []string{"Yes"}}
	default:
		return ReportRow{Label: label, Lines: []string{"No"}}
	}
}

// formatReportDate renders an ISO date in long form. Absent or malformed
// dates use the placeholder.
func formatReportDate(value *string) string {
	if value == nil || *value == "" {
		return placeholderMissing
	}
	t, err := time.Parse(models.ISODateLayout, *value)
	if err != nil {
		return placeholderMissing
	}
	return t.Format(reportDateLayout)
}

// Text renders the layout as plain text, one row per line. Bulleted items
// are prefixed with "- ".
func (l ReportLayout) Text() string {
	var b strings.Builder
	b.WriteString(l.Title + "\n")
	if l.Subtitle != "" {
		b.WriteString(l.Subtitle + "\n")
	}
	b.WriteString(l.Footer + "\n")

	for _, section := range l.Sections {
		b.WriteString("\n" + section.Heading + "\n")
		for _, row := range section.Rows {
			if !row.Bullets && len(row.Lines) == 1 {
				fmt.Fprintf(&b, "  %s: %s\n", row.Label, row.Lines[0])
				continue
			}
			fmt.Fprintf(&b, "  %s:\n", row.Label)
			for _, line := range row.Lines {
				if row.Bullets {
					line = "- " + line
				}
				fmt.Fprintf(&b, "    %s\n", line)
			}
		}
	}
	return b.String()
}
