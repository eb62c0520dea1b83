package codec

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"pricing-service/internal/models"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// documentRules is the subset of a document that carries validation rules.
// Field names resolve to the JSON names through the tag name func.
type documentRules struct {
	ClientName         string `json:"client_name" validate:"required,notblank"`
	ClientType         string `json:"client_type" validate:"required,notblank"`
	EstimatedStartDate string `json:"estimated_start_date" validate:"omitempty,isodate"`
	EstimatedEndDate   string `json:"estimated_end_date" validate:"omitempty,isodate"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// Registration only fails for empty tags or nil funcs.
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(models.ISODateLayout, fl.Field().String())
		return err == nil
	})
	return v
}

func rulesFor(doc *models.SubmissionDocument) documentRules {
	return documentRules{
		ClientName:         deref(doc.ClientName),
		ClientType:         deref(doc.ClientType),
		EstimatedStartDate: deref(doc.EstimatedStartDate),
		EstimatedEndDate:   deref(doc.EstimatedEndDate),
	}
}

// presentRuleFields returns the documentRules fields the document sets, for
// partial validation of updates.
func presentRuleFields(doc *models.SubmissionDocument) []string {
	present := []string{}
	if doc.ClientName != nil {
		present = append(present, "ClientName")
	}
	if doc.ClientType != nil {
		present = append(present, "ClientType")
	}
	if doc.EstimatedStartDate != nil {
		present = append(present, "EstimatedStartDate")
	}
	if doc.EstimatedEndDate != nil {
		present = append(present, "EstimatedEndDate")
	}
	return present
}

func toValidationErrors(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	out := make(models.ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, models.ValidationError{
			Field:   fe.Field(),
			Message: ruleMessage(fe),
		})
	}
	return out
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "is required"
	case "isodate":
		return "must be an ISO calendar date (YYYY-MM-DD)"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}
