package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pricing-service/internal/models"
	"pricing-service/internal/repository"
	"pricing-service/internal/services"
	"pricing-service/internal/utils"

	"github.com/gofiber/fiber/v3"
)

const idempotencyHeader = "Idempotency-Key"

type SubmissionHandler struct {
	submissionService *services.SubmissionService
}

func NewSubmissionHandler(submissionService *services.SubmissionService) *SubmissionHandler {
	return &SubmissionHandler{
		submissionService: submissionService,
	}
}

func (sh *SubmissionHandler) Register(router fiber.Router) {
	submissionGroup := router.Group("/submissions")

	submissionGroup.Post("/", sh.CreateSubmission)
	submissionGroup.Get("/", sh.ListSubmissions)

	// Stats routes are registered before /:id so "stats" is never parsed as an id
	submissionGroup.Get("/stats", sh.GetStats)
	submissionGroup.Get("/stats/:field", sh.GetFieldBreakdown)

	submissionGroup.Get("/:id", sh.GetSubmission)
	submissionGroup.Put("/:id", sh.UpdateSubmission)
	submissionGroup.Delete("/:id", sh.DeleteSubmission)
	submissionGroup.Get("/:id/pdf", sh.GetSubmissionPDF)
	submissionGroup.Get("/:id/reports", sh.ListSubmissionReports)
}

// ============================================================================
// CRUD
// ============================================================================

func (sh *SubmissionHandler) CreateSubmission(c fiber.Ctx) error {
	var doc models.SubmissionDocument
	if err := c.Bind().Body(&doc); err != nil {
		slog.Error("error parsing request", "error", err)
		return c.Status(http.StatusBadRequest).JSON(utils.CreateErrorResponse("INVALID_REQUEST", "Invalid request body"))
	}

	id, replayed, err := sh.submissionService.Create(c.Context(), doc, c.Get(idempotencyHeader))
	if err != nil {
		return writeServiceError(c, err, "CREATION_FAILED")
	}

	status := http.StatusCreated
	if replayed {
		status = http.StatusOK
	}
	return c.Status(status).JSON(utils.CreateSuccessResponse(fiber.Map{"id": id}))
}

func (sh *SubmissionHandler) ListSubmissions(c fiber.Ctx) error {
	filter, err := parseListFilter(c)
	if err != nil {
		return writeServiceError(c, err, "INVALID_FILTER")
	}

	docs, err := sh.submissionService.List(c.Context(), filter)
	if err != nil {
		return writeServiceError(c, err, "FETCH_FAILED")
	}

	return c.Status(http.StatusOK).JSON(utils.CreateListResponse(docs))
}

func (sh *SubmissionHandler) GetSubmission(c fiber.Ctx) error {
	id, err := parseSubmissionID(c.Params("id"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(utils.CreateErrorResponse("INVALID_ID", err.Error()))
	}

	doc, err := sh.submissionService.Get(c.Context(), id)
	if err != nil {
		return writeServiceError(c, err, "FETCH_FAILED")
	}

	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(doc))
}

func (sh *SubmissionHandler) UpdateSubmission(c fiber.Ctx) error {
	id, err := parseSubmissionID(c.Params("id"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(utils.CreateErrorResponse("INVALID_ID", err.Error()))
	}

	var doc models.SubmissionDocument
	if err := c.Bind().Body(&doc); err != nil {
		slog.Error("error parsing request", "error", err)
		return c.Status(http.StatusBadRequest).JSON(utils.CreateErrorResponse("INVALID_REQUEST", "Invalid request body"))
	}

	updated, err := sh.submissionService.Update(c.Context(), id, doc)
	if err != nil {
		return writeServiceError(c, err, "UPDATE_FAILED")
	}

	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(updated))
}

func (sh *SubmissionHandler) DeleteSubmission(c fiber.Ctx) error {
	id, err := parseSubmissionID(c.Params("id"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(utils.CreateErrorResponse("INVALID_ID", err.Error()))
	}

	if err := sh.submissionService.Delete(c.Context(), id); err != nil {
		return writeServiceError(c, err, "DELETE_FAILED")
	}

	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(map[string]string{
		"message": "Submission deleted successfully",
	}))
}

// ============================================================================
// STATISTICS
// ============================================================================

func (sh *SubmissionHandler) GetStats(c fiber.Ctx) error {
	stats, err := sh.submissionService.Stats(c.Context())
	if err != nil {
		return writeServiceError(c, err, "STATS_FAILED")
	}

	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(stats))
}

func (sh *SubmissionHandler) GetFieldBreakdown(c fiber.Ctx) error {
	breakdown, err := sh.submissionService.Breakdown(c.Context(), c.Params("field"))
	if err != nil {
		return writeServiceError(c, err, "STATS_FAILED")
	}

	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(breakdown))
}

// ============================================================================
// REPORTS
// ============================================================================

func (sh *SubmissionHandler) GetSubmissionPDF(c fiber.Ctx) error {
	id, err := parseSubmissionID(c.Params("id"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(utils.CreateErrorResponse("INVALID_ID", err.Error()))
	}

	report, err := sh.submissionService.Report(c.Context(), id)
	if err != nil {
		return writeServiceError(c, err, "REPORT_FAILED")
	}

	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", report.FileName))
	c.Set("X-Report-Pages", strconv.Itoa(report.Pages))
	if report.ObjectName != "" {
		c.Set("X-Report-Object", report.ObjectName)
	}
	return c.Status(http.StatusOK).Send(report.Data)
}

func (sh *SubmissionHandler) ListSubmissionReports(c fiber.Ctx) error {
	id, err := parseSubmissionID(c.Params("id"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(utils.CreateErrorResponse("INVALID_ID", err.Error()))
	}

	reports, err := sh.submissionService.ListReports(c.Context(), id)
	if err != nil {
		return writeServiceError(c, err, "FETCH_FAILED")
	}

	return c.Status(http.StatusOK).JSON(utils.CreateListResponse(reports))
}

// ============================================================================
// HELPERS
// ============================================================================

func parseSubmissionID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid submission ID %q: must be a positive integer", raw)
	}
	return id, nil
}

// parseListFilter reads the list query parameters. Dates are YYYY-MM-DD or
// RFC3339; a created_to given as a date covers that whole day.
func parseListFilter(c fiber.Ctx) (repository.ListFilter, error) {
	filter := repository.ListFilter{
		ClientType: strings.TrimSpace(c.Query("client_type")),
		ClientName: strings.TrimSpace(c.Query("client_name")),
	}
	var verrs models.ValidationErrors

	for _, sector := range strings.Split(c.Query("industry_sector"), ",") {
		if sector = strings.TrimSpace(sector); sector != "" {
			filter.IndustrySectors = append(filter.IndustrySectors, sector)
		}
	}

	if raw := c.Query("created_from"); raw != "" {
		from, _, err := parseFilterTime(raw)
		if err != nil {
			verrs = append(verrs, models.ValidationError{Field: "created_from", Message: err.Error()})
		}
		filter.CreatedFrom = from
	}
	if raw := c.Query("created_to"); raw != "" {
		to, dateOnly, err := parseFilterTime(raw)
		if err != nil {
			verrs = append(verrs, models.ValidationError{Field: "created_to", Message: err.Error()})
		}
		if dateOnly {
			to = to.Add(24*time.Hour - time.Microsecond)
		}
		filter.CreatedTo = to
	}
	if !filter.CreatedFrom.IsZero() && !filter.CreatedTo.IsZero() && filter.CreatedTo.Before(filter.CreatedFrom) {
		verrs = append(verrs, models.ValidationError{Field: "created_to", Message: "must not be before created_from"})
	}

	if raw := c.Query("has_start_date"); raw != "" {
		has, err := strconv.ParseBool(raw)
		if err != nil {
			verrs = append(verrs, models.ValidationError{Field: "has_start_date", Message: "must be true or false"})
		} else {
			filter.HasStartDate = &has
		}
	}

	if len(verrs) > 0 {
		return repository.ListFilter{}, verrs
	}
	return filter, nil
}

func parseFilterTime(raw string) (time.Time, bool, error) {
	if t, err := time.Parse(models.ISODateLayout, raw); err == nil {
		return t, true, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, false, nil
	}
	return time.Time{}, false, fmt.Errorf("must be a date (YYYY-MM-DD) or an RFC3339 timestamp")
}

// writeServiceError maps service failures onto status codes. fallbackCode is
// used for anything that is not a known client error.
func writeServiceError(c fiber.Ctx, err error, fallbackCode string) error {
	var verrs models.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		return c.Status(http.StatusBadRequest).JSON(
			utils.CreateDetailedErrorResponse("VALIDATION_FAILED", err.Error(), verrs))
	case errors.Is(err, models.ErrSubmissionNotFound):
		return c.Status(http.StatusNotFound).JSON(utils.CreateErrorResponse("NOT_FOUND", err.Error()))
	case errors.Is(err, models.ErrIdempotencyInFlight):
		return c.Status(http.StatusConflict).JSON(utils.CreateErrorResponse("REQUEST_IN_PROGRESS", err.Error()))
	case errors.Is(err, models.ErrIdempotencyKeyReused):
		return c.Status(http.StatusUnprocessableEntity).JSON(utils.CreateErrorResponse("IDEMPOTENCY_KEY_REUSED", err.Error()))
	default:
		slog.Error("submission request failed", "path", c.Path(), "method", c.Method(), "error", err)
		return c.Status(http.StatusInternalServerError).JSON(utils.CreateErrorResponse(fallbackCode, err.Error()))
	}
}
