package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"pricing-service/internal/codec"
	"pricing-service/internal/database/minio"
	"pricing-service/internal/event"
	"pricing-service/internal/models"
	"pricing-service/internal/repository"
	"pricing-service/internal/utils"

	"github.com/google/uuid"
)

const (
	recentWindowDays   = 30
	presignedURLExpiry = 15 * time.Minute
	eventPublishWait   = 5 * time.Second
)

// IdempotencyStore remembers the submission created for a client key.
type IdempotencyStore interface {
	Reserve(ctx context.Context, key, fingerprint string) (submissionID int64, reserved bool, err error)
	Complete(ctx context.Context, key, fingerprint string, submissionID int64) error
	Release(ctx context.Context, key string) error
}

// EventPublisher delivers submission lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, event event.SubmissionEvent) error
}

// ReportArchive keeps copies of generated reports.
type ReportArchive interface {
	UploadBytes(ctx context.Context, objectName string, data []byte, contentType string) error
	ListFiles(ctx context.Context, prefix string) ([]minio.ObjectInfo, error)
	DeleteFile(ctx context.Context, objectName string) error
	GetPresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)
}

// ArchivedReport is one stored copy of a submission report.
type ArchivedReport struct {
	minio.ObjectInfo
	URL string `json:"url"`
}

// SubmissionService mediates between the API document, the codec and the
// store. Idempotency, events and report archiving are optional.
type SubmissionService struct {
	repo        *repository.SubmissionRepository
	reports     *ReportService
	idempotency IdempotencyStore
	events      EventPublisher
	archive     ReportArchive
	now         func() time.Time
}

func NewSubmissionService(repo *repository.SubmissionRepository, reports *ReportService) *SubmissionService {
	return &SubmissionService{
		repo:    repo,
		reports: reports,
		now:     time.Now,
	}
}

func (s *SubmissionService) WithIdempotency(store IdempotencyStore) *SubmissionService {
	s.idempotency = store
	return s
}

func (s *SubmissionService) WithEvents(publisher EventPublisher) *SubmissionService {
	s.events = publisher
	return s
}

func (s *SubmissionService) WithArchive(archive ReportArchive) *SubmissionService {
	s.archive = archive
	return s
}

// ============================================================================
// CRUD
// ============================================================================

// Create validates and stores doc. With an idempotency key, a repeated call
// with the same body returns the id of the first create and replayed=true.
// The same key with a different body fails with models.ErrIdempotencyKeyReused.
// If the first submission has since been deleted, a new one is created.
func (s *SubmissionService) Create(ctx context.Context, doc models.SubmissionDocument, idempotencyKey string) (id int64, replayed bool, err error) {
	record, tags, err := codec.Encode(doc)
	if err != nil {
		return 0, false, err
	}

	useKey := idempotencyKey != "" && s.idempotency != nil
	var fingerprint string
	if useKey {
		fingerprint, err = requestFingerprint(record, tags)
		if err != nil {
			return 0, false, err
		}
		existing, reserved, err := s.reserve(ctx, idempotencyKey, fingerprint)
		if err != nil {
			return 0, false, err
		}
		if !reserved {
			return existing, true, nil
		}
	}

	id, err = s.repo.Create(ctx, record, tags)
	if err != nil {
		if useKey {
			if releaseErr := s.idempotency.Release(ctx, idempotencyKey); releaseErr != nil {
				slog.Warn("Failed to release idempotency key", "idempotency_key", idempotencyKey, "error", releaseErr)
			}
		}
		return 0, false, fmt.Errorf("failed to create submission: %w", err)
	}

	if useKey {
		if err := s.idempotency.Complete(ctx, idempotencyKey, fingerprint, id); err != nil {
			slog.Warn("Failed to record idempotency key", "idempotency_key", idempotencyKey, "submission_id", id, "error", err)
		}
	}

	s.publish(ctx, event.SubmissionEvent{Type: models.EventSubmissionCreated, SubmissionID: id})
	return id, false, nil
}

// reserve claims key, releasing it first when it points at a submission that
// no longer exists.
func (s *SubmissionService) reserve(ctx context.Context, key, fingerprint string) (int64, bool, error) {
	existing, reserved, err := s.idempotency.Reserve(ctx, key, fingerprint)
	if err != nil || reserved {
		return existing, reserved, err
	}

	_, err = s.repo.GetByID(ctx, existing)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, models.ErrSubmissionNotFound) {
		return 0, false, err
	}

	slog.Info("Replayed submission was deleted, creating it again",
		"idempotency_key", key, "submission_id", existing)
	if err := s.idempotency.Release(ctx, key); err != nil {
		return 0, false, err
	}
	return s.idempotency.Reserve(ctx, key, fingerprint)
}

// requestFingerprint is a digest of the encoded request, so two bodies that
// store the same submission share a fingerprint.
func requestFingerprint(record models.SubmissionRecord, tags models.TagSet) (string, error) {
	data, err := utils.SerializeModel(struct {
		Record models.SubmissionRecord `json:"record"`
		Tags   models.TagSet           `json:"tags"`
	}{record, tags})
	if err != nil {
		return "", fmt.Errorf("failed to fingerprint request: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func (s *SubmissionService) Get(ctx context.Context, id int64) (*models.SubmissionDocument, error) {
	stored, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	doc := codec.DecodeStored(*stored)
	return &doc, nil
}

func (s *SubmissionService) List(ctx context.Context, filter repository.ListFilter) ([]models.SubmissionDocument, error) {
	stored, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	docs := make([]models.SubmissionDocument, len(stored))
	for i, st := range stored {
		docs[i] = codec.DecodeStored(st)
	}
	return docs, nil
}

// Update applies the fields present in doc and returns the stored result.
func (s *SubmissionService) Update(ctx context.Context, id int64, doc models.SubmissionDocument) (*models.SubmissionDocument, error) {
	patch, err := codec.EncodePatch(doc)
	if err != nil {
		return nil, err
	}

	stored, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}

	updated := codec.DecodeStored(*stored)
	s.publish(ctx, event.SubmissionEvent{
		Type:         models.EventSubmissionUpdated,
		SubmissionID: id,
		Document:     &updated,
	})
	return &updated, nil
}

// Delete removes the submission, then archived reports on a best-effort basis.
func (s *SubmissionService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.purgeReports(ctx, id)
	s.publish(ctx, event.SubmissionEvent{Type: models.EventSubmissionDeleted, SubmissionID: id})
	return nil
}

// ============================================================================
// STATISTICS
// ============================================================================

func (s *SubmissionService) Stats(ctx context.Context) (*models.SubmissionStats, error) {
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, err
	}

	since := s.now().UTC().AddDate(0, 0, -recentWindowDays)
	recent, err := s.repo.CountSince(ctx, since)
	if err != nil {
		return nil, err
	}

	byClientType, err := s.repo.CountBy(ctx, "client_type")
	if err != nil {
		return nil, err
	}

	return &models.SubmissionStats{
		TotalSubmissions:  total,
		RecentSubmissions: recent,
		RecentWindowDays:  recentWindowDays,
		ByClientType:      byClientType,
	}, nil
}

// Breakdown counts submissions per value of one groupable field.
func (s *SubmissionService) Breakdown(ctx context.Context, field string) (*models.FieldBreakdown, error) {
	if !repository.CountableColumns[field] {
		return nil, models.ValidationErrors{{Field: field, Message: "is not a field submissions can be grouped by"}}
	}

	counts, err := s.repo.CountBy(ctx, field)
	if err != nil {
		return nil, err
	}
	return &models.FieldBreakdown{Field: field, Counts: counts}, nil
}

// ============================================================================
// REPORTS
// ============================================================================

// Report renders the submission's PDF. When an archive is configured the
// bytes are also stored; an archive failure is logged and the report is
// still returned.
func (s *SubmissionService) Report(ctx context.Context, id int64) (*RenderedReport, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	report, err := s.reports.Render(*doc)
	if err != nil {
		return nil, err
	}

	if s.archive != nil {
		objectName := reportObjectName(id, report.GeneratedAt)
		if err := s.archive.UploadBytes(ctx, objectName, report.Data, "application/pdf"); err != nil {
			slog.Warn("Failed to archive report", "submission_id", id, "object", objectName, "error", err)
		} else {
			report.ObjectName = objectName
		}
	}

	s.publish(ctx, event.SubmissionEvent{
		Type:         models.EventReportGenerated,
		SubmissionID: id,
		ReportObject: report.ObjectName,
	})
	return report, nil
}

// ListReports returns the archived reports of an existing submission with
// short-lived download URLs. Without an archive the list is empty.
func (s *SubmissionService) ListReports(ctx context.Context, id int64) ([]ArchivedReport, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	if s.archive == nil {
		return []ArchivedReport{}, nil
	}

	objects, err := s.archive.ListFiles(ctx, reportPrefix(id))
	if err != nil {
		return nil, fmt.Errorf("failed to list archived reports: %w", err)
	}

	reports := make([]ArchivedReport, 0, len(objects))
	for _, obj := range objects {
		url, err := s.archive.GetPresignedURL(ctx, obj.Key, presignedURLExpiry)
		if err != nil {
			return nil, fmt.Errorf("failed to sign report %s: %w", obj.Key, err)
		}
		reports = append(reports, ArchivedReport{ObjectInfo: obj, URL: url})
	}
	return reports, nil
}

func (s *SubmissionService) purgeReports(ctx context.Context, id int64) {
	if s.archive == nil {
		return
	}

	objects, err := s.archive.ListFiles(ctx, reportPrefix(id))
	if err != nil {
		slog.Warn("Failed to list archived reports for purge", "submission_id", id, "error", err)
		return
	}
	for _, obj := range objects {
		if err := s.archive.DeleteFile(ctx, obj.Key); err != nil {
			slog.Warn("Failed to delete archived report", "submission_id", id, "object", obj.Key, "error", err)
		}
	}
}

func reportPrefix(id int64) string {
	return fmt.Sprintf("submissions/%d/", id)
}

func reportObjectName(id int64, generatedAt time.Time) string {
	return fmt.Sprintf("%s%s_%s.pdf", reportPrefix(id), generatedAt.UTC().Format("20060102T150405Z"), uuid.NewString())
}

// publish sends an event after the store has committed. Failures are logged
// and never change the outcome of the request.
func (s *SubmissionService) publish(ctx context.Context, evt event.SubmissionEvent) {
	if s.events == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventPublishWait)
	defer cancel()

	if err := s.events.Publish(ctx, evt); err != nil {
		slog.Warn("Failed to publish submission event",
			"type", evt.Type,
			"submission_id", evt.SubmissionID,
			"error", err)
	}
}
