package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"mindradix-similarity/internal/config"
	"mindradix-similarity/internal/telemetry"
	"mindradix-similarity/models"
)

var ErrReportNotFound = errors.New("report not found")

// ReportResult is what a finished check writes back to its record.
type ReportResult struct {
	Similarity  *models.SimilarityReport
	Plagiarism  *models.PlagiarismReport
	Summary     map[string]interface{}
	StoragePath string
}

// ReportStore persists asynchronous check records.
type ReportStore interface {
	Create(ctx context.Context, articleID, kind string) (*models.ReportRecord, error)
	Get(ctx context.Context, id string) (*models.ReportRecord, error)
	MarkProcessing(ctx context.Context, id string) error
	Complete(ctx context.Context, id string, result ReportResult) error
	Fail(ctx context.Context, id string, reason string) error
	// DeleteOlderThan removes records created before cutoff and returns them.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) ([]models.ReportRecord, error)
}

func newRecord(articleID, kind string) *models.ReportRecord {
	now := time.Now().UTC()
	return &models.ReportRecord{
		ID:        uuid.NewString(),
		ArticleID: articleID,
		Kind:      kind,
		Status:    models.ReportStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// MongoReportStore keeps records in the similarity_reports collection.
type MongoReportStore struct {
	collection *mongo.Collection
	metrics    *telemetry.Metrics
}

func NewMongoReportStore(db *mongo.Database, metrics *telemetry.Metrics) *MongoReportStore {
	return &MongoReportStore{
		collection: db.Collection(config.ReportsCollection),
		metrics:    metrics,
	}
}

func (s *MongoReportStore) Create(ctx context.Context, articleID, kind string) (*models.ReportRecord, error) {
	rec := newRecord(articleID, kind)
	_, err := s.collection.InsertOne(ctx, rec)
	s.metrics.RecordDatabaseOperation("insert", config.ReportsCollection, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to insert report: %w", err)
	}
	return rec, nil
}

func (s *MongoReportStore) Get(ctx context.Context, id string) (*models.ReportRecord, error) {
	var rec models.ReportRecord
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		s.metrics.RecordDatabaseOperation("find", config.ReportsCollection, true)
		return nil, ErrReportNotFound
	}
	s.metrics.RecordDatabaseOperation("find", config.ReportsCollection, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load report: %w", err)
	}
	return &rec, nil
}

func (s *MongoReportStore) MarkProcessing(ctx context.Context, id string) error {
	return s.update(ctx, id, bson.M{"status": models.ReportStatusProcessing})
}

func (s *MongoReportStore) Complete(ctx context.Context, id string, result ReportResult) error {
	now := time.Now().UTC()
	set := bson.M{
		"status":              models.ReportStatusCompleted,
		"similarity_summary":  result.Summary,
		"report_storage_path": result.StoragePath,
		"completed_at":        now,
	}
	if result.Similarity != nil {
		set["similarity"] = result.Similarity
	}
	if result.Plagiarism != nil {
		set["plagiarism"] = result.Plagiarism
	}
	return s.update(ctx, id, set)
}

func (s *MongoReportStore) Fail(ctx context.Context, id string, reason string) error {
	return s.update(ctx, id, bson.M{"status": models.ReportStatusFailed, "error": reason})
}

func (s *MongoReportStore) update(ctx context.Context, id string, set bson.M) error {
	set["updated_at"] = time.Now().UTC()
	res, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	s.metrics.RecordDatabaseOperation("update", config.ReportsCollection, err == nil)
	if err != nil {
		return fmt.Errorf("failed to update report: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrReportNotFound
	}
	return nil
}

func (s *MongoReportStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) ([]models.ReportRecord, error) {
	filter := bson.M{"created_at": bson.M{"$lt": cutoff}}
	cursor, err := s.collection.Find(ctx, filter)
	if err != nil {
		s.metrics.RecordDatabaseOperation("find", config.ReportsCollection, false)
		return nil, fmt.Errorf("failed to list expired reports: %w", err)
	}
	var expired []models.ReportRecord
	if err := cursor.All(ctx, &expired); err != nil {
		return nil, fmt.Errorf("failed to decode expired reports: %w", err)
	}
	if len(expired) == 0 {
		return nil, nil
	}

	_, err = s.collection.DeleteMany(ctx, filter)
	s.metrics.RecordDatabaseOperation("delete", config.ReportsCollection, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to delete expired reports: %w", err)
	}
	return expired, nil
}

// MemoryReportStore is used when MongoDB is not configured, and by tests.
type MemoryReportStore struct {
	mu      sync.RWMutex
	records map[string]*models.ReportRecord
}

func NewMemoryReportStore() *MemoryReportStore {
	return &MemoryReportStore{records: make(map[string]*models.ReportRecord)}
}

func (s *MemoryReportStore) Create(_ context.Context, articleID, kind string) (*models.ReportRecord, error) {
	rec := newRecord(articleID, kind)
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *rec
	s.records[rec.ID] = &stored
	return rec, nil
}

func (s *MemoryReportStore) Get(_ context.Context, id string) (*models.ReportRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, ErrReportNotFound
	}
	out := *rec
	return &out, nil
}

func (s *MemoryReportStore) MarkProcessing(_ context.Context, id string) error {
	return s.mutate(id, func(rec *models.ReportRecord) {
		rec.Status = models.ReportStatusProcessing
	})
}

func (s *MemoryReportStore) Complete(_ context.Context, id string, result ReportResult) error {
	return s.mutate(id, func(rec *models.ReportRecord) {
		now := time.Now().UTC()
		rec.Status = models.ReportStatusCompleted
		rec.SimilaritySummary = result.Summary
		rec.ReportStoragePath = result.StoragePath
		rec.Similarity = result.Similarity
		rec.Plagiarism = result.Plagiarism
		rec.CompletedAt = &now
	})
}

func (s *MemoryReportStore) Fail(_ context.Context, id string, reason string) error {
	return s.mutate(id, func(rec *models.ReportRecord) {
		rec.Status = models.ReportStatusFailed
		rec.Error = reason
	})
}

func (s *MemoryReportStore) mutate(id string, fn func(*models.ReportRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return ErrReportNotFound
	}
	fn(rec)
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryReportStore) DeleteOlderThan(_ context.Context, cutoff time.Time) ([]models.ReportRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expired []models.ReportRecord
	for id, rec := range s.records {
		if rec.CreatedAt.Before(cutoff) {
			expired = append(expired, *rec)
			delete(s.records, id)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].CreatedAt.Before(expired[j].CreatedAt) })
	return expired, nil
}
