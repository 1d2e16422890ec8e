package models

import (
	"time"
)

const (
	MethodTFIDF = "tfidf"

	MainContentID = "main-content"
)

// SimilarityPair is one unordered document pair with its cosine score.
type SimilarityPair struct {
	AID   string  `json:"aId" bson:"a_id"`
	BID   string  `json:"bId" bson:"b_id"`
	Score float64 `json:"score" bson:"score"`
}

// ReportMeta echoes the parameters a report was produced with.
type ReportMeta struct {
	Method    string  `json:"method" bson:"method"`
	Threshold float64 `json:"threshold" bson:"threshold"`
	TopN      int     `json:"topN" bson:"top_n"`
}

// SimilarityReport is returned by the similarity check.
type SimilarityReport struct {
	Docs    []DocumentExcerpt `json:"docs" bson:"docs"`
	Pairs   []SimilarityPair  `json:"pairs" bson:"pairs"`
	Meta    ReportMeta        `json:"meta" bson:"meta"`
	Status  string            `json:"status" bson:"status"`
	Message string            `json:"message,omitempty" bson:"message,omitempty"`
}

// Similarity run outcomes
const (
	SimilarityStatusOK                = "ok"
	SimilarityStatusInsufficientInput = "insufficient_documents"
)

// HeuristicAuditResult is the output of the heuristic content auditor.
type HeuristicAuditResult struct {
	AIScore    int      `json:"ai_score" bson:"ai_score"`
	AIDetails  []string `json:"ai_details" bson:"ai_details"`
	WebScore   int      `json:"web_score" bson:"web_score"`
	WebSources []string `json:"web_sources" bson:"web_sources"`
}

// PlagiarismReport merges the heuristic audit with similarity figures.
type PlagiarismReport struct {
	HeuristicAuditResult `bson:",inline"`
	MaxSimilarity        *float64               `json:"max_similarity,omitempty" bson:"max_similarity,omitempty"`
	AvgSimilarity        *float64               `json:"avg_similarity,omitempty" bson:"avg_similarity,omitempty"`
	Pairs                []SimilarityPair       `json:"pairs,omitempty" bson:"pairs,omitempty"`
	Docs                 []DocumentExcerpt      `json:"docs,omitempty" bson:"docs,omitempty"`
	External             map[string]interface{} `json:"external,omitempty" bson:"external,omitempty"`
}

// ReportRecord is the persisted form of a check, owned by the article layer.
type ReportRecord struct {
	ID                string                 `bson:"_id" json:"id"`
	ArticleID         string                 `bson:"article_id" json:"article_id"`
	Kind              string                 `bson:"kind" json:"kind"`
	Status            string                 `bson:"status" json:"status"`
	SimilaritySummary map[string]interface{} `bson:"similarity_summary,omitempty" json:"similarity_summary,omitempty"`
	Similarity        *SimilarityReport      `bson:"similarity,omitempty" json:"similarity,omitempty"`
	Plagiarism        *PlagiarismReport      `bson:"plagiarism,omitempty" json:"plagiarism,omitempty"`
	ReportStoragePath string                 `bson:"report_storage_path,omitempty" json:"report_storage_path,omitempty"`
	Error             string                 `bson:"error,omitempty" json:"error,omitempty"`
	CreatedAt         time.Time              `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time              `bson:"updated_at" json:"updated_at"`
	CompletedAt       *time.Time             `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
}

// Report kinds
const (
	ReportKindSimilarity = "similarity"
	ReportKindPlagiarism = "plagiarism"
)

// Report status constants
const (
	ReportStatusPending    = "pending"
	ReportStatusProcessing = "processing"
	ReportStatusCompleted  = "completed"
	ReportStatusFailed     = "failed"
)
