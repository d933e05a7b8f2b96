package model

import (
	"time"
)

// Disclosure is one record from the disclosure feed. It is immutable once
// received; identity is (CorpCode, ReceiptNo).
type Disclosure struct {
	CorpCode   string    `json:"corp_code"`
	CorpName   string    `json:"corp_name"`
	StockCode  string    `json:"stock_code,omitempty"` // empty means unlisted/untracked
	ReportName string    `json:"report_name"`
	ReceiptNo  string    `json:"receipt_no"`
	ReceivedAt time.Time `json:"received_at"`
	Remarks    string    `json:"remarks,omitempty"`
}

// Listed reports whether the disclosure belongs to a tracked, listed entity.
func (d Disclosure) Listed() bool {
	return d.StockCode != ""
}

// Sentiment labels returned by the inference backend
const (
	SentimentPositive = "POSITIVE"
	SentimentNegative = "NEGATIVE"
	SentimentNeutral  = "NEUTRAL"
)

// Importance labels returned by the inference backend
const (
	ImportanceHigh   = "HIGH"
	ImportanceMedium = "MEDIUM"
	ImportanceLow    = "LOW"
)

// AnalysisResult is the outcome of one inference backend call.
type AnalysisResult struct {
	Summary        string  `json:"summary"`
	Sentiment      string  `json:"sentiment"`
	SentimentScore float64 `json:"sentiment_score"`
	Importance     string  `json:"importance"`
	TokensUsed     int     `json:"tokens_used"`
}

// FallbackResult is the conservative default persisted when an inference
// call fails: neutral sentiment, mid-range importance, zero tokens.
func FallbackResult(corpName, reportName string) AnalysisResult {
	return AnalysisResult{
		Summary:        corpName + ": " + reportName,
		Sentiment:      SentimentNeutral,
		SentimentScore: 0.5,
		Importance:     ImportanceMedium,
		TokensUsed:     0,
	}
}

// Insight is the persisted analysis row for one disclosure. Entity fields
// are copied from the feed record; sentiment/summary/importance are shared
// across a bundled group.
type Insight struct {
	CorpCode       string    `json:"corp_code"`
	CorpName       string    `json:"corp_name"`
	StockCode      string    `json:"stock_code"`
	ReportName     string    `json:"report_name"`
	ReceiptNo      string    `json:"receipt_no"`
	ReceivedAt     time.Time `json:"received_at"`
	Summary        string    `json:"summary"`
	Sentiment      string    `json:"sentiment"`
	SentimentScore float64   `json:"sentiment_score"`
	Importance     string    `json:"importance"`
	IsCorrection   bool      `json:"is_correction"`
	AnalyzedAt     time.Time `json:"analyzed_at"`
}
