package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/yaccurue5-bingl/stockplatform-sub000/config"
	"github.com/yaccurue5-bingl/stockplatform-sub000/model"
	"github.com/yaccurue5-bingl/stockplatform-sub000/pkg/logger"
)

// InferenceService calls the rate-limited text-analysis backend. A failed
// call never propagates an error: it degrades to the conservative fallback
// result so one bad call cannot abort a tick.
type InferenceService struct {
	config     *config.InferenceConfig
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewInferenceService(cfg *config.InferenceConfig) *InferenceService {
	return &InferenceService{
		config: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.CallsPerSecond), cfg.Burst),
	}
}

// BundleItem is one disclosure inside a bundled analysis request.
type BundleItem struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

type singleRequest struct {
	Model      string `json:"model,omitempty"`
	EntityName string `json:"entity_name"`
	TickerCode string `json:"ticker_code,omitempty"`
	Title      string `json:"title"`
	Text       string `json:"text,omitempty"`
}

type bundleRequest struct {
	Model      string       `json:"model,omitempty"`
	EntityName string       `json:"entity_name"`
	TickerCode string       `json:"ticker_code,omitempty"`
	Items      []BundleItem `json:"items"`
}

type analysisResponse struct {
	Summary        string  `json:"summary"`
	Sentiment      string  `json:"sentiment"`
	SentimentScore float64 `json:"sentiment_score"`
	Importance     string  `json:"importance"`
	TokensUsed     int     `json:"tokens_used"`
}

// AnalyzeSingle analyzes one disclosure.
func (s *InferenceService) AnalyzeSingle(ctx context.Context, corpName, stockCode, title, text string) model.AnalysisResult {
	result, err := s.call(ctx, "/v1/analyze", singleRequest{
		Model:      s.config.Model,
		EntityName: corpName,
		TickerCode: stockCode,
		Title:      title,
		Text:       text,
	})
	if err != nil {
		logger.Warn(ctx, "inference call failed, using fallback",
			"corp_name", corpName, "error", err)
		return model.FallbackResult(corpName, title)
	}
	return result
}

// AnalyzeBundle analyzes a same-entity group of disclosures in one call.
func (s *InferenceService) AnalyzeBundle(ctx context.Context, corpName, stockCode string, items []BundleItem) model.AnalysisResult {
	result, err := s.call(ctx, "/v1/analyze/bundle", bundleRequest{
		Model:      s.config.Model,
		EntityName: corpName,
		TickerCode: stockCode,
		Items:      items,
	})
	if err != nil {
		logger.Warn(ctx, "bundled inference call failed, using fallback",
			"corp_name", corpName, "count", len(items), "error", err)
		return model.FallbackResult(corpName, fmt.Sprintf("%d disclosures", len(items)))
	}
	return result
}

func (s *InferenceService) call(ctx context.Context, path string, payload any) (model.AnalysisResult, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return model.AnalysisResult{}, fmt.Errorf("rate limiter: %w", err)
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return model.AnalysisResult{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.config.BaseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return model.AnalysisResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return model.AnalysisResult{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.AnalysisResult{}, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return model.AnalysisResult{}, fmt.Errorf("inference API returned status %d", resp.StatusCode)
	}

	var parsed analysisResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return model.AnalysisResult{}, fmt.Errorf("failed to parse response: %w", err)
	}

	return model.AnalysisResult{
		Summary:        parsed.Summary,
		Sentiment:      normalizeSentiment(parsed.Sentiment),
		SentimentScore: parsed.SentimentScore,
		Importance:     normalizeImportance(parsed.Importance),
		TokensUsed:     parsed.TokensUsed,
	}, nil
}

func normalizeSentiment(s string) string {
	switch s {
	case model.SentimentPositive, model.SentimentNegative, model.SentimentNeutral:
		return s
	}
	return model.SentimentNeutral
}

func normalizeImportance(s string) string {
	switch s {
	case model.ImportanceHigh, model.ImportanceMedium, model.ImportanceLow:
		return s
	}
	return model.ImportanceMedium
}
