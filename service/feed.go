package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/yaccurue5-bingl/stockplatform-sub000/config"
	"github.com/yaccurue5-bingl/stockplatform-sub000/model"
)

const (
	feedStatusOK    = "000"
	feedStatusEmpty = "013" // no data for the requested range
)

// FeedService pulls disclosure records from the external feed.
type FeedService struct {
	config     *config.FeedConfig
	httpClient *http.Client
}

func NewFeedService(cfg *config.FeedConfig) *FeedService {
	return &FeedService{
		config: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

type feedItem struct {
	CorpCode   string `json:"corp_code"`
	CorpName   string `json:"corp_name"`
	StockCode  string `json:"stock_code"`
	ReportName string `json:"report_nm"`
	ReceiptNo  string `json:"rcept_no"`
	ReceiptDt  string `json:"rcept_dt"` // YYYYMMDD
	Remarks    string `json:"rm"`
}

type feedListResponse struct {
	Status  string     `json:"status"`
	Message string     `json:"message"`
	List    []feedItem `json:"list"`
}

// FetchRecent pulls disclosures for the last daysBack days. The raw
// response body is returned alongside the parsed records so it can be
// archived. Errors here abort the caller's tick.
func (s *FeedService) FetchRecent(ctx context.Context, daysBack int, listedOnly bool) ([]model.Disclosure, []byte, error) {
	end := time.Now()
	start := end.AddDate(0, 0, -daysBack)

	params := url.Values{}
	params.Set("crtfc_key", s.config.APIKey)
	params.Set("bgn_de", start.Format("20060102"))
	params.Set("end_de", end.Format("20060102"))
	params.Set("page_count", strconv.Itoa(s.config.PageCount))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.config.BaseURL+"/list.json?"+params.Encode(), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch disclosures: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read feed response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	var result feedListResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, nil, fmt.Errorf("failed to parse feed response: %w", err)
	}

	switch result.Status {
	case feedStatusOK:
	case feedStatusEmpty:
		return nil, body, nil
	default:
		return nil, nil, fmt.Errorf("feed API error %s: %s", result.Status, result.Message)
	}

	records := make([]model.Disclosure, 0, len(result.List))
	for _, item := range result.List {
		if listedOnly && item.StockCode == "" {
			continue
		}
		records = append(records, model.Disclosure{
			CorpCode:   item.CorpCode,
			CorpName:   item.CorpName,
			StockCode:  item.StockCode,
			ReportName: item.ReportName,
			ReceiptNo:  item.ReceiptNo,
			ReceivedAt: parseReceiptDate(item.ReceiptDt),
			Remarks:    item.Remarks,
		})
	}

	return records, body, nil
}

func parseReceiptDate(s string) time.Time {
	t, err := time.Parse("20060102", s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// DisclosureGroup is one entity's accepted records within a tick, in feed
// order.
type DisclosureGroup struct {
	CorpCode  string
	CorpName  string
	StockCode string
	Records   []model.Disclosure
}

// GroupByEntity groups records by entity, preserving the feed's order of
// first appearance. Records without a ticker code are dropped: sharding and
// hot-state operate on tracked entities only.
func GroupByEntity(records []model.Disclosure) []DisclosureGroup {
	index := make(map[string]int)
	var groups []DisclosureGroup

	for _, rec := range records {
		if !rec.Listed() {
			continue
		}
		i, ok := index[rec.CorpCode]
		if !ok {
			i = len(groups)
			index[rec.CorpCode] = i
			groups = append(groups, DisclosureGroup{
				CorpCode:  rec.CorpCode,
				CorpName:  rec.CorpName,
				StockCode: rec.StockCode,
			})
		}
		groups[i].Records = append(groups[i].Records, rec)
	}

	return groups
}
