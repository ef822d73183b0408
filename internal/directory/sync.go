package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"hr-scheduling-backend/config"
	"hr-scheduling-backend/internal/model"
)

// ApiItem is one application as served by the recruitment service.
type ApiItem struct {
	ID            string `json:"id"`
	CandidateName string `json:"candidate_name"`
	JobTitle      string `json:"job_title"`
	Status        string `json:"status"`
}

// ApiResponse models the top-level structure of the upstream API's response.
type ApiResponse struct {
	Code int `json:"code"`
	Data struct {
		Page     int       `json:"page"`
		PageSize int       `json:"pageSize"`
		Total    int       `json:"total"`
		Items    []ApiItem `json:"items"`
	} `json:"data"`
}

// SyncService periodically pulls applications from the recruitment service
// into the directory.
type SyncService struct {
	cfg       config.SyncConfig
	directory *Directory
	client    *http.Client
	logger    *zap.Logger
}

func NewSyncService(cfg config.SyncConfig, directory *Directory, logger *zap.Logger) *SyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncService{
		cfg:       cfg,
		directory: directory,
		client:    &http.Client{Timeout: 30 * time.Second},
		logger:    logger.Named("directory-sync"),
	}
}

// Run syncs once, then on every interval until ctx is done.
func (s *SyncService) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		s.logger.Info("directory sync is disabled, not starting")
		return
	}
	s.logger.Info("starting directory sync", zap.String("url", s.cfg.URL), zap.Duration("interval", s.cfg.Interval))

	s.runOnce(ctx)

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("directory sync shutting down")
			return
		case <-timer.C:
			s.runOnce(ctx)
			timer.Reset(s.cfg.Interval)
		}
	}
}

func (s *SyncService) runOnce(ctx context.Context) {
	n, err := s.SyncOnce(ctx)
	if err != nil {
		s.logger.Error("directory sync failed", zap.Int("synced", n), zap.Error(err))
		return
	}
	s.logger.Info("directory sync finished", zap.Int("synced", n))
}

// SyncOnce fetches every page and upserts what was retrieved. Items fetched
// before a page failure are still stored.
func (s *SyncService) SyncOnce(ctx context.Context) (int, error) {
	var items []ApiItem
	total := 1
	pageSize := s.cfg.PageSize
	var fetchErr error
	for page := 1; (page-1)*pageSize < total; page++ {
		resp, err := s.fetchPage(ctx, page)
		if err != nil {
			fetchErr = fmt.Errorf("page %d: %w", page, err)
			break
		}
		if resp.Data.Total == 0 || len(resp.Data.Items) == 0 {
			break
		}
		total = resp.Data.Total
		items = append(items, resp.Data.Items...)
		s.logger.Debug("fetched page", zap.Int("page", page), zap.Int("items", len(items)), zap.Int("total", total))
	}

	apps := make([]model.Application, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.ID) == "" {
			s.logger.Warn("skipping application without id", zap.String("candidate_name", item.CandidateName))
			continue
		}
		apps = append(apps, model.Application{
			ID:            item.ID,
			CandidateName: item.CandidateName,
			JobTitle:      item.JobTitle,
			Status:        item.Status,
		})
	}

	if err := s.directory.Upsert(ctx, apps); err != nil {
		return 0, err
	}
	return len(apps), fetchErr
}

func (s *SyncService) fetchPage(ctx context.Context, page int) (*ApiResponse, error) {
	u, err := url.Parse(s.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid sync url: %w", err)
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(s.cfg.PageSize))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range s.cfg.Headers {
		req.Header.Set(key, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var apiResp ApiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal api response: %w", err)
	}
	if apiResp.Code != 0 {
		return nil, fmt.Errorf("API returned non-zero application code: %d", apiResp.Code)
	}
	return &apiResp, nil
}
