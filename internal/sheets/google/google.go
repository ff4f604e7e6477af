// Package google mirrors monthly KPIs into a Google Sheets spreadsheet,
// one "<year> <name>" tab per year.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"academy/internal/cache"
	ports "academy/internal/sheets"
)

const (
	defaultKPISheetName = "KPIs"
	tabCacheSize        = 32
	tabCacheTTL         = 15 * time.Minute
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	// Base tab name without year, e.g. "KPIs"; the year is prefixed per call.
	kpiBase string
	// Titles of tabs known to exist.
	tabs *cache.LRUCache[bool]
}

var _ ports.KPISheet = (*Client)(nil)

// NewFromEnv creates a Sheets client from the environment.
// Required: GOOGLE_SPREADSHEET_ID
// Optional: KPI_SHEET_NAME (default "KPIs") and service account credentials,
// see newSheetsService.
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return New(svc, spreadsheetID, os.Getenv("KPI_SHEET_NAME")), nil
}

func New(svc *gsheet.Service, spreadsheetID, kpiBase string) *Client {
	kpiBase = strings.TrimSpace(kpiBase)
	if kpiBase == "" {
		kpiBase = defaultKPISheetName
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		kpiBase:       kpiBase,
		tabs:          cache.NewLRUCache[bool](tabCacheSize, tabCacheTTL),
	}
}

// TabCache exposes the known-tab cache so a cache.Manager can expire it.
func (c *Client) TabCache() cache.Cleaner { return c.tabs }

// newSheetsService initializes a Sheets Service. An OAuth client with a saved
// token wins; otherwise service account credentials are read from
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	ts, ok, err := oauthTokenSource(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		service, err := gsheet.NewService(ctx, goption.WithTokenSource(ts))
		if err != nil {
			return nil, fmt.Errorf("create sheets service: %w", err)
		}
		slog.InfoContext(ctx, "Google Sheets service created", "credentials", "oauth")
		return service, nil
	}

	credentialsJSON, err := serviceAccountCredentials(ctx)
	if err != nil {
		return nil, err
	}
	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created", "credentials_size", len(credentialsJSON))
	return service, nil
}

func serviceAccountCredentials(ctx context.Context) ([]byte, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case serviceAccountJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		return []byte(serviceAccountJSON), nil
	case serviceAccountFile != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

func (c *Client) sheetName(year int) string {
	return yearPrefixedName(c.kpiBase, year)
}

// kpiRange covers the header and twelve month rows.
func kpiRange(sheet string) string {
	return fmt.Sprintf("'%s'!A1:F13", strings.ReplaceAll(sheet, "'", "''"))
}

// hasSheet reports whether the tab exists, consulting the cache first.
func (c *Client) hasSheet(ctx context.Context, title string) (bool, error) {
	if _, ok := c.tabs.Get(title); ok {
		return true, nil
	}
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return false, fmt.Errorf("read spreadsheet %s: %w", c.spreadsheetID, err)
	}
	found := false
	for _, sh := range ss.Sheets {
		if sh.Properties == nil {
			continue
		}
		c.tabs.Set(sh.Properties.Title, true)
		if sh.Properties.Title == title {
			found = true
		}
	}
	return found, nil
}

func (c *Client) ensureSheet(ctx context.Context, title string) error {
	ok, err := c.hasSheet(ctx, title)
	if err != nil || ok {
		return err
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %s: %w", title, err)
	}
	slog.InfoContext(ctx, "Created KPI sheet", "sheet", title)
	c.tabs.Set(title, true)
	return nil
}

func (c *Client) WriteKPIs(ctx context.Context, year int, rows []ports.KPIRow) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	title := c.sheetName(year)
	if err := c.ensureSheet(ctx, title); err != nil {
		return "", err
	}

	vr := &gsheet.ValueRange{Values: kpiValues(rows)}
	resp, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, kpiRange(title), vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		// The tab may have been removed behind our back.
		c.tabs.Delete(title)
		return "", fmt.Errorf("update %s: %w", title, err)
	}
	return resp.UpdatedRange, nil
}

func (c *Client) ReadKPIs(ctx context.Context, year int) ([]ports.KPIRow, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	title := c.sheetName(year)
	ok, err := c.hasSheet(ctx, title)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, kpiRange(title)).
		ValueRenderOption("UNFORMATTED_VALUE").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", title, err)
	}
	return parseKPIs(resp.Values)
}

func kpiValues(rows []ports.KPIRow) [][]any {
	header := make([]any, len(ports.KPIHeader))
	for i, h := range ports.KPIHeader {
		header[i] = h
	}
	values := [][]any{header}
	for _, r := range rows {
		values = append(values, []any{r.Month, r.Revenue, r.Target, r.Salary, r.AchievedPct, r.SalaryPct})
	}
	return values
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
