// Package sheets implements the spreadsheet destination over the Google
// Sheets API. One Client is shared by all jobs; the underlying service is
// safe for concurrent use.
package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/vietddude/sheetsync/internal/core/domain"
)

// Config holds destination connection configuration.
type Config struct {
	SpreadsheetID   string `yaml:"spreadsheet_id"`
	CredentialsFile string `yaml:"credentials_file"`
}

// tabMeta caches per-worksheet properties needed for formatting and
// tail clearing.
type tabMeta struct {
	sheetID  int64
	rowCount int64
}

// Client is the shared destination handle.
type Client struct {
	cfg  Config
	opts []option.ClientOption
	svc  *sheets.Service

	mu   sync.RWMutex
	tabs map[string]tabMeta
}

// NewClient creates an unconnected Client. Extra options are passed through
// to the underlying service.
func NewClient(cfg Config, opts ...option.ClientOption) *Client {
	return &Client{cfg: cfg, opts: opts, tabs: make(map[string]tabMeta)}
}

// Connect authorizes against the Sheets API and caches worksheet metadata.
// Called once at startup; retryable.
func (c *Client) Connect(ctx context.Context) error {
	opts := []option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}
	if c.cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(c.cfg.CredentialsFile))
	}
	opts = append(opts, c.opts...)

	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return domain.Transient(fmt.Errorf("sheets service: %w", err))
	}

	meta, err := svc.Spreadsheets.Get(c.cfg.SpreadsheetID).Context(ctx).Do()
	if err != nil {
		return domain.Transient(fmt.Errorf("spreadsheet metadata: %w", err))
	}

	c.mu.Lock()
	c.svc = svc
	for _, sh := range meta.Sheets {
		if sh.Properties == nil {
			continue
		}
		m := tabMeta{sheetID: sh.Properties.SheetId}
		if sh.Properties.GridProperties != nil {
			m.rowCount = sh.Properties.GridProperties.RowCount
		}
		c.tabs[sh.Properties.Title] = m
	}
	c.mu.Unlock()

	slog.Info("Connected to spreadsheet", "tabs", len(meta.Sheets))
	return nil
}

// Write uploads the grid (header row first) starting at startRow, applies
// presentation formatting concurrently with the upload, and clears any
// stale rows below the new data when clearTail is set.
func (c *Client) Write(ctx context.Context, tab string, grid [][]any, startRow, columnSpan int, clearTail bool) error {
	if c.svc == nil {
		return fmt.Errorf("sheets client not connected")
	}

	if len(grid) <= 1 {
		slog.Warn("No data to write", "tab", tab)
		if clearTail {
			return c.clearRange(ctx, tab, startRow, columnSpan)
		}
		return nil
	}

	values := toGrid(grid)
	startCell := fmt.Sprintf("'%s'!A%d", tab, startRow)

	var wg sync.WaitGroup
	var writeErr, fmtErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := c.svc.Spreadsheets.Values.
			Update(c.cfg.SpreadsheetID, startCell, &sheets.ValueRange{Values: values}).
			ValueInputOption("USER_ENTERED").
			Context(ctx).
			Do()
		if err != nil {
			writeErr = domain.Transient(fmt.Errorf("values update %s: %w", tab, err))
		}
	}()
	go func() {
		defer wg.Done()
		fmtErr = c.applyFormatting(ctx, tab, startRow, len(grid), columnSpan)
	}()
	wg.Wait()

	if writeErr != nil {
		return writeErr
	}
	if fmtErr != nil {
		// Presentation metadata is best effort; data already landed.
		slog.Warn("Failed to apply formatting", "tab", tab, "error", fmtErr)
	}

	slog.Info("Wrote rows", "tab", tab, "rows", len(grid)-1)

	if clearTail {
		return c.clearTail(ctx, tab, startRow, len(grid), columnSpan)
	}
	return nil
}

// WriteStatus puts the status line into cell A1 of the tab.
func (c *Client) WriteStatus(ctx context.Context, tab, text string) error {
	if c.svc == nil {
		return fmt.Errorf("sheets client not connected")
	}
	rng := fmt.Sprintf("'%s'!A1", tab)
	_, err := c.svc.Spreadsheets.Values.
		Update(c.cfg.SpreadsheetID, rng, &sheets.ValueRange{Values: [][]any{{text}}}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return domain.Transient(fmt.Errorf("status update %s: %w", tab, err))
	}
	return nil
}

// Enriched tabs carry extra free-text columns that need wrap control.
// Column positions follow the fixed output layout.
var (
	clipFormat = &sheets.CellFormat{
		WrapStrategy:      "CLIP",
		VerticalAlignment: "TOP",
	}
	wrapFormat = &sheets.CellFormat{
		WrapStrategy:      "WRAP",
		VerticalAlignment: "TOP",
	}
)

func (c *Client) applyFormatting(ctx context.Context, tab string, startRow, gridLen, columnSpan int) error {
	meta, ok := c.tabMeta(tab)
	if !ok {
		return fmt.Errorf("unknown tab %q", tab)
	}

	lastRow := int64(startRow + gridLen - 1)
	firstRow := int64(startRow - 1)
	enriched := columnSpan >= ColumnIndex("X")

	var requests []*sheets.Request

	repeatCell := func(colLetter string, format *sheets.CellFormat) {
		col := int64(ColumnIndex(colLetter))
		requests = append(requests, &sheets.Request{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          meta.sheetID,
					StartRowIndex:    firstRow,
					EndRowIndex:      lastRow,
					StartColumnIndex: col - 1,
					EndColumnIndex:   col,
				},
				Cell:   &sheets.CellData{UserEnteredFormat: format},
				Fields: "userEnteredFormat(wrapStrategy,verticalAlignment)",
			},
		})
	}
	columnWidth := func(colLetter string, px int64) {
		col := int64(ColumnIndex(colLetter))
		requests = append(requests, &sheets.Request{
			UpdateDimensionProperties: &sheets.UpdateDimensionPropertiesRequest{
				Range: &sheets.DimensionRange{
					SheetId:    meta.sheetID,
					Dimension:  "COLUMNS",
					StartIndex: col - 1,
					EndIndex:   col,
				},
				Properties: &sheets.DimensionProperties{PixelSize: px},
				Fields:     "pixelSize",
			},
		})
	}

	if enriched {
		// funnel_history, group, lessons clip; courses wraps so tags stay
		// visible line by line.
		repeatCell("M", clipFormat)
		repeatCell("T", clipFormat)
		repeatCell("V", clipFormat)
		repeatCell("U", wrapFormat)
		columnWidth("M", 100)
		columnWidth("T", 120)
		columnWidth("U", 80)
		columnWidth("V", 200)
	} else {
		repeatCell("M", clipFormat)
		columnWidth("M", 100)
	}

	// Fixed row height for the written range.
	requests = append(requests, &sheets.Request{
		UpdateDimensionProperties: &sheets.UpdateDimensionPropertiesRequest{
			Range: &sheets.DimensionRange{
				SheetId:    meta.sheetID,
				Dimension:  "ROWS",
				StartIndex: firstRow,
				EndIndex:   lastRow,
			},
			Properties: &sheets.DimensionProperties{PixelSize: 100},
			Fields:     "pixelSize",
		},
	})

	_, err := c.svc.Spreadsheets.
		BatchUpdate(c.cfg.SpreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{Requests: requests}).
		Context(ctx).
		Do()
	return err
}

// clearTail removes rows below the newly written range.
func (c *Client) clearTail(ctx context.Context, tab string, startRow, gridLen, columnSpan int) error {
	meta, ok := c.refreshTabMeta(ctx, tab)
	if !ok || meta.rowCount == 0 {
		return nil
	}
	tailStart := startRow + gridLen
	if int64(tailStart) > meta.rowCount {
		return nil
	}
	rng := fmt.Sprintf("'%s'!A%d:%s%d", tab, tailStart, ColumnLetter(columnSpan), meta.rowCount)
	_, err := c.svc.Spreadsheets.Values.
		Clear(c.cfg.SpreadsheetID, rng, &sheets.ClearValuesRequest{}).
		Context(ctx).
		Do()
	if err != nil {
		return domain.Transient(fmt.Errorf("clear tail %s: %w", tab, err))
	}
	return nil
}

// clearRange wipes the whole data range of a tab (empty result set with
// clear-on-empty configured).
func (c *Client) clearRange(ctx context.Context, tab string, startRow, columnSpan int) error {
	meta, ok := c.refreshTabMeta(ctx, tab)
	if !ok || meta.rowCount == 0 {
		return nil
	}
	rng := fmt.Sprintf("'%s'!A%d:%s%d", tab, startRow, ColumnLetter(columnSpan), meta.rowCount)
	_, err := c.svc.Spreadsheets.Values.
		Clear(c.cfg.SpreadsheetID, rng, &sheets.ClearValuesRequest{}).
		Context(ctx).
		Do()
	if err != nil {
		return domain.Transient(fmt.Errorf("clear range %s: %w", tab, err))
	}
	return nil
}

// refreshTabMeta re-reads the grid size of one worksheet. Tabs grow between
// ticks when users append rows by hand, so clearing against the row count
// cached at startup would leave the bottom of a grown tab untouched. Falls
// back to the cached value when the read fails.
func (c *Client) refreshTabMeta(ctx context.Context, tab string) (tabMeta, bool) {
	meta, err := c.svc.Spreadsheets.Get(c.cfg.SpreadsheetID).
		Ranges(fmt.Sprintf("'%s'", tab)).
		Fields(googleapi.Field("sheets(properties(sheetId,title,gridProperties(rowCount)))")).
		Context(ctx).
		Do()
	if err != nil || len(meta.Sheets) == 0 || meta.Sheets[0].Properties == nil {
		slog.Warn("Failed to refresh tab size, using cached", "tab", tab, "error", err)
		return c.tabMeta(tab)
	}

	props := meta.Sheets[0].Properties
	m := tabMeta{sheetID: props.SheetId}
	if props.GridProperties != nil {
		m.rowCount = props.GridProperties.RowCount
	}

	c.mu.Lock()
	c.tabs[tab] = m
	c.mu.Unlock()
	return m, true
}

func (c *Client) tabMeta(tab string) (tabMeta, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.tabs[tab]
	return m, ok
}
