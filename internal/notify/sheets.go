package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"leadscout/internal/config"
	"leadscout/internal/services"
	"leadscout/internal/store"
)

// appendFunc abstracts the spreadsheet append call so tests can capture rows.
type appendFunc func(ctx context.Context, rows [][]interface{}) error

// SheetsSink appends delivered items as rows to a Google Sheets worksheet.
type SheetsSink struct {
	cfg    config.Sheets
	append appendFunc
}

// NewSheetsSink constructs a sink that authenticates with the configured
// service-account credentials on first delivery.
func NewSheetsSink(cfg config.Sheets) *SheetsSink {
	s := &SheetsSink{cfg: cfg}
	s.append = s.appendRemote
	return s
}

func (s *SheetsSink) Name() string { return "sheets" }

// Deliver appends one row per item to the worksheet.
func (s *SheetsSink) Deliver(ctx context.Context, items []*store.Item) error {
	rows := make([][]interface{}, 0, len(items))
	for _, item := range items {
		rows = append(rows, itemRow(item))
	}
	if err := s.append(ctx, rows); err != nil {
		return services.Wrap(services.ErrExternalService, "notify", "sheets", "append rows", err)
	}
	return nil
}

func (s *SheetsSink) appendRemote(ctx context.Context, rows [][]interface{}) error {
	service, err := sheets.NewService(ctx, option.WithCredentialsFile(s.cfg.CredentialsFile))
	if err != nil {
		return fmt.Errorf("create sheets service: %w", err)
	}

	worksheet := s.cfg.WorksheetName
	if worksheet == "" {
		worksheet = "Main"
	}
	valueRange := &sheets.ValueRange{Values: rows}
	_, err = service.Spreadsheets.Values.
		Append(s.cfg.SpreadsheetID, worksheet+"!A1", valueRange).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append to spreadsheet: %w", err)
	}
	return nil
}

func itemRow(item *store.Item) []interface{} {
	score := ""
	if item.RelevanceScore != nil {
		score = fmt.Sprintf("%.1f", *item.RelevanceScore)
	}
	return []interface{}{
		item.ID,
		item.Source,
		item.Title,
		item.URL,
		string(item.Status),
		score,
		item.Theme,
		strings.Join(item.TagList(), ", "),
		item.Summary,
		item.CreatedUTC.UTC().Format(time.RFC3339),
	}
}
