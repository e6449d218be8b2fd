package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"github.com/coderwalt570/WaltonsCreativeStudio/internal/core"
	ports "github.com/coderwalt570/WaltonsCreativeStudio/internal/sheets"
)

// DefaultSheetName is the tab written to when none is configured.
const DefaultSheetName = "Ledger"

// Config selects the target spreadsheet and the service account used to
// reach it. JSON wins over File; with neither, GOOGLE_APPLICATION_CREDENTIALS
// is consulted.
type Config struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *slog.Logger

	// Serializes appends so two records never claim the same free row.
	mu sync.Mutex
}

var _ ports.LedgerMirror = (*Client)(nil)

// New creates a Sheets client authenticated with service account credentials.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	credentialsJSON, err := loadCredentials(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return newClient(ctx, cfg, logger,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
}

func newClient(ctx context.Context, cfg Config, logger *slog.Logger, opts ...goption.ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if logger == nil {
		logger = slog.Default()
	}
	sheetName := strings.TrimSpace(cfg.SheetName)
	if sheetName == "" {
		sheetName = DefaultSheetName
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	logger.InfoContext(ctx, "Google Sheets service created", "spreadsheet_id", cfg.SpreadsheetID, "sheet", sheetName)

	return &Client{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     sheetName,
		logger:        logger,
	}, nil
}

func loadCredentials(ctx context.Context, cfg Config) ([]byte, error) {
	serviceAccountJSON := strings.TrimSpace(cfg.ServiceAccountJSON)
	serviceAccountFile := strings.TrimSpace(cfg.ServiceAccountFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case serviceAccountJSON != "":
		slog.DebugContext(ctx, "Using inline JSON credentials", "json_length", len(serviceAccountJSON))
		return []byte(serviceAccountJSON), nil
	case serviceAccountFile != "":
		data, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		slog.DebugContext(ctx, "Read credentials file", "path", serviceAccountFile, "size", len(data))
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// AppendExpense writes rec to the first free row. Column A is scanned first
// so a redelivered event finds its existing row instead of adding another.
func (c *Client) AppendExpense(ctx context.Context, rec core.ExpenseRecord) (string, error) {
	if rec.ID <= 0 {
		return "", fmt.Errorf("append expense: invalid id %d", rec.ID)
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	rng := quoteSheet(c.sheetName) + "!A:A"
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("read %s: %w", rng, err)
	}

	existing, next, hasHeader := scanIDColumn(resp.Values, rec.ID)
	if existing > 0 {
		ref := rowRange(c.sheetName, existing)
		c.logger.InfoContext(ctx, "Expense already mirrored", "id", rec.ID, "sheets_ref", ref)
		return ref, nil
	}

	rows := [][]interface{}{rowValues(rec)}
	start := next
	if !hasHeader && len(resp.Values) == 0 {
		rows = [][]interface{}{headerValues(), rowValues(rec)}
		start = 1
	}
	target := fmt.Sprintf("%s!A%d:H%d", quoteSheet(c.sheetName), start, start+len(rows)-1)

	// RAW keeps descriptions starting with "=" from being evaluated as formulas.
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, target, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("update %s: %w", target, err)
	}

	ref := rowRange(c.sheetName, start+len(rows)-1)
	c.logger.InfoContext(ctx, "Expense mirrored to sheet", "id", rec.ID, "sheets_ref", ref)
	return ref, nil
}
