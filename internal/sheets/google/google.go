// Package google mirrors expense rows to a Google Sheets spreadsheet using
// service-account credentials.
package google

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"gastos/internal/core"
)

type Config struct {
	SpreadsheetID string
	SheetName     string
	// CredentialsFile and CredentialsJSON are alternatives; the file wins
	// when both are set.
	CredentialsFile string
	CredentialsJSON string
}

type Client struct {
	svc           *sheets.Service
	spreadsheetID string
	sheetName     string
}

func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet ID is required")
	}

	var opts []option.ClientOption
	switch {
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	case cfg.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	default:
		return nil, fmt.Errorf("service-account credentials are required")
	}
	opts = append(opts, option.WithScopes(sheets.SpreadsheetsScope))

	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     cfg.SheetName,
	}, nil
}

// Append implements sheets.Mirror. One expense becomes one row:
// id, timestamp, description, amount, method, tag, category, installments.
func (c *Client) Append(ctx context.Context, e core.Expense) (string, error) {
	row := []any{
		e.ID,
		e.Timestamp.UTC().Format("2006-01-02 15:04:05"),
		e.Description,
		e.Amount.Float(),
		string(e.Method),
		string(e.Tag),
		string(e.Category),
		e.Installments,
	}

	resp, err := c.svc.Spreadsheets.Values.
		Append(c.spreadsheetID, c.sheetName, &sheets.ValueRange{Values: [][]any{row}}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("append to spreadsheet: %w", err)
	}

	ref := ""
	if resp.Updates != nil {
		ref = resp.Updates.UpdatedRange
	}
	return ref, nil
}
