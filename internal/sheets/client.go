// Package sheets talks to the Google Sheets API: the rating table, the
// overall standings and the per-type game boards all live in spreadsheets.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Den1sproger/tournament-management-tg-bot/internal/metrics"

	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

// ErrNotFound is returned when a worksheet or a looked-up row does not exist
var ErrNotFound = errors.New("not found")

// Client wraps the Sheets service for one spreadsheet
type Client struct {
	service       *gsheets.Service
	spreadsheetID string

	mu     sync.Mutex
	sheets map[string]int64 // worksheet title -> sheet id
}

// NewClient creates a client authenticated with a service account key file
func NewClient(ctx context.Context, spreadsheetID, credentialsFile string, opts ...option.ClientOption) (*Client, error) {
	if credentialsFile != "" {
		opts = append([]option.ClientOption{option.WithCredentialsFile(credentialsFile)}, opts...)
	}

	service, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	log.Info().Str("spreadsheet", spreadsheetID).Msg("Sheets client initialized")

	return &Client{
		service:       service,
		spreadsheetID: spreadsheetID,
		sheets:        make(map[string]int64),
	}, nil
}

// SpreadsheetID returns the id of the wrapped spreadsheet
func (c *Client) SpreadsheetID() string {
	return c.spreadsheetID
}

// Worksheet resolves a worksheet by title
func (c *Client) Worksheet(ctx context.Context, title string) (*Worksheet, error) {
	c.mu.Lock()
	id, ok := c.sheets[title]
	c.mu.Unlock()
	if ok {
		return &Worksheet{client: c, title: title, id: id}, nil
	}

	if err := c.loadSheets(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	id, ok = c.sheets[title]
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("worksheet %q: %w", title, ErrNotFound)
	}

	return &Worksheet{client: c, title: title, id: id}, nil
}

func (c *Client) loadSheets(ctx context.Context) error {
	var spreadsheet *gsheets.Spreadsheet
	err := c.call("spreadsheet_get", func() error {
		var err error
		spreadsheet, err = c.service.Spreadsheets.Get(c.spreadsheetID).
			Fields("sheets.properties").
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to load worksheets: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range spreadsheet.Sheets {
		if s.Properties == nil {
			continue
		}
		c.sheets[s.Properties.Title] = s.Properties.SheetId
	}

	return nil
}

// call runs one API request and records its metrics
func (c *Client) call(operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	status := "success"
	if err != nil {
		status = "error"
		metrics.RecordError("sheets", operation)
	}
	metrics.RecordSheetsCall(operation, status, time.Since(start).Seconds())
	return err
}
