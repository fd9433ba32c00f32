package sheets

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

// Client implements API over the Google Sheets v4 REST API.
type Client struct {
	svc *gsheets.Service
}

// NewClient authenticates with service account credentials (raw or base64 JSON).
func NewClient(ctx context.Context, credentials string, opts ...option.ClientOption) (*Client, error) {
	creds, err := DecodeCredentials(credentials)
	if err != nil {
		return nil, err
	}
	opts = append([]option.ClientOption{
		option.WithCredentialsJSON(creds),
		option.WithScopes(gsheets.SpreadsheetsScope),
	}, opts...)
	svc, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets: create service: %w", err)
	}
	return &Client{svc: svc}, nil
}

// NewClientWithService wraps an existing service, e.g. one built with option.WithEndpoint in tests.
func NewClientWithService(svc *gsheets.Service) *Client {
	return &Client{svc: svc}
}

// Titles implements API.
func (c *Client) Titles(ctx context.Context, spreadsheetID string) ([]string, error) {
	resp, err := c.svc.Spreadsheets.Get(spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(resp.Sheets))
	for _, s := range resp.Sheets {
		if s.Properties != nil && s.Properties.Title != "" {
			out = append(out, s.Properties.Title)
		}
	}
	return out, nil
}

// AddTab implements API.
func (c *Client) AddTab(ctx context.Context, spreadsheetID, title string) error {
	req := &gsheets.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheets.Request{{
			AddSheet: &gsheets.AddSheetRequest{
				Properties: &gsheets.SheetProperties{
					Title:          title,
					GridProperties: &gsheets.GridProperties{RowCount: 1000, ColumnCount: 12},
				},
			},
		}},
	}
	_, err := c.svc.Spreadsheets.BatchUpdate(spreadsheetID, req).Context(ctx).Do()
	return err
}

// Read implements API.
func (c *Client) Read(ctx context.Context, spreadsheetID, rng string) ([][]string, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	out := make([][]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = fmt.Sprint(v)
		}
		out = append(out, cells)
	}
	return out, nil
}

// Update implements API.
func (c *Client) Update(ctx context.Context, spreadsheetID, rng string, rows [][]string) error {
	_, err := c.svc.Spreadsheets.Values.Update(spreadsheetID, rng, valueRange(rows)).
		ValueInputOption("RAW").Context(ctx).Do()
	return err
}

// Append implements API.
func (c *Client) Append(ctx context.Context, spreadsheetID, rng string, rows [][]string) error {
	_, err := c.svc.Spreadsheets.Values.Append(spreadsheetID, rng, valueRange(rows)).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	return err
}

func valueRange(rows [][]string) *gsheets.ValueRange {
	values := make([][]interface{}, len(rows))
	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = v
		}
		values[i] = cells
	}
	return &gsheets.ValueRange{Values: values}
}
