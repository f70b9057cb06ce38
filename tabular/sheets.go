package tabular

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/sheets/v4"
)

const spreadsheetMimeType = "application/vnd.google-apps.spreadsheet"

// SheetsStore talks to one Google spreadsheet.
type SheetsStore struct {
	svc           *sheets.Service
	spreadsheetId string

	mu       sync.Mutex
	sheetIds map[string]int64
}

func NewSheetsStore(svc *sheets.Service, spreadsheetId string) *SheetsStore {
	return &SheetsStore{svc: svc, spreadsheetId: spreadsheetId}
}

// OpenSpreadsheet resolves the spreadsheet by id, or by name through Drive, creating it when missing.
func OpenSpreadsheet(ctx context.Context, svc *sheets.Service, drv *drive.Service, id, name string) (*SheetsStore, error) {
	if id != "" {
		return NewSheetsStore(svc, id), nil
	}
	if name == "" {
		return nil, fmt.Errorf("spreadsheet id or name is required")
	}

	q := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false",
		strings.ReplaceAll(name, "'", `\'`), spreadsheetMimeType)
	list, err := drv.Files.List().Q(q).Fields("files(id, name)").PageSize(1).Context(ctx).Do()
	if err != nil {
		return nil, Wrap("open", name, err)
	}
	if len(list.Files) > 0 {
		return NewSheetsStore(svc, list.Files[0].Id), nil
	}

	created, err := svc.Spreadsheets.Create(&sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{Title: name},
	}).Context(ctx).Do()
	if err != nil {
		return nil, Wrap("create", name, err)
	}
	return NewSheetsStore(svc, created.SpreadsheetId), nil
}

func (s *SheetsStore) SpreadsheetId() string {
	return s.spreadsheetId
}

func (s *SheetsStore) refreshSheetIds(ctx context.Context) (map[string]int64, []string, error) {
	resp, err := s.svc.Spreadsheets.Get(s.spreadsheetId).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return nil, nil, err
	}
	ids := make(map[string]int64, len(resp.Sheets))
	names := make([]string, 0, len(resp.Sheets))
	for _, sh := range resp.Sheets {
		if sh.Properties == nil {
			continue
		}
		ids[sh.Properties.Title] = sh.Properties.SheetId
		names = append(names, sh.Properties.Title)
	}
	s.mu.Lock()
	s.sheetIds = ids
	s.mu.Unlock()
	return ids, names, nil
}

func (s *SheetsStore) Sheets(ctx context.Context) ([]string, error) {
	_, names, err := s.refreshSheetIds(ctx)
	if err != nil {
		return nil, Wrap("list sheets", "", err)
	}
	return names, nil
}

func (s *SheetsStore) AddSheet(ctx context.Context, sheet string) error {
	_, err := s.svc.Spreadsheets.BatchUpdate(s.spreadsheetId, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: sheet},
			},
		}},
	}).Context(ctx).Do()
	return Wrap("add sheet", sheet, err)
}

func (s *SheetsStore) DeleteSheet(ctx context.Context, sheet string) error {
	ids, _, err := s.refreshSheetIds(ctx)
	if err != nil {
		return Wrap("delete sheet", sheet, err)
	}
	id, ok := ids[sheet]
	if !ok {
		return Wrap("delete sheet", sheet, ErrSheetNotFound)
	}
	_, err = s.svc.Spreadsheets.BatchUpdate(s.spreadsheetId, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			// the default sheet has id 0, which omitempty would drop
			DeleteSheet: &sheets.DeleteSheetRequest{SheetId: id, ForceSendFields: []string{"SheetId"}},
		}},
	}).Context(ctx).Do()
	return Wrap("delete sheet", sheet, err)
}

func (s *SheetsStore) Values(ctx context.Context, sheet string) ([][]interface{}, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetId, quoteSheet(sheet)).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).Do()
	if err != nil {
		return nil, Wrap("read", sheet, err)
	}
	return resp.Values, nil
}

func (s *SheetsStore) AppendRow(ctx context.Context, sheet string, row []interface{}) error {
	_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetId, quoteSheet(sheet), &sheets.ValueRange{
		Values: [][]interface{}{row},
	}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	return Wrap("append", sheet, err)
}

func (s *SheetsStore) UpdateCell(ctx context.Context, sheet string, row, col int, value interface{}) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return Wrap("update", sheet, err)
	}
	rng := quoteSheet(sheet) + "!" + cell
	_, err = s.svc.Spreadsheets.Values.Update(s.spreadsheetId, rng, &sheets.ValueRange{
		Values: [][]interface{}{{value}},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return Wrap("update", sheet, err)
}

// quoteSheet renders a sheet name as an A1 range prefix.
func quoteSheet(sheet string) string {
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
}
