package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const defaultSpreadsheetName = "Shop_Inventory"

var (
	sheetsService *sheets.Service
	driveService  *drive.Service
	sheetsMu      sync.Mutex
)

func init() {
	// Load env from .env
	godotenv.Load()
}

// SpreadsheetId is the explicit spreadsheet id; empty means resolve by SpreadsheetName.
func SpreadsheetId() string {
	return strings.TrimSpace(os.Getenv("SHEETS_SPREADSHEET_ID"))
}

func SpreadsheetName() string {
	if v := strings.TrimSpace(os.Getenv("SHEETS_SPREADSHEET_NAME")); v != "" {
		return v
	}
	return defaultSpreadsheetName
}

// credentialOptions prefers inline JSON, then a key file, then Application Default Credentials.
func credentialOptions() []option.ClientOption {
	opts := []option.ClientOption{
		option.WithScopes(sheets.SpreadsheetsScope, drive.DriveScope),
	}
	if credJSON := strings.TrimSpace(os.Getenv("GOOGLE_CREDENTIALS_JSON")); credJSON != "" {
		return append(opts, option.WithCredentialsJSON([]byte(credJSON)))
	}
	credFile := strings.TrimSpace(os.Getenv("GOOGLE_CREDENTIALS_FILE"))
	if credFile == "" {
		credFile = "credentials.json"
	}
	if _, err := os.Stat(credFile); err == nil {
		return append(opts, option.WithCredentialsFile(credFile))
	}
	return opts
}

// GetSheetsServices returns the shared Sheets and Drive clients, creating them on first use.
func GetSheetsServices(ctx context.Context) (*sheets.Service, *drive.Service, error) {
	sheetsMu.Lock()
	defer sheetsMu.Unlock()
	if sheetsService != nil && driveService != nil {
		return sheetsService, driveService, nil
	}

	opts := credentialOptions()
	s, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("init sheets service: %w", err)
	}
	d, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("init drive service: %w", err)
	}
	sheetsService, driveService = s, d
	return sheetsService, driveService, nil
}
