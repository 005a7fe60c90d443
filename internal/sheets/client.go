package sheets

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// NewHTTPClient builds an authenticated HTTP client for the Google APIs
// from either a service account key or OAuth2 refresh-token credentials.
func NewHTTPClient(ctx context.Context, config Config) (*http.Client, error) {
	var tokenSource oauth2.TokenSource

	scopes := []string{sheets.SpreadsheetsScope, drive.DriveReadonlyScope}

	if config.ServiceAccountPath != "" {
		// Use service account authentication
		jsonKey, err := os.ReadFile(config.ServiceAccountPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read service account key file: %w", err)
		}

		jwtConfig, err := google.JWTConfigFromJSON(jsonKey, scopes...)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", err)
		}

		tokenSource = jwtConfig.TokenSource(ctx)
	} else {
		// Use OAuth2 authentication
		oauthConfig := &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       scopes,
		}

		token := &oauth2.Token{
			RefreshToken: config.RefreshToken,
			TokenType:    "Bearer",
		}

		tokenSource = oauthConfig.TokenSource(ctx, token)
	}

	return oauth2.NewClient(ctx, tokenSource), nil
}

// NewSheetsService creates a Google Sheets API service.
func NewSheetsService(ctx context.Context, client *http.Client) (*sheets.Service, error) {
	srv, err := sheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}
	return srv, nil
}

// NewDriveService creates a Google Drive API service.
func NewDriveService(ctx context.Context, client *http.Client) (*drive.Service, error) {
	srv, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create drive service: %w", err)
	}
	return srv, nil
}
