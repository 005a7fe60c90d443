package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/yontaro/kakeibo/internal/config"
	"github.com/yontaro/kakeibo/internal/drive"
	"github.com/yontaro/kakeibo/internal/sheets"
)

// buildStore wires up the Google Sheets table store from configuration.
func buildStore(ctx context.Context) (*sheets.Store, *sheets.Config, error) {
	cfg, err := config.LoadSheetsConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("sheets configuration: %w", err)
	}

	httpClient, err := sheets.NewHTTPClient(ctx, *cfg)
	if err != nil {
		return nil, nil, err
	}

	svc, err := sheets.NewSheetsService(ctx, httpClient)
	if err != nil {
		return nil, nil, err
	}

	store, err := sheets.NewStore(ctx, svc, *cfg, slog.Default())
	if err != nil {
		return nil, nil, err
	}

	return store, cfg, nil
}

// buildSource wires up the Drive source listing from configuration.
func buildSource(ctx context.Context, cfg *sheets.Config) (*drive.Client, error) {
	folderID, err := config.LoadDriveFolderID()
	if err != nil {
		return nil, err
	}

	httpClient, err := sheets.NewHTTPClient(ctx, *cfg)
	if err != nil {
		return nil, err
	}

	svc, err := sheets.NewDriveService(ctx, httpClient)
	if err != nil {
		return nil, err
	}

	return drive.NewClient(svc, folderID, slog.Default())
}
