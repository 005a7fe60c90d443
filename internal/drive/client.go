// Package drive lists and downloads source CSV exports from a Google
// Drive folder.
package drive

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/yontaro/kakeibo/internal/common"
	"github.com/yontaro/kakeibo/internal/model"
	"github.com/yontaro/kakeibo/internal/service"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
	"google.golang.org/api/drive/v3"
)

// Client implements service.SourceListing over one Drive folder of
// Shift-JIS CSV exports.
type Client struct {
	service  *drive.Service
	logger   *slog.Logger
	folderID string
}

// NewClient creates a Drive source listing for the given folder.
func NewClient(svc *drive.Service, folderID string, logger *slog.Logger) (*Client, error) {
	if folderID == "" {
		return nil, fmt.Errorf("%w: drive folder ID", common.ErrMissingConfig)
	}
	return &Client{service: svc, folderID: folderID, logger: logger}, nil
}

// List returns the CSV files in the source folder.
func (c *Client) List(ctx context.Context) ([]service.SourceFile, error) {
	query := fmt.Sprintf("'%s' in parents and trashed = false and mimeType != 'application/vnd.google-apps.folder'", c.folderID)

	var files []service.SourceFile
	pageToken := ""
	for {
		call := c.service.Files.List().
			Q(query).
			Fields("nextPageToken", "files(id, name, modifiedTime)").
			OrderBy("name").
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		page, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrSourceUnavailable, err)
		}

		for _, f := range page.Files {
			modified, parseErr := time.Parse(time.RFC3339, f.ModifiedTime)
			if parseErr != nil {
				return nil, fmt.Errorf("file %s has unparseable modified time %q: %w", f.Name, f.ModifiedTime, parseErr)
			}
			files = append(files, service.SourceFile{
				ID:         f.Id,
				Name:       f.Name,
				ModifiedAt: modified,
			})
		}

		pageToken = page.NextPageToken
		if pageToken == "" {
			break
		}
	}

	c.logger.Debug("listed source folder", "folder", c.folderID, "files", len(files))
	return files, nil
}

// Download fetches one file and decodes it from Shift-JIS CSV into rows.
// Every row must have exactly the fixed column count.
func (c *Client) Download(ctx context.Context, file service.SourceFile) ([][]string, error) {
	resp, err := c.service.Files.Get(file.ID).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", file.Name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	return DecodeCSV(file.Name, resp.Body)
}

// DecodeCSV decodes Shift-JIS CSV content into rows, enforcing the fixed
// field count on every row. A malformed row fails the whole file.
func DecodeCSV(filename string, r io.Reader) ([][]string, error) {
	reader := csv.NewReader(transform.NewReader(r, japanese.ShiftJIS.NewDecoder()))
	reader.FieldsPerRecord = model.FixedColumnCount

	var rows [][]string
	for line := 1; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, common.NewFormatError(filename, line, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
