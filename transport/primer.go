package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// DownloadPrimer fetches res to <dir>/<name>.pack, restarting from the
// byte offset of any partial "<name>.pack.temp" left over from a prior,
// interrupted run. bearerToken may be empty for an unauthenticated
// resource. It returns the path to the completed, renamed pack file.
func (t *Transport) DownloadPrimer(ctx context.Context, res AltResource, dir, name, bearerToken string) (string, error) {
	if res.FileType != "pack" {
		return "", fmt.Errorf("unsupported primer resource type %q", res.FileType)
	}

	finalPath := filepath.Join(dir, name+".pack")
	tempPath := finalPath + ".temp"

	var offset int64
	if fi, err := os.Stat(tempPath); err == nil {
		offset = fi.Size()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, res.URL, nil)
	if err != nil {
		return "", err
	}
	if bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+bearerToken)
	}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := t.httpClient().Do(req)
	if err != nil {
		return "", fmt.Errorf("unable to download primer resource: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return "", fmt.Errorf("primer resource download failed: status %d", resp.StatusCode)
	}

	flags := os.O_WRONLY | os.O_CREATE
	if resp.StatusCode == http.StatusPartialContent {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
		offset = 0
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	f, err := os.OpenFile(tempPath, flags, 0644)
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return "", fmt.Errorf("unable to write primer resource: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	if err := os.Rename(tempPath, finalPath); err != nil {
		return "", fmt.Errorf("unable to finalize primer download: %w", err)
	}

	return finalPath, nil
}
