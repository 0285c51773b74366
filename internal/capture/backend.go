package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Douglasgls/zona-verde-app/internal/fetch"
	"github.com/Douglasgls/zona-verde-app/internal/utils"
)

// CaptureError reports a failed capture-backend call with the backend's
// detail text when it sent one.
type CaptureError struct {
	Op         string
	SpotID     int
	StatusCode int
	Detail     string
}

func (e *CaptureError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s for spot %d failed: %s (status %d)", e.Op, e.SpotID, e.Detail, e.StatusCode)
	}
	return fmt.Sprintf("%s for spot %d failed: %s", e.Op, e.SpotID, e.Detail)
}

// Backend is the HTTP client for the camera capture service. Spot ids are
// zero-padded to two digits in its paths.
type Backend struct {
	baseURL string
	client  *http.Client
}

func NewBackend(baseURL string, timeout time.Duration) *Backend {
	return &Backend{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// TakePicture triggers an asynchronous capture. The backend only confirms
// acceptance; the finished image is announced later on the recognition feed.
func (b *Backend) TakePicture(ctx context.Context, spotID int) error {
	url := fmt.Sprintf("%s/plate/take_picture/%s", b.baseURL, utils.FormatSpotID(spotID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return &CaptureError{Op: "take_picture", SpotID: spotID, Detail: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return &CaptureError{Op: "take_picture", SpotID: spotID, Detail: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return &CaptureError{
			Op:         "take_picture",
			SpotID:     spotID,
			StatusCode: resp.StatusCode,
			Detail:     fetch.BackendMessage(body),
		}
	}
	return nil
}

// LastPictureInfo returns the timestamp of the most recent stored picture.
func (b *Backend) LastPictureInfo(ctx context.Context, spotID int) (string, error) {
	url := fmt.Sprintf("%s/plate/last_picture_info/%s", b.baseURL, utils.FormatSpotID(spotID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &CaptureError{Op: "last_picture_info", SpotID: spotID, Detail: err.Error()}
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return "", &CaptureError{Op: "last_picture_info", SpotID: spotID, Detail: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &CaptureError{Op: "last_picture_info", SpotID: spotID, StatusCode: resp.StatusCode, Detail: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &CaptureError{
			Op:         "last_picture_info",
			SpotID:     spotID,
			StatusCode: resp.StatusCode,
			Detail:     fetch.BackendMessage(body),
		}
	}

	var info struct {
		Timestamp string `json:"timestamp"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return "", &CaptureError{Op: "last_picture_info", SpotID: spotID, StatusCode: resp.StatusCode, Detail: err.Error()}
	}
	return info.Timestamp, nil
}

// CheckLastPicture verifies that the stored image resource responds.
func (b *Backend) CheckLastPicture(ctx context.Context, spotID int) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.LastPictureURL(spotID, 0), nil)
	if err != nil {
		return &CaptureError{Op: "last_picture", SpotID: spotID, Detail: err.Error()}
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return &CaptureError{Op: "last_picture", SpotID: spotID, Detail: err.Error()}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &CaptureError{
			Op:         "last_picture",
			SpotID:     spotID,
			StatusCode: resp.StatusCode,
			Detail:     "image resource unavailable",
		}
	}
	return nil
}

// LastPictureURL builds the image resource URL; a non-zero cacheBust token
// is appended so consumers never see a stale cached image.
func (b *Backend) LastPictureURL(spotID int, cacheBust int64) string {
	url := fmt.Sprintf("%s/plate/last_picture/%s", b.baseURL, utils.FormatSpotID(spotID))
	if cacheBust > 0 {
		url = fmt.Sprintf("%s?%d", url, cacheBust)
	}
	return url
}
