package enrich

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/raine/lease-to-own/internal/llm"
)

const (
	// DefaultFetchTimeout is the default timeout for image downloads
	DefaultFetchTimeout = 30 * time.Second
	// DefaultMaxImageSize is the default maximum image size (10MB)
	DefaultMaxImageSize = 10 * 1024 * 1024
)

// ErrImageRejected marks a download that reached the image host but did not
// return a usable image: a non-200 status, a non-image content type, or an
// empty or oversized body. Network failures are not wrapped with it.
var ErrImageRejected = errors.New("image rejected")

// ImageSource fetches listing images by URL.
type ImageSource interface {
	Fetch(ctx context.Context, imageURL string) (llm.Image, error)
}

// ImageFetcher downloads listing images over HTTP.
type ImageFetcher struct {
	client  *resty.Client
	maxSize int64
}

// NewImageFetcher creates an ImageFetcher with the given per-request timeout.
func NewImageFetcher(timeout time.Duration) *ImageFetcher {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &ImageFetcher{
		client: resty.New().
			SetDebug(false).
			SetTimeout(timeout).
			SetHeader("Accept", "image/*"),
		maxSize: DefaultMaxImageSize,
	}
}

// WithMaxSize sets a custom maximum file size.
func (f *ImageFetcher) WithMaxSize(maxSize int64) *ImageFetcher {
	f.maxSize = maxSize
	return f
}

// Fetch downloads image data from a URL.
// It respects context cancellation and enforces size limits.
func (f *ImageFetcher) Fetch(ctx context.Context, imageURL string) (llm.Image, error) {
	res, err := f.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(imageURL)
	if err != nil {
		return llm.Image{}, fmt.Errorf("failed to download image: %w", err)
	}
	body := res.RawBody()
	defer body.Close()

	if res.StatusCode() != http.StatusOK {
		return llm.Image{}, fmt.Errorf("%w: download failed: status %d", ErrImageRejected, res.StatusCode())
	}

	// Validate Content-Type is an image
	contentType := res.Header().Get("Content-Type")
	if contentType != "" && !strings.HasPrefix(contentType, "image/") {
		return llm.Image{}, fmt.Errorf("%w: invalid content type: expected image/*, got %s", ErrImageRejected, contentType)
	}

	if res.RawResponse.ContentLength > f.maxSize {
		return llm.Image{}, fmt.Errorf("%w: image too large: %d bytes exceeds limit of %d bytes", ErrImageRejected, res.RawResponse.ContentLength, f.maxSize)
	}

	// LimitReader enforces the limit even if Content-Length is missing or wrong
	data, err := io.ReadAll(io.LimitReader(body, f.maxSize+1))
	if err != nil {
		return llm.Image{}, fmt.Errorf("failed to read image data: %w", err)
	}
	if int64(len(data)) > f.maxSize {
		return llm.Image{}, fmt.Errorf("%w: image too large: exceeds limit of %d bytes", ErrImageRejected, f.maxSize)
	}
	if len(data) == 0 {
		return llm.Image{}, fmt.Errorf("%w: image is empty", ErrImageRejected)
	}

	mimeType := contentType
	if i := strings.IndexByte(mimeType, ';'); i != -1 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}

	return llm.Image{Data: data, MIMEType: mimeType}, nil
}
