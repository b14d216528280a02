package generation

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pixelforge/pixelforge-api/internal/pkg/imaging"
	"github.com/pixelforge/pixelforge-api/internal/pkg/storage"
)

// Archiver copies a finished job's result out of the provider into our own
// artifact store. Provider result URLs expire; stored copies do not.
type Archiver struct {
	store      storage.Storage
	processor  *imaging.Processor
	httpClient *http.Client
}

func NewArchiver(store storage.Storage, processor *imaging.Processor) *Archiver {
	return &Archiver{
		store:      store,
		processor:  processor,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Save downloads the result, stores it and (for images) a thumbnail.
// Returns public URLs for both; thumbURL is empty for non-image kinds.
func (a *Archiver) Save(ctx context.Context, identityKey, jobID, kind, resultURL string) (artifactURL, thumbURL string, err error) {
	body, contentType, err := a.fetch(ctx, resultURL)
	if err != nil {
		return "", "", err
	}
	defer body.Close()

	if kind != "image" {
		key := fmt.Sprintf("artifacts/%s/%s.mp4", identityKey, jobID)
		if err := a.store.Put(ctx, key, body, contentType); err != nil {
			return "", "", err
		}
		return a.store.GetURL(key), "", nil
	}

	processed, err := a.processor.Process(body)
	if err != nil {
		return "", "", fmt.Errorf("failed to process artifact: %w", err)
	}

	format := "jpeg"
	if processed.ContentType == "image/png" {
		format = "png"
	}
	origKey, thumbKey := imaging.ArtifactPaths(identityKey, jobID, format)

	if err := a.store.Put(ctx, origKey, bytes.NewReader(processed.Original), processed.ContentType); err != nil {
		return "", "", err
	}
	if err := a.store.Put(ctx, thumbKey, bytes.NewReader(processed.Thumbnail), processed.ContentType); err != nil {
		// The original landed; a missing thumbnail is recoverable.
		log.Warn().Err(err).Str("key", thumbKey).Msg("thumbnail upload failed")
		return a.store.GetURL(origKey), "", nil
	}

	return a.store.GetURL(origKey), a.store.GetURL(thumbKey), nil
}

func (a *Archiver) fetch(ctx context.Context, url string) (io.ReadCloser, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build artifact request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download artifact: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, "", fmt.Errorf("artifact download returned status %d", resp.StatusCode)
	}

	return resp.Body, resp.Header.Get("Content-Type"), nil
}
