package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/RahulSriwastaw/new-backend-sub000/internal/infra"
	"github.com/RahulSriwastaw/new-backend-sub000/internal/providers/image"
)

// Downloader fetches remote image content.
type Downloader interface {
	Fetch(ctx context.Context, provider, ref string) (image.SourceImage, error)
}

// AssetOptions configures an AssetStore.
type AssetOptions struct {
	// BaseURL is the public prefix the stored keys are served under.
	BaseURL string
	// Prefix is prepended to every key, e.g. "generated".
	Prefix string
	Logger *infra.Logger
	Now    func() time.Time
}

// AssetStore turns generated images into stable public URLs. Remote results
// are downloaded first because provider URLs usually expire.
type AssetStore struct {
	files      *FileStore
	downloader Downloader
	baseURL    string
	prefix     string
	logger     *infra.Logger
	now        func() time.Time
}

// NewAssetStore wires the file store and the downloader used for remote
// results.
func NewAssetStore(files *FileStore, downloader Downloader, opts AssetOptions) (*AssetStore, error) {
	if files == nil {
		return nil, errors.New("storage: file store is required")
	}
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("storage: base url is required")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	prefix := strings.Trim(strings.TrimSpace(opts.Prefix), "/")
	if prefix == "" {
		prefix = "generated"
	}
	return &AssetStore{
		files:      files,
		downloader: downloader,
		baseURL:    base,
		prefix:     prefix,
		logger:     infra.LoggerOrDiscard(opts.Logger),
		now:        now,
	}, nil
}

// Upload stores res and returns its public URL.
func (s *AssetStore) Upload(ctx context.Context, userID string, res image.Result) (string, error) {
	if res.IsZero() {
		return "", errors.New("storage: empty image")
	}
	data, mimeType := res.Data, res.MIMEType
	if len(data) == 0 {
		if s.downloader == nil {
			return "", errors.New("storage: remote result without downloader")
		}
		src, err := s.downloader.Fetch(ctx, "storage", res.URL)
		if err != nil {
			return "", fmt.Errorf("storage: download result: %w", err)
		}
		data, mimeType = src.Data, src.MIMEType
	}

	key := s.keyFor(userID, mimeType)
	stored, err := s.files.Write(ctx, key, data)
	if err != nil {
		return "", err
	}
	s.logger.Debug().Str("key", stored).Int("bytes", len(data)).Msg("storage: asset stored")
	return s.baseURL + "/" + stored, nil
}

func (s *AssetStore) keyFor(userID, mimeType string) string {
	owner := strings.TrimSpace(userID)
	if owner == "" {
		owner = "anonymous"
	}
	day := s.now().UTC().Format("2006/01/02")
	return path.Join(s.prefix, owner, day, uuid.NewString()+extensionFor(mimeType))
}

func extensionFor(mimeType string) string {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".png"
	}
}
