package cloudinary

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Service stores rendered report artifacts as raw Cloudinary assets.
type Service struct {
	client    *cloudinary.Cloudinary
	cloudName string
	apiKey    string
	apiSecret string
	folder    string
	logger    zerolog.Logger
	now       func() time.Time
}

// New constructs a Cloudinary service instance.
func New(cfg Config, logger zerolog.Logger) (*Service, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &Service{
		client:    cld,
		cloudName: cfg.CloudName,
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		folder:    strings.Trim(cfg.Folder, "/"),
		logger:    logger.With().Str("component", "cloudinary").Logger(),
		now:       time.Now,
	}, nil
}

// Upload stores data under the given artifact path and returns the stored public id.
func (s *Service) Upload(ctx context.Context, artifactPath, contentType string, data []byte, overwrite bool) (string, error) {
	publicID := s.PublicID(artifactPath)
	params := uploader.UploadParams{
		PublicID:     publicID,
		ResourceType: api.File,
		Overwrite:    &overwrite,
	}

	result, err := s.client.Upload.Upload(ctx, bytes.NewReader(data), params)
	if err != nil {
		return "", fmt.Errorf("failed to upload artifact: %w", err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("failed to upload artifact: %s", result.Error.Message)
	}

	s.logger.Info().
		Str("public_id", result.PublicID).
		Str("content_type", contentType).
		Int("bytes", len(data)).
		Msg("artifact uploaded to cloudinary")

	return result.PublicID, nil
}

// SignedURL returns a time-limited private download link for a stored artifact.
func (s *Service) SignedURL(artifactPath string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(artifactPath) == "" {
		return "", fmt.Errorf("artifact path is required")
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	// expires_at must be unix seconds; the SDK's PrivateDownloadURL would send it as RFC 3339.
	now := s.now().UTC()
	params := url.Values{}
	params.Set("public_id", s.PublicID(artifactPath))
	params.Set("timestamp", strconv.FormatInt(now.Unix(), 10))
	params.Set("expires_at", strconv.FormatInt(now.Add(ttl).Unix(), 10))
	params.Set("attachment", "true")

	signature, err := api.SignParameters(params, s.apiSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign download url: %w", err)
	}
	params.Set("signature", signature)
	params.Set("api_key", s.apiKey)

	return s.downloadEndpoint() + "?" + params.Encode(), nil
}

func (s *Service) downloadEndpoint() string {
	base := api.BaseURL(s.client.Config.API.UploadPrefix, "")
	return fmt.Sprintf("%s/%s/%s", base, s.cloudName, api.BuildPath(api.File, "download"))
}

// PublicID maps an artifact path to its Cloudinary public id.
func (s *Service) PublicID(artifactPath string) string {
	clean := strings.Trim(path.Clean("/"+artifactPath), "/")
	if s.folder == "" {
		return clean
	}
	return s.folder + "/" + clean
}
