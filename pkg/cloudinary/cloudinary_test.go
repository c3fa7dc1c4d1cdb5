package cloudinary

import (
	"net/url"
	"testing"
	"time"

	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestSignedURLIncludesExpiry(t *testing.T) {
	svc, err := New(Config{CloudName: "demo", APIKey: "key", APISecret: "secret", Folder: "/reports/"}, zerolog.Nop())
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Unix(1_700_000_000, 0) }

	link, err := svc.SignedURL("reports/42/v3.pdf", 10*time.Minute)
	require.NoError(t, err)

	parsed, err := url.Parse(link)
	require.NoError(t, err)
	require.Equal(t, "https", parsed.Scheme)
	require.Equal(t, "api.cloudinary.com", parsed.Host)
	require.Equal(t, "/v1_1/demo/raw/download", parsed.Path)

	query := parsed.Query()
	require.Equal(t, "reports/reports/42/v3.pdf", query.Get("public_id"))
	require.Equal(t, "1700000000", query.Get("timestamp"))
	require.Equal(t, "1700000600", query.Get("expires_at"))
	require.Equal(t, "true", query.Get("attachment"))
	require.Equal(t, "key", query.Get("api_key"))

	unsigned := url.Values{}
	for _, key := range []string{"public_id", "timestamp", "expires_at", "attachment"} {
		unsigned.Set(key, query.Get(key))
	}
	expected, err := api.SignParameters(unsigned, "secret")
	require.NoError(t, err)
	require.Equal(t, expected, query.Get("signature"))
}

func TestSignedURLMatchesSDKDownloadEndpoint(t *testing.T) {
	svc, err := New(Config{CloudName: "demo", APIKey: "key", APISecret: "secret"}, zerolog.Nop())
	require.NoError(t, err)

	sdkLink, err := svc.client.Upload.PrivateDownloadURL(uploader.PrivateDownloadURLParams{
		PublicID:     "7/v1.pdf",
		ResourceType: api.File,
	})
	require.NoError(t, err)
	sdkURL, err := url.Parse(sdkLink)
	require.NoError(t, err)

	link, err := svc.SignedURL("7/v1.pdf", time.Minute)
	require.NoError(t, err)
	ours, err := url.Parse(link)
	require.NoError(t, err)

	require.Equal(t, sdkURL.Host, ours.Host)
	require.Equal(t, sdkURL.Path, ours.Path)
}

func TestSignedURLRequiresPath(t *testing.T) {
	svc, err := New(Config{CloudName: "demo", APIKey: "key", APISecret: "secret"}, zerolog.Nop())
	require.NoError(t, err)

	_, err = svc.SignedURL("  ", time.Minute)
	require.Error(t, err)
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Config{CloudName: "demo"}, zerolog.Nop())
	require.Error(t, err)
}
