package anaconda

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/matzehuels/condapip/pkg/cache"
	"github.com/matzehuels/condapip/pkg/integrations"
)

// DefaultBaseURL is the anaconda.org API root.
const DefaultBaseURL = "https://api.anaconda.org"

// PackageInfo describes a package hosted on an anaconda.org channel.
type PackageInfo struct {
	Name          string   `json:"name"`
	Channel       string   `json:"channel"`
	LatestVersion string   `json:"latest_version"`
	Versions      []string `json:"versions"`
	Summary       string   `json:"summary"`
	License       string   `json:"license"`
}

// Client talks to the anaconda.org API with caching and retries.
//
// All methods are safe for concurrent use.
type Client struct {
	*integrations.Client
	baseURL string
}

// NewClient creates an anaconda.org client. A nil backend disables caching.
func NewClient(backend cache.Cache, cacheTTL time.Duration) *Client {
	return &Client{
		Client:  integrations.NewClient(backend, "anaconda:", cacheTTL, nil),
		baseURL: DefaultBaseURL,
	}
}

// WithBaseURL points the client at another API root (mirrors, tests).
func (c *Client) WithBaseURL(url string) *Client {
	c.baseURL = strings.TrimSuffix(url, "/")
	return c
}

// FetchPackage returns the channel's record for name.
// Missing packages yield [integrations.ErrNotFound].
func (c *Client) FetchPackage(ctx context.Context, channel, name string, refresh bool) (*PackageInfo, error) {
	var info PackageInfo
	key := channel + "/" + name
	err := c.Cached(ctx, key, refresh, &info, func() error {
		var data apiPackage
		url := fmt.Sprintf("%s/package/%s/%s", c.baseURL, integrations.URLEncode(channel), integrations.URLEncode(name))
		if err := c.Get(ctx, url, &data); err != nil {
			if errors.Is(err, integrations.ErrNotFound) {
				return fmt.Errorf("%w: %s/%s", err, channel, name)
			}
			return err
		}
		info = PackageInfo{
			Name:          data.Name,
			Channel:       channel,
			LatestVersion: data.LatestVersion,
			Versions:      data.Versions,
			Summary:       data.Summary,
			License:       data.License,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// Exists reports whether channel carries name. A 404 is not an error.
func (c *Client) Exists(ctx context.Context, channel, name string) (bool, error) {
	_, err := c.FetchPackage(ctx, channel, name, false)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, integrations.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

type apiPackage struct {
	Name          string   `json:"name"`
	LatestVersion string   `json:"latest_version"`
	Versions      []string `json:"versions"`
	Summary       string   `json:"summary"`
	License       string   `json:"license"`
}
