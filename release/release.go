// Package release resolves the container image version from a remote JSON
// manifest. The manifest is fetched once per synth over HTTPS, without
// authentication and without retry; any failure aborts the run.
package release

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/apex/log"
	"github.com/tidwall/gjson"
)

// DefaultTimeout bounds the whole request when the caller's context has no deadline.
const DefaultTimeout = 10 * time.Second

const maxManifestBytes = 1 << 20

var (
	// ErrInsecureURL is returned for manifest URLs that are not https.
	ErrInsecureURL = errors.New("version manifest url must use https")
	// ErrMissingVersion is returned when the field is absent or not a string.
	ErrMissingVersion = errors.New("version manifest has no version")
	// ErrInvalidVersion is returned when the value is not a semantic version.
	ErrInvalidVersion = errors.New("version manifest value is not a semantic version")
)

// Manifest locates the version string: URL of the JSON document and the
// gjson path of the field inside it.
type Manifest struct {
	URL   string
	Field string
}

// Fetch downloads the manifest and returns the version as published (for
// example "1.14.2" or "v1.14.2"), after checking it parses as semver.
func Fetch(ctx context.Context, client *http.Client, m Manifest) (string, error) {
	u, err := url.Parse(m.URL)
	if err != nil {
		return "", fmt.Errorf("parse version manifest url: %w", err)
	}
	if u.Scheme != "https" {
		return "", fmt.Errorf("%w: %q", ErrInsecureURL, m.URL)
	}
	field := m.Field
	if field == "" {
		field = "version"
	}
	if client == nil {
		client = http.DefaultClient
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}

	log.WithField("url", m.URL).Warn("resolving image version from an unauthenticated manifest; pin container.tag to skip")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("build version manifest request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch version manifest: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("fetch version manifest: unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestBytes))
	if err != nil {
		return "", fmt.Errorf("read version manifest: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("version manifest is not valid json")
	}

	value := gjson.GetBytes(body, field)
	if value.Type != gjson.String || value.Str == "" {
		return "", fmt.Errorf("%w at %q", ErrMissingVersion, field)
	}
	if _, err := semver.NewVersion(value.Str); err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidVersion, value.Str, err)
	}

	log.WithFields(log.Fields{"url": m.URL, "version": value.Str}).Info("resolved image version")
	return value.Str, nil
}
