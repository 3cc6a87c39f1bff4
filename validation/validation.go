package validation

import (
	"fmt"
	"net/url"
	"strings"
)

type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// spotifyHosts are accepted without a scheme and normalized to https.
var spotifyHosts = []string{"open.spotify.com/", "spotify.com/", "www.spotify.com/"}

const urlHint = "; expected an http(s) URL or a spotify: URI, search queries are not accepted"

// ValidateSourceURL checks that rawURL is something the downloader can
// resolve: an http(s) URL with a host, or a spotify: URI. It returns the
// trimmed value, with https:// added to scheme-less Spotify links.
func ValidateSourceURL(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", &ValidationError{Message: "spotify_url is required"}
	}

	if strings.HasPrefix(strings.ToLower(rawURL), "spotify:") {
		if len(strings.Split(rawURL, ":")) < 3 {
			return "", &ValidationError{Message: "invalid spotify URI"}
		}
		return rawURL, nil
	}

	lower := strings.ToLower(rawURL)
	for _, host := range spotifyHosts {
		if strings.HasPrefix(lower, host) {
			rawURL = "https://" + rawURL
			break
		}
	}

	parsedURL, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return "", &ValidationError{Message: "invalid URL format" + urlHint}
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return "", &ValidationError{Message: "URL must start with http or https" + urlHint}
	}

	if parsedURL.Host == "" {
		return "", &ValidationError{Message: "URL must have a host"}
	}

	return rawURL, nil
}

// ValidateFolder rejects folder values the filesystem can never accept.
func ValidateFolder(folder string) error {
	if strings.ContainsRune(folder, 0) {
		return &ValidationError{Message: fmt.Sprintf("invalid download_folder: %q", folder)}
	}
	return nil
}
