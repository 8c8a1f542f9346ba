package server

import (
	"net/http"
	"net/url"
	"strings"
)

// handleFeeds hands the frontend ready-to-paste poller URLs, with the feed
// token baked in when one is configured.
func (s *Server) handleFeeds(w http.ResponseWriter, r *http.Request) {
	base := strings.TrimRight(s.baseURL, "/")
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		base = scheme + "://" + r.Host
	}

	suffix := ""
	if s.feedToken != "" {
		suffix = "?token=" + url.QueryEscape(s.feedToken)
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"radarr": base + "/list/radarr" + suffix,
		"sonarr": base + "/list/sonarr" + suffix,
	})
}
