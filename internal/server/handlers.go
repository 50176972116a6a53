package server

import (
	"net/http"
	"sync"
	"time"
)

type serviceHealth struct {
	Status       string  `json:"status"`
	URL          string  `json:"url"`
	ResponseTime float64 `json:"response_time,omitempty"`
	Error        string  `json:"error,omitempty"`
}

// handleHealth probes every registered service's /api/health
// concurrently and aggregates the results. overall_status is healthy
// only when every dependency reports healthy.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	names := s.registry.Names()
	statuses := make(map[string]serviceHealth, len(names))

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, name := range names {
		route, err := s.registry.Resolve(name)
		if err != nil {
			continue
		}
		wg.Add(1)
		go func(name, baseURL string) {
			defer wg.Done()
			status := s.probeService(r, baseURL)
			mu.Lock()
			statuses[name] = status
			mu.Unlock()
		}(name, route.BaseURL)
	}
	wg.Wait()

	overall := "healthy"
	for _, st := range statuses {
		if st.Status != "healthy" {
			overall = "degraded"
			break
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"gateway":        "healthy",
		"overall_status": overall,
		"services":       statuses,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) probeService(r *http.Request, baseURL string) serviceHealth {
	probeStart := time.Now()

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, baseURL+"/api/health", nil)
	if err != nil {
		return serviceHealth{Status: "down", URL: baseURL, Error: err.Error()}
	}
	resp, err := s.probeClient.Do(req)
	if err != nil {
		return serviceHealth{Status: "down", URL: baseURL, Error: err.Error()}
	}
	defer resp.Body.Close()

	status := "healthy"
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		status = "unhealthy"
	}
	return serviceHealth{
		Status:       status,
		URL:          baseURL,
		ResponseTime: time.Since(probeStart).Seconds(),
	}
}

// handleMetrics serves the cumulative gateway counters as JSON.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

// handleNotFound answers unmatched paths with the list of routable
// services.
func (s *Server) handleNotFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]any{
		"error":              "Endpoint not found",
		"available_services": s.registry.Names(),
	})
}

// handleDocs serves a static catalog of the gateway surface.
func (s *Server) handleDocs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":        "TuneTrail API Gateway",
		"version":     gatewayVersion,
		"description": "API Gateway for TuneTrail microservices",
		"services": map[string]any{
			"profile": map[string]any{
				"description": "User profile and timeline management",
				"base_url":    "/api/profile",
				"endpoints": map[string]string{
					"POST /register": "Register new user",
					"POST /login":    "User login",
					"GET /me":        "Get user profile",
					"PUT /me":        "Update user profile",
					"GET /timeline":  "Get user timeline",
					"POST /timeline": "Add timeline entry",
				},
			},
			"playlist": map[string]any{
				"description": "Playlist and song management",
				"base_url":    "/api/playlist",
				"endpoints": map[string]string{
					"GET /":                       "Get user playlists",
					"POST /":                      "Create new playlist",
					"GET /{id}":                   "Get playlist details",
					"PUT /{id}":                   "Update playlist",
					"DELETE /{id}":                "Delete playlist",
					"POST /{id}/songs":            "Add song to playlist",
					"DELETE /{id}/songs/{songId}": "Remove song from playlist",
				},
			},
			"social": map[string]any{
				"description": "Social feed and interactions",
				"base_url":    "/api/social",
				"endpoints": map[string]string{
					"GET /feed":                "Get social feed",
					"POST /posts":              "Create new post",
					"POST /posts/{id}/like":    "Like/unlike post",
					"POST /posts/{id}/comment": "Comment on post",
					"GET /posts/{id}/comments": "Get post comments",
				},
			},
			"media": map[string]any{
				"description": "Media upload and streaming",
				"base_url":    "/api/media",
			},
			"comment": map[string]any{
				"description": "Comments and replies",
				"base_url":    "/api/comment",
			},
			"analytics": map[string]any{
				"description": "Listening and engagement analytics",
				"base_url":    "/api/analytics",
			},
		},
	})
}
