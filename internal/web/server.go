// Package web provides the read-model server: a JSON API, a server-sent
// events stream, and a minimal status page over the feature store.
package web

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/crewline/crewline/internal/config"
	"github.com/crewline/crewline/internal/feature"
)

// snapshotInterval is how often the ticker polls the store for changes.
const snapshotInterval = 2 * time.Second

// Server exposes features, pipeline status, and change summaries.
type Server struct {
	features *feature.Store
	cfg      *config.Store
	hub      *hub
	metrics  *metrics
}

// NewServer creates a read-model server over the store.
func NewServer(features *feature.Store, cfg *config.Store) *Server {
	return &Server{
		features: features,
		cfg:      cfg,
		hub:      newHub(),
		metrics:  newMetrics(),
	}
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", s.handleIndex)
	mux.HandleFunc("GET /api/features", s.handleFeatures)
	mux.HandleFunc("GET /api/features/{id}", s.handleFeature)
	mux.HandleFunc("PATCH /api/features/{id}", s.handlePatchFeature)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/openspec/changes", s.handleChanges)
	mux.HandleFunc("GET /api/config", s.handleConfig)
	mux.HandleFunc("GET /api/events", s.handleEvents)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))
	return mux
}

// Watch runs the snapshot ticker until the context is canceled. A tick
// that cannot read the store (writer holding the lock) is skipped; the
// next tick retries.
func (s *Server) Watch(ctx context.Context) {
	ticker := time.NewTicker(snapshotInterval)
	defer ticker.Stop()
	var previous []byte
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			features, err := s.features.List(ctx, feature.Filter{})
			if err != nil {
				s.metrics.snapshotSkips.Inc()
				log.Debug().Err(err).Msg("snapshot skipped")
				continue
			}
			s.metrics.observe(features)
			snapshot, err := json.Marshal(featuresOrEmpty(features))
			if err != nil {
				continue
			}
			if bytes.Equal(snapshot, previous) {
				continue
			}
			previous = snapshot
			s.hub.broadcast("features", snapshot)
		}
	}
}

func featuresOrEmpty(features []feature.Feature) []feature.Feature {
	if features == nil {
		return []feature.Feature{}
	}
	return features
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Debug().Err(err).Msg("write response failed")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

//go:embed templates/*.html
var templatesFS embed.FS

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	tmpl, err := template.ParseFS(templatesFS, "templates/index.html")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	features, err := s.features.List(r.Context(), feature.Filter{})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := tmpl.Execute(w, featuresOrEmpty(features)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleFeatures(w http.ResponseWriter, r *http.Request) {
	filter := feature.Filter{
		Status:     r.URL.Query().Get("status"),
		AssignedTo: r.URL.Query().Get("assigned"),
	}
	features, err := s.features.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, featuresOrEmpty(features))
}

func (s *Server) handleFeature(w http.ResponseWriter, r *http.Request) {
	f, err := s.features.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// featurePatch is the JSON body accepted by PATCH. It mirrors the
// allow-listed update fields.
type featurePatch struct {
	Category               *string         `json:"category"`
	Description            *string         `json:"description"`
	Notes                  *string         `json:"notes"`
	Status                 *feature.Status `json:"status"`
	DependsOn              *[]string       `json:"depends_on"`
	Requirements           *[]string       `json:"requirements"`
	ArchitectureCompliance *[]string       `json:"architecture_compliance"`
	VerificationSteps      *[]string       `json:"verification_steps"`
	AssignedTo             *string         `json:"assigned_to"`
	ReviewedBy             *string         `json:"reviewed_by"`
	TestedBy               *string         `json:"tested_by"`
	Passes                 *bool           `json:"passes"`
}

func (s *Server) handlePatchFeature(w http.ResponseWriter, r *http.Request) {
	if _, err := s.features.Get(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	var patch featurePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse patch: %w", err))
		return
	}
	update := feature.Update{
		Category:               patch.Category,
		Description:            patch.Description,
		Notes:                  patch.Notes,
		Status:                 patch.Status,
		DependsOn:              patch.DependsOn,
		Requirements:           patch.Requirements,
		ArchitectureCompliance: patch.ArchitectureCompliance,
		VerificationSteps:      patch.VerificationSteps,
		AssignedTo:             patch.AssignedTo,
		ReviewedBy:             patch.ReviewedBy,
		TestedBy:               patch.TestedBy,
		Passes:                 patch.Passes,
	}
	updated, err := s.features.Update(r.Context(), r.PathValue("id"), update)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if data, err := json.Marshal(updated); err == nil {
		s.hub.broadcast("feature-updated", data)
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	features, err := s.features.List(r.Context(), feature.Filter{})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	counts := map[string]int{}
	for _, f := range features {
		counts[string(f.Status)]++
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total":    len(features),
		"counts":   counts,
		"complete": counts[string(feature.StatusComplete)],
	})
}

type changeSummary struct {
	Change   string            `json:"change"`
	Complete int               `json:"complete"`
	Total    int               `json:"total"`
	Features []feature.Feature `json:"features"`
}

func (s *Server) handleChanges(w http.ResponseWriter, r *http.Request) {
	features, err := s.features.List(r.Context(), feature.Filter{})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	groups := map[string]*changeSummary{}
	for _, f := range features {
		if f.OpenSpecChangeID == "" {
			continue
		}
		group, ok := groups[f.OpenSpecChangeID]
		if !ok {
			group = &changeSummary{Change: f.OpenSpecChangeID}
			groups[f.OpenSpecChangeID] = group
		}
		group.Total++
		if f.Status == feature.StatusComplete {
			group.Complete++
		}
		group.Features = append(group.Features, f)
	}
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]changeSummary, 0, len(names))
	for _, name := range names {
		out = append(out, *groups[name])
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.cfg.All(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.hub.subscribe()
	defer s.hub.unsubscribe(ch)
	s.metrics.sseClients.Set(float64(s.hub.clientCount()))
	defer func() {
		s.metrics.sseClients.Set(float64(s.hub.clientCount()))
	}()

	// Initial snapshot so new clients do not wait for the first diff.
	if features, err := s.features.List(r.Context(), feature.Filter{}); err == nil {
		if data, err := json.Marshal(featuresOrEmpty(features)); err == nil {
			fmt.Fprintf(w, "event: features\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.name, ev.data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
