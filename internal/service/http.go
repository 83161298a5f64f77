package service

import (
	"encoding/json"
	"net/http"
	"os"
	"sort"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/VectorBarks/smart-climate-sub002/internal/ws"
)

// Router builds the HTTP surface: health, Prometheus metrics, the entity
// diagnostics API and the WebSocket dashboard endpoint.
func (s *Service) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	r.Handle("/ws", ws.NewHandler(s.hub, s, s.log))

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/entities", s.handleEntities).Methods(http.MethodGet)
	api.HandleFunc("/entities/{id}/dashboard", s.handleDashboard).Methods(http.MethodGet)
	api.HandleFunc("/entities/{id}/learning", s.handleLearning).Methods(http.MethodPost)
	api.HandleFunc("/entities/{id}/reset", s.handleReset).Methods(http.MethodPost)
	api.HandleFunc("/entities/{id}/save", s.handleSave).Methods(http.MethodPost)

	return handlers.CombinedLoggingHandler(os.Stdout, handlers.RecoveryHandler()(r))
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"entities":   len(s.EntityIDs()),
		"ws_clients": s.hub.ClientCount(),
	})
}

func (s *Service) handleEntities(w http.ResponseWriter, _ *http.Request) {
	ids := s.EntityIDs()
	sort.Strings(ids)
	writeJSON(w, http.StatusOK, map[string]any{"entities": ids})
}

func (s *Service) handleDashboard(w http.ResponseWriter, r *http.Request) {
	rt, ok := s.runtime(w, r)
	if !ok {
		return
	}
	rt.mu.Lock()
	snap := rt.engine.Dashboard()
	rt.mu.Unlock()
	writeJSON(w, http.StatusOK, snap)
}

func (s *Service) handleLearning(w http.ResponseWriter, r *http.Request) {
	rt, ok := s.runtime(w, r)
	if !ok {
		return
	}
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	rt.mu.Lock()
	rt.engine.SetEnableLearning(body.Enabled)
	s.saveLocked(mux.Vars(r)["id"], rt)
	rt.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"learning_enabled": body.Enabled})
}

func (s *Service) handleReset(w http.ResponseWriter, r *http.Request) {
	rt, ok := s.runtime(w, r)
	if !ok {
		return
	}
	rt.mu.Lock()
	rt.engine.Reset()
	s.saveLocked(mux.Vars(r)["id"], rt)
	rt.mu.Unlock()
	s.log.Info("engine reset via API", zap.String("entity", mux.Vars(r)["id"]))
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Service) handleSave(w http.ResponseWriter, r *http.Request) {
	rt, ok := s.runtime(w, r)
	if !ok {
		return
	}
	rt.mu.Lock()
	err := rt.coordinator.Save(rt.engine.SerializeLearningData())
	if err == nil {
		rt.engine.RecordSaveDuration(rt.coordinator.LastSaveDuration())
	}
	rt.mu.Unlock()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func (s *Service) runtime(w http.ResponseWriter, r *http.Request) (*entityRuntime, bool) {
	id := mux.Vars(r)["id"]
	s.mu.RLock()
	rt, ok := s.entities[id]
	s.mu.RUnlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown entity"})
		return nil, false
	}
	return rt, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
