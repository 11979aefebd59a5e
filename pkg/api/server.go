// Package api implements the HTTP/REST surface over a core.Engine.
// It stays a thin JSON-in/JSON-out binding — stdlib net/http with a
// method+path router, a standardized error envelope (apierr), and an
// optional per-dataset rate limiter — and never duplicates engine
// logic.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/denizumutdereli/graphdb/pkg/api/apierr"
	"github.com/denizumutdereli/graphdb/pkg/attractor"
	"github.com/denizumutdereli/graphdb/pkg/core"
	"github.com/denizumutdereli/graphdb/pkg/graphstore"
	"github.com/denizumutdereli/graphdb/pkg/inference"
	mcpapi "github.com/denizumutdereli/graphdb/pkg/mcp"
)

const (
	defaultSearchK   = 10
	maxSearchK       = 200
	maxRequestBody   = 1 << 20 // 1 MiB
	datasetHeaderKey = "X-Dataset-ID"
)

type rateLimitEntry struct {
	windowStart time.Time
	count       int
}

// Server is the HTTP/REST API bound to one engine.
type Server struct {
	engine *core.Engine
	addr   string

	httpServer *http.Server

	rateLimitEnabled  bool
	rateLimitRequests int
	rateLimitWindow   time.Duration
	rateLimitMu       sync.Mutex
	rateLimitEntries  map[string]rateLimitEntry

	// MetricsHandler, when set, is mounted at /metrics. Callers that
	// built the engine with a Prometheus registerer should set this to
	// promhttp.HandlerFor(reg, ...) so pkg/api never imports promhttp
	// itself.
	MetricsHandler http.Handler

	mcpPath    string
	mcpHandler http.Handler
}

// MountMCP registers handler at path alongside the REST surface. Call
// before Start/Handler.
func (s *Server) MountMCP(path string, handler http.Handler) {
	s.mcpPath = path
	s.mcpHandler = handler
}

// NewServer creates a new API server bound to engine.
func NewServer(addr string, engine *core.Engine) *Server {
	return &Server{
		engine:           engine,
		addr:             addr,
		rateLimitWindow:  time.Minute,
		rateLimitEntries: make(map[string]rateLimitEntry),
	}
}

// EnableRateLimit turns on a fixed-window per-dataset request limiter.
func (s *Server) EnableRateLimit(requestsPerWindow int, window time.Duration) {
	if requestsPerWindow <= 0 || window <= 0 {
		return
	}
	s.rateLimitEnabled = true
	s.rateLimitRequests = requestsPerWindow
	s.rateLimitWindow = window
}

// Handler builds the http.Handler for the whole API surface.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/neurons", s.withGuards(s.handleNeuronsCollection))
	mux.HandleFunc("/v1/neurons/", s.withGuards(s.handleNeuronsItem))
	mux.HandleFunc("/v1/synapses", s.withGuards(s.handleSynapsesCollection))
	mux.HandleFunc("/v1/synapses/", s.withGuards(s.handleSynapsesItem))
	mux.HandleFunc("/v1/search", s.withGuards(s.handleSearch))
	mux.HandleFunc("/v1/infer/forward", s.withGuards(s.handleInferForward))
	mux.HandleFunc("/v1/infer/backward", s.withGuards(s.handleInferBackward))
	mux.HandleFunc("/v1/infer/chain", s.withGuards(s.handleInferChain))
	mux.HandleFunc("/v1/attractors", s.withGuards(s.handleAttractorsCollection))
	mux.HandleFunc("/v1/attractors/", s.withGuards(s.handleAttractorsItem))
	mux.HandleFunc("/v1/stats", s.withGuards(s.handleStats))
	mux.HandleFunc("/healthz", s.handleHealth)
	if s.MetricsHandler != nil {
		mux.Handle("/metrics", s.MetricsHandler)
	}
	if s.mcpHandler != nil {
		mux.Handle(s.mcpPath, s.mcpHandler)
	}
	return mux
}

// MCPHandler builds an MCP streamable-HTTP handler exposing the same
// engine through tool calls, for hosts that want to mount both
// surfaces side by side (see cmd/graphdb).
func (s *Server) MCPHandler(cfg mcpapi.Config) (http.Handler, error) {
	return mcpapi.NewHandler(cfg, newMCPBackend(s))
}

// Start begins serving on Server.addr. It blocks until Shutdown
// stops it or an unrecoverable listener error occurs.
func (s *Server) Start() error {
	s.httpServer = &http.Server{Addr: s.addr, Handler: s.Handler()}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server, waiting for in-flight
// requests to finish until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// withGuards wraps h with dataset-registry gating and rate limiting.
func (s *Server) withGuards(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		datasetID := strings.TrimSpace(r.Header.Get(datasetHeaderKey))
		if s.engine.Registry != nil && !s.engine.Registry.Allow(datasetID) {
			apierr.Unauthorized(w, "dataset id not registered")
			return
		}
		if s.rateLimitEnabled && !s.allowRate(datasetID) {
			apierr.TooManyRequests(w, "")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
		h(w, r)
	}
}

func (s *Server) allowRate(key string) bool {
	if key == "" {
		key = "anonymous"
	}
	s.rateLimitMu.Lock()
	defer s.rateLimitMu.Unlock()

	now := time.Now()
	entry, ok := s.rateLimitEntries[key]
	if !ok || now.Sub(entry.windowStart) >= s.rateLimitWindow {
		s.rateLimitEntries[key] = rateLimitEntry{windowStart: now, count: 1}
		return true
	}
	if entry.count >= s.rateLimitRequests {
		return false
	}
	entry.count++
	s.rateLimitEntries[key] = entry
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// --- neurons ---------------------------------------------------------------

type ingestRequest struct {
	Text       string   `json:"text"`
	SourceType string   `json:"sourceType"`
	Tags       []string `json:"tags"`
}

func (s *Server) handleNeuronsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req ingestRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		n, err := s.engine.IngestText(r.Context(), req.Text, req.SourceType, req.Tags)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, neuronToDoc(n))
	default:
		apierr.MethodNotAllowed(w)
	}
}

func (s *Server) handleNeuronsItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/neurons/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if parts[0] == "" {
		apierr.NeuronIDRequired(w)
		return
	}
	id := graphstore.NeuronID(parts[0])

	if len(parts) == 2 {
		switch parts[1] {
		case "outgoing":
			s.handleAdjacency(w, r, id, true)
		case "incoming":
			s.handleAdjacency(w, r, id, false)
		case "verify":
			s.handleNeuronVerify(w, r, id)
		default:
			apierr.NotFound(w, apierr.CodeNotFound, "unknown neuron sub-resource")
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		n, err := s.engine.Graph.GetNeuron(id)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		if n == nil {
			apierr.NotFound(w, apierr.CodeNeuronNotFound, "neuron not found")
			return
		}
		writeJSON(w, http.StatusOK, neuronToDoc(n))
	case http.MethodDelete:
		if err := s.engine.DeleteNeuron(id); err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		apierr.MethodNotAllowed(w)
	}
}

func (s *Server) handleNeuronVerify(w http.ResponseWriter, r *http.Request, id graphstore.NeuronID) {
	if r.Method != http.MethodPost {
		apierr.MethodNotAllowed(w)
		return
	}
	report, err := s.engine.VerifyNeuron(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if report == nil {
		apierr.NotFound(w, apierr.CodeNeuronNotFound, "neuron not found")
		return
	}
	missing := make([]string, 0, len(report.Missing))
	for _, h := range report.Missing {
		missing = append(missing, h.String())
	}
	corrupted := make([]string, 0, len(report.Corrupted))
	for _, h := range report.Corrupted {
		corrupted = append(corrupted, h.String())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"merkleValid": report.MerkleValid,
		"chunksValid": report.ChunksValid,
		"missing":     missing,
		"corrupted":   corrupted,
	})
}

func (s *Server) handleAdjacency(w http.ResponseWriter, r *http.Request, id graphstore.NeuronID, outgoing bool) {
	if r.Method != http.MethodGet {
		apierr.MethodNotAllowed(w)
		return
	}
	var (
		synapses []*graphstore.Synapse
		err      error
	)
	if outgoing {
		synapses, err = s.engine.Graph.Store().GetOutgoingSynapses(id)
	} else {
		synapses, err = s.engine.Graph.Store().GetIncomingSynapses(id)
	}
	if err != nil {
		writeEngineError(w, err)
		return
	}
	docs := make([]map[string]any, 0, len(synapses))
	for _, sy := range synapses {
		docs = append(docs, synapseToDoc(sy))
	}
	writeJSON(w, http.StatusOK, map[string]any{"synapses": docs, "count": len(docs)})
}

// --- synapses ----------------------------------------------------------------

type synapseRequest struct {
	SourceID      string            `json:"sourceId"`
	TargetID      string            `json:"targetId"`
	Type          string            `json:"type"`
	Weight        float64           `json:"weight"`
	Bidirectional bool              `json:"bidirectional"`
	Metadata      map[string]string `json:"metadata"`
}

func (s *Server) handleSynapsesCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		apierr.MethodNotAllowed(w)
		return
	}
	var req synapseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.SourceID == "" || req.TargetID == "" {
		apierr.BadRequest(w, apierr.CodeBadRequest, "sourceId and targetId are required")
		return
	}
	sy := &graphstore.Synapse{
		ID:            graphstore.NewSynapseID(),
		SourceID:      graphstore.NeuronID(req.SourceID),
		TargetID:      graphstore.NeuronID(req.TargetID),
		Type:          graphstore.SynapseType(strings.ToUpper(req.Type)),
		Weight:        req.Weight,
		Bidirectional: req.Bidirectional,
		Metadata:      req.Metadata,
		CreatedAt:     time.Now().UTC(),
	}
	if sy.Type == "" {
		sy.Type = graphstore.Associative
	}
	if err := s.engine.AddSynapse(sy); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, synapseToDoc(sy))
}

func (s *Server) handleSynapsesItem(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/synapses/")
	if id == "" {
		apierr.SynapseIDRequired(w)
		return
	}
	if r.Method != http.MethodDelete {
		apierr.MethodNotAllowed(w)
		return
	}
	if err := s.engine.RemoveSynapse(graphstore.SynapseID(id)); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// --- search --------------------------------------------------------------

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		apierr.MethodNotAllowed(w)
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		apierr.QueryRequired(w)
		return
	}
	if s.engine.Embedder == nil {
		apierr.BadRequest(w, apierr.CodeEmbeddingUnavailable, "no embedding provider configured")
		return
	}
	k := clampPositive(parseIntParam(r, "k", defaultSearchK), defaultSearchK, maxSearchK)

	vec, err := s.engine.Embedder.Embed(r.Context(), query)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	hits, err := s.engine.Graph.FindSimilar(vec, k, 0)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	docs := make([]map[string]any, 0, len(hits))
	for _, h := range hits {
		doc := neuronToDoc(h.Neuron)
		doc["similarity"] = h.Similarity
		docs = append(docs, doc)
	}
	s.engine.Metrics.SearchRun()
	writeJSON(w, http.StatusOK, map[string]any{"results": docs, "count": len(docs), "query": query})
}

// --- inference -------------------------------------------------------------

type inferRequest struct {
	NeuronID string `json:"neuronId"`
}

func (s *Server) handleInferForward(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		apierr.MethodNotAllowed(w)
		return
	}
	var req inferRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	results, err := s.engine.Inference.Forward(graphstore.NeuronID(req.NeuronID))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	s.engine.Metrics.InferenceRun()
	writeJSON(w, http.StatusOK, map[string]any{"results": inferencesToDocs(results)})
}

func (s *Server) handleInferBackward(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		apierr.MethodNotAllowed(w)
		return
	}
	var req inferRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	results, err := s.engine.Inference.Backward(graphstore.NeuronID(req.NeuronID))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	s.engine.Metrics.InferenceRun()
	writeJSON(w, http.StatusOK, map[string]any{"results": inferencesToDocs(results)})
}

type chainRequest struct {
	From            string `json:"from"`
	To              string `json:"to"`
	IncludeTemporal bool   `json:"includeTemporal"`
	MaxDepth        int    `json:"maxDepth"`
}

func (s *Server) handleInferChain(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		apierr.MethodNotAllowed(w)
		return
	}
	var req chainRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.From == "" || req.To == "" {
		apierr.BadRequest(w, apierr.CodeBadRequest, "from and to are required")
		return
	}
	chain, found, err := s.engine.Inference.CausalChain(r.Context(), graphstore.NeuronID(req.From), graphstore.NeuronID(req.To), req.IncludeTemporal, req.MaxDepth)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	s.engine.Metrics.InferenceRun()
	if !found {
		writeJSON(w, http.StatusOK, map[string]any{"found": false})
		return
	}
	path := make([]string, 0, len(chain.Path))
	for _, id := range chain.Path {
		path = append(path, string(id))
	}
	links := make([]map[string]any, 0, len(chain.Links))
	for _, l := range chain.Links {
		links = append(links, map[string]any{"from": l.From, "to": l.To, "strength": l.Strength})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"found":    true,
		"path":     path,
		"links":    links,
		"strength": chain.Strength,
	})
}

func inferencesToDocs(results []inference.Inference) []map[string]any {
	docs := make([]map[string]any, 0, len(results))
	for _, r := range results {
		path := make([]string, 0, len(r.Path))
		for _, id := range r.Path {
			path = append(path, string(id))
		}
		docs = append(docs, map[string]any{
			"neuronId":    string(r.NeuronID),
			"confidence":  r.Confidence,
			"path":        path,
			"explanation": r.Explanation,
		})
	}
	return docs
}

// --- attractors --------------------------------------------------------------

type attractorRequest struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Embedding   []float32 `json:"embedding"`
	Text        string    `json:"text"`
	Strength    float64   `json:"strength"`
	Priority    int       `json:"priority"`
	Deadline    *time.Time `json:"deadline"`
}

func (s *Server) handleAttractorsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		out := make([]map[string]any, 0)
		for _, a := range s.engine.Attractors.GetActiveAttractors() {
			out = append(out, attractorToDoc(a))
		}
		writeJSON(w, http.StatusOK, map[string]any{"attractors": out, "count": len(out)})
	case http.MethodPost:
		var req attractorRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		embedding := req.Embedding
		if len(embedding) == 0 && req.Text != "" {
			if s.engine.Embedder == nil {
				apierr.BadRequest(w, apierr.CodeEmbeddingUnavailable, "no embedding provider configured")
				return
			}
			vec, err := s.engine.Embedder.Embed(r.Context(), req.Text)
			if err != nil {
				writeEngineError(w, err)
				return
			}
			embedding = vec
		}
		if req.ID == "" {
			apierr.BadRequest(w, apierr.CodeBadRequest, "id is required")
			return
		}
		a := s.engine.CreateAttractor(req.ID, req.Name, req.Description, embedding, req.Strength, req.Priority, req.Deadline)
		writeJSON(w, http.StatusCreated, attractorToDoc(a))
	default:
		apierr.MethodNotAllowed(w)
	}
}

func (s *Server) handleAttractorsItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/attractors/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	id := parts[0]
	if id == "" {
		apierr.BadRequest(w, apierr.CodeBadRequest, "attractor id required")
		return
	}
	if len(parts) != 2 {
		apierr.NotFound(w, apierr.CodeNotFound, "unknown attractor sub-resource")
		return
	}

	switch parts[1] {
	case "path":
		s.handleAttractorPath(w, r, id)
	case "influence":
		s.handleAttractorInfluence(w, r)
	default:
		apierr.NotFound(w, apierr.CodeNotFound, "unknown attractor sub-resource")
	}
}

type pathRequest struct {
	NeuronID string `json:"neuronId"`
	MaxHops  int    `json:"maxHops"`
}

func (s *Server) handleAttractorPath(w http.ResponseWriter, r *http.Request, attractorID string) {
	if r.Method != http.MethodPost {
		apierr.MethodNotAllowed(w)
		return
	}
	var req pathRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	path, found := s.engine.FindPathToAttractor(graphstore.NeuronID(req.NeuronID), attractorID, req.MaxHops)
	if !found {
		writeJSON(w, http.StatusOK, map[string]any{"found": false})
		return
	}
	steps := make([]map[string]any, 0, len(path.Steps))
	for _, st := range path.Steps {
		steps = append(steps, map[string]any{"neuronId": string(st.NeuronID), "probability": st.Probability})
	}
	bottlenecks := make([]string, 0, len(path.Bottlenecks))
	for _, id := range path.Bottlenecks {
		bottlenecks = append(bottlenecks, string(id))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"found":          true,
		"steps":          steps,
		"probability":    path.Probability,
		"estimatedSteps": path.EstimatedSteps,
		"bottlenecks":    bottlenecks,
	})
}

type influenceRequest struct {
	Embedding []float32 `json:"embedding"`
	Text      string    `json:"text"`
}

func (s *Server) handleAttractorInfluence(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		apierr.MethodNotAllowed(w)
		return
	}
	var req influenceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	embedding := req.Embedding
	if len(embedding) == 0 && req.Text != "" {
		if s.engine.Embedder == nil {
			apierr.BadRequest(w, apierr.CodeEmbeddingUnavailable, "no embedding provider configured")
			return
		}
		vec, err := s.engine.Embedder.Embed(r.Context(), req.Text)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		embedding = vec
	}
	influence, err := s.engine.Attractors.CalculateInfluence(embedding)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"influence": influence})
}

func attractorToDoc(a *attractor.Attractor) map[string]any {
	return map[string]any{
		"id":          a.ID,
		"name":        a.Name,
		"description": a.Description,
		"strength":    a.Strength,
		"priority":    a.Priority,
		"probability": a.Probability,
		"deadline":    a.Deadline,
		"createdAt":   a.CreatedAt,
	}
}

// --- stats -------------------------------------------------------------------

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		apierr.MethodNotAllowed(w)
		return
	}
	chunkStats, err := s.engine.Chunks.GetStats()
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"chunks":     chunkStats,
		"compaction": s.engine.Compactor.CurrentStats(),
		"attractors": s.engine.Attractors.GetStats(),
		"tombstones": s.engine.Index.TombstoneCount(),
		"neurons":    s.engine.Index.Len(),
	})
}

// --- JSON helpers --------------------------------------------------------

func neuronToDoc(n *graphstore.Neuron) map[string]any {
	hashes := make([]string, 0, len(n.ChunkHashes))
	for _, h := range n.ChunkHashes {
		hashes = append(hashes, h.String())
	}
	return map[string]any{
		"id":          string(n.ID),
		"chunkHashes": hashes,
		"merkleRoot":  n.MerkleRoot.String(),
		"metadata": map[string]any{
			"createdAt":    n.Metadata.CreatedAt,
			"lastAccessed": n.Metadata.LastAccessed,
			"accessCount":  n.Metadata.AccessCount,
			"sourceType":   n.Metadata.SourceType,
			"tags":         n.Metadata.Tags,
		},
	}
}

func synapseToDoc(sy *graphstore.Synapse) map[string]any {
	return map[string]any{
		"id":            string(sy.ID),
		"sourceId":      string(sy.SourceID),
		"targetId":      string(sy.TargetID),
		"type":          string(sy.Type),
		"weight":        sy.Weight,
		"bidirectional": sy.Bidirectional,
		"metadata":      sy.Metadata,
		"createdAt":     sy.CreatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	data, err := io.ReadAll(r.Body)
	if err != nil {
		apierr.PayloadTooLarge(w, "")
		return false
	}
	if len(data) == 0 {
		return true
	}
	if err := json.Unmarshal(data, v); err != nil {
		apierr.InvalidJSON(w)
		return false
	}
	return true
}

func parseIntParam(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func clampPositive(v, def, max int) int {
	if v <= 0 {
		v = def
	}
	if v > max {
		v = max
	}
	return v
}

// writeEngineError maps a core/component error to the apierr envelope.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		return
	case errors.Is(err, core.ErrNotFound):
		apierr.NotFound(w, apierr.CodeNeuronNotFound, err.Error())
	case errors.Is(err, core.ErrDanglingReference), errors.Is(err, graphstore.ErrDanglingReference):
		apierr.Conflict(w, apierr.CodeDanglingReference, err.Error())
	case errors.Is(err, core.ErrInvalidContent), errors.Is(err, core.ErrContentTooLarge), errors.Is(err, core.ErrValidation), errors.Is(err, core.ErrDimensionMismatch):
		apierr.BadRequest(w, apierr.CodeInvalidContent, err.Error())
	case errors.Is(err, core.ErrEmbeddingUnavailable), errors.Is(err, core.ErrEmbeddingTimeout):
		apierr.BadRequest(w, apierr.CodeEmbeddingUnavailable, err.Error())
	case errors.Is(err, core.ErrRegistryDenied):
		apierr.Unauthorized(w, err.Error())
	default:
		apierr.Internal(w, err.Error())
	}
}
