// Package main implements a scripted judge server for crucible integration
// tests. It serves OpenAI-compatible /v1/chat/completions responses from
// fixture files, routing by the "model" field in the request, so llm and
// hybrid evaluations run offline and deterministically.
//
// Usage:
//
//	mock-llm -fixtures /path/to/fixtures -port 11434
//
// Point crucible at it with model.provider "openai" (or "ollama") and
// model.base_url "http://localhost:11434/v1".
//
// Fixture files are named by model: "mock-judge.json" maps to model
// "mock-judge". A .json fixture must be valid JSON; a .txt fixture is sent
// verbatim, which is how fenced or malformed judge replies are scripted.
//
// Sequential fixtures: numbered files ("mock-judge.1.json",
// "mock-judge.2.txt") are served in order, one per call, then the base file
// repeats. A numbered ".status" file holds an HTTP status code and makes that
// call fail, for example "mock-judge.1.status" containing 503 to exercise
// retries. A first-pass reply with an unknown redline followed by a clean
// reply scripts a repair round.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// --- OpenAI-compatible types ---

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	MaxTokens      *int            `json:"max_tokens,omitempty"`
	ResponseFormat json.RawMessage `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// --- Fixtures ---

// fixture is one scripted reply. A non-zero status makes the call fail.
type fixture struct {
	Content string
	Status  int
}

// --- Server ---

// capturedRequest stores the key fields of an incoming judge request.
type capturedRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	JSONMode  bool          `json:"json_mode"`
	CallIndex int           `json:"call_index"` // 1-indexed per-model call number
	Timestamp int64         `json:"timestamp"`
}

type server struct {
	fixtures map[string][]fixture
	calls    atomic.Int64
	logger   *slog.Logger

	modelCalls   map[string]*atomic.Int64
	modelCallsMu sync.Mutex

	modelRequests   map[string][]capturedRequest
	modelRequestsMu sync.Mutex
}

func newServer(fixtures map[string][]fixture, logger *slog.Logger) *server {
	if logger == nil {
		logger = slog.Default()
	}
	return &server{
		fixtures:      fixtures,
		logger:        logger,
		modelCalls:    make(map[string]*atomic.Int64),
		modelRequests: make(map[string][]capturedRequest),
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/v1/chat/completions", s.handleChatCompletions)
	mux.HandleFunc("/v1/models", s.handleModels)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/requests", s.handleRequests)
	return mux
}

func (s *server) captureRequest(model string, req chatRequest, callIndex int) {
	s.modelRequestsMu.Lock()
	defer s.modelRequestsMu.Unlock()
	s.modelRequests[model] = append(s.modelRequests[model], capturedRequest{
		Model:     model,
		Messages:  req.Messages,
		JSONMode:  len(req.ResponseFormat) > 0,
		CallIndex: callIndex,
		Timestamp: time.Now().UnixMilli(),
	})
}

// modelCounter returns the call counter for a model, creating it lazily.
func (s *server) modelCounter(model string) *atomic.Int64 {
	s.modelCallsMu.Lock()
	defer s.modelCallsMu.Unlock()
	if c, ok := s.modelCalls[model]; ok {
		return c
	}
	c := &atomic.Int64{}
	s.modelCalls[model] = c
	return c
}

func main() {
	fixtureDir := flag.String("fixtures", "", "directory containing fixture response files")
	port := flag.Int("port", 11434, "port to listen on")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if envDir := os.Getenv("MOCK_LLM_FIXTURES"); envDir != "" && *fixtureDir == "" {
		*fixtureDir = envDir
	}
	if *fixtureDir == "" {
		*fixtureDir = "/fixtures"
	}

	fixtures, err := loadFixtures(*fixtureDir)
	if err != nil {
		logger.Error("Failed to load fixtures", "dir", *fixtureDir, "error", err)
		os.Exit(1)
	}
	logger.Info("Loaded fixtures", "models", len(fixtures), "dir", *fixtureDir)
	for model, seq := range fixtures {
		logger.Info("Fixture model", "model", model, "fixtures", len(seq))
	}

	s := newServer(fixtures, logger)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", *port),
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Mock judge listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	callNum := s.calls.Add(1)

	seq, ok := s.fixtures[req.Model]
	if !ok {
		seq, ok = s.fixtures[strings.TrimPrefix(req.Model, "mock-")]
	}
	if !ok {
		s.logger.Warn("No fixture for model", "call", callNum, "model", req.Model)
		http.Error(w, fmt.Sprintf("no fixture for model %q", req.Model), http.StatusNotFound)
		return
	}

	callIndex := int(s.modelCounter(req.Model).Add(1) - 1)
	s.captureRequest(req.Model, req, callIndex+1)

	fx := seq[len(seq)-1]
	if callIndex < len(seq) {
		fx = seq[callIndex]
	}
	s.logger.Info("Judge call",
		"call", callNum,
		"model", req.Model,
		"call_index", callIndex+1,
		"fixtures", len(seq),
		"messages", len(req.Messages))

	if fx.Status != 0 {
		http.Error(w, fmt.Sprintf("scripted failure %d", fx.Status), fx.Status)
		return
	}

	resp := chatResponse{
		ID:      fmt.Sprintf("mock-%d", time.Now().UnixNano()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []chatChoice{{
			Index:        0,
			Message:      chatMessage{Role: "assistant", Content: fx.Content},
			FinishReason: "stop",
		}},
		Usage: estimateUsage(req.Messages, fx.Content),
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// estimateUsage approximates token counts at four characters per token.
func estimateUsage(messages []chatMessage, content string) chatUsage {
	prompt := 0
	for _, m := range messages {
		prompt += len(m.Content)
	}
	u := chatUsage{PromptTokens: prompt / 4, CompletionTokens: len(content) / 4}
	u.TotalTokens = u.PromptTokens + u.CompletionTokens
	return u
}

func (s *server) handleModels(w http.ResponseWriter, _ *http.Request) {
	type modelEntry struct {
		ID      string `json:"id"`
		Object  string `json:"object"`
		OwnedBy string `json:"owned_by"`
	}
	names := make([]string, 0, len(s.fixtures))
	for name := range s.fixtures {
		names = append(names, name)
	}
	sort.Strings(names)
	models := make([]modelEntry, 0, len(names))
	for _, name := range names {
		models = append(models, modelEntry{ID: name, Object: "model", OwnedBy: "mock-llm"})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"object": "list",
		"data":   models,
	})
}

// handleStats returns total_calls and a calls_by_model breakdown.
func (s *server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.modelCallsMu.Lock()
	callsByModel := make(map[string]int64, len(s.modelCalls))
	for model, counter := range s.modelCalls {
		callsByModel[model] = counter.Load()
	}
	s.modelCallsMu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"total_calls":    s.calls.Load(),
		"calls_by_model": callsByModel,
	})
}

// handleRequests returns captured requests, optionally filtered by the
// "model" and 1-indexed "call" query parameters.
func (s *server) handleRequests(w http.ResponseWriter, r *http.Request) {
	modelFilter := r.URL.Query().Get("model")
	callFilter, callErr := strconv.Atoi(r.URL.Query().Get("call"))

	s.modelRequestsMu.Lock()
	result := make(map[string][]capturedRequest)
	for model, reqs := range s.modelRequests {
		if modelFilter != "" && model != modelFilter {
			continue
		}
		if callErr != nil {
			result[model] = reqs
			continue
		}
		for _, req := range reqs {
			if req.CallIndex == callFilter {
				result[model] = append(result[model], req)
			}
		}
	}
	s.modelRequestsMu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"requests_by_model": result,
	})
}

// fixtureFileRe splits "model.json", "model.2.txt" or "model.1.status".
var fixtureFileRe = regexp.MustCompile(`^(.+?)(?:\.(\d+))?\.(json|txt|status)$`)

// loadFixtures reads fixture files from dir and returns each model's reply
// sequence: numbered fixtures in numeric order, then the base file.
func loadFixtures(dir string) (map[string][]fixture, error) {
	base := make(map[string]fixture)
	numbered := make(map[string]map[int]fixture)

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		m := fixtureFileRe.FindStringSubmatch(d.Name())
		if m == nil {
			return nil
		}
		model, index, ext := m[1], m[2], m[3]

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		fx, err := parseFixture(ext, data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		if index == "" {
			if fx.Status != 0 {
				return fmt.Errorf("%s: a status fixture must be numbered", path)
			}
			base[model] = fx
			return nil
		}
		n, _ := strconv.Atoi(index)
		if numbered[model] == nil {
			numbered[model] = make(map[int]fixture)
		}
		numbered[model][n] = fx
		return nil
	})
	if err != nil {
		return nil, err
	}

	fixtures := make(map[string][]fixture)
	for model, byIndex := range numbered {
		indices := make([]int, 0, len(byIndex))
		for idx := range byIndex {
			indices = append(indices, idx)
		}
		sort.Ints(indices)
		for _, idx := range indices {
			fixtures[model] = append(fixtures[model], byIndex[idx])
		}
	}
	for model, fx := range base {
		fixtures[model] = append(fixtures[model], fx)
	}

	if len(fixtures) == 0 {
		return nil, fmt.Errorf("no fixture files found in %s", dir)
	}
	return fixtures, nil
}

func parseFixture(ext string, data []byte) (fixture, error) {
	switch ext {
	case "json":
		if !json.Valid(data) {
			return fixture{}, errors.New("invalid JSON")
		}
		return fixture{Content: string(data)}, nil
	case "status":
		code, err := strconv.Atoi(strings.TrimSpace(string(data)))
		if err != nil || code < 400 || code > 599 {
			return fixture{}, fmt.Errorf("status fixture must hold a 4xx or 5xx code, got %q", strings.TrimSpace(string(data)))
		}
		return fixture{Status: code}, nil
	}
	return fixture{Content: string(data)}, nil
}
