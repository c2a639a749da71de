package server

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/poiesic/glyph/ai"
	"github.com/poiesic/glyph/chat"
	"github.com/poiesic/glyph/core"
)

const (
	defaultLogLimit = 100
	maxBodyBytes    = 1 << 20
	wsWriteTimeout  = 5 * time.Second
	wsPingInterval  = 30 * time.Second
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "service": "glyph"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	count, err := s.engine.DocumentRepository().CountDocuments(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"status":       "ok",
		"documents":    count,
		"vectors":      s.engine.Store().Len(),
		"executorBusy": s.engine.Executor().Busy(),
	})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if !s.decode(w, r, &req) {
		return
	}
	path := req.FilePath
	if path == "" {
		path = req.Path
	}
	if path == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("missing filePath"))
		return
	}

	pipeline := s.engine.Pipeline()
	if req.Type == "directory" {
		docs, err := pipeline.IngestDirectory(r.Context(), path)
		if err != nil {
			s.writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"count":   len(docs),
			"results": toDocumentViews(docs),
		})
		return
	}

	doc, err := pipeline.IngestFile(r.Context(), path)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "result": toDocumentView(doc)})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.engine.DocumentRepository().ListDocuments(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "documents": toDocumentViews(docs)})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	doc, err := s.engine.DocumentRepository().GetDocument(r.Context(), id)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "document": toDocumentView(doc)})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Query == "" {
		s.writeError(w, http.StatusBadRequest, chat.ErrEmptyQuery)
		return
	}

	results, err := s.engine.Store().Search(r.Context(), req.Query, req.Limit)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	views := make([]searchResultView, 0, len(results))
	for _, res := range results {
		views = append(views, searchResultView{
			ID:       res.Document.ID,
			Filename: res.Document.Filename(),
			Content:  res.Document.Content,
			Score:    res.Score,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "results": views})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !s.decode(w, r, &req) {
		return
	}

	answer, err := s.engine.Chat().Answer(r.Context(), req.Message, req.History)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{
		Success:  true,
		Response: answer.Text,
		Sources:  answer.Sources,
	})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.engine.Workflow().ListTasks(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	views := make([]taskView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, toTaskView(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "tasks": views})
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if !s.decode(w, r, &req) {
		return
	}
	task, err := s.engine.Workflow().CreateTask(r.Context(), req.Title, req.Description, req.Priority)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "task": toTaskView(task)})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	task, err := s.engine.Workflow().GetTask(r.Context(), id)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "task": toTaskView(task)})
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	queue := s.engine.Jobs()
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"jobs":    queue.List(),
		"stats":   queue.Stats(),
	})
}

func (s *Server) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	infos := s.engine.Providers().Info()
	active := "none"
	if len(infos) > 0 {
		active = infos[0].Name
	}

	keys := s.engine.Config().AI
	hasAPIKey := keys.OpenAI.APIKey != "" || keys.Gemini.APIKey != "" || keys.Anthropic.APIKey != ""

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"providers": infos,
		"active":    active,
		"hasApiKey": hasAPIKey,
	})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit := defaultLogLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, errors.New("limit must be a positive integer"))
			return
		}
		limit = n
	}

	ring := s.engine.Logs()
	if ring == nil {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "logs": []any{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "logs": ring.Entries(limit)})
}

// handleLogStream pushes every new log entry to a websocket client as JSON.
func (s *Server) handleLogStream(w http.ResponseWriter, r *http.Request) {
	ring := s.engine.Logs()
	if ring == nil {
		s.writeError(w, http.StatusServiceUnavailable, errors.New("log capture is disabled"))
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	entries, unsubscribe := ring.Subscribe(64)
	defer unsubscribe()

	// The reader only notices the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case e, ok := <-entries:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(e); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
		}
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return false
	}
	return true
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (core.ID, bool) {
	n, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil || n == 0 {
		s.writeError(w, http.StatusBadRequest, errors.New("invalid id"))
		return 0, false
	}
	return core.ID(n), true
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var ingestErr *core.IngestionError
	if errors.As(err, &ingestErr) {
		return ingestionStatus(ingestErr)
	}

	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ai.ErrNoProviderAvailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, chat.ErrEmptyQuery),
		errors.Is(err, chat.ErrInvalidRole),
		errors.Is(err, core.ErrInvalidTask),
		errors.Is(err, core.ErrEmptyTitle):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// ingestionStatus separates bad input paths and unreadable files from
// storage failures.
func ingestionStatus(err *core.IngestionError) int {
	switch {
	case errors.Is(err, fs.ErrNotExist),
		errors.Is(err, fs.ErrPermission),
		errors.Is(err, core.ErrIsDirectory),
		errors.Is(err, core.ErrNotDirectory):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrUnsupportedEncoding),
		errors.Is(err, core.ErrEmptyContent),
		errors.Is(err, core.ErrExtractionFailed):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", status, "err", err)
	}
	writeJSON(w, status, map[string]any{"success": false, "error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
