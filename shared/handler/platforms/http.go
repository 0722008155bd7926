package platforms

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/balu-bunny/lambdaTest/shared/handler"
)

const defaultMaxBody = 6 << 20

var healthPaths = map[string]bool{
	"/health": true, "/healthz": true,
	"/ready": true, "/readyz": true,
	"/live": true, "/livez": true,
}

var (
	requestIDHeaders = []string{"X-Request-ID", "X-Correlation-ID", "Request-ID"}

	// copied into metadata as header_<snake_case>
	loggedHeaders = []string{"Content-Type", "User-Agent", "X-Forwarded-For"}

	// copied into metadata under the lower-case name the tracing middleware reads
	traceHeaders = []string{"X-Trace-ID", "X-Amzn-Trace-Id"}
)

var statusByCode = map[string]int{
	handler.CodeValidation: http.StatusBadRequest,
	handler.CodeNotFound:   http.StatusNotFound,
	handler.CodeAuth:       http.StatusUnauthorized,
	handler.CodeRemote:     http.StatusBadGateway,
	handler.CodeTransient:  http.StatusServiceUnavailable,
	handler.CodeStorage:    http.StatusServiceUnavailable,
}

// HTTPAdapter serves stages over plain HTTP: POST /<stage> with the stage
// input as body. Used for local runs and container deployments.
type HTTPAdapter struct {
	handler *handler.Handler
}

func NewHTTPAdapter(h *handler.Handler) *HTTPAdapter {
	return &HTTPAdapter{handler: h}
}

func (a *HTTPAdapter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if healthPaths[r.URL.Path] {
		a.serveHealth(w, r)
		return
	}

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeResponse(w, handler.NewErrorResponse(uuid.NewString(), handler.CodeValidation, "method not allowed", r.Method))
		return
	}

	maxSize := a.handler.Config().MaxRequestSize
	if maxSize <= 0 {
		maxSize = defaultMaxBody
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSize))
	_ = r.Body.Close()
	if err != nil {
		writeResponse(w, handler.NewErrorResponse(uuid.NewString(), handler.CodeValidation, "Failed to read request body", err.Error()))
		return
	}

	req := toRequest(r, body)
	resp, err := a.handler.Handle(r.Context(), req)
	if err != nil {
		resp = handler.NewErrorResponse(req.ID, handler.CodeInternal, "Request processing failed", err.Error())
	}
	if resp.ID == "" {
		resp.ID = req.ID
	}
	writeResponse(w, resp)
}

func (a *HTTPAdapter) serveHealth(w http.ResponseWriter, r *http.Request) {
	status, body := http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"worker": a.handler.Worker().Name(),
		"time":   time.Now().UTC(),
	}
	if err := a.handler.Health(r.Context()); err != nil {
		status, body = http.StatusServiceUnavailable, map[string]interface{}{
			"status": "unhealthy",
			"error":  err.Error(),
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// toRequest names the stage after the last path segment, falling back to
// X-Request-Type for "/".
func toRequest(r *http.Request, body []byte) handler.Request {
	id := firstHeader(r, requestIDHeaders)
	if id == "" {
		id = uuid.NewString()
	}

	stage := lastPathSegment(r.URL.Path)
	if stage == "" {
		stage = strings.ToLower(r.Header.Get("X-Request-Type"))
	}

	metadata := map[string]string{
		"http_method": r.Method,
		"http_path":   r.URL.Path,
		"http_host":   r.Host,
	}
	for _, h := range loggedHeaders {
		if v := r.Header.Get(h); v != "" {
			metadata["header_"+strings.ToLower(strings.ReplaceAll(h, "-", "_"))] = v
		}
	}
	for _, h := range traceHeaders {
		if v := r.Header.Get(h); v != "" {
			metadata[strings.ToLower(h)] = v
		}
	}

	return handler.Request{
		ID:        id,
		Source:    "http",
		Type:      stage,
		Payload:   json.RawMessage(body),
		Metadata:  metadata,
		Timestamp: time.Now().UTC(),
	}
}

func firstHeader(r *http.Request, names []string) string {
	for _, name := range names {
		if v := r.Header.Get(name); v != "" {
			return v
		}
	}
	return ""
}

func writeResponse(w http.ResponseWriter, resp handler.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", resp.ID)
	if traceID := resp.Metadata["trace_id"]; traceID != "" {
		w.Header().Set("X-Trace-ID", traceID)
	}

	status, body := renderResponse(resp)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// renderResponse is shared by the synchronous channels: the stage output on
// success, an ErrorBody otherwise.
func renderResponse(resp handler.Response) (int, []byte) {
	if resp.Success {
		return http.StatusOK, dataOrEmpty(resp.Data)
	}

	body, err := json.Marshal(resp.Error.Body())
	if err != nil {
		body = []byte(`{"status":"Error","error":"unrenderable error"}`)
	}
	return StatusCode(resp), body
}

// StatusCode maps a response to its HTTP status.
func StatusCode(resp handler.Response) int {
	if resp.Success {
		return http.StatusOK
	}
	if resp.Error != nil {
		if status, ok := statusByCode[resp.Error.Code]; ok {
			return status
		}
	}
	return http.StatusInternalServerError
}

func dataOrEmpty(data json.RawMessage) json.RawMessage {
	if len(data) == 0 {
		return json.RawMessage("{}")
	}
	return data
}
