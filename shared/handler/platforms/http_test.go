package platforms

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/balu-bunny/lambdaTest/shared/config"
	"github.com/balu-bunny/lambdaTest/shared/handler"
	"github.com/balu-bunny/lambdaTest/shared/handler/mocks"
	obsmocks "github.com/balu-bunny/lambdaTest/shared/observability/mocks"
)

func newTestHandler(worker *mocks.MockWorker) *handler.Handler {
	cfg := config.DefaultHandlerConfig()
	cfg.Platform = "http"
	provider := obsmocks.NewMockProvider(obsmocks.NewMockLogger(), obsmocks.NewMockMetrics())
	return handler.NewFactory(worker, provider).WithHandlerConfig(cfg).Create()
}

func TestHTTPAdapter_Health(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		worker := mocks.NewMockWorker("backup")
		worker.On("Health", mock.Anything).Return(nil)

		w := httptest.NewRecorder()
		NewHTTPAdapter(newTestHandler(worker)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var health map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
		assert.Equal(t, "healthy", health["status"])
		assert.Equal(t, "backup", health["worker"])
	})

	t.Run("unhealthy", func(t *testing.T) {
		worker := mocks.NewMockWorker("backup")
		worker.On("Health", mock.Anything).Return(assert.AnError)

		w := httptest.NewRecorder()
		NewHTTPAdapter(newTestHandler(worker)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestHTTPAdapter_StageFromPath(t *testing.T) {
	worker := mocks.NewMockWorker("backup")
	worker.On("Process", mock.Anything, mock.MatchedBy(func(req handler.Request) bool {
		return req.Type == "checkstatus" && req.Source == "http" && req.ID == "req-7"
	})).Return(handler.Response{Success: true, Data: json.RawMessage(`{"state":"InProgress"}`)}, nil)

	r := httptest.NewRequest(http.MethodPost, "/stages/CheckStatus", bytes.NewBufferString(`{"jobId":"750"}`))
	r.Header.Set("X-Request-ID", "req-7")
	w := httptest.NewRecorder()
	NewHTTPAdapter(newTestHandler(worker)).ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"state":"InProgress"}`, w.Body.String())
	assert.Equal(t, "req-7", w.Header().Get("X-Request-ID"))
	assert.NotEmpty(t, w.Header().Get("X-Trace-ID"))
	worker.AssertExpectations(t)
}

func TestHTTPAdapter_ErrorBody(t *testing.T) {
	tests := []struct {
		code   string
		status int
	}{
		{handler.CodeValidation, http.StatusBadRequest},
		{handler.CodeAuth, http.StatusUnauthorized},
		{handler.CodeRemote, http.StatusBadGateway},
		{handler.CodeTransient, http.StatusServiceUnavailable},
		{handler.CodeStorage, http.StatusServiceUnavailable},
		{handler.CodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			worker := mocks.NewMockWorker("backup")
			worker.ExpectProcess("initjob", handler.NewErrorResponse("x", tt.code, "HTTP 500 from /jobs/query", ""), nil)

			w := httptest.NewRecorder()
			NewHTTPAdapter(newTestHandler(worker)).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/initjob", bytes.NewBufferString(`{}`)))

			assert.Equal(t, tt.status, w.Code)
			var body handler.ErrorBody
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, "Error", body.Status)
			assert.Equal(t, "HTTP 500 from /jobs/query", body.Error)
			assert.Equal(t, tt.code, body.Code)
		})
	}
}

func TestHTTPAdapter_RejectsNonPost(t *testing.T) {
	worker := mocks.NewMockWorker("backup")

	w := httptest.NewRecorder()
	NewHTTPAdapter(newTestHandler(worker)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/download", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, http.MethodPost, w.Header().Get("Allow"))
	worker.AssertNotCalled(t, "Process", mock.Anything, mock.Anything)
}

func TestHTTPAdapter_BodyTooLarge(t *testing.T) {
	worker := mocks.NewMockWorker("backup")
	cfg := config.DefaultHandlerConfig()
	cfg.MaxRequestSize = 8
	provider := obsmocks.NewMockProvider(obsmocks.NewMockLogger(), obsmocks.NewMockMetrics())
	h := handler.NewFactory(worker, provider).WithHandlerConfig(cfg).CreateHTTP()

	w := httptest.NewRecorder()
	NewHTTPAdapter(h).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/download", bytes.NewBufferString(`{"objectName":"Account"}`)))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	worker.AssertNotCalled(t, "Process", mock.Anything, mock.Anything)
}

func TestHTTPAdapter_XRayTraceHeader(t *testing.T) {
	worker := mocks.NewMockWorker("backup")
	worker.ExpectProcess("listobjects", handler.Response{Success: true}, nil)

	r := httptest.NewRequest(http.MethodPost, "/listobjects", nil)
	r.Header.Set("X-Amzn-Trace-Id", "Root=1-67891233-abcdef012345678912345678;Sampled=1")
	w := httptest.NewRecorder()
	NewHTTPAdapter(newTestHandler(worker)).ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{}`, w.Body.String())
	assert.Equal(t, "1-67891233-abcdef012345678912345678", w.Header().Get("X-Trace-ID"))
}
