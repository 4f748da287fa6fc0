package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bai2-engine/internal/config"
	"bai2-engine/internal/repository"
	"bai2-engine/internal/service"
	"bai2-engine/internal/storage"
	"bai2-engine/pkg/logger"
)

const statementJSON = `{
	"account_number": "2375133",
	"routing_number": "083000564",
	"opening_balance": "1,000.00",
	"closing_balance": "1,150.00",
	"transactions": [
		{"date": "2024-03-07", "amount": "200.00", "description": "DEPOSIT"},
		{"date": "2024-03-07", "amount": "-50.00", "description": "SERVICE CHARGE"}
	]
}`

type stubExtractor struct{}

func (stubExtractor) Extract(context.Context, []byte, string) ([]byte, error) {
	return []byte(statementJSON), nil
}

type envelope struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	RequestID string          `json:"request_id"`
	Error     *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func setup(t *testing.T, opts ...service.Option) (*gin.Engine, *storage.MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger.SetOutput(io.Discard)

	store := storage.NewMemoryStore()
	opts = append([]service.Option{
		service.WithClock(func() time.Time { return time.Date(2024, 3, 8, 9, 30, 0, 0, time.UTC) }),
		service.WithObjectStore(store, "gs://outbox/bai2/"),
	}, opts...)
	svc := service.NewConversionService(repository.NewMemoryConversionRepository(), config.DefaultBAI2(), opts...)
	return NewRouter(NewConversionHandler(svc), nil), store
}

func do(router *gin.Engine, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func convertStatement(t *testing.T, router *gin.Engine, body string) ConvertResponse {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/convert?source_filename=march.json", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w, env := do(router, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.True(t, env.Success)

	var resp ConvertResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	return resp
}

func TestConvert(t *testing.T) {
	router, _ := setup(t)

	resp := convertStatement(t, router, statementJSON)

	assert.Equal(t, "COMPLETE", string(resp.Run.Status))
	assert.Equal(t, "march.json", resp.Run.SourceFilename)
	assert.Equal(t, "RTN083000564_20240307_001.bai", resp.Filename)
	assert.True(t, strings.HasPrefix(resp.BAI2, "01,083000564,2375133,240308,0930,"))
	assert.Contains(t, resp.BAI2, "16,455,5000,Z,,,SERVICE CHARGE,/")
}

func TestConvert_RejectedStatementStillAnswers200(t *testing.T) {
	router, _ := setup(t)

	resp := convertStatement(t, router, strings.Replace(statementJSON, "083000564", "123456789", 1))

	assert.Equal(t, "ERROR", string(resp.Run.Status))
	assert.True(t, resp.Run.ErrorFile)
	assert.Contains(t, resp.BAI2, "88,999,ERROR_NO_ROUTING,,Z/")
}

func TestConvert_RawDownload(t *testing.T) {
	router, _ := setup(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/convert?format=bai2", strings.NewReader(statementJSON))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "COMPLETE", w.Header().Get("X-Run-Status"))
	assert.NotEmpty(t, w.Header().Get("X-Run-ID"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "RTN083000564_20240307_001.bai")
	assert.True(t, strings.HasSuffix(w.Body.String(), "/\n"))
}

func TestConvert_EmptyBody(t *testing.T) {
	router, _ := setup(t)

	w, env := do(router, httptest.NewRequest(http.MethodPost, "/api/v1/convert", strings.NewReader("  ")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "BAD_REQUEST", env.Error.Code)
}

func TestConvertPDF(t *testing.T) {
	t.Run("multipart upload", func(t *testing.T) {
		router, _ := setup(t, service.WithExtractor(stubExtractor{}))

		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		part, err := mw.CreateFormFile("file", "march.pdf")
		require.NoError(t, err)
		_, _ = part.Write([]byte("%PDF-1.7"))
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/v1/convert/pdf", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		w, env := do(router, req)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var resp ConvertResponse
		require.NoError(t, json.Unmarshal(env.Data, &resp))
		assert.Equal(t, "march.pdf", resp.Run.SourceFilename)
	})

	t.Run("raw body", func(t *testing.T) {
		router, _ := setup(t, service.WithExtractor(stubExtractor{}))

		req := httptest.NewRequest(http.MethodPost, "/api/v1/convert/pdf?filename=april.pdf", strings.NewReader("%PDF-1.7"))
		req.Header.Set("Content-Type", "application/pdf")
		w, _ := do(router, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("extractor not configured", func(t *testing.T) {
		router, _ := setup(t)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/convert/pdf", strings.NewReader("%PDF-1.7"))
		req.Header.Set("Content-Type", "application/pdf")
		w, env := do(router, req)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "SERVICE_UNAVAILABLE", env.Error.Code)
	})
}

func TestConvertObject(t *testing.T) {
	router, store := setup(t)
	require.NoError(t, store.Put(context.Background(), "gs://inbox/march.json", []byte(statementJSON), "application/json"))

	post := func(body string) (*httptest.ResponseRecorder, envelope) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/convert/object", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return do(router, req)
	}

	w, env := post(`{"input_uri": "gs://inbox/march.json"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp ConvertResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "gs://outbox/bai2/RTN083000564_20240307_001.bai", resp.OutputURI)

	uploaded, err := store.Fetch(context.Background(), resp.OutputURI)
	require.NoError(t, err)
	assert.Equal(t, resp.BAI2, string(uploaded))

	w, _ = post(`{"input_uri": "gs://inbox/missing.json"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = post(`{"input_uri": "/local/file.json"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = post(`{"input_uri": "gs://inbox/march.json", "output_uri": "s3://elsewhere/"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = post(`{}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestRuns(t *testing.T) {
	router, _ := setup(t)
	good := convertStatement(t, router, statementJSON)
	convertStatement(t, router, `{"routing_number": "083000564", "account_number": "****"}`)

	t.Run("get", func(t *testing.T) {
		w, env := do(router, httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+good.Run.RunID, nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, string(env.Data), good.Run.RunID)
		assert.NotContains(t, string(env.Data), `"output"`)
	})

	t.Run("download", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+good.Run.RunID+"/bai2", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, good.BAI2, w.Body.String())
	})

	t.Run("missing", func(t *testing.T) {
		w, env := do(router, httptest.NewRequest(http.MethodGet, "/api/v1/runs/does-not-exist", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "NOT_FOUND", env.Error.Code)
	})

	t.Run("list filtered", func(t *testing.T) {
		w, env := do(router, httptest.NewRequest(http.MethodGet, "/api/v1/runs?status=error", nil))
		require.Equal(t, http.StatusOK, w.Code)
		var runs []map[string]interface{}
		require.NoError(t, json.Unmarshal(env.Data, &runs))
		require.Len(t, runs, 1)
		assert.Equal(t, "ERROR", runs[0]["status"])
	})

	t.Run("list rejects bad input", func(t *testing.T) {
		w, _ := do(router, httptest.NewRequest(http.MethodGet, "/api/v1/runs?status=DONE", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		w, _ = do(router, httptest.NewRequest(http.MethodGet, "/api/v1/runs?limit=1000", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		w, _ = do(router, httptest.NewRequest(http.MethodGet, "/api/v1/runs?limit=abc", nil))
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestRequestIDAndHealth(t *testing.T) {
	router, _ := setup(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/missing", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w, env := do(router, req)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
	assert.Equal(t, "abc-123", env.RequestID)

	w, _ = do(router, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}
