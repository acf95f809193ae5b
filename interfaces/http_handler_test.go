package interfaces

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backend-eval/domain"
	"backend-eval/evaluator"
)

type memStore struct {
	mu   sync.Mutex
	jobs map[string]*domain.Job
}

func newMemStore() *memStore {
	return &memStore{jobs: map[string]*domain.Job{}}
}

func (s *memStore) Create(job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	job.CreatedAt = now
	job.UpdatedAt = now
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *memStore) Get(id string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (s *memStore) ClaimProcessing(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || !job.Status.CanTransition(domain.StatusProcessing) {
		return false, nil
	}
	job.Status = domain.StatusProcessing
	return true, nil
}

func (s *memStore) Complete(id string, resultJSON string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || !job.Status.CanTransition(domain.StatusCompleted) {
		return domain.ErrInvalidTransition
	}
	job.Status = domain.StatusCompleted
	job.Result = &resultJSON
	return nil
}

type inlineDispatcher struct {
	svc *evaluator.Service
}

func (d *inlineDispatcher) Enqueue(task evaluator.Task) error {
	d.svc.ProcessTask(context.Background(), task)
	return nil
}

type stubChat struct {
	out map[string]interface{}
	err error
}

func (s *stubChat) Chat(context.Context, string, []evaluator.Message, evaluator.ChatOptions) (map[string]interface{}, error) {
	return s.out, s.err
}

type stubExtractor struct{}

func (stubExtractor) Extract(string) string { return "" }

func validPayload() map[string]interface{} {
	return map[string]interface{}{
		"cv_match_rate": 0.82,
		"cv_feedback":   "Solid backend background.",
		"project_scores": map[string]interface{}{
			"correctness":   4.0,
			"code_quality":  4.0,
			"resilience":    3.0,
			"documentation": 5.0,
			"creativity":    4.0,
		},
		"project_score":    7.5,
		"project_feedback": "Well structured.",
		"overall_summary":  "Strong candidate.",
	}
}

func newTestRouter(t *testing.T, chat *stubChat) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	dispatcher := &inlineDispatcher{}
	svc := evaluator.NewService(newMemStore(), chat, stubExtractor{}, dispatcher, "Backend Product Engineer", log)
	dispatcher.svc = svc

	router := gin.New()
	NewHTTPHandler(router, svc, "test-model", t.TempDir())
	return router
}

func multipartUpload(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for field, content := range fields {
		fw, err := writer.CreateFormFile(field, field+".txt")
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func doUpload(t *testing.T, router *gin.Engine) string {
	t.Helper()
	body, contentType := multipartUpload(t, map[string]string{
		"cv_file":     "cv content",
		"report_file": "report content",
	})
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	var resp struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ID)
	require.Equal(t, "queued", resp.Status)
	return resp.ID
}

func TestUploadCreatesQueuedJob(t *testing.T) {
	router := newTestRouter(t, &stubChat{out: validPayload()})
	doUpload(t, router)
}

func TestUploadMissingFile(t *testing.T) {
	router := newTestRouter(t, &stubChat{})

	body, contentType := multipartUpload(t, map[string]string{"cv_file": "cv only"})
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "report_file is required")
}

func TestEvaluateMissingID(t *testing.T) {
	router := newTestRouter(t, &stubChat{})

	req := httptest.NewRequest(http.MethodPost, "/evaluate", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "provide job id")
}

func TestEvaluateUnknownJob(t *testing.T) {
	router := newTestRouter(t, &stubChat{})

	req := httptest.NewRequest(http.MethodPost, "/evaluate", strings.NewReader(`{"id":"missing"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "job not found")
}

func TestResultUnknownJob(t *testing.T) {
	router := newTestRouter(t, &stubChat{})

	req := httptest.NewRequest(http.MethodGet, "/result/missing", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestResultBeforeEvaluation(t *testing.T) {
	router := newTestRouter(t, &stubChat{out: validPayload()})
	id := doUpload(t, router)

	req := httptest.NewRequest(http.MethodGet, "/result/"+id, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "queued", resp["status"])
	assert.Nil(t, resp["result"])
	assert.NotEmpty(t, resp["created_at"])
}

func TestEndToEndEvaluation(t *testing.T) {
	router := newTestRouter(t, &stubChat{out: validPayload()})
	id := doUpload(t, router)

	req := httptest.NewRequest(http.MethodPost, "/evaluate", strings.NewReader(`{"id":"`+id+`"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"queued"`)

	req = httptest.NewRequest(http.MethodGet, "/result/"+id, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "completed", resp["status"])

	result, ok := resp["result"].(map[string]interface{})
	require.True(t, ok)
	score, ok := result["project_score"].(float64)
	require.True(t, ok)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 10.0)
}

func TestLLMFailureStillReturns200(t *testing.T) {
	router := newTestRouter(t, &stubChat{err: assert.AnError})
	id := doUpload(t, router)

	req := httptest.NewRequest(http.MethodPost, "/evaluate", strings.NewReader(`{"id":"`+id+`"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/result/"+id, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, "LLM-side problems never surface as 5xx")

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "completed", resp["status"])
	result, ok := resp["result"].(map[string]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, result["error"])
}
