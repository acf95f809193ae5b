package interfaces

import (
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"backend-eval/domain"
	"backend-eval/evaluator"
)

type HTTPHandler struct {
	Service   *evaluator.Service
	Model     string
	UploadDir string
}

func NewHTTPHandler(router *gin.Engine, svc *evaluator.Service, model, uploadDir string) {
	h := &HTTPHandler{Service: svc, Model: model, UploadDir: uploadDir}

	router.POST("/upload", h.Upload)
	router.POST("/evaluate", h.Evaluate)
	router.GET("/result/:id", h.GetResult)
}

// Upload receives CV + project report, stores both and creates a queued Job.
func (h *HTTPHandler) Upload(c *gin.Context) {
	cvHeader, err := c.FormFile("cv_file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cv_file is required"})
		return
	}
	reportHeader, err := c.FormFile("report_file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "report_file is required"})
		return
	}

	cvRef, err := h.saveUpload(c, cvHeader, "cv")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store CV file"})
		return
	}
	reportRef, err := h.saveUpload(c, reportHeader, "report")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store report file"})
		return
	}

	job, err := h.Service.Submit(cvRef, reportRef)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create job"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":     job.ID,
		"status": job.Status,
	})
}

// Evaluate schedules background evaluation and returns immediately.
func (h *HTTPHandler) Evaluate(c *gin.Context) {
	var req struct {
		ID string `json:"id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "provide job id"})
		return
	}

	if err := h.Service.Evaluate(req.ID, h.Model); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to queue job"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":     req.ID,
		"status": domain.StatusQueued,
	})
}

// GetResult returns the current status and, once completed, the result.
// LLM-side failures surface as an error payload inside result, never a 500.
func (h *HTTPHandler) GetResult(c *gin.Context) {
	job, err := h.Service.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	var result interface{}
	if job.Result != nil {
		_ = json.Unmarshal([]byte(*job.Result), &result)
	}

	c.JSON(http.StatusOK, gin.H{
		"id":         job.ID,
		"status":     job.Status,
		"result":     result,
		"created_at": job.CreatedAt,
	})
}

func (h *HTTPHandler) saveUpload(c *gin.Context, header *multipart.FileHeader, kind string) (string, error) {
	dir := filepath.Join(h.UploadDir, kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	ref := filepath.Join(dir, uuid.NewString()+filepath.Ext(header.Filename))
	if err := c.SaveUploadedFile(header, ref); err != nil {
		return "", err
	}
	return ref, nil
}
