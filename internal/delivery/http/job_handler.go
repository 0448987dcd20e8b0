package http

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/1llyaa/subtitles-api/internal/domain"
	"github.com/1llyaa/subtitles-api/internal/storage"
	"github.com/1llyaa/subtitles-api/internal/subtitle"
	"github.com/1llyaa/subtitles-api/internal/usecase"
)

// JobHandler handles HTTP requests for transcription jobs.
type JobHandler struct {
	submitUC *usecase.SubmitJobUsecase
	getJobUC *usecase.GetJobUsecase
	cancelUC *usecase.CancelJobUsecase
	resultUC *usecase.FetchResultUsecase
	blobs    storage.BlobStore
	logger   *zap.Logger
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(
	submitUC *usecase.SubmitJobUsecase,
	getJobUC *usecase.GetJobUsecase,
	cancelUC *usecase.CancelJobUsecase,
	resultUC *usecase.FetchResultUsecase,
	blobs storage.BlobStore,
	logger *zap.Logger,
) *JobHandler {
	return &JobHandler{
		submitUC: submitUC,
		getJobUC: getJobUC,
		cancelUC: cancelUC,
		resultUC: resultUC,
		blobs:    blobs,
		logger:   logger,
	}
}

// jsonSubmitBody is the JSON submission shape: the media was placed in blob
// storage out of band and is referenced, not uploaded.
type jsonSubmitBody struct {
	InputRef string          `json:"input_ref" binding:"required"`
	Options  json.RawMessage `json:"options"`
}

// Submit handles POST /api/v1/jobs. Media arrives either as a multipart
// upload with an optional "options" JSON part, or as a JSON body naming an
// existing input_ref.
func (h *JobHandler) Submit(c *gin.Context) {
	contentType, _, err := mime.ParseMediaType(c.GetHeader("Content-Type"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid Content-Type header"})
		return
	}

	var req *domain.SubmitRequest
	if contentType == "multipart/form-data" {
		req, err = h.spoolUpload(c)
	} else {
		req, err = h.bindJSONSubmit(c)
	}
	if err != nil {
		h.writeSubmitError(c, err)
		return
	}

	resp, err := h.submitUC.Execute(c.Request.Context(), req)
	if err != nil {
		h.writeSubmitError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// spoolUpload streams the multipart file into blob storage, hashing it on the
// way through so the result cache can recognise repeat submissions.
func (h *JobHandler) spoolUpload(c *gin.Context) (*domain.SubmitRequest, error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return nil, domain.ErrEmptyUpload
	}
	if fileHeader.Size == 0 {
		return nil, domain.ErrEmptyUpload
	}

	src, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	key := "uploads/" + uuid.NewString() + uploadExt(fileHeader.Filename)
	digest := sha256.New()
	ref, err := h.blobs.Save(c.Request.Context(), key, io.TeeReader(src, digest), fileHeader.Size)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, domain.ErrPayloadTooLarge
		}
		return nil, fmt.Errorf("spool upload: %w", err)
	}

	options := []byte(c.PostForm("options"))
	if len(options) == 0 {
		options = []byte("{}")
	}

	return &domain.SubmitRequest{
		InputRef:    ref,
		InputDigest: hex.EncodeToString(digest.Sum(nil)),
		Options:     options,
	}, nil
}

func (h *JobHandler) bindJSONSubmit(c *gin.Context) (*domain.SubmitRequest, error) {
	var body jsonSubmitBody
	if err := c.ShouldBindJSON(&body); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidOptions, err)
	}
	options := []byte(body.Options)
	if len(options) == 0 {
		options = []byte("{}")
	}
	return &domain.SubmitRequest{
		InputRef: body.InputRef,
		Options:  options,
	}, nil
}

func (h *JobHandler) writeSubmitError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidOptions),
		errors.Is(err, domain.ErrUnresolvableInput),
		errors.Is(err, domain.ErrEmptyUpload):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrPayloadTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrQueueFull):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Submit job failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// GetByID handles GET /api/v1/jobs/:id
func (h *JobHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job ID format"})
		return
	}

	job, err := h.getJobUC.Execute(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
			return
		}
		h.logger.Error("Get job failed", zap.Error(err), zap.String("job_id", id.String()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, job)
}

// Cancel handles DELETE /api/v1/jobs/:id. Acceptance is asynchronous for
// running jobs: the final status lands once the process is confirmed dead.
func (h *JobHandler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job ID format"})
		return
	}

	if err := h.cancelUC.Execute(c.Request.Context(), id); err != nil {
		switch {
		case errors.Is(err, domain.ErrJobNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		case errors.Is(err, domain.ErrJobTerminal):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			h.logger.Error("Cancel job failed", zap.Error(err), zap.String("job_id", id.String()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"job_id": id, "status": "cancelling"})
}

// Result handles GET /api/v1/jobs/:id/result, streaming the subtitle file.
func (h *JobHandler) Result(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job ID format"})
		return
	}

	job, rc, err := h.resultUC.Execute(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrJobNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		case errors.Is(err, domain.ErrResultNotReady):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "status": job.Status})
		default:
			h.logger.Error("Fetch result failed", zap.Error(err), zap.String("job_id", id.String()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}
	defer rc.Close()

	format := job.Options.Format
	c.Header("Content-Type", subtitle.ContentType(format))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id.String()+subtitle.FileExt(format)))
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		h.logger.Debug("Result stream interrupted", zap.Error(err), zap.String("job_id", id.String()))
	}
}

// uploadExt keeps a sane file extension from the uploaded name, defaulting
// when the client sent something odd.
func uploadExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if ext == "" || len(ext) > 8 || strings.ContainsAny(ext, "/\\") {
		return ".bin"
	}
	return ext
}
