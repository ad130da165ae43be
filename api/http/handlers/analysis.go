package handlers

import (
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/gabrielabsi/cvx-backend/api/http/presenter"
	"github.com/gabrielabsi/cvx-backend/pkg/analysis"
	"github.com/gabrielabsi/cvx-backend/pkg/resume"
)

type AnalysisHandler struct {
	uc analysis.UseCase
	// Limit uploaded file size read into memory (bytes)
	maxBytes int64
}

func NewAnalysisHandler(uc analysis.UseCase) *AnalysisHandler {
	return &AnalysisHandler{uc: uc, maxBytes: 15 << 20} // 15MB
}

type analyzeRequest struct {
	ResumeText     string `json:"resumeText"`
	JobDescription string `json:"jobDescription"`
}

// Analyze scores a resume against a job description. Accepts either JSON
// with resumeText, or multipart with a pdf/docx file; jobDescription is
// required in both shapes.
// @Summary Analyze resume/job fit
// @Tags    analysis
// @Accept  json
// @Accept  multipart/form-data
// @Produce json
// @Param   input body analyzeRequest false "resume and job description"
// @Security BearerAuth
// @Success 200 {object} analysis.Report
// @Failure 400 {object} presenter.ErrorResponse
// @Failure 401 {object} presenter.ErrorResponse
// @Failure 402 {object} presenter.ErrorResponse
// @Failure 500 {object} presenter.ErrorResponse
// @Router  /resume/analyze [post]
func (h *AnalysisHandler) Analyze(c *fiber.Ctx) error {
	userIDStr, _ := c.Locals("userId").(string)
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return presenter.Error(c, http.StatusUnauthorized, presenter.CodeUnauthorized, "could not identify user")
	}
	plan, _ := c.Locals("plan").(string)

	resumeText, jobDescription, err := h.extractInput(c)
	if err != nil {
		return presenter.Error(c, http.StatusBadRequest, presenter.CodeInvalidInput, err.Error())
	}

	report, err := h.uc.Analyze(c.Context(), userID, plan, resumeText, jobDescription)
	if err != nil {
		switch {
		case errors.Is(err, analysis.ErrQuotaExceeded):
			return presenter.Error(c, http.StatusPaymentRequired, presenter.CodePaymentRequired, "monthly analysis quota exceeded, upgrade your plan")
		case errors.Is(err, analysis.ErrEmptyResume), errors.Is(err, analysis.ErrEmptyJobDescription):
			return presenter.Error(c, http.StatusBadRequest, presenter.CodeInvalidInput, err.Error())
		default:
			rid, _ := c.Locals("requestid").(string)
			log.Printf("analysis failed request_id=%s: %v", rid, err)
			return presenter.Error(c, http.StatusInternalServerError, presenter.CodeInternal, "analysis failed")
		}
	}
	return presenter.JSON(c, http.StatusOK, report)
}

func (h *AnalysisHandler) extractInput(c *fiber.Ctx) (resumeText, jobDescription string, err error) {
	contentType := c.Get("Content-Type")
	if strings.HasPrefix(contentType, fiber.MIMEMultipartForm) {
		fh, err := c.FormFile("file")
		if err != nil || fh == nil {
			return "", "", errors.New("file is required (pdf or docx)")
		}
		file, err := fh.Open()
		if err != nil {
			return "", "", errors.New("failed to open uploaded file")
		}
		defer file.Close()
		data, err := readAtMost(file, h.maxBytes)
		if err != nil {
			return "", "", err
		}
		text, err := resume.ParseText(fh.Filename, data)
		if err != nil {
			return "", "", err
		}
		return text, c.FormValue("jobDescription"), nil
	}

	var req analyzeRequest
	if err := c.BodyParser(&req); err != nil {
		return "", "", errors.New("invalid JSON payload")
	}
	return req.ResumeText, req.JobDescription, nil
}

func readAtMost(f multipart.File, max int64) ([]byte, error) {
	limited := io.LimitReader(f, max+1)
	b, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if int64(len(b)) > max {
		return nil, fmt.Errorf("file too large: limit is %d bytes", max)
	}
	return b, nil
}
