package main

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/fiscal_review/config"
	"github.com/mmdatafocus/fiscal_review/middlewares"
	"github.com/mmdatafocus/fiscal_review/models"
	"github.com/mmdatafocus/fiscal_review/utils"
	"github.com/mmdatafocus/fiscal_review/workflow"
	"github.com/sirupsen/logrus"
)

type voteRequest struct {
	TransactionId int     `json:"transaction_id" binding:"required"`
	Decision      string  `json:"decision" binding:"required"`
	Observation   *string `json:"observation"`
}

type bulkApproveRequest struct {
	TransactionIds []int `json:"transaction_ids" binding:"required"`
}

type signRequest struct {
	DisplayName string `json:"display_name"`
	Payload     string `json:"payload" binding:"required"`
}

type reviewHandler struct {
	service *workflow.FiscalReviewService
	logger  *logrus.Logger
}

func registerReviewRoutes(r *gin.Engine, h *reviewHandler) {
	reports := r.Group("/reports/:reportId", middlewares.RequireReviewer())
	reports.POST("/votes", h.submitVote)
	reports.POST("/transactions/:txId/diligence", h.confirmDiligence)
	reports.POST("/bulk-approve", h.bulkApprove)
	reports.POST("/signatures", h.sign)
	reports.GET("/signatures", h.listSignatures)
	reports.GET("/progress", h.progress)
	reports.GET("/progress/me", h.myProgress)
	reports.GET("/items", h.listItems)
	reports.GET("/review.xlsx", h.exportSheet)
}

// reviewer returns the identity set by the session, bearer or header middlewares.
func reviewer(c *gin.Context) (string, string) {
	id, _ := utils.GetReviewerIdFromContext(c.Request.Context())
	name, _ := utils.GetReviewerNameFromContext(c.Request.Context())
	return id, name
}

func pathId(c *gin.Context, param string) (int, error) {
	id, err := strconv.Atoi(c.Param(param))
	if err != nil || id <= 0 {
		return 0, &models.ValidationError{Field: utils.LowercaseFirst(param), Message: "must be a positive integer"}
	}
	return id, nil
}

// writeError maps the review error taxonomy to HTTP responses.
func (h *reviewHandler) writeError(c *gin.Context, funcName string, err error) {
	var (
		validationErr *models.ValidationError
		stateErr      *models.InvalidStateError
		eligibleErr   *models.NotEligibleError
		conflictErr   *models.ConflictError
	)
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": validationErr.Error(), "field": validationErr.Field})
	case errors.As(err, &stateErr):
		c.JSON(http.StatusConflict, gin.H{"error": stateErr.Error(), "refresh": true})
	case errors.As(err, &eligibleErr):
		c.JSON(http.StatusForbidden, gin.H{"error": eligibleErr.Error(), "reason": eligibleErr.Reason, "count": eligibleErr.Count})
	case errors.As(err, &conflictErr):
		c.JSON(http.StatusConflict, gin.H{"error": conflictErr.Error(), "retryable": true})
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
	default:
		config.LogError(h.logger, "reviewHandlers.go", funcName, c.FullPath(), c.Param("reportId"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// bindError reports a body that did not bind, with the failed rule per field when there is one.
func (h *reviewHandler) bindError(c *gin.Context, err error) {
	if fields := utils.ProcessValidationErrors(err); fields != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid request", "fields": fields})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
}

func (h *reviewHandler) submitVote(c *gin.Context) {
	reportId, err := pathId(c, "reportId")
	if err != nil {
		h.writeError(c, "submitVote", err)
		return
	}
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}
	decision, err := models.ParseVoteDecision(req.Decision)
	if err != nil {
		h.writeError(c, "submitVote", &models.ValidationError{Field: "decision", Message: err.Error()})
		return
	}
	reviewerId, reviewerName := reviewer(c)
	record, err := h.service.SubmitVote(c.Request.Context(), workflow.NewReviewVote{
		ReportId:      reportId,
		TransactionId: req.TransactionId,
		ReviewerId:    reviewerId,
		ReviewerName:  reviewerName,
		Decision:      decision,
		Observation:   req.Observation,
	})
	if err != nil {
		h.writeError(c, "submitVote", err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *reviewHandler) confirmDiligence(c *gin.Context) {
	reportId, err := pathId(c, "reportId")
	if err != nil {
		h.writeError(c, "confirmDiligence", err)
		return
	}
	txId, err := pathId(c, "txId")
	if err != nil {
		h.writeError(c, "confirmDiligence", err)
		return
	}
	reviewerId, _ := reviewer(c)
	if err := h.service.ConfirmDiligence(c.Request.Context(), reportId, txId, reviewerId); err != nil {
		h.writeError(c, "confirmDiligence", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *reviewHandler) bulkApprove(c *gin.Context) {
	reportId, err := pathId(c, "reportId")
	if err != nil {
		h.writeError(c, "bulkApprove", err)
		return
	}
	var req bulkApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}
	reviewerId, reviewerName := reviewer(c)
	result, err := h.service.BulkApprove(c.Request.Context(), workflow.BulkApproveInput{
		ReportId:       reportId,
		ReviewerId:     reviewerId,
		ReviewerName:   reviewerName,
		TransactionIds: req.TransactionIds,
	})
	if err != nil {
		h.writeError(c, "bulkApprove", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *reviewHandler) sign(c *gin.Context) {
	reportId, err := pathId(c, "reportId")
	if err != nil {
		h.writeError(c, "sign", err)
		return
	}
	var req signRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}
	reviewerId, reviewerName := reviewer(c)
	displayName := req.DisplayName
	if displayName == "" {
		displayName = reviewerName
	}
	if displayName == "" {
		displayName, _ = utils.GetUsernameFromContext(c.Request.Context())
	}
	signature, err := h.service.Sign(c.Request.Context(), workflow.NewSignature{
		ReportId:    reportId,
		ReviewerId:  reviewerId,
		DisplayName: displayName,
		Payload:     req.Payload,
	})
	if err != nil {
		h.writeError(c, "sign", err)
		return
	}
	c.JSON(http.StatusCreated, signature)
}

func (h *reviewHandler) listSignatures(c *gin.Context) {
	reportId, err := pathId(c, "reportId")
	if err != nil {
		h.writeError(c, "listSignatures", err)
		return
	}
	signatures, err := h.service.ListSignatures(c.Request.Context(), reportId)
	if err != nil {
		h.writeError(c, "listSignatures", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"signatures": signatures})
}

func (h *reviewHandler) progress(c *gin.Context) {
	reportId, err := pathId(c, "reportId")
	if err != nil {
		h.writeError(c, "progress", err)
		return
	}
	progress, err := h.service.GetReportProgress(c.Request.Context(), reportId)
	if err != nil {
		h.writeError(c, "progress", err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

func (h *reviewHandler) myProgress(c *gin.Context) {
	reportId, err := pathId(c, "reportId")
	if err != nil {
		h.writeError(c, "myProgress", err)
		return
	}
	reviewerId, _ := reviewer(c)
	progress, err := h.service.GetReviewerProgress(c.Request.Context(), reportId, reviewerId)
	if err != nil {
		h.writeError(c, "myProgress", err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

func (h *reviewHandler) listInput(c *gin.Context) (workflow.ListReviewItemsInput, error) {
	reportId, err := pathId(c, "reportId")
	if err != nil {
		return workflow.ListReviewItemsInput{}, err
	}
	sortMode, err := models.ParseSortMode(c.Query("sort"))
	if err != nil {
		return workflow.ListReviewItemsInput{}, &models.ValidationError{Field: "sort", Message: err.Error()}
	}
	filter, err := models.ParseReviewFilter(c.Query("filter"))
	if err != nil {
		return workflow.ListReviewItemsInput{}, &models.ValidationError{Field: "filter", Message: err.Error()}
	}
	reviewerId, _ := reviewer(c)
	return workflow.ListReviewItemsInput{
		ReportId:   reportId,
		ReviewerId: reviewerId,
		SortMode:   sortMode,
		Filter:     filter,
	}, nil
}

func (h *reviewHandler) listItems(c *gin.Context) {
	input, err := h.listInput(c)
	if err != nil {
		h.writeError(c, "listItems", err)
		return
	}
	items, err := h.service.ListReviewItems(c.Request.Context(), input)
	if err != nil {
		h.writeError(c, "listItems", err)
		return
	}
	list := slices.Collect(items)
	if list == nil {
		list = []models.ReviewItem{}
	}
	c.JSON(http.StatusOK, gin.H{"items": list})
}

func (h *reviewHandler) exportSheet(c *gin.Context) {
	input, err := h.listInput(c)
	if err != nil {
		h.writeError(c, "exportSheet", err)
		return
	}
	var buf bytes.Buffer
	if err := h.service.ExportReviewSheet(c.Request.Context(), &buf, input); err != nil {
		h.writeError(c, "exportSheet", err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=review-report-%d.xlsx", input.ReportId))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}
