package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/JrMarcco/jsignage/internal/api/web/httperr"
	"github.com/JrMarcco/jsignage/internal/api/web/middleware"
	"github.com/JrMarcco/jsignage/internal/domain"
	"github.com/JrMarcco/jsignage/internal/errs"
	"github.com/JrMarcco/jsignage/internal/service/order"
	"github.com/JrMarcco/jsignage/internal/service/submission"
	"github.com/gin-gonic/gin"
)

type OrderHandler struct {
	submissionSvc submission.Service
}

// Submit 受理投稿，Idempotency-Key 作为 request id，重复提交返回同一份回执
func (h *OrderHandler) Submit(c *gin.Context) {
	submitter, ok := middleware.GetSubmitter(c)
	if !ok {
		httperr.AbortWithError(c, errs.ErrUnauthenticated)
		return
	}

	var req SubmitOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.AbortWithError(c, fmt.Errorf("%w: %v", errs.ErrInvalidParam, err))
		return
	}

	record, err := h.submissionSvc.Submit(c.Request.Context(), domain.Submission{
		RequestId:       c.GetHeader(middleware.HeaderIdempotencyKey),
		Channel:         domain.Channel(req.Channel),
		SubmitterId:     submitter.Id,
		DurationMinutes: req.DurationMinutes,
		BirthDate:       submitter.BirthDate,
	})
	if err != nil {
		httperr.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record.Receipt())
}

func (h *OrderHandler) Lookup(c *gin.Context) {
	submitter, ok := middleware.GetSubmitter(c)
	if !ok {
		httperr.AbortWithError(c, errs.ErrUnauthenticated)
		return
	}

	queueNumber, err := strconv.ParseUint(c.Param("queue_number"), 10, 64)
	if err != nil {
		httperr.AbortWithError(c, fmt.Errorf("%w: invalid queue number %q", errs.ErrInvalidParam, c.Param("queue_number")))
		return
	}

	record, err := h.submissionSvc.Lookup(c.Request.Context(), submitter, queueNumber)
	if err != nil {
		httperr.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, record.Receipt())
}

// Reconcile 校验客户端缓存的回执是否仍然可用
func (h *OrderHandler) Reconcile(c *gin.Context) {
	var cached domain.CachedOrder
	if err := c.ShouldBindJSON(&cached); err != nil {
		httperr.AbortWithError(c, fmt.Errorf("%w: %v", errs.ErrInvalidParam, err))
		return
	}
	c.JSON(http.StatusOK, order.Reconcile(cached))
}

func NewOrderHandler(submissionSvc submission.Service) *OrderHandler {
	return &OrderHandler{
		submissionSvc: submissionSvc,
	}
}
