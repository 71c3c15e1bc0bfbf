package handler

import (
	"fmt"
	"net/http"

	"github.com/JrMarcco/jsignage/internal/api/web/httperr"
	"github.com/JrMarcco/jsignage/internal/api/web/middleware"
	"github.com/JrMarcco/jsignage/internal/domain"
	"github.com/JrMarcco/jsignage/internal/errs"
	"github.com/JrMarcco/jsignage/internal/service/birthday"
	"github.com/JrMarcco/jsignage/internal/service/channelconf"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ConfigHandler struct {
	store     channelconf.Store
	updater   channelconf.Updater
	evaluator birthday.Evaluator

	logger *zap.Logger
}

// Status 返回展示端看到的当前配置
func (h *ConfigHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.Get().EffectiveSnapshot())
}

// CheckBirthday 仅供页面提示，受理时会重新判断
func (h *ConfigHandler) CheckBirthday(c *gin.Context) {
	bd, err := domain.ParseBirthDate(c.Query("birthday"))
	if err != nil {
		httperr.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, CheckBirthdayResponse{IsBirthday: h.evaluator.IsEligible(&bd)})
}

func (h *ConfigHandler) Update(c *gin.Context) {
	var req UpdateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.AbortWithError(c, fmt.Errorf("%w: %v", errs.ErrInvalidParam, err))
		return
	}

	snapshot, err := h.updater.Update(c.Request.Context(), req.ChannelConfig, req.ExpectedVersion)
	if err != nil {
		httperr.AbortWithError(c, err)
		return
	}

	admin, _ := middleware.GetSubmitter(c)
	h.logger.Info(
		"[jsignage] channel config updated by admin",
		zap.String("admin_id", admin.Id),
		zap.Uint64("version", snapshot.Version),
	)
	c.JSON(http.StatusOK, snapshot)
}

func (h *ConfigHandler) History(c *gin.Context) {
	c.JSON(http.StatusOK, HistoryResponse{Snapshots: h.store.History()})
}

func NewConfigHandler(
	store channelconf.Store,
	updater channelconf.Updater,
	evaluator birthday.Evaluator,
	logger *zap.Logger,
) *ConfigHandler {
	return &ConfigHandler{
		store:     store,
		updater:   updater,
		evaluator: evaluator,
		logger:    logger,
	}
}
