package handler

import (
	"net/http"

	"github.com/arstate/FAFA-BIMBEL/internal/model"
	"github.com/arstate/FAFA-BIMBEL/internal/response"
	"github.com/arstate/FAFA-BIMBEL/internal/service"
	"github.com/arstate/FAFA-BIMBEL/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// SettingHandler manages the AI credential. The key itself is write-only.
type SettingHandler struct {
	settingService *service.SettingService
	log            zerolog.Logger
}

func NewSettingHandler(settingService *service.SettingService, log zerolog.Logger) *SettingHandler {
	return &SettingHandler{
		settingService: settingService,
		log:            log.With().Str("component", "setting_handler").Logger(),
	}
}

// GetAICredentialStatus godoc
// GET /api/v1/admin/settings/ai-credential
func (h *SettingHandler) GetAICredentialStatus(c *gin.Context) {
	configured, err := h.settingService.HasAICredential(c.Request.Context())
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"configured": configured})
}

// SetAICredential godoc
// PUT /api/v1/admin/settings/ai-credential
func (h *SettingHandler) SetAICredential(c *gin.Context) {
	var req model.SetAICredentialRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.settingService.SetAICredential(c.Request.Context(), req.APIKey); err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"configured": true})
}

// ClearAICredential godoc
// DELETE /api/v1/admin/settings/ai-credential
func (h *SettingHandler) ClearAICredential(c *gin.Context) {
	if err := h.settingService.ClearAICredential(c.Request.Context()); err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"configured": false})
}
