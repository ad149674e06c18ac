package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"tradingbot/internal/repository"
	"tradingbot/internal/service"
)

const featurePrefix = "feature."

type SwitchHandler struct {
	Repo     repository.Repository
	Settings *service.SystemSettingsService
}

func (h *SwitchHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/switches")
	g.GET("", h.list)
	g.PUT("/:name", h.put)
}

type switchView struct {
	Name    string `json:"name"`
	Key     string `json:"key"`
	Enabled bool   `json:"enabled"`
}

// @Summary List feature switches
// @Tags settings
// @Produce json
// @Param X-Internal-Token header string true "internal token"
// @Success 200 {object} apiResponse
// @Router /api/v1/switches [get]
func (h *SwitchHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	prefix := featurePrefix
	items, err := h.Repo.ListSystemSettings(c.Request.Context(), repository.ListSystemSettingsParams{
		Prefix:  &prefix,
		OrderBy: "key",
		Asc:     boolPtr(true),
	})
	if err != nil {
		fail(c, err)
		return
	}
	out := make([]switchView, 0, len(items))
	for _, it := range items {
		enabled := false
		_ = json.Unmarshal(it.Value, &enabled)
		out = append(out, switchView{
			Name:    strings.TrimPrefix(it.Key, featurePrefix),
			Key:     it.Key,
			Enabled: enabled,
		})
	}
	Ok(c, out, nil)
}

type putSwitchRequest struct {
	Enabled *bool `json:"enabled"`
}

// @Summary Flip a feature switch
// @Description "execution" is the halt switch: false blocks every new alert.
// @Tags settings
// @Accept json
// @Produce json
// @Param X-Internal-Token header string true "internal token"
// @Param name path string true "switch name without the feature. prefix"
// @Success 200 {object} apiResponse
// @Failure 404 {object} apiResponse
// @Router /api/v1/switches/{name} [put]
func (h *SwitchHandler) put(c *gin.Context) {
	if h.Settings == nil {
		Error(c, http.StatusInternalServerError, "settings service unavailable", nil)
		return
	}
	name := strings.TrimSpace(c.Param("name"))
	key := featurePrefix + name
	if _, known := service.DefaultFeatureSwitches()[key]; !known {
		Error(c, http.StatusNotFound, "unknown switch", nil)
		return
	}
	var req putSwitchRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		Error(c, http.StatusBadRequest, "body must be {\"enabled\": bool}", nil)
		return
	}
	if err := h.Settings.SetEnabled(c.Request.Context(), key, *req.Enabled); err != nil {
		fail(c, err)
		return
	}
	Ok(c, switchView{Name: name, Key: key, Enabled: *req.Enabled}, nil)
}
