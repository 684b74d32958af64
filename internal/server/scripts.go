package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/wesleyorama2/k6lunge/internal/store"
)

type option struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

type configResponse struct {
	Environments  []option `json:"environments"`
	Applications  []option `json:"applications"`
	ExecutionMode string   `json:"executionMode"`
}

// GetConfig lists the environments and applications scripts are grouped by.
func (h *Handler) GetConfig(c echo.Context) error {
	resp := configResponse{ExecutionMode: string(h.dispatcher.Mode())}
	for _, env := range h.scripts.Environments() {
		name := env
		if name != "" {
			name = strings.ToUpper(name[:1]) + name[1:]
		}
		resp.Environments = append(resp.Environments, option{ID: env, Name: name, Value: env})
	}
	for _, app := range h.scripts.Applications() {
		resp.Applications = append(resp.Applications, option{ID: app, Name: strings.ToUpper(app), Value: app})
	}
	return c.JSON(http.StatusOK, resp)
}

// ListScripts lists stored scripts, optionally filtered by the environment
// and application query parameters.
func (h *Handler) ListScripts(c echo.Context) error {
	scripts, err := h.scripts.List(store.Filter{
		Environment: c.QueryParam("environment"),
		Application: c.QueryParam("application"),
	})
	if err != nil {
		h.logger.Errorw("Failed to list scripts", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Error reading scripts directory"})
	}
	return c.JSON(http.StatusOK, scripts)
}

type scriptResponse struct {
	Content     string `json:"content"`
	ScriptID    string `json:"scriptId"`
	Environment string `json:"environment"`
	Application string `json:"application"`
	FullID      string `json:"fullId"`
}

// GetScript returns the content of one script.
func (h *Handler) GetScript(c echo.Context) error {
	script, err := h.scripts.Lookup(c.Param("environment"), c.Param("application"), c.Param("scriptId"))
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"message": "Script not found"})
	}
	if err != nil {
		h.logger.Errorw("Failed to read script", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Error reading script"})
	}

	return c.JSON(http.StatusOK, scriptResponse{
		Content:     script.Content,
		ScriptID:    script.ID,
		Environment: script.Environment,
		Application: script.Application,
		FullID:      script.FullID,
	})
}

type saveScriptRequest struct {
	ScriptName  string `json:"scriptName"`
	Content     string `json:"content"`
	Environment string `json:"environment"`
	Application string `json:"application"`
}

type saveScriptResponse struct {
	Message     string `json:"message"`
	ScriptID    string `json:"scriptId"`
	Filename    string `json:"filename"`
	Environment string `json:"environment"`
	Application string `json:"application"`
	FullID      string `json:"fullId"`
}

// SaveScript creates or replaces a script.
func (h *Handler) SaveScript(c echo.Context) error {
	var req saveScriptRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request body"})
	}
	if req.ScriptName == "" || req.Content == "" || req.Environment == "" || req.Application == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"message": "Script name, content, environment, and application are required",
		})
	}

	script, err := h.scripts.Put(req.ScriptName, req.Content, req.Environment, req.Application)
	if errors.Is(err, store.ErrInvalidName) {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid script name, environment, or application"})
	}
	if err != nil {
		h.logger.Errorw("Failed to save script", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Error saving script"})
	}

	h.logger.Infow("Script saved", "fullId", script.FullID)
	return c.JSON(http.StatusOK, saveScriptResponse{
		Message:     "Script saved successfully",
		ScriptID:    script.ID,
		Filename:    script.Filename,
		Environment: script.Environment,
		Application: script.Application,
		FullID:      script.FullID,
	})
}

// DeleteScript removes a script.
func (h *Handler) DeleteScript(c echo.Context) error {
	err := h.scripts.Delete(c.Param("environment"), c.Param("application"), c.Param("scriptId"))
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"message": "Script not found"})
	}
	if err != nil {
		h.logger.Errorw("Failed to delete script", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Error deleting script"})
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Script deleted successfully"})
}
