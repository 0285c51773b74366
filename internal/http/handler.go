package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Douglasgls/zona-verde-app/internal/capture"
	"github.com/Douglasgls/zona-verde-app/internal/config"
	"github.com/Douglasgls/zona-verde-app/internal/fetch"
	"github.com/Douglasgls/zona-verde-app/internal/service"
)

type Handler struct {
	console *service.ConsoleService
	config  *config.Config
	log     zerolog.Logger
}

func NewHandler(
	console *service.ConsoleService,
	cfg *config.Config,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		console: console,
		config:  cfg,
		log:     log,
	}
}

func (h *Handler) Register(r *gin.Engine, authMiddleware gin.HandlerFunc) {
	api := r.Group("/api/v1")
	api.Use(authMiddleware)
	{
		api.GET("/overview", h.overview)
		api.GET("/spots/:id", h.spotDetail)
		api.POST("/spots/:id/acknowledge", h.acknowledge)
		api.POST("/spots/:id/picture", h.takePicture)
		api.POST("/spots/:id/picture/refresh", h.refreshPicture)
		api.GET("/spots/:id/picture", h.pictureState)
	}
}

func (h *Handler) overview(c *gin.Context) {
	// First call fetches regardless; after that, only an explicit
	// refresh=1 refetches the reference collections.
	refresh := c.Query("refresh") == "1" || c.Query("refresh") == "true"

	views, err := h.console.Overview(c.Request.Context(), refresh)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(views))
}

func (h *Handler) spotDetail(c *gin.Context) {
	spotID, err := pathSpotID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	view, err := h.console.SpotDetail(c.Request.Context(), spotID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(view))
}

func (h *Handler) acknowledge(c *gin.Context) {
	spotID, err := pathSpotID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	timestamp, err := h.console.Acknowledge(c.Request.Context(), spotID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"spot_id":   spotID,
		"last_time": timestamp,
	})
}

func (h *Handler) takePicture(c *gin.Context) {
	spotID, err := pathSpotID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	if err := h.console.TakePicture(c.Request.Context(), spotID); err != nil {
		h.handleError(c, err)
		return
	}

	state, _ := h.console.PictureState(spotID)
	c.JSON(http.StatusAccepted, successResponse(state))
}

func (h *Handler) refreshPicture(c *gin.Context) {
	spotID, err := pathSpotID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	if err := h.console.RefreshPicture(c.Request.Context(), spotID); err != nil {
		h.handleError(c, err)
		return
	}

	state, _ := h.console.PictureState(spotID)
	c.JSON(http.StatusOK, successResponse(state))
}

func (h *Handler) pictureState(c *gin.Context) {
	spotID, err := pathSpotID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	state, err := h.console.PictureState(spotID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(state))
}

func (h *Handler) handleError(c *gin.Context, err error) {
	var fetchErr *fetch.FetchError
	var captureErr *capture.CaptureError
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	case errors.As(err, &fetchErr):
		c.JSON(http.StatusBadGateway, errorResponse(fetchErr.Error()))
	case errors.As(err, &captureErr):
		c.JSON(http.StatusBadGateway, errorResponse(captureErr.Error()))
	default:
		h.log.Error().Err(err).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func successResponse(data interface{}) gin.H {
	return gin.H{
		"data": data,
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": message,
	}
}

func pathSpotID(c *gin.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return 0, errors.New("spot id must be a positive integer")
	}
	return id, nil
}
