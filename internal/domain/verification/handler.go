package verification

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"medverify/internal/analyzer"
	"medverify/internal/pkg/response"
	"medverify/internal/storage"
)

// Handler handles HTTP requests for medication verifications. All routes sit
// behind the JWT middleware; the owner identity always comes from the
// validated token.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers verification routes under the protected group.
func RegisterRoutes(r *gin.RouterGroup, h *Handler) {
	meds := r.Group("/medications")
	{
		meds.POST("/verify", h.Verify)
		meds.GET("/history", h.History)
		meds.GET("/:id", h.GetByID)
	}
}

func (h *Handler) Verify(c *gin.Context) {
	ownerID := mustUserID(c)
	if ownerID == 0 {
		return
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "NO_IMAGE", "No image provided")
		return
	}

	metadata, err := ParseMetadata(c.PostForm("metadata"))
	if err != nil {
		switch {
		case errors.Is(err, ErrMetadataTooLarge):
			response.Error(c, http.StatusBadRequest, "METADATA_TOO_LARGE", err.Error())
		default:
			response.Error(c, http.StatusBadRequest, "INVALID_METADATA", ErrInvalidMetadata.Error())
		}
		return
	}

	rec, err := h.service.Verify(c.Request.Context(), ownerID, fileHeader, metadata)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNoImage):
			response.Error(c, http.StatusBadRequest, "NO_IMAGE", "No image provided")
		case errors.Is(err, storage.ErrUnsupportedType):
			response.Error(c, http.StatusBadRequest, "UNSUPPORTED_MEDIA_TYPE", storage.ErrUnsupportedType.Error())
		case errors.Is(err, storage.ErrImageTooLarge):
			response.Error(c, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", storage.ErrImageTooLarge.Error())
		case errors.Is(err, analyzer.ErrAnalysisFailed):
			_ = c.Error(err)
			response.Error(c, http.StatusInternalServerError, "SERVER_ERROR", "Server error during verification")
		default:
			_ = c.Error(err)
			response.Error(c, http.StatusInternalServerError, "SERVER_ERROR", "Server error during verification")
		}
		return
	}

	response.Success(c, http.StatusCreated, rec.Result)
}

func (h *Handler) History(c *gin.Context) {
	ownerID := mustUserID(c)
	if ownerID == 0 {
		return
	}

	recs, err := h.service.History(c.Request.Context(), ownerID)
	if err != nil {
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, "SERVER_ERROR", "Server error")
		return
	}

	response.Success(c, http.StatusOK, recs)
}

func (h *Handler) GetByID(c *gin.Context) {
	callerID := mustUserID(c)
	if callerID == 0 {
		return
	}

	rec, err := h.service.Get(c.Request.Context(), c.Param("id"), callerID)
	if err != nil {
		switch {
		case errors.Is(err, ErrRecordNotFound):
			response.Error(c, http.StatusNotFound, "NOT_FOUND", "Verification not found")
		case errors.Is(err, ErrNotOwner):
			response.Error(c, http.StatusForbidden, "FORBIDDEN", "Not authorized")
		default:
			_ = c.Error(err)
			response.Error(c, http.StatusInternalServerError, "SERVER_ERROR", "Server error")
		}
		return
	}

	response.Success(c, http.StatusOK, rec)
}

func mustUserID(c *gin.Context) int64 {
	id, exists := c.Get("user_id")
	if !exists {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return 0
	}
	if v, ok := id.(int64); ok {
		return v
	}
	response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid user id")
	return 0
}
