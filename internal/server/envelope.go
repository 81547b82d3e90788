package server

import (
	"net/http"
	"strconv"

	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/apperr"
	"github.com/FazalZamanKhan/SociallyMobileApp-Backend/internal/paging"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type successEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

type errorEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Kind    string `json:"kind"`
	Code    string `json:"code,omitempty"`
}

func respondSuccess(c *gin.Context, status int, message string, data any) {
	c.JSON(status, successEnvelope{Success: true, Message: message, Data: data})
}

// respondError maps err to its HTTP status. Internal causes are logged, never echoed.
func (h *httpHandler) respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	code := ""
	if typed, ok := apperr.As(err); ok {
		code = typed.Code()
	}
	if kind == apperr.KindInternal {
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.String("code", code), zap.Error(err))
	}
	c.JSON(apperr.HTTPStatus(kind), errorEnvelope{
		Error: apperr.PublicMessage(err),
		Kind:  string(kind),
		Code:  code,
	})
}

func respondInvalid(c *gin.Context, code, message string) {
	c.JSON(http.StatusBadRequest, errorEnvelope{Error: message, Kind: string(apperr.KindValidation), Code: code})
}

// pageRequest reads page and limit query parameters; malformed values fall back to defaults.
func pageRequest(c *gin.Context) paging.Request {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	return paging.NewRequest(page, limit)
}

func queryBool(c *gin.Context, name string) bool {
	value, err := strconv.ParseBool(c.Query(name))
	return err == nil && value
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
