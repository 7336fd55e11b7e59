package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ppiankov/herbia/internal/apierr"
	"github.com/ppiankov/herbia/internal/i18n"
	"github.com/ppiankov/herbia/internal/logger"
	"github.com/ppiankov/herbia/internal/model"
)

type handlers struct {
	deps Deps
	log  *logger.Logger
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": h.deps.Version})
}

func (h *handlers) quota(c *gin.Context) {
	if h.deps.Quota == nil {
		c.JSON(http.StatusOK, gin.H{"exhausted": false, "limit": 0})
		return
	}
	exhausted, err := h.deps.Quota.Exhausted(c.Request.Context())
	if err != nil {
		h.fail(c, "", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"exhausted": exhausted, "limit": h.deps.Quota.Limit()})
}

func (h *handlers) suggest(c *gin.Context) {
	var req model.SuggestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, "", fmt.Errorf("decode request: %v: %w", err, model.ErrInvalidInput))
		return
	}
	req.Language = requestLang(c, req.Language)

	res, err := h.deps.Suggester.Suggest(c.Request.Context(), req)
	if err != nil {
		h.fail(c, req.Language, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) identify(c *gin.Context) {
	maxBytes := h.deps.Identifier.MaxUploadBytes()

	// Leave room for the other multipart fields
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+64*1024)

	file, header, err := c.Request.FormFile("photo")
	lang := requestLang(c, c.Request.FormValue("lang"))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			h.fail(c, lang, fmt.Errorf("upload exceeds %d bytes: %w", maxBytes, model.ErrPayloadTooLarge))
			return
		}
		h.fail(c, lang, fmt.Errorf("photo field: %v: %w", err, model.ErrInvalidInput))
		return
	}
	defer func() { _ = file.Close() }()

	image, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		h.fail(c, lang, fmt.Errorf("read photo: %w", err))
		return
	}
	if int64(len(image)) > maxBytes {
		h.fail(c, lang, fmt.Errorf("photo exceeds %d bytes: %w", maxBytes, model.ErrPayloadTooLarge))
		return
	}

	res, err := h.deps.Identifier.Identify(c.Request.Context(), model.IdentifyRequest{
		Image:                  image,
		MimeType:               header.Header.Get("Content-Type"),
		ExpectedScientificName: strings.TrimSpace(c.Request.FormValue("scientificName")),
		ExpectedGenus:          strings.TrimSpace(c.Request.FormValue("genus")),
		ExpectedFamily:         strings.TrimSpace(c.Request.FormValue("family")),
	})
	if err != nil {
		h.fail(c, lang, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// fail writes the localized error body; internal detail only goes to the log
func (h *handlers) fail(c *gin.Context, lang string, err error) {
	apiErr := apierr.From(err)
	lang = requestLang(c, lang)

	log := h.log.With("request_id", c.GetString("request_id"), "code", apiErr.Code)
	if apiErr.Status >= http.StatusInternalServerError {
		log.Error("request failed", "error", err)
	} else {
		log.Info("request rejected", "error", err)
	}

	c.AbortWithStatusJSON(apiErr.Status, gin.H{
		"error": i18n.Message(lang, messageKey(apiErr.Code)),
		"code":  apiErr.Code,
	})
}

func messageKey(code string) string {
	switch code {
	case apierr.CodeInvalidInput:
		return i18n.InvalidInput
	case apierr.CodeUnsupportedMedia:
		return i18n.BadImage
	case apierr.CodePayloadTooLarge:
		return i18n.ImageTooLarge
	case apierr.CodeQuotaExhausted:
		return i18n.QuotaExhausted
	default:
		return i18n.GenericFailure
	}
}
