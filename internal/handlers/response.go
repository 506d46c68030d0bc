package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/PR1MKO/iktato-backend/internal/logger"
	"github.com/PR1MKO/iktato-backend/internal/safepath"
	"github.com/PR1MKO/iktato-backend/internal/services"
)

// errorKind classifies a domain error for the response body and flash text.
type errorKind struct {
	status int
	kind   string
}

func classify(err error) errorKind {
	switch {
	case errors.Is(err, services.ErrValidation):
		return errorKind{http.StatusBadRequest, "validation"}
	case errors.Is(err, safepath.ErrTraversal), errors.Is(err, safepath.ErrForbiddenType):
		return errorKind{http.StatusBadRequest, "path"}
	case errors.Is(err, safepath.ErrTooLarge):
		return errorKind{http.StatusRequestEntityTooLarge, "size"}
	case errors.Is(err, services.ErrForbidden):
		return errorKind{http.StatusForbidden, "forbidden"}
	case errors.Is(err, services.ErrNotFound):
		return errorKind{http.StatusNotFound, "not_found"}
	case errors.Is(err, services.ErrDuplicate):
		return errorKind{http.StatusConflict, "duplicate"}
	case errors.Is(err, services.ErrStaleForm):
		return errorKind{http.StatusConflict, "stale_form"}
	case errors.Is(err, services.ErrLocked):
		return errorKind{http.StatusConflict, "locked"}
	case errors.Is(err, services.ErrPrecondition):
		return errorKind{http.StatusConflict, "precondition"}
	default:
		return errorKind{http.StatusInternalServerError, "internal"}
	}
}

// wantsJSON decides the response format the way the original routes did: JSON
// when the client sent or asked for JSON, form-style redirect otherwise.
func wantsJSON(c *gin.Context) bool {
	if strings.Contains(c.GetHeader("Accept"), "application/json") {
		return true
	}
	return strings.Contains(c.ContentType(), "application/json")
}

// Fail converts a domain error into the correct response. Duplicate and
// precondition-class errors on form submissions become a redirect with a
// flash; JSON callers always get a structured body. Internal faults are logged
// with the stack and surface no detail.
func Fail(c *gin.Context, log *logger.Logger, err error, redirectTo string) {
	ek := classify(err)
	if ek.status == http.StatusInternalServerError {
		log.Error("internal fault", "path", c.FullPath(), "error", err, "stack", string(debug.Stack()))
		if wantsJSON(c) {
			c.JSON(ek.status, gin.H{"error": ek.kind})
		} else {
			RedirectWithFlash(c, redirectTo, "Hiba történt, kérjük próbálja újra")
		}
		return
	}
	if wantsJSON(c) {
		c.JSON(ek.status, gin.H{"error": ek.kind, "detail": err.Error()})
		return
	}
	switch ek.kind {
	case "duplicate", "precondition", "stale_form", "locked", "validation":
		RedirectWithFlash(c, redirectTo, err.Error())
	default:
		c.JSON(ek.status, gin.H{"error": ek.kind})
	}
}

// RedirectWithFlash implements the PRG pattern: the flash message travels in a
// short-lived cookie the next GET consumes.
func RedirectWithFlash(c *gin.Context, target, message string) {
	if target == "" {
		target = "/dashboard"
	}
	if message != "" {
		c.SetCookie("flash", url.QueryEscape(message), 10, "/", "", false, true)
	}
	c.Redirect(http.StatusFound, target)
}

// ConsumeFlash returns and clears the pending flash message, if any.
func ConsumeFlash(c *gin.Context) string {
	raw, err := c.Cookie("flash")
	if err != nil || raw == "" {
		return ""
	}
	c.SetCookie("flash", "", -1, "/", "", false, true)
	msg, dErr := url.QueryUnescape(raw)
	if dErr != nil {
		return ""
	}
	return msg
}
