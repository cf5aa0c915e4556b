package controllers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/questmock/middleware"
	"github.com/cppla/questmock/services"
	"github.com/cppla/questmock/utils"
)

// flexID accepts an identifier sent either as a JSON string or a JSON number.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

func (f flexID) String() string { return string(f) }

// questRef is one entry of a quest id list. Anything that is not an integer,
// with or without the "quest-" prefix, decodes to 0, which matches no quest.
type questRef int

func (q *questRef) UnmarshalJSON(b []byte) error {
	*q = 0
	var id flexID
	if err := id.UnmarshalJSON(b); err != nil {
		return nil
	}
	if n, err := strconv.Atoi(strings.TrimPrefix(id.String(), "quest-")); err == nil {
		*q = questRef(n)
	}
	return nil
}

// respondError maps a service error onto the response envelope.
func respondError(ctx *gin.Context, err error, op string) {
	switch {
	case services.IsClientError(err):
		utils.Error(ctx, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrUserNotFound):
		utils.Error(ctx, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrPlatformUnavailable):
		utils.Sugar.Warnw(op+" failed", "error", err)
		utils.Error(ctx, http.StatusBadGateway, "platform unavailable")
	default:
		utils.Sugar.Errorw(op+" failed", "error", err, "path", ctx.FullPath())
		utils.Error(ctx, http.StatusInternalServerError, "internal server error")
	}
}

func badRequest(ctx *gin.Context, message string) {
	utils.Error(ctx, http.StatusBadRequest, message)
}

// resolveUserID prefers an explicit id from the request and falls back to the session subject.
func resolveUserID(ctx *gin.Context, explicit flexID) (string, bool) {
	if id := strings.TrimSpace(explicit.String()); id != "" {
		return id, true
	}
	if id := strings.TrimSpace(ctx.Query("userId")); id != "" {
		return id, true
	}
	return middleware.SessionUserID(ctx)
}
