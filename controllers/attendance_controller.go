package controllers

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/questmock/services"
	"github.com/cppla/questmock/utils"
)

// AttendanceController serves the platform's attendance contract.
type AttendanceController struct {
	attendance *services.AttendanceService
}

// NewAttendanceController creates a new AttendanceController instance.
func NewAttendanceController(attendance *services.AttendanceService) *AttendanceController {
	return &AttendanceController{attendance: attendance}
}

type attendanceRequest struct {
	UUID           flexID `json:"uuid"`
	AttendanceDate string `json:"attendanceDate"`
	ReferenceDate  string `json:"referenceDate"`
}

func (a *AttendanceController) bind(ctx *gin.Context) (attendanceRequest, bool) {
	var req attendanceRequest
	if err := ctx.ShouldBindJSON(&req); err != nil || req.UUID == "" {
		badRequest(ctx, "Invalid UUID provided")
		return req, false
	}
	return req, true
}

// Check records today's (or the given day's) attendance. A repeat check-in
// answers success:false with the existing record.
func (a *AttendanceController) Check(ctx *gin.Context) {
	req, ok := a.bind(ctx)
	if !ok {
		return
	}
	day := strings.TrimSpace(req.AttendanceDate)
	if day == "" {
		day = a.attendance.Today()
	}

	record, err := a.attendance.CheckIn(ctx.Request.Context(), req.UUID.String(), day)
	if errors.Is(err, services.ErrAlreadyAttended) {
		existing, findErr := a.attendance.Find(ctx.Request.Context(), req.UUID.String(), day)
		if findErr != nil {
			respondError(ctx, findErr, "load existing attendance")
			return
		}
		utils.Rejected(ctx, "Already attended today", existing)
		return
	}
	if err != nil {
		respondError(ctx, err, "attendance check")
		return
	}
	utils.Payload(ctx, record)
}

// Status returns the seven day attendance window.
func (a *AttendanceController) Status(ctx *gin.Context) {
	req, ok := a.bind(ctx)
	if !ok {
		return
	}
	ref := strings.TrimSpace(req.ReferenceDate)
	if ref == "" {
		ref = a.attendance.Today()
	}

	status, err := a.attendance.Status(ctx.Request.Context(), req.UUID.String(), ref)
	if err != nil {
		respondError(ctx, err, "attendance status")
		return
	}
	utils.Payload(ctx, status)
}

// QuestAttendance answers whether the user attended on attendanceDate.
func (a *AttendanceController) QuestAttendance(ctx *gin.Context) {
	req, ok := a.bind(ctx)
	if !ok {
		return
	}
	if strings.TrimSpace(req.AttendanceDate) == "" {
		badRequest(ctx, "Invalid attendanceDate provided")
		return
	}

	attended, err := a.attendance.HasAttended(ctx.Request.Context(), req.UUID.String(), strings.TrimSpace(req.AttendanceDate))
	if err != nil {
		respondError(ctx, err, "quest attendance")
		return
	}
	utils.Payload(ctx, attended)
}
