package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/questmock/config"
	"github.com/cppla/questmock/models"
	"github.com/cppla/questmock/services"
)

const (
	testAPISecret = "shared-secret"
	testJWTSecret = "jwt-secret"
)

type envelope struct {
	Success bool            `json:"success"`
	Error   *string         `json:"error"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Payload json.RawMessage `json:"payload"`
}

type testServer struct {
	router *gin.Engine
	db     *gorm.DB
	today  string
}

func setupRouterTest(t *testing.T) *testServer {
	t.Helper()

	dsn := fmt.Sprintf("file:router-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := gdb.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}

	cfg := config.AppConfig{
		GinMode:            "test",
		Environment:        "test",
		Version:            "0.1.0",
		ServiceName:        "quest-mock-game",
		JWTSecret:          testJWTSecret,
		APIAuthSecret:      testAPISecret,
		SessionTTLHours:    1,
		RateLimitPerMinute: 600,
		AllowedOrigins:     []string{"*"},
	}
	events := services.NewEventService(gdb, 0)
	attendance := services.NewAttendanceService(gdb, time.UTC)
	router := SetupRouter(Deps{
		Config:     cfg,
		DB:         gdb,
		Users:      services.NewUserService(gdb, events),
		Attendance: attendance,
		Quests:     services.NewQuestService(gdb, events),
		Game:       services.NewGameService(gdb, events),
		Events:     events,
		Platform:   services.NewPlatformService(services.NewPlatformClient("", "", "", 0), "https://platform.example", 0),
	})
	return &testServer{router: router, db: gdb, today: attendance.Today()}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, headers map[string]string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

var platformHeaders = map[string]string{"api-auth": testAPISecret}

func decode(t *testing.T, raw json.RawMessage, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
}

func TestLoginIssuesTokenAndSequentialIDs(t *testing.T) {
	s := setupRouterTest(t)

	var first, second struct {
		User  models.User `json:"user"`
		Token string      `json:"token"`
	}
	w, env := s.do(t, http.MethodPost, "/api/auth/login", gin.H{"username": "alice"}, nil)
	if w.Code != http.StatusOK || !env.Success {
		t.Fatalf("login failed: %d %s", w.Code, w.Body.String())
	}
	decode(t, env.Data, &first)
	_, env = s.do(t, http.MethodPost, "/api/auth/login", gin.H{"username": "bob", "platformData": gin.H{"platformId": 5}}, nil)
	decode(t, env.Data, &second)

	if first.User.UUID != "1" || second.User.UUID != "2" {
		t.Fatalf("expected uuids 1 and 2, got %q %q", first.User.UUID, second.User.UUID)
	}
	if first.Token == "" || !second.User.IsPlatformLinked {
		t.Fatalf("unexpected login payloads: %+v %+v", first, second)
	}

	w, env = s.do(t, http.MethodGet, "/api/auth/me", nil, map[string]string{"Authorization": "Bearer " + first.Token})
	if w.Code != http.StatusOK {
		t.Fatalf("me failed: %d %s", w.Code, w.Body.String())
	}
	var me models.User
	decode(t, env.Data, &me)
	if me.Username != "alice" {
		t.Fatalf("expected alice, got %+v", me)
	}

	w, _ = s.do(t, http.MethodPost, "/api/auth/logout", nil, map[string]string{"Authorization": "Bearer " + first.Token})
	if w.Code != http.StatusOK {
		t.Fatalf("logout failed: %d %s", w.Code, w.Body.String())
	}
	w, _ = s.do(t, http.MethodGet, "/api/auth/me", nil, map[string]string{"Authorization": "Bearer " + first.Token})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("revoked token should be 401, got %d", w.Code)
	}
	w, _ = s.do(t, http.MethodPost, "/api/auth/logout", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("logout without token should be 401, got %d", w.Code)
	}

	w, env = s.do(t, http.MethodPost, "/api/auth/login", gin.H{"username": ""}, nil)
	if w.Code != http.StatusBadRequest || env.Success {
		t.Fatalf("empty username should be 400, got %d", w.Code)
	}
}

func TestAttendanceRoutes(t *testing.T) {
	s := setupRouterTest(t)

	w, env := s.do(t, http.MethodPost, "/attendance/check", gin.H{"uuid": "1"}, nil)
	if w.Code != http.StatusUnauthorized || env.Success || env.Error == nil {
		t.Fatalf("missing api-auth should be 401, got %d %s", w.Code, w.Body.String())
	}

	w, env = s.do(t, http.MethodPost, "/attendance/check", gin.H{"uuid": "1"}, platformHeaders)
	if w.Code != http.StatusOK || !env.Success || env.Error != nil {
		t.Fatalf("check-in failed: %d %s", w.Code, w.Body.String())
	}
	var record models.AttendanceRecord
	decode(t, env.Payload, &record)
	if record.AttendanceDate != s.today || record.ConsecutiveDays != 1 || record.TotalDays != 1 {
		t.Fatalf("unexpected record: %+v", record)
	}

	w, env = s.do(t, http.MethodPost, "/api/attendance/check", gin.H{"uuid": 1}, platformHeaders)
	if w.Code != http.StatusOK || env.Success || env.Error == nil {
		t.Fatalf("second check-in should be a soft rejection, got %d %s", w.Code, w.Body.String())
	}
	var existing models.AttendanceRecord
	decode(t, env.Payload, &existing)
	if existing.AttendanceDate != s.today {
		t.Fatalf("rejection should carry the existing record, got %+v", existing)
	}

	w, _ = s.do(t, http.MethodPost, "/api/attendance/check", gin.H{"uuid": "1", "attendanceDate": "2024/01/01"}, platformHeaders)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad date should be 400, got %d", w.Code)
	}
	w, _ = s.do(t, http.MethodPost, "/api/attendance/check", gin.H{}, platformHeaders)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing uuid should be 400, got %d", w.Code)
	}

	w, env = s.do(t, http.MethodPost, "/api/attendance/status", gin.H{"uuid": "1"}, platformHeaders)
	if w.Code != http.StatusOK {
		t.Fatalf("status failed: %d %s", w.Code, w.Body.String())
	}
	var status services.AttendanceStatus
	decode(t, env.Payload, &status)
	if !status.TodayAttended || status.CanAttendToday || status.ConsecutiveDays != 1 || len(status.WeeklyStatus) != 7 {
		t.Fatalf("unexpected status: %+v", status)
	}

	compact := s.today[:4] + s.today[5:7] + s.today[8:]
	for date, want := range map[string]bool{compact: true, "2000-01-01": false} {
		w, env = s.do(t, http.MethodPost, "/api/quest/attendance", gin.H{"uuid": "1", "attendanceDate": date}, platformHeaders)
		if w.Code != http.StatusOK {
			t.Fatalf("quest attendance %s failed: %d %s", date, w.Code, w.Body.String())
		}
		var attended bool
		decode(t, env.Payload, &attended)
		if attended != want {
			t.Fatalf("quest attendance %s = %v, want %v", date, attended, want)
		}
	}
	w, _ = s.do(t, http.MethodPost, "/api/quest/attendance", gin.H{"uuid": "1"}, platformHeaders)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing attendanceDate should be 400, got %d", w.Code)
	}
}

func TestQuestRoutes(t *testing.T) {
	s := setupRouterTest(t)

	w, env := s.do(t, http.MethodGet, "/api/quest/list", nil, platformHeaders)
	if w.Code != http.StatusOK {
		t.Fatalf("list failed: %d", w.Code)
	}
	var list []struct {
		ID         int    `json:"id"`
		Title      string `json:"title"`
		TotalTimes int    `json:"totalTimes"`
	}
	decode(t, env.Payload, &list)
	if len(list) != 7 || list[0].Title != "COMPLETE_FIRST_STAGE" || list[1].TotalTimes != 500 {
		t.Fatalf("unexpected quest list: %+v", list)
	}

	w, env = s.do(t, http.MethodPost, "/api/quest/update", gin.H{"uuid": "9", "questId": "2", "progress": 250}, platformHeaders)
	if w.Code != http.StatusOK {
		t.Fatalf("update failed: %d %s", w.Code, w.Body.String())
	}
	w, _ = s.do(t, http.MethodPost, "/api/quest/update", gin.H{"uuid": "9", "questId": 2, "isCompleted": true}, platformHeaders)
	if w.Code != http.StatusOK {
		t.Fatalf("numeric questId should be accepted: %d %s", w.Code, w.Body.String())
	}
	w, _ = s.do(t, http.MethodPost, "/api/quest/update", gin.H{"uuid": "9"}, platformHeaders)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing questId should be 400, got %d", w.Code)
	}

	w, env = s.do(t, http.MethodPost, "/api/quest/check", gin.H{"uuid": "9", "questIds": []int{2, 42}}, platformHeaders)
	if w.Code != http.StatusOK {
		t.Fatalf("check failed: %d %s", w.Code, w.Body.String())
	}
	var checks []services.QuestCheck
	decode(t, env.Payload, &checks)
	if len(checks) != 2 || checks[0].CurrentTimes != 250 || !checks[0].Complete || checks[1] != (services.QuestCheck{ID: 42}) {
		t.Fatalf("unexpected checks: %+v", checks)
	}
	w, env = s.do(t, http.MethodPost, "/api/quest/check", gin.H{"uuid": "9", "questIds": []interface{}{"2", 99, "quest-2", true, "abc"}}, platformHeaders)
	if w.Code != http.StatusOK {
		t.Fatalf("mixed questIds should be accepted: %d %s", w.Code, w.Body.String())
	}
	var mixed []services.QuestCheck
	decode(t, env.Payload, &mixed)
	if len(mixed) != 5 {
		t.Fatalf("expected one entry per requested id, got %+v", mixed)
	}
	if mixed[0].ID != 2 || mixed[0].CurrentTimes != 250 || mixed[2].ID != 2 || !mixed[2].Complete {
		t.Fatalf("string ids should resolve like numbers: %+v", mixed)
	}
	for _, i := range []int{1, 3, 4} {
		if mixed[i].TotalTimes != 0 || mixed[i].CurrentTimes != 0 || mixed[i].Complete {
			t.Fatalf("entry %d should be a zeroed stub, got %+v", i, mixed[i])
		}
	}

	w, _ = s.do(t, http.MethodPost, "/api/quest/check", gin.H{"uuid": "9"}, platformHeaders)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing questIds should be 400, got %d", w.Code)
	}

	w, env = s.do(t, http.MethodPost, "/api/quest/start", gin.H{"uuid": "9"}, platformHeaders)
	if w.Code != http.StatusOK {
		t.Fatalf("start failed: %d", w.Code)
	}
	var started struct {
		Result    bool  `json:"result"`
		StartDate int64 `json:"startDate"`
	}
	decode(t, env.Payload, &started)
	if !started.Result || started.StartDate <= 0 {
		t.Fatalf("unexpected start payload: %+v", started)
	}
}

func TestGameRoutes(t *testing.T) {
	s := setupRouterTest(t)

	w, env := s.do(t, http.MethodGet, "/api/game/state?userId=3", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get state failed: %d %s", w.Code, w.Body.String())
	}
	var state models.GameState
	decode(t, env.Data, &state)
	if state.CurrentStage != 1 || state.Lives != 3 {
		t.Fatalf("unexpected default state: %+v", state)
	}

	w, _ = s.do(t, http.MethodGet, "/api/game/state", nil, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("state without user should be 400, got %d", w.Code)
	}

	w, env = s.do(t, http.MethodPost, "/api/game/stage/complete", gin.H{"userId": "3", "stageId": 1, "score": 150, "timeSpent": 20}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("stage complete failed: %d %s", w.Code, w.Body.String())
	}
	var result services.StageResult
	decode(t, env.Data, &result)
	if result.Rewards.Exp != 1500 || result.Rewards.Coins != 15 || result.Event == "" {
		t.Fatalf("unexpected stage result: %+v", result)
	}

	w, env = s.do(t, http.MethodPost, "/api/game/score/update", gin.H{"userId": 3, "score": 320, "stageId": 2}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("score update failed: %d %s", w.Code, w.Body.String())
	}
	_, env = s.do(t, http.MethodGet, "/api/game/stages?userId=3", nil, nil)
	var stages []services.StageView
	decode(t, env.Data, &stages)
	if len(stages) != 4 || !stages[2].IsUnlocked || stages[3].IsUnlocked || !stages[0].IsCompleted {
		t.Fatalf("unexpected stages: %+v", stages)
	}

	w, _ = s.do(t, http.MethodPost, "/api/game/score/update", gin.H{"userId": "3"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("score update without score should be 400, got %d", w.Code)
	}

	w, env = s.do(t, http.MethodPost, "/api/game/quest/complete", gin.H{"userId": "3", "questId": "1"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("quest complete failed: %d %s", w.Code, w.Body.String())
	}
	var completed struct {
		Rewards services.QuestRewards `json:"rewards"`
	}
	decode(t, env.Data, &completed)
	if completed.Rewards.Experience != 100 || completed.Rewards.Coins != 50 {
		t.Fatalf("unexpected quest rewards: %+v", completed.Rewards)
	}

	_, env = s.do(t, http.MethodGet, "/api/game/quests?userId=3", nil, nil)
	var quests []services.QuestView
	decode(t, env.Data, &quests)
	if len(quests) != 7 || !quests[0].IsCompleted {
		t.Fatalf("unexpected quests: %+v", quests)
	}

	w, env = s.do(t, http.MethodPut, "/api/game/state", gin.H{"userId": "3", "isPaused": true}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("put state failed: %d %s", w.Code, w.Body.String())
	}
	decode(t, env.Data, &state)
	if !state.IsPaused || state.Score != 320 || state.CurrentStage != 2 {
		t.Fatalf("unexpected patched state: %+v", state)
	}

	w, env = s.do(t, http.MethodPut, "/api/game/stages", gin.H{"userId": "3", "stageId": 9}, nil)
	if w.Code != http.StatusOK || !env.Success {
		t.Fatalf("unknown stage should answer a stub, got %d %s", w.Code, w.Body.String())
	}
	var stubStage services.StageView
	decode(t, env.Data, &stubStage)
	if stubStage.ID != 9 || stubStage.IsUnlocked || stubStage.BestScore != 0 {
		t.Fatalf("unexpected stage stub: %+v", stubStage)
	}

	w, env = s.do(t, http.MethodPost, "/api/game/stage/complete", gin.H{"userId": "3", "stageId": 9, "score": 50}, nil)
	if w.Code != http.StatusOK || !env.Success {
		t.Fatalf("unknown stage complete should answer a stub, got %d %s", w.Code, w.Body.String())
	}
	var stubResult services.StageResult
	decode(t, env.Data, &stubResult)
	if stubResult.Stage.ID != 9 || stubResult.Rewards.Exp != 0 || stubResult.Rewards.Coins != 0 || stubResult.Event != "" {
		t.Fatalf("unexpected stage complete stub: %+v", stubResult)
	}

	w, env = s.do(t, http.MethodPost, "/api/game/quest/complete", gin.H{"userId": "3", "questId": 42}, nil)
	if w.Code != http.StatusOK || !env.Success {
		t.Fatalf("unknown quest complete should answer a stub, got %d %s", w.Code, w.Body.String())
	}
	var stubQuest struct {
		Progress models.QuestProgress  `json:"progress"`
		Rewards  services.QuestRewards `json:"rewards"`
	}
	decode(t, env.Data, &stubQuest)
	if stubQuest.Progress.QuestID != "quest-42" || stubQuest.Progress.IsCompleted || stubQuest.Rewards != (services.QuestRewards{}) {
		t.Fatalf("unexpected quest complete stub: %+v", stubQuest)
	}
	w, _ = s.do(t, http.MethodPut, "/api/game/quests", gin.H{"userId": "3", "questId": "5", "progress": 10}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("put quests failed: %d", w.Code)
	}
}

func TestGameRoutesUseSessionUser(t *testing.T) {
	s := setupRouterTest(t)

	_, env := s.do(t, http.MethodPost, "/api/auth/login", gin.H{"username": "zoe"}, nil)
	var login struct {
		Token string `json:"token"`
	}
	decode(t, env.Data, &login)

	w, env := s.do(t, http.MethodGet, "/api/game/state", nil, map[string]string{"Authorization": "Bearer " + login.Token})
	if w.Code != http.StatusOK {
		t.Fatalf("state with session failed: %d %s", w.Code, w.Body.String())
	}
	var state models.GameState
	decode(t, env.Data, &state)
	if state.UserID != "1" {
		t.Fatalf("expected session user 1, got %q", state.UserID)
	}
}

func TestPlatformRoutes(t *testing.T) {
	s := setupRouterTest(t)

	w, env := s.do(t, http.MethodPost, "/api/platform/events", gin.H{
		"userId":    "4",
		"eventType": "stage_complete",
		"eventData": gin.H{"stageId": 1, "score": 10},
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("post event failed: %d %s", w.Code, w.Body.String())
	}
	var posted struct {
		EventID string `json:"eventId"`
		Status  string `json:"status"`
	}
	decode(t, env.Payload, &posted)
	if posted.EventID == "" || posted.Status != string(models.EventPending) {
		t.Fatalf("unexpected posted event: %+v", posted)
	}

	w, _ = s.do(t, http.MethodPost, "/api/platform/events", gin.H{"userId": "4", "eventType": "warp"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown event type should be 400, got %d", w.Code)
	}

	w, env = s.do(t, http.MethodGet, "/api/platform/events?userId=4&eventType=stage_complete", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list events failed: %d", w.Code)
	}
	var listed []models.PlatformEvent
	decode(t, env.Payload, &listed)
	if len(listed) != 1 || listed[0].EventID != posted.EventID {
		t.Fatalf("unexpected listed events: %+v", listed)
	}
	w, _ = s.do(t, http.MethodGet, "/api/platform/events?limit=abc", nil, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad limit should be 400, got %d", w.Code)
	}

	w, env = s.do(t, http.MethodPost, "/api/platform/request-code", gin.H{"uuid": "4"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("request code failed: %d %s", w.Code, w.Body.String())
	}
	var code services.RequestCodeResult
	decode(t, env.Payload, &code)
	if code.TemporaryCode == "" || code.Outlink == "" {
		t.Fatalf("unexpected code result: %+v", code)
	}

	w, env = s.do(t, http.MethodPost, "/api/platform/validate", gin.H{"requestCode": code.TemporaryCode}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("validate failed: %d", w.Code)
	}
	var valid services.ValidationResult
	decode(t, env.Payload, &valid)
	if !valid.Valid || valid.UUID != "4" {
		t.Fatalf("unexpected validation: %+v", valid)
	}
	w, _ = s.do(t, http.MethodPost, "/api/platform/validate", gin.H{}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty validate should be 400, got %d", w.Code)
	}
}

func TestHealthAndNoRoute(t *testing.T) {
	s := setupRouterTest(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("health failed: %d %s", w.Code, w.Body.String())
	}
	var health map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health["status"] != "ok" || health["database"] != "connected" || health["redis"] != "disabled" || health["service"] != "quest-mock-game" {
		t.Fatalf("unexpected health: %v", health)
	}

	w, env := s.do(t, http.MethodGet, "/api/nowhere", nil, nil)
	if w.Code != http.StatusNotFound || env.Success {
		t.Fatalf("expected 404 envelope, got %d %s", w.Code, w.Body.String())
	}
}
