package services

import (
	"fmt"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/questmock/models"
)

func setupServiceTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s-%d?mode=memory&cache=shared", name, time.Now().UnixNano())
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

	if err := gdb.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}

	t.Cleanup(func() { _ = sqlDB.Close() })
	return gdb
}

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func countEvents(t *testing.T, gdb *gorm.DB, userID string, eventType models.EventType) int64 {
	t.Helper()
	var n int64
	if err := gdb.Model(&models.PlatformEvent{}).Where("user_id = ? AND event_type = ?", userID, eventType).Count(&n).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	return n
}

// hideFirstRead makes the next query against model's table come back empty,
// as if a concurrent writer committed its row just after that read. The
// returned func reports whether the read was hidden.
func hideFirstRead(t *testing.T, gdb *gorm.DB, model interface{}) func() bool {
	t.Helper()

	stmt := &gorm.Statement{DB: gdb}
	if err := stmt.Parse(model); err != nil {
		t.Fatalf("parse %T: %v", model, err)
	}
	table := stmt.Schema.Table

	var hidden atomic.Bool
	err := gdb.Callback().Query().After("gorm:query").Register("test:hide_first_read_"+table, func(db *gorm.DB) {
		if db.Error != nil || db.Statement.Table != table {
			return
		}
		if !hidden.CompareAndSwap(false, true) {
			return
		}
		if dest := reflect.ValueOf(db.Statement.Dest); dest.Kind() == reflect.Ptr && !dest.IsNil() {
			dest.Elem().Set(reflect.Zero(dest.Elem().Type()))
		}
		db.RowsAffected = 0
		db.Statement.RowsAffected = 0
		if db.Statement.RaiseErrorOnNotFound {
			db.Error = gorm.ErrRecordNotFound
		}
	})
	if err != nil {
		t.Fatalf("register query callback: %v", err)
	}
	return hidden.Load
}
