package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Movie{}, &Idempotency{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestTableNames(t *testing.T) {
	if (Movie{}).TableName() != "movies" {
		t.Fatalf("Movie.TableName() = %q", (Movie{}).TableName())
	}
	if (Idempotency{}).TableName() != "idempotency" {
		t.Fatalf("Idempotency.TableName() = %q", (Idempotency{}).TableName())
	}
}

func TestMigrations_Indexes(t *testing.T) {
	db := newDomainDB(t)
	m := db.Migrator()

	if !m.HasIndex(&Movie{}, "idx_movies_title") {
		t.Fatalf("expected index idx_movies_title on movies")
	}
	if !m.HasIndex(&Idempotency{}, "ux_user_scope_key") {
		t.Fatalf("expected composite index ux_user_scope_key on idempotency")
	}
}

func TestMovie_TitleIndexIsNotUnique(t *testing.T) {
	db := newDomainDB(t)

	for _, id := range []string{"a", "b"} {
		if err := db.Create(&Movie{ID: id, Title: "Same"}).Error; err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}
	var n int64
	db.Model(&Movie{}).Where("title = ?", "Same").Count(&n)
	if n != 2 {
		t.Fatalf("expected two rows sharing a title, got %d", n)
	}
}

func TestMovie_UpdateDate_RoundTrip(t *testing.T) {
	db := newDomainDB(t)

	created := time.Date(2025, 4, 17, 18, 10, 0, 0, time.UTC)
	first := created.Add(time.Hour)
	second := first.Add(time.Minute)
	in := Movie{
		ID:         "m1",
		Title:      "Inception",
		CreateDate: &created,
		UpdateDate: []time.Time{first, second},
	}
	if err := db.Create(&in).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}

	var got Movie
	if err := db.First(&got, "id = ?", "m1").Error; err != nil {
		t.Fatalf("readback: %v", err)
	}
	if got.Updates() != 2 {
		t.Fatalf("Updates() = %d; want 2", got.Updates())
	}
	if !got.UpdateDate[0].Equal(first) || !got.UpdateDate[1].Equal(second) {
		t.Fatalf("order/values not preserved: %v", got.UpdateDate)
	}
	if got.CreateDate == nil || !got.CreateDate.Equal(created) {
		t.Fatalf("createDate mismatch: %v", got.CreateDate)
	}
	last, ok := got.LastUpdate()
	if !ok || !last.Equal(second) {
		t.Fatalf("LastUpdate() = %v,%v", last, ok)
	}
}

func TestMovie_JSONShape(t *testing.T) {
	created := time.Date(2025, 5, 18, 14, 0, 0, 0, time.UTC)
	m := Movie{
		ID:          "m1",
		Title:       "Tenet",
		Description: "Inversion",
		Genre:       "Action",
		CreateDate:  &created,
		UpdateDate:  []time.Time{},
	}
	b, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(b)
	for _, want := range []string{`"id":"m1"`, `"title":"Tenet"`, `"description":"Inversion"`, `"genre":"Action"`, `"createDate":"2025-05-18T14:00:00Z"`, `"updateDate":[]`} {
		if !strings.Contains(s, want) {
			t.Fatalf("json %s missing %s", s, want)
		}
	}
}

func TestMovie_LastUpdate_Empty(t *testing.T) {
	var m Movie
	if _, ok := m.LastUpdate(); ok {
		t.Fatalf("expected no last update on a fresh movie")
	}
	if m.Updates() != 0 {
		t.Fatalf("Updates() = %d", m.Updates())
	}
}

func TestIdempotency_UniquePerUserScopeKey(t *testing.T) {
	db := newDomainDB(t)
	now := time.Now().UTC()

	rec := Idempotency{ID: "i1", UserID: "admin", Scope: "POST /movies/dto", Key: "k1", ResourceID: "m1", Status: 200, ExpiresAt: now.Add(time.Hour)}
	if err := db.Create(&rec).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}
	dup := rec
	dup.ID = "i2"
	if err := db.Create(&dup).Error; err == nil {
		t.Fatalf("expected UNIQUE violation on (user_id, scope, key)")
	}
	other := rec
	other.ID, other.Scope = "i3", "PUT /movies/dto"
	if err := db.Create(&other).Error; err != nil {
		t.Fatalf("same key in another scope should be accepted: %v", err)
	}
}
