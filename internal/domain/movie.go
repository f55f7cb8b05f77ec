// Package domain defines the persistence models of the movie service. These
// types are mapped with GORM and shared by the repository, service, and HTTP
// layers.
package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Movie is the single record type managed by the service.
//
// Fields:
//   - ID: opaque string key, assigned by the store on first insert when empty.
//   - Title: unique among live records when written through the structured
//     create/update operations. The column is indexed but deliberately not
//     unique, because raw saves may store duplicate titles.
//   - Description, Genre: free text.
//   - CreateDate: set once by the structured create, never changed afterwards.
//   - UpdateDate: append-only audit trail, one timestamp per structured update.
//
// Deletion is physical; there is no soft-delete column.
type Movie struct {
	ID          string                         `json:"id"          gorm:"type:varchar(64);primaryKey"`
	Title       string                         `json:"title"       gorm:"type:varchar(255);index:idx_movies_title"`
	Description string                         `json:"description" gorm:"type:text"`
	Genre       string                         `json:"genre"       gorm:"type:varchar(128)"`
	CreateDate  *time.Time                     `json:"createDate"`
	UpdateDate  datatypes.JSONSlice[time.Time] `json:"updateDate"`
}

// TableName returns the database table name for Movie.
func (Movie) TableName() string { return "movies" }

// Updates returns the number of structured updates recorded for the movie.
func (m *Movie) Updates() int { return len(m.UpdateDate) }

// LastUpdate returns the most recent audit timestamp, if any.
func (m *Movie) LastUpdate() (time.Time, bool) {
	if len(m.UpdateDate) == 0 {
		return time.Time{}, false
	}
	return m.UpdateDate[len(m.UpdateDate)-1], true
}
