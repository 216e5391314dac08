package storage

import (
	"reflect"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"gitstar-worker/internal/infra/sqlite3"
)

type storageImpl struct {
	db  *sqlx.DB
	tx  sqlite3.TxManager
	now func() time.Time
}

func New(db *sqlx.DB) *storageImpl {
	return &storageImpl{
		db:  db,
		tx:  sqlite3.WithTx(func() (*sqlx.DB, error) { return db, nil }, nil),
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (s *storageImpl) stmpBuilder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}

// fields lists the db-tagged columns of a row struct, comma separated.
func fields(data any) string {
	var cols []string
	r := reflect.TypeOf(data)
	for i := 0; i < r.NumField(); i++ {
		if tag := r.Field(i).Tag.Get("db"); tag != "" {
			cols = append(cols, tag)
		}
	}
	return strings.Join(cols, ",")
}
