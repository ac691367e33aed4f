package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/Tyrowin/gigboard/internal/store"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "no rows", err: sql.ErrNoRows, want: store.ErrNotFound},
		{name: "wrapped no rows", err: fmt.Errorf("scan: %w", sql.ErrNoRows), want: store.ErrNotFound},
		{name: "foreign key violation", err: &pq.Error{Code: pqForeignKeyViolation}, want: store.ErrNotFound},
		{name: "unique violation", err: &pq.Error{Code: pqUniqueViolation}, want: store.ErrConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, translate(tt.err), tt.want)
		})
	}

	t.Run("other errors pass through", func(t *testing.T) {
		boom := errors.New("boom")
		got := translate(boom)
		assert.Same(t, boom, got)
		assert.NotErrorIs(t, got, store.ErrNotFound)
	})
}
