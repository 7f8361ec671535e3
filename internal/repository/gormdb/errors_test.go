package gormdb

import (
	"errors"
	"fmt"
	"testing"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"merch-service/internal/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		conflict bool
	}{
		{"mysql deadlock", &mysqldriver.MySQLError{Number: 1213, Message: "Deadlock found"}, true},
		{"mysql lock wait timeout", fmt.Errorf("exec: %w", &mysqldriver.MySQLError{Number: 1205}), true},
		{"mysql duplicate", &mysqldriver.MySQLError{Number: 1062}, false},
		{"postgres serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"postgres deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"postgres lock not available", &pgconn.PgError{Code: "55P03"}, true},
		{"postgres unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"plain error", errors.New("broken pipe"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			assert.Equal(t, tt.conflict, errors.Is(got, domain.ErrConflict))
			if !tt.conflict {
				assert.Equal(t, tt.err, got)
			}
		})
	}
	assert.NoError(t, classify(nil))
}

func TestIsDuplicate(t *testing.T) {
	assert.True(t, isDuplicate(gorm.ErrDuplicatedKey))
	assert.True(t, isDuplicate(fmt.Errorf("create: %w", gorm.ErrDuplicatedKey)))
	assert.True(t, isDuplicate(&mysqldriver.MySQLError{Number: 1062}))
	assert.True(t, isDuplicate(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isDuplicate(&pgconn.PgError{Code: "40001"}))
	assert.False(t, isDuplicate(errors.New("x")))
}
