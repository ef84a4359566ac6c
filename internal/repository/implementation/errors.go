package implementation

import (
	"errors"
	"strings"

	"school-portal-be/internal/repository/contract"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

// translateError folds the driver-specific unique violation shapes into
// contract.ErrDuplicateKey.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return contract.ErrDuplicateKey
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return contract.ErrDuplicateKey
	}
	// SQLite (tests) without TranslateError support
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return contract.ErrDuplicateKey
	}
	return err
}
