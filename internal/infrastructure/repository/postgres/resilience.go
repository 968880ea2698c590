package postgres

import (
	"database/sql"
	"database/sql/driver"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kirillkom/foia-search/internal/infrastructure/resilience"
)

func classifyPostgresError(err error) resilience.ErrorClassification {
	if class, ok := resilience.ClassifyCommon(err); ok {
		return class
	}
	if errors.Is(err, sql.ErrNoRows) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if errors.Is(err, driver.ErrBadConn) || pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if isRetryableSQLState(pgErr.Code) {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
		// Query and schema errors are not an availability problem.
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

func isRetryableSQLState(code string) bool {
	if len(code) < 2 {
		return false
	}
	switch code[:2] {
	case "08": // connection exception
		return true
	case "53", "57":
		return true
	}
	return code == "40001" || code == "40P01"
}

func wrapUnavailable(operation string, err error) error {
	return resilience.WrapUnavailable(operation, err, classifyPostgresError)
}
