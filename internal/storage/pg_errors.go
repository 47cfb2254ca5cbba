package storage

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"

	apperrors "github.com/wallet-portfolio/internal/errors"
)

const storeName = "postgres"

// classifyError turns driver errors into categorized errors:
// unreachable store -> unavailable, integrity/trigger rejection -> validation failed,
// anything else -> database error. Already-categorized errors pass through.
func classifyError(operation string, err error) error {
	if err == nil {
		return nil
	}

	var catErr *apperrors.CategorizedError
	if errors.As(err, &catErr) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "23"), pgErr.Code == "P0001":
			return apperrors.NewValidationFailedError(operation, err)
		case strings.HasPrefix(pgErr.Code, "08"), // connection exception
			strings.HasPrefix(pgErr.Code, "53"), // insufficient resources
			pgErr.Code == "57P01", pgErr.Code == "57P02", pgErr.Code == "57P03":
			return apperrors.NewUnavailableError(storeName, err)
		}
		return apperrors.NewDatabaseError(operation, err)
	}

	if isConnectivityError(err) {
		return apperrors.NewUnavailableError(storeName, err)
	}
	return apperrors.NewDatabaseError(operation, err)
}

func isConnectivityError(err error) bool {
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return strings.Contains(err.Error(), "closed pool")
}
