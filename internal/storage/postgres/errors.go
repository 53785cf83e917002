package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	stderrors "errors"
	"io"
	"net"

	pq "github.com/lib/pq"

	"github.com/julianstephens/tally/internal/errors"
)

// classify maps a database failure onto the repository error kinds.
// Already classified errors pass through unchanged.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.KindOf(err) != errors.KindUnknown {
		return err
	}

	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "42501", pqErr.Code.Class() == "28":
			return errors.Permission(op, err)
		case pqErr.Code.Class() == "08", pqErr.Code.Class() == "53",
			pqErr.Code == "57P01", pqErr.Code == "57P02", pqErr.Code == "57P03",
			pqErr.Code == "40001":
			return errors.Transient(op, err)
		}
		return errors.Storage(op, err)
	}

	var netErr net.Error
	switch {
	case stderrors.As(err, &netErr),
		stderrors.Is(err, driver.ErrBadConn),
		stderrors.Is(err, sql.ErrConnDone),
		stderrors.Is(err, io.EOF),
		stderrors.Is(err, io.ErrUnexpectedEOF),
		stderrors.Is(err, context.DeadlineExceeded):
		return errors.Transient(op, err)
	}
	return errors.Storage(op, err)
}
