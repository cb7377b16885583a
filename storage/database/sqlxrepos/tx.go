package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/virtuallab/core"
)

// inTx runs fn inside a transaction; the transaction is rolled back if fn fails.
func inTx(ctx context.Context, db core.DB, fn func(tx core.DBTransactor) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}
