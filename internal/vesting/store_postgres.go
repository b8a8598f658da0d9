package vesting

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/holiman/uint256"
	"github.com/lib/pq"

	id "trustee/pkg/domain"
	"trustee/pkg/platform/sentinel"
)

// PostgresStore persists grants and the reserved counter. Record and counter
// changes share one transaction per method, matching the GrantStore
// atomicity contract.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const grantSchema = `
CREATE TABLE IF NOT EXISTS grants (
	beneficiary TEXT PRIMARY KEY,
	value NUMERIC(78,0) NOT NULL,
	start_at TIMESTAMPTZ NOT NULL,
	cliff_at TIMESTAMPTZ NOT NULL,
	end_at TIMESTAMPTZ NOT NULL,
	installment_seconds BIGINT NOT NULL,
	transferred NUMERIC(78,0) NOT NULL DEFAULT 0,
	revokable BOOLEAN NOT NULL,
	revoked_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS reserve_state (
	singleton BOOLEAN PRIMARY KEY DEFAULT TRUE CHECK (singleton),
	total_reserved NUMERIC(78,0) NOT NULL DEFAULT 0
);
INSERT INTO reserve_state (singleton) VALUES (TRUE) ON CONFLICT DO NOTHING;
`

// Migrate creates the grant tables. Idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, grantSchema); err != nil {
		return fmt.Errorf("migrate grants: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, grant *Grant) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO grants (beneficiary, value, start_at, cliff_at, end_at, installment_seconds, transferred, revokable)
			 VALUES ($1, $2::numeric, $3, $4, $5, $6, $7::numeric, $8)`,
			grant.Beneficiary.String(),
			grant.Value.Dec(),
			grant.Start,
			grant.Cliff,
			grant.End,
			int64(grant.Installment/time.Second),
			grant.Transferred.Dec(),
			grant.Revokable,
		)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23505" {
				return sentinel.ErrConflict
			}
			return fmt.Errorf("insert grant: %w", err)
		}
		return addReserved(ctx, tx, grant.Value.Dec())
	})
}

func (s *PostgresStore) Get(ctx context.Context, beneficiary id.Address) (*Grant, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT value::text, start_at, cliff_at, end_at, installment_seconds, transferred::text, revokable
		 FROM grants WHERE beneficiary = $1 AND revoked_at IS NULL`,
		beneficiary.String(),
	)
	grant, err := scanGrant(row, beneficiary)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return grant, err
}

func (s *PostgresStore) SlotUsed(ctx context.Context, beneficiary id.Address) (bool, error) {
	var used bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM grants WHERE beneficiary = $1)`,
		beneficiary.String(),
	).Scan(&used)
	if err != nil {
		return false, fmt.Errorf("check grant slot: %w", err)
	}
	return used, nil
}

func (s *PostgresStore) ApplyUnlock(ctx context.Context, beneficiary id.Address, amount *id.Amount) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE grants SET transferred = transferred + $2::numeric
			 WHERE beneficiary = $1 AND revoked_at IS NULL`,
			beneficiary.String(), amount.Dec(),
		)
		if err != nil {
			return fmt.Errorf("apply unlock: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("apply unlock: %w", err)
		} else if n == 0 {
			return sentinel.ErrNotFound
		}
		return subReserved(ctx, tx, amount.Dec())
	})
}

func (s *PostgresStore) Remove(ctx context.Context, beneficiary id.Address, refund *id.Amount) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE grants SET revoked_at = now()
			 WHERE beneficiary = $1 AND revoked_at IS NULL`,
			beneficiary.String(),
		)
		if err != nil {
			return fmt.Errorf("revoke grant: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("revoke grant: %w", err)
		} else if n == 0 {
			return sentinel.ErrNotFound
		}
		return subReserved(ctx, tx, refund.Dec())
	})
}

func (s *PostgresStore) TotalReserved(ctx context.Context) (*id.Amount, error) {
	var dec string
	err := s.db.QueryRowContext(ctx,
		`SELECT total_reserved::text FROM reserve_state`,
	).Scan(&dec)
	if err != nil {
		return nil, fmt.Errorf("read total reserved: %w", err)
	}
	return parseAmountColumn(dec)
}

func (s *PostgresStore) List(ctx context.Context) ([]*Grant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT beneficiary, value::text, start_at, cliff_at, end_at, installment_seconds, transferred::text, revokable
		 FROM grants WHERE revoked_at IS NULL ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	defer rows.Close()

	var grants []*Grant
	for rows.Next() {
		var (
			benStr, valueDec, transferredDec string
			start, cliff, end                time.Time
			installmentSeconds               int64
			revokable                        bool
		)
		if err := rows.Scan(&benStr, &valueDec, &start, &cliff, &end, &installmentSeconds, &transferredDec, &revokable); err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		beneficiary, err := id.ParseAddress(benStr)
		if err != nil {
			return nil, fmt.Errorf("stored beneficiary %q: %w", benStr, err)
		}
		grant, err := buildGrant(beneficiary, valueDec, start, cliff, end, installmentSeconds, transferredDec, revokable)
		if err != nil {
			return nil, err
		}
		grants = append(grants, grant)
	}
	return grants, rows.Err()
}

func (s *PostgresStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func addReserved(ctx context.Context, tx *sql.Tx, dec string) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE reserve_state SET total_reserved = total_reserved + $1::numeric`, dec,
	); err != nil {
		return fmt.Errorf("raise total reserved: %w", err)
	}
	return nil
}

func subReserved(ctx context.Context, tx *sql.Tx, dec string) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE reserve_state SET total_reserved = total_reserved - $1::numeric`, dec,
	); err != nil {
		return fmt.Errorf("lower total reserved: %w", err)
	}
	return nil
}

func scanGrant(row *sql.Row, beneficiary id.Address) (*Grant, error) {
	var (
		valueDec, transferredDec string
		start, cliff, end        time.Time
		installmentSeconds       int64
		revokable                bool
	)
	if err := row.Scan(&valueDec, &start, &cliff, &end, &installmentSeconds, &transferredDec, &revokable); err != nil {
		return nil, err
	}
	return buildGrant(beneficiary, valueDec, start, cliff, end, installmentSeconds, transferredDec, revokable)
}

func buildGrant(beneficiary id.Address, valueDec string, start, cliff, end time.Time, installmentSeconds int64, transferredDec string, revokable bool) (*Grant, error) {
	value, err := parseAmountColumn(valueDec)
	if err != nil {
		return nil, err
	}
	transferred, err := parseAmountColumn(transferredDec)
	if err != nil {
		return nil, err
	}
	return &Grant{
		Beneficiary: beneficiary,
		Value:       value,
		Start:       start,
		Cliff:       cliff,
		End:         end,
		Installment: time.Duration(installmentSeconds) * time.Second,
		Transferred: transferred,
		Revokable:   revokable,
	}, nil
}

func parseAmountColumn(dec string) (*id.Amount, error) {
	v, err := uint256.FromDecimal(dec)
	if err != nil {
		return nil, fmt.Errorf("stored amount %q: %w", dec, err)
	}
	return v, nil
}
