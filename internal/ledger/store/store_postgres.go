package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"donations/internal/ledger/models"
	id "donations/pkg/domain"
	"donations/pkg/platform/sentinel"
	txcontext "donations/pkg/platform/tx"
)

type rowScanner interface {
	Scan(dest ...any) error
}

// PostgresDonors persists donors. Email uniqueness is a unique index on lower(email).
type PostgresDonors struct {
	db *sql.DB
}

func NewPostgresDonors(db *sql.DB) *PostgresDonors {
	return &PostgresDonors{db: db}
}

const donorColumns = `id, first_name, last_name, address, city, state, postal_code, country, email, phone_number, active`

func scanDonor(row rowScanner) (*models.Donor, error) {
	var (
		d       models.Donor
		donorID int64
	)
	err := row.Scan(&donorID, &d.FirstName, &d.LastName, &d.Address, &d.City, &d.State,
		&d.PostalCode, &d.Country, &d.Email, &d.PhoneNumber, &d.Active)
	if err != nil {
		return nil, err
	}
	d.ID = id.DonorID(donorID)
	return &d, nil
}

func (s *PostgresDonors) Create(ctx context.Context, d *models.Donor) error {
	var donorID int64
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO donors (first_name, last_name, address, city, state, postal_code, country, email, phone_number, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, d.FirstName, d.LastName, d.Address, d.City, d.State, d.PostalCode, d.Country, d.Email, d.PhoneNumber, d.Active,
	).Scan(&donorID)
	if err != nil {
		return fmt.Errorf("insert donor: %w", translateWrite(err))
	}
	d.ID = id.DonorID(donorID)
	return nil
}

func (s *PostgresDonors) FindByID(ctx context.Context, donorID id.DonorID) (*models.Donor, error) {
	return s.find(ctx, `SELECT `+donorColumns+` FROM donors WHERE id = $1`, donorID)
}

func (s *PostgresDonors) FindByIDForUpdate(ctx context.Context, donorID id.DonorID) (*models.Donor, error) {
	return s.find(ctx, `SELECT `+donorColumns+` FROM donors WHERE id = $1 FOR UPDATE`, donorID)
}

func (s *PostgresDonors) find(ctx context.Context, query string, donorID id.DonorID) (*models.Donor, error) {
	d, err := scanDonor(txcontext.Exec(ctx, s.db).QueryRowContext(ctx, query, int64(donorID)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find donor: %w", err)
	}
	return d, nil
}

func (s *PostgresDonors) Update(ctx context.Context, d *models.Donor) error {
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		UPDATE donors
		SET first_name = $2, last_name = $3, address = $4, city = $5, state = $6,
		    postal_code = $7, country = $8, email = $9, phone_number = $10, active = $11
		WHERE id = $1
	`, int64(d.ID), d.FirstName, d.LastName, d.Address, d.City, d.State, d.PostalCode, d.Country, d.Email, d.PhoneNumber, d.Active)
	if err != nil {
		return fmt.Errorf("update donor: %w", translateWrite(err))
	}
	return requireOneRow(res)
}

func (s *PostgresDonors) Delete(ctx context.Context, donorID id.DonorID) error {
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `DELETE FROM donors WHERE id = $1`, int64(donorID))
	if err != nil {
		return fmt.Errorf("delete donor: %w", translateDelete(err))
	}
	return requireOneRow(res)
}

func (s *PostgresDonors) EmailTaken(ctx context.Context, email string, except id.DonorID) (bool, error) {
	return exists(ctx, s.db, `SELECT EXISTS (SELECT 1 FROM donors WHERE lower(email) = lower($1) AND id <> $2)`, email, int64(except))
}

// PostgresPledges persists pledges.
type PostgresPledges struct {
	db *sql.DB
}

func NewPostgresPledges(db *sql.DB) *PostgresPledges {
	return &PostgresPledges{db: db}
}

const contributionColumns = `id, donor_id, amount, contributed_on`

func scanPledge(row rowScanner) (*models.Pledge, error) {
	var (
		p                 models.Pledge
		pledgeID, donorID int64
	)
	if err := row.Scan(&pledgeID, &donorID, &p.Amount, &p.Date); err != nil {
		return nil, err
	}
	p.ID = id.PledgeID(pledgeID)
	p.DonorID = id.DonorID(donorID)
	p.Date = p.Date.UTC()
	return &p, nil
}

func (s *PostgresPledges) Create(ctx context.Context, p *models.Pledge) error {
	var pledgeID int64
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO pledges (donor_id, amount, contributed_on) VALUES ($1, $2, $3) RETURNING id
	`, int64(p.DonorID), p.Amount, p.Date).Scan(&pledgeID)
	if err != nil {
		return fmt.Errorf("insert pledge: %w", translateWrite(err))
	}
	p.ID = id.PledgeID(pledgeID)
	return nil
}

func (s *PostgresPledges) FindByID(ctx context.Context, pledgeID id.PledgeID) (*models.Pledge, error) {
	return s.find(ctx, `SELECT `+contributionColumns+` FROM pledges WHERE id = $1`, pledgeID)
}

func (s *PostgresPledges) FindByIDForUpdate(ctx context.Context, pledgeID id.PledgeID) (*models.Pledge, error) {
	return s.find(ctx, `SELECT `+contributionColumns+` FROM pledges WHERE id = $1 FOR UPDATE`, pledgeID)
}

func (s *PostgresPledges) find(ctx context.Context, query string, pledgeID id.PledgeID) (*models.Pledge, error) {
	p, err := scanPledge(txcontext.Exec(ctx, s.db).QueryRowContext(ctx, query, int64(pledgeID)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find pledge: %w", err)
	}
	return p, nil
}

func (s *PostgresPledges) Update(ctx context.Context, p *models.Pledge) error {
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		UPDATE pledges SET donor_id = $2, amount = $3, contributed_on = $4 WHERE id = $1
	`, int64(p.ID), int64(p.DonorID), p.Amount, p.Date)
	if err != nil {
		return fmt.Errorf("update pledge: %w", translateWrite(err))
	}
	return requireOneRow(res)
}

func (s *PostgresPledges) Delete(ctx context.Context, pledgeID id.PledgeID) error {
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `DELETE FROM pledges WHERE id = $1`, int64(pledgeID))
	if err != nil {
		return fmt.Errorf("delete pledge: %w", translateDelete(err))
	}
	return requireOneRow(res)
}

func (s *PostgresPledges) ExistsForDonor(ctx context.Context, donorID id.DonorID) (bool, error) {
	return exists(ctx, s.db, `SELECT EXISTS (SELECT 1 FROM pledges WHERE donor_id = $1)`, int64(donorID))
}

// PostgresPayments persists payments.
type PostgresPayments struct {
	db *sql.DB
}

func NewPostgresPayments(db *sql.DB) *PostgresPayments {
	return &PostgresPayments{db: db}
}

func scanPayment(row rowScanner) (*models.Payment, error) {
	var (
		p                  models.Payment
		paymentID, donorID int64
	)
	if err := row.Scan(&paymentID, &donorID, &p.Amount, &p.Date); err != nil {
		return nil, err
	}
	p.ID = id.PaymentID(paymentID)
	p.DonorID = id.DonorID(donorID)
	p.Date = p.Date.UTC()
	return &p, nil
}

func (s *PostgresPayments) Create(ctx context.Context, p *models.Payment) error {
	var paymentID int64
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO payments (donor_id, amount, contributed_on) VALUES ($1, $2, $3) RETURNING id
	`, int64(p.DonorID), p.Amount, p.Date).Scan(&paymentID)
	if err != nil {
		return fmt.Errorf("insert payment: %w", translateWrite(err))
	}
	p.ID = id.PaymentID(paymentID)
	return nil
}

func (s *PostgresPayments) FindByID(ctx context.Context, paymentID id.PaymentID) (*models.Payment, error) {
	return s.find(ctx, `SELECT `+contributionColumns+` FROM payments WHERE id = $1`, paymentID)
}

func (s *PostgresPayments) FindByIDForUpdate(ctx context.Context, paymentID id.PaymentID) (*models.Payment, error) {
	return s.find(ctx, `SELECT `+contributionColumns+` FROM payments WHERE id = $1 FOR UPDATE`, paymentID)
}

func (s *PostgresPayments) find(ctx context.Context, query string, paymentID id.PaymentID) (*models.Payment, error) {
	p, err := scanPayment(txcontext.Exec(ctx, s.db).QueryRowContext(ctx, query, int64(paymentID)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find payment: %w", err)
	}
	return p, nil
}

func (s *PostgresPayments) Update(ctx context.Context, p *models.Payment) error {
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		UPDATE payments SET donor_id = $2, amount = $3, contributed_on = $4 WHERE id = $1
	`, int64(p.ID), int64(p.DonorID), p.Amount, p.Date)
	if err != nil {
		return fmt.Errorf("update payment: %w", translateWrite(err))
	}
	return requireOneRow(res)
}

func (s *PostgresPayments) Delete(ctx context.Context, paymentID id.PaymentID) error {
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `DELETE FROM payments WHERE id = $1`, int64(paymentID))
	if err != nil {
		return fmt.Errorf("delete payment: %w", translateDelete(err))
	}
	return requireOneRow(res)
}

func (s *PostgresPayments) ExistsForDonor(ctx context.Context, donorID id.DonorID) (bool, error) {
	return exists(ctx, s.db, `SELECT EXISTS (SELECT 1 FROM payments WHERE donor_id = $1)`, int64(donorID))
}

// PostgresAssociations persists payment/pledge links.
type PostgresAssociations struct {
	db *sql.DB
}

func NewPostgresAssociations(db *sql.DB) *PostgresAssociations {
	return &PostgresAssociations{db: db}
}

func (s *PostgresAssociations) Create(ctx context.Context, a models.Association) error {
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx,
		`INSERT INTO payment_pledges (payment_id, pledge_id) VALUES ($1, $2)`,
		int64(a.PaymentID), int64(a.PledgeID))
	if err != nil {
		return fmt.Errorf("insert association: %w", translateWrite(err))
	}
	return nil
}

func (s *PostgresAssociations) Delete(ctx context.Context, a models.Association) error {
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx,
		`DELETE FROM payment_pledges WHERE payment_id = $1 AND pledge_id = $2`,
		int64(a.PaymentID), int64(a.PledgeID))
	if err != nil {
		return fmt.Errorf("delete association: %w", err)
	}
	return requireOneRow(res)
}

func (s *PostgresAssociations) ExistsForPayment(ctx context.Context, paymentID id.PaymentID) (bool, error) {
	return exists(ctx, s.db, `SELECT EXISTS (SELECT 1 FROM payment_pledges WHERE payment_id = $1)`, int64(paymentID))
}

func (s *PostgresAssociations) ExistsForPledge(ctx context.Context, pledgeID id.PledgeID) (bool, error) {
	return exists(ctx, s.db, `SELECT EXISTS (SELECT 1 FROM payment_pledges WHERE pledge_id = $1)`, int64(pledgeID))
}

func (s *PostgresAssociations) PledgesForPayment(ctx context.Context, paymentID id.PaymentID) ([]models.Pledge, error) {
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, `
		SELECT p.id, p.donor_id, p.amount, p.contributed_on
		FROM payment_pledges pp
		JOIN pledges p ON p.id = pp.pledge_id
		WHERE pp.payment_id = $1
		ORDER BY p.id
	`, int64(paymentID))
	if err != nil {
		return nil, fmt.Errorf("query pledges for payment: %w", err)
	}
	defer rows.Close()

	var out []models.Pledge
	for rows.Next() {
		p, err := scanPledge(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pledge: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pledges: %w", err)
	}
	return out, nil
}

func (s *PostgresAssociations) PaymentsForPledge(ctx context.Context, pledgeID id.PledgeID) ([]models.Payment, error) {
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, `
		SELECT p.id, p.donor_id, p.amount, p.contributed_on
		FROM payment_pledges pp
		JOIN payments p ON p.id = pp.payment_id
		WHERE pp.pledge_id = $1
		ORDER BY p.id
	`, int64(pledgeID))
	if err != nil {
		return nil, fmt.Errorf("query payments for pledge: %w", err)
	}
	defer rows.Close()

	var out []models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payments: %w", err)
	}
	return out, nil
}

func exists(ctx context.Context, db *sql.DB, query string, args ...any) (bool, error) {
	var found bool
	if err := txcontext.Exec(ctx, db).QueryRowContext(ctx, query, args...).Scan(&found); err != nil {
		return false, fmt.Errorf("exists query: %w", err)
	}
	return found, nil
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
