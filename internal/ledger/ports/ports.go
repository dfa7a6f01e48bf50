// Package ports declares the persistence contracts of the ledger core.
//
// Every store method runs inside the unit of work that handed out the Stores
// bundle. Stores return pkg/platform/sentinel facts; translating them into
// domain errors is the service's job.
package ports

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks DonorStore,PledgeStore,PaymentStore,AssociationStore,AuditLog,UnitOfWork

import (
	"context"

	"donations/internal/ledger/models"
	id "donations/pkg/domain"
	audit "donations/pkg/platform/audit"
)

type DonorStore interface {
	// Create assigns d.ID. Returns sentinel.ErrConflict when the email is taken.
	Create(ctx context.Context, d *models.Donor) error
	FindByID(ctx context.Context, donorID id.DonorID) (*models.Donor, error)
	// FindByIDForUpdate locks the row until the unit of work ends.
	FindByIDForUpdate(ctx context.Context, donorID id.DonorID) (*models.Donor, error)
	Update(ctx context.Context, d *models.Donor) error
	Delete(ctx context.Context, donorID id.DonorID) error
	// EmailTaken reports whether another donor holds email (case-insensitive).
	EmailTaken(ctx context.Context, email string, except id.DonorID) (bool, error)
}

type PledgeStore interface {
	// Create assigns p.ID. Returns sentinel.ErrForeignKey when the donor is gone.
	Create(ctx context.Context, p *models.Pledge) error
	FindByID(ctx context.Context, pledgeID id.PledgeID) (*models.Pledge, error)
	FindByIDForUpdate(ctx context.Context, pledgeID id.PledgeID) (*models.Pledge, error)
	Update(ctx context.Context, p *models.Pledge) error
	Delete(ctx context.Context, pledgeID id.PledgeID) error
	ExistsForDonor(ctx context.Context, donorID id.DonorID) (bool, error)
}

type PaymentStore interface {
	Create(ctx context.Context, p *models.Payment) error
	FindByID(ctx context.Context, paymentID id.PaymentID) (*models.Payment, error)
	FindByIDForUpdate(ctx context.Context, paymentID id.PaymentID) (*models.Payment, error)
	Update(ctx context.Context, p *models.Payment) error
	Delete(ctx context.Context, paymentID id.PaymentID) error
	ExistsForDonor(ctx context.Context, donorID id.DonorID) (bool, error)
}

type AssociationStore interface {
	// Create returns sentinel.ErrConflict when the pair exists.
	Create(ctx context.Context, a models.Association) error
	// Delete returns sentinel.ErrNotFound when the pair does not exist.
	Delete(ctx context.Context, a models.Association) error
	ExistsForPayment(ctx context.Context, paymentID id.PaymentID) (bool, error)
	ExistsForPledge(ctx context.Context, pledgeID id.PledgeID) (bool, error)
	PledgesForPayment(ctx context.Context, paymentID id.PaymentID) ([]models.Pledge, error)
	PaymentsForPledge(ctx context.Context, pledgeID id.PledgeID) ([]models.Payment, error)
}

// AuditLog is the audit store as seen from inside a unit of work.
type AuditLog interface {
	audit.Store
}

// Stores is the set of stores bound to one unit of work.
type Stores struct {
	Donors       DonorStore
	Pledges      PledgeStore
	Payments     PaymentStore
	Associations AssociationStore
	Audit        AuditLog
}

// UnitOfWork runs fn in a transaction: everything fn writes commits together
// when fn returns nil and rolls back together otherwise.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, stores Stores) error) error
}
