package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"donations/internal/ledger/models"
	"donations/internal/ledger/ports"
	id "donations/pkg/domain"
	dErrors "donations/pkg/domain-errors"
	auditmemory "donations/pkg/platform/audit/store/memory"
	"donations/pkg/platform/sentinel"
)

// defaultTxTimeout is the maximum duration for a unit of work.
const defaultTxTimeout = 5 * time.Second

// Memory is an in-memory ledger with real unit-of-work semantics: each
// transaction works on a private copy of the state and swaps it in on commit.
// Transactions are serialized by a single lock, which also makes every
// guard check and delete pair race-free.
type Memory struct {
	mu      sync.Mutex
	state   *memState
	timeout time.Duration
}

type MemoryOption func(*Memory)

// WithTxTimeout bounds units of work that arrive without a deadline.
func WithTxTimeout(d time.Duration) MemoryOption {
	return func(m *Memory) {
		m.timeout = d
	}
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{state: newMemState()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RunInTx implements ports.UnitOfWork.
func (m *Memory) RunInTx(ctx context.Context, fn func(ctx context.Context, stores ports.Stores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Storage(err, "transaction aborted: context cancelled")
	}

	timeout := m.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	staged := m.state.clone()
	if err := fn(ctx, staged.stores()); err != nil {
		return err
	}
	// a unit of work that outlived its deadline must not commit
	if err := ctx.Err(); err != nil {
		return dErrors.Storage(err, "transaction aborted before commit")
	}
	m.state = staged
	return nil
}

// AuditLen reports the number of committed audit entries.
func (m *Memory) AuditLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.audit.Len()
}

type memState struct {
	donors      map[id.DonorID]models.Donor
	pledges     map[id.PledgeID]models.Pledge
	payments    map[id.PaymentID]models.Payment
	links       map[models.Association]struct{}
	audit       *auditmemory.InMemoryStore
	nextDonor   id.DonorID
	nextPledge  id.PledgeID
	nextPayment id.PaymentID
}

func newMemState() *memState {
	return &memState{
		donors:      make(map[id.DonorID]models.Donor),
		pledges:     make(map[id.PledgeID]models.Pledge),
		payments:    make(map[id.PaymentID]models.Payment),
		links:       make(map[models.Association]struct{}),
		audit:       auditmemory.NewInMemoryStore(),
		nextDonor:   1,
		nextPledge:  1,
		nextPayment: 1,
	}
}

func (s *memState) clone() *memState {
	c := &memState{
		donors:      make(map[id.DonorID]models.Donor, len(s.donors)),
		pledges:     make(map[id.PledgeID]models.Pledge, len(s.pledges)),
		payments:    make(map[id.PaymentID]models.Payment, len(s.payments)),
		links:       make(map[models.Association]struct{}, len(s.links)),
		audit:       s.audit.Clone(),
		nextDonor:   s.nextDonor,
		nextPledge:  s.nextPledge,
		nextPayment: s.nextPayment,
	}
	for k, v := range s.donors {
		c.donors[k] = v
	}
	for k, v := range s.pledges {
		c.pledges[k] = v
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	for k := range s.links {
		c.links[k] = struct{}{}
	}
	return c
}

func (s *memState) stores() ports.Stores {
	return ports.Stores{
		Donors:       memDonors{s},
		Pledges:      memPledges{s},
		Payments:     memPayments{s},
		Associations: memAssociations{s},
		Audit:        s.audit,
	}
}

type memDonors struct{ s *memState }

func (r memDonors) Create(ctx context.Context, d *models.Donor) error {
	if taken, _ := r.EmailTaken(ctx, d.Email, 0); taken {
		return sentinel.ErrConflict
	}
	d.ID = r.s.nextDonor
	r.s.nextDonor++
	r.s.donors[d.ID] = *d
	return nil
}

func (r memDonors) FindByID(_ context.Context, donorID id.DonorID) (*models.Donor, error) {
	d, ok := r.s.donors[donorID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &d, nil
}

func (r memDonors) FindByIDForUpdate(ctx context.Context, donorID id.DonorID) (*models.Donor, error) {
	return r.FindByID(ctx, donorID)
}

func (r memDonors) Update(ctx context.Context, d *models.Donor) error {
	if _, ok := r.s.donors[d.ID]; !ok {
		return sentinel.ErrNotFound
	}
	if taken, _ := r.EmailTaken(ctx, d.Email, d.ID); taken {
		return sentinel.ErrConflict
	}
	r.s.donors[d.ID] = *d
	return nil
}

func (r memDonors) Delete(_ context.Context, donorID id.DonorID) error {
	if _, ok := r.s.donors[donorID]; !ok {
		return sentinel.ErrNotFound
	}
	for _, p := range r.s.pledges {
		if p.DonorID == donorID {
			return sentinel.ErrRestricted
		}
	}
	for _, p := range r.s.payments {
		if p.DonorID == donorID {
			return sentinel.ErrRestricted
		}
	}
	delete(r.s.donors, donorID)
	return nil
}

func (r memDonors) EmailTaken(_ context.Context, email string, except id.DonorID) (bool, error) {
	for donorID, d := range r.s.donors {
		if donorID != except && strings.EqualFold(d.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

type memPledges struct{ s *memState }

func (r memPledges) Create(_ context.Context, p *models.Pledge) error {
	if _, ok := r.s.donors[p.DonorID]; !ok {
		return sentinel.ErrForeignKey
	}
	p.ID = r.s.nextPledge
	r.s.nextPledge++
	r.s.pledges[p.ID] = *p
	return nil
}

func (r memPledges) FindByID(_ context.Context, pledgeID id.PledgeID) (*models.Pledge, error) {
	p, ok := r.s.pledges[pledgeID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &p, nil
}

func (r memPledges) FindByIDForUpdate(ctx context.Context, pledgeID id.PledgeID) (*models.Pledge, error) {
	return r.FindByID(ctx, pledgeID)
}

func (r memPledges) Update(_ context.Context, p *models.Pledge) error {
	if _, ok := r.s.pledges[p.ID]; !ok {
		return sentinel.ErrNotFound
	}
	if _, ok := r.s.donors[p.DonorID]; !ok {
		return sentinel.ErrForeignKey
	}
	r.s.pledges[p.ID] = *p
	return nil
}

func (r memPledges) Delete(_ context.Context, pledgeID id.PledgeID) error {
	if _, ok := r.s.pledges[pledgeID]; !ok {
		return sentinel.ErrNotFound
	}
	for link := range r.s.links {
		if link.PledgeID == pledgeID {
			return sentinel.ErrRestricted
		}
	}
	delete(r.s.pledges, pledgeID)
	return nil
}

func (r memPledges) ExistsForDonor(_ context.Context, donorID id.DonorID) (bool, error) {
	for _, p := range r.s.pledges {
		if p.DonorID == donorID {
			return true, nil
		}
	}
	return false, nil
}

type memPayments struct{ s *memState }

func (r memPayments) Create(_ context.Context, p *models.Payment) error {
	if _, ok := r.s.donors[p.DonorID]; !ok {
		return sentinel.ErrForeignKey
	}
	p.ID = r.s.nextPayment
	r.s.nextPayment++
	r.s.payments[p.ID] = *p
	return nil
}

func (r memPayments) FindByID(_ context.Context, paymentID id.PaymentID) (*models.Payment, error) {
	p, ok := r.s.payments[paymentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &p, nil
}

func (r memPayments) FindByIDForUpdate(ctx context.Context, paymentID id.PaymentID) (*models.Payment, error) {
	return r.FindByID(ctx, paymentID)
}

func (r memPayments) Update(_ context.Context, p *models.Payment) error {
	if _, ok := r.s.payments[p.ID]; !ok {
		return sentinel.ErrNotFound
	}
	if _, ok := r.s.donors[p.DonorID]; !ok {
		return sentinel.ErrForeignKey
	}
	r.s.payments[p.ID] = *p
	return nil
}

func (r memPayments) Delete(_ context.Context, paymentID id.PaymentID) error {
	if _, ok := r.s.payments[paymentID]; !ok {
		return sentinel.ErrNotFound
	}
	for link := range r.s.links {
		if link.PaymentID == paymentID {
			return sentinel.ErrRestricted
		}
	}
	delete(r.s.payments, paymentID)
	return nil
}

func (r memPayments) ExistsForDonor(_ context.Context, donorID id.DonorID) (bool, error) {
	for _, p := range r.s.payments {
		if p.DonorID == donorID {
			return true, nil
		}
	}
	return false, nil
}

type memAssociations struct{ s *memState }

func (r memAssociations) Create(_ context.Context, a models.Association) error {
	if _, ok := r.s.payments[a.PaymentID]; !ok {
		return sentinel.ErrForeignKey
	}
	if _, ok := r.s.pledges[a.PledgeID]; !ok {
		return sentinel.ErrForeignKey
	}
	if _, ok := r.s.links[a]; ok {
		return sentinel.ErrConflict
	}
	r.s.links[a] = struct{}{}
	return nil
}

func (r memAssociations) Delete(_ context.Context, a models.Association) error {
	if _, ok := r.s.links[a]; !ok {
		return sentinel.ErrNotFound
	}
	delete(r.s.links, a)
	return nil
}

func (r memAssociations) ExistsForPayment(_ context.Context, paymentID id.PaymentID) (bool, error) {
	for link := range r.s.links {
		if link.PaymentID == paymentID {
			return true, nil
		}
	}
	return false, nil
}

func (r memAssociations) ExistsForPledge(_ context.Context, pledgeID id.PledgeID) (bool, error) {
	for link := range r.s.links {
		if link.PledgeID == pledgeID {
			return true, nil
		}
	}
	return false, nil
}

// PledgesForPayment returns linked pledges ordered by id.
func (r memAssociations) PledgesForPayment(_ context.Context, paymentID id.PaymentID) ([]models.Pledge, error) {
	var out []models.Pledge
	for link := range r.s.links {
		if link.PaymentID == paymentID {
			out = append(out, r.s.pledges[link.PledgeID])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// PaymentsForPledge returns linked payments ordered by id.
func (r memAssociations) PaymentsForPledge(_ context.Context, pledgeID id.PledgeID) ([]models.Payment, error) {
	var out []models.Payment
	for link := range r.s.links {
		if link.PledgeID == pledgeID {
			out = append(out, r.s.payments[link.PaymentID])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
