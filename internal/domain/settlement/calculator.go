// Package settlement computes fair shares and net positions of event
// participants, and tracks the resulting refunds.
package settlement

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shared-event-wallet/internal/domain/event"
	"github.com/shared-event-wallet/internal/domain/expense"
	"github.com/shared-event-wallet/internal/domain/ledger"
)

// ResidualPolicy decides what happens to the rounding remainder of a split
type ResidualPolicy string

const (
	// ResidualSpread moves the remainder one minor unit at a time onto the
	// first participants of the snapshot so shares sum to the expense amount.
	ResidualSpread ResidualPolicy = "spread"

	// ResidualNone keeps plain per-expense rounding; shares may drift from the
	// amount by at most n-1 minor units. When shares round down the refunds
	// exceed the wallet balance by the drift and Execute refuses to run.
	ResidualNone ResidualPolicy = "none"
)

var ErrUnknownResidualPolicy = errors.New("unknown residual policy")

func ParseResidualPolicy(s string) (ResidualPolicy, error) {
	switch p := ResidualPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case ResidualSpread, ResidualNone:
		return p, nil
	case "":
		return ResidualSpread, nil
	}
	return "", ErrUnknownResidualPolicy
}

// Line is one participant's position
type Line struct {
	UserID       uuid.UUID `json:"user_id"`
	Name         string    `json:"name,omitempty"`
	Email        string    `json:"email,omitempty"`
	Deposited    int64     `json:"deposited_amount"`
	Share        int64     `json:"total_expense_share"`
	Net          int64     `json:"net"`
	RefundAmount int64     `json:"refund_amount"`
}

// Report is the calculated settlement of an event
type Report struct {
	EventID        uuid.UUID      `json:"event_id"`
	Lines          []Line         `json:"per_participant"`
	TotalDeposited int64          `json:"total_deposited"`
	TotalExpenses  int64          `json:"total_expenses"`
	TotalShares    int64          `json:"total_spent"`
	TotalRefunds   int64          `json:"total_refunds"`
	ResidualPolicy ResidualPolicy `json:"residual_policy"`
}

// Calculator is a pure, deterministic settlement computation
type Calculator struct {
	policy ResidualPolicy
}

func NewCalculator(policy ResidualPolicy) Calculator {
	if policy == "" {
		policy = ResidualSpread
	}
	return Calculator{policy: policy}
}

// Split divides amount among participants, rounding each share half-up to
// the minor unit. Duplicate identities are counted once.
func (c Calculator) Split(amount int64, participants []uuid.UUID) map[uuid.UUID]int64 {
	ids := dedupe(participants)
	if len(ids) == 0 {
		return map[uuid.UUID]int64{}
	}

	n := int64(len(ids))
	share := decimal.NewFromInt(amount).DivRound(decimal.NewFromInt(n), 0).IntPart()

	shares := make(map[uuid.UUID]int64, len(ids))
	for _, id := range ids {
		shares[id] = share
	}

	if c.policy != ResidualSpread {
		return shares
	}

	residual := amount - share*n
	step := int64(1)
	if residual < 0 {
		step = -1
		residual = -residual
	}
	for i := int64(0); i < residual; i++ {
		shares[ids[i]] += step
	}
	return shares
}

// Calculate nets every participant's deposits against their shares of paid
// expenses. participants must be in a stable order; the report follows it.
// Expenses not in the paid state are ignored. Unlinked expense transactions,
// including those of disputed expenses, are split across all participants.
func (c Calculator) Calculate(eventID uuid.UUID, participants []*event.Participant, paid []*expense.Expense, unlinked []*ledger.Transaction) Report {
	everyone := make([]uuid.UUID, len(participants))
	for i, p := range participants {
		everyone[i] = p.UserID
	}

	report := Report{EventID: eventID, ResidualPolicy: c.policy, Lines: make([]Line, 0, len(participants))}
	shares := map[uuid.UUID]int64{}
	accrue := func(amount int64, ids []uuid.UUID) {
		report.TotalExpenses += amount
		for id, s := range c.Split(amount, ids) {
			shares[id] += s
		}
	}

	for _, e := range paid {
		if e.Status != expense.StatusPaid {
			continue
		}
		ids := e.LockedParticipantIDs
		if len(ids) == 0 {
			ids = everyone
		}
		accrue(e.Amount, ids)
	}
	for _, tx := range unlinked {
		accrue(tx.Amount, everyone)
	}

	for _, p := range participants {
		line := Line{
			UserID:    p.UserID,
			Deposited: p.DepositedAmount,
			Share:     shares[p.UserID],
		}
		line.Net = line.Deposited - line.Share
		if line.Net > 0 {
			line.RefundAmount = line.Net
		}

		report.TotalDeposited += line.Deposited
		report.TotalShares += line.Share
		report.TotalRefunds += line.RefundAmount
		report.Lines = append(report.Lines, line)
	}
	return report
}

// CategoryShares splits the paid expenses of one category across their
// locked participants.
func (c Calculator) CategoryShares(categoryID uuid.UUID, paid []*expense.Expense) map[uuid.UUID]int64 {
	shares := map[uuid.UUID]int64{}
	for _, e := range paid {
		if e.Status != expense.StatusPaid || e.CategoryID == nil || *e.CategoryID != categoryID {
			continue
		}
		for id, s := range c.Split(e.Amount, e.LockedParticipantIDs) {
			shares[id] += s
		}
	}
	return shares
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
