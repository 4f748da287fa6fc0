// Package reconciliation decides whether a statement's balances agree with its transactions.
package reconciliation

import (
	"fmt"

	"bai2-engine/internal/domain"
	"bai2-engine/internal/normalize"
	"bai2-engine/pkg/logger"
)

// DefaultToleranceCents is the absolute difference still treated as a match.
const DefaultToleranceCents int64 = 1

// ReconciliationEngine compares opening + credits - debits against the closing balance.
// It never fails: every problem is reported in the returned result.
type ReconciliationEngine struct {
	toleranceCents int64
}

func NewReconciliationEngine(toleranceCents int64) *ReconciliationEngine {
	if toleranceCents < 0 {
		toleranceCents = DefaultToleranceCents
	}
	return &ReconciliationEngine{toleranceCents: toleranceCents}
}

// Reconcile diagnoses stmt.
func (e *ReconciliationEngine) Reconcile(stmt *domain.Statement) *domain.ReconciliationResult {
	result := domain.NewReconciliationResult()

	for _, tx := range stmt.Transactions {
		if tx.IsCredit() {
			result.TotalCreditsCents += tx.Amount
			result.CreditCount++
		} else {
			result.TotalDebitsCents += tx.Magnitude()
			result.DebitCount++
		}
	}
	credits, debits := result.TotalCreditsCents, result.TotalDebitsCents

	var opening, closing int64
	if stmt.OpeningBalance != nil {
		opening = stmt.OpeningBalance.Amount
		result.OpeningBalanceKnown = true
	}
	if stmt.ClosingBalance != nil {
		closing = stmt.ClosingBalance.Amount
		result.ClosingBalanceKnown = true
	}

	// Upstream extraction often reports the deposit total as the opening balance.
	if result.OpeningBalanceKnown && credits > 0 && opening == credits {
		result.OpeningBalanceKnown = false
		result.AddCode(domain.CodeOpeningSuspicious)
		result.Warn(fmt.Sprintf("opening balance %s equals total credits; treating opening as unknown",
			normalize.FormatDollars(opening)))
	}

	switch {
	case result.OpeningBalanceKnown && result.ClosingBalanceKnown:
		expected := opening + credits - debits
		result.ExpectedClosingCents = &expected
		result.DifferenceCents = closing - expected
		if normalize.Abs(result.DifferenceCents) > e.toleranceCents {
			result.Status = domain.StatusFailed
			result.AddCode(domain.CodeBalanceMismatch)
			result.Warn(fmt.Sprintf("closing balance differs from opening + credits - debits by %s",
				normalize.FormatDollars(result.DifferenceCents)))
		}

	case !result.OpeningBalanceKnown && result.ClosingBalanceKnown:
		result.Status = domain.StatusPartial
		result.AddCode(domain.CodeOpeningUnknown)
		derived := closing - credits + debits
		result.DerivedOpeningCents = &derived
		result.Warn(fmt.Sprintf("opening balance unknown; derived opening is %s", normalize.FormatDollars(derived)))

	case result.OpeningBalanceKnown && !result.ClosingBalanceKnown:
		result.Status = domain.StatusPartial
		result.AddCode(domain.CodeClosingUnknown)
		expected := opening + credits - debits
		result.ExpectedClosingCents = &expected
		result.Warn(fmt.Sprintf("closing balance unknown; expected closing is %s", normalize.FormatDollars(expected)))

	default:
		result.Status = domain.StatusFailed
		result.AddCode(domain.CodeOpeningUnknown)
		result.AddCode(domain.CodeClosingUnknown)
		result.Warn("opening and closing balances are both unknown")
	}

	if stmt.DroppedTransactions > 0 {
		result.Warn(fmt.Sprintf("dropped %d malformed transaction records", stmt.DroppedTransactions))
	}

	logger.GetLogger().WithFields(map[string]interface{}{
		"status":       result.Status,
		"credits":      credits,
		"debits":       debits,
		"credit_count": result.CreditCount,
		"debit_count":  result.DebitCount,
		"difference":   result.DifferenceCents,
	}).Debug("Reconciliation finished")

	return result
}
