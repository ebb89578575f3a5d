package ledger

import "context"

// VerifyIntegrity recomputes every account balance from its initial balance
// and transactions and reports the accounts that disagree.
func (s *Service) VerifyIntegrity(ctx context.Context) (IntegrityReport, error) {
	var report IntegrityReport
	err := s.read(ctx, func(ctx context.Context, tx TxRepository) error {
		accounts, err := tx.ListAllAccounts(ctx)
		if err != nil {
			return err
		}
		for _, account := range accounts {
			if err := ctx.Err(); err != nil {
				return err
			}
			txs, err := tx.ListTransactions(ctx, account.ID)
			if err != nil {
				return err
			}
			report.Checked++
			expected := ExpectedBalance(account.InitialBalance, txs)
			if !expected.Equal(account.Balance) {
				report.Drifts = append(report.Drifts, BalanceDrift{
					AccountID: account.ID,
					UserID:    account.UserID,
					Stored:    account.Balance,
					Expected:  expected,
				})
			}
		}
		return nil
	})
	return report, err
}
