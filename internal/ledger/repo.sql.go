package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/pocketledger/pocketledger/internal/platform/db"
)

// Repository persists the ledger in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

var _ TxRepository = (*txRepository)(nil)

// WithTx executes fn within a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return errors.New("ledger repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const (
	userColumns        = `id, name, email, password_hash, created_at, updated_at`
	categoryColumns    = `id, user_id, name, name_key, kind, created_at, updated_at`
	accountColumns     = `id, user_id, name, initial_balance::text, balance::text, created_at, updated_at`
	transactionColumns = `t.id, t.account_id, t.category_id, c.name, t.kind, t.amount::text, t.description, t.occurred_at, t.seq, t.created_at, t.updated_at`
	transactionFrom    = `FROM transactions t JOIN categories c ON c.id = t.category_id`
)

func (r *txRepository) InsertUser(ctx context.Context, user User) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO users (`+userColumns+`) VALUES ($1,$2,$3,$4,$5,$6)`,
		user.ID, user.Name, user.Email, user.PasswordHash, user.CreatedAt, user.UpdatedAt)
	if db.IsUniqueViolation(err, "uq_users_email") {
		return ErrDuplicateEmail
	}
	return err
}

func (r *txRepository) GetUser(ctx context.Context, id string) (User, error) {
	return r.scanUser(r.tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
}

func (r *txRepository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return r.scanUser(r.tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1`, email))
}

func (r *txRepository) scanUser(row pgx.Row) (User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}
	return u, nil
}

func (r *txRepository) DeleteUser(ctx context.Context, id string) error {
	steps := []string{
		`DELETE FROM transactions WHERE account_id IN (SELECT id FROM accounts WHERE user_id=$1)`,
		`DELETE FROM accounts WHERE user_id=$1`,
		`DELETE FROM categories WHERE user_id=$1`,
	}
	for _, stmt := range steps {
		if _, err := r.tx.Exec(ctx, stmt, id); err != nil {
			return err
		}
	}
	cmd, err := r.tx.Exec(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *txRepository) InsertCategory(ctx context.Context, c Category) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO categories (`+categoryColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		c.ID, c.UserID, c.Name, c.NameKey, string(c.Kind), c.CreatedAt, c.UpdatedAt)
	if db.IsUniqueViolation(err, "uq_categories_user_name") {
		return ErrDuplicateCategory
	}
	if db.IsForeignKeyViolation(err) {
		return ErrUserNotFound
	}
	return err
}

func (r *txRepository) UpdateCategory(ctx context.Context, c Category) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE categories SET name=$2, name_key=$3, updated_at=$4 WHERE id=$1`, c.ID, c.Name, c.NameKey, c.UpdatedAt)
	if db.IsUniqueViolation(err, "uq_categories_user_name") {
		return ErrDuplicateCategory
	}
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

func (r *txRepository) GetCategory(ctx context.Context, id string) (Category, error) {
	return scanCategory(r.tx.QueryRow(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id=$1`, id))
}

func (r *txRepository) FindCategoryByKey(ctx context.Context, userID, nameKey string) (Category, error) {
	return scanCategory(r.tx.QueryRow(ctx, `SELECT `+categoryColumns+` FROM categories WHERE user_id=$1 AND name_key=$2`, userID, nameKey))
}

func (r *txRepository) ListCategories(ctx context.Context, userID string) ([]Category, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+categoryColumns+` FROM categories WHERE user_id=$1 ORDER BY name_key, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var categories []Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func scanCategory(row pgx.Row) (Category, error) {
	var c Category
	var kind string
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.NameKey, &kind, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Category{}, ErrCategoryNotFound
		}
		return Category{}, err
	}
	c.Kind = Kind(kind)
	return c, nil
}

func (r *txRepository) CategoryInUse(ctx context.Context, id string) (bool, error) {
	var inUse bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM transactions WHERE category_id=$1)`, id).Scan(&inUse)
	return inUse, err
}

func (r *txRepository) DeleteCategory(ctx context.Context, id string) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM categories WHERE id=$1`, id)
	if db.IsForeignKeyViolation(err) {
		return ErrCategoryInUse
	}
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

func (r *txRepository) InsertAccount(ctx context.Context, a Account) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO accounts (id, user_id, name, initial_balance, balance, created_at, updated_at)
VALUES ($1,$2,$3,$4::numeric,$5::numeric,$6,$7)`, a.ID, a.UserID, a.Name, toNumeric(a.InitialBalance), toNumeric(a.Balance), a.CreatedAt, a.UpdatedAt)
	if db.IsForeignKeyViolation(err) {
		return ErrUserNotFound
	}
	return err
}

func (r *txRepository) GetAccount(ctx context.Context, id string) (Account, error) {
	return scanAccount(r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1`, id))
}

func (r *txRepository) GetAccountForUpdate(ctx context.Context, id string) (Account, error) {
	return scanAccount(r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) ListAccounts(ctx context.Context, userID string) ([]Account, error) {
	return r.queryAccounts(ctx, `SELECT `+accountColumns+` FROM accounts WHERE user_id=$1 ORDER BY created_at, id`, userID)
}

func (r *txRepository) ListAllAccounts(ctx context.Context) ([]Account, error) {
	return r.queryAccounts(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY created_at, id`)
}

func (r *txRepository) queryAccounts(ctx context.Context, query string, args ...any) ([]Account, error) {
	rows, err := r.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	var initial, balance string
	if err := row.Scan(&a.ID, &a.UserID, &a.Name, &initial, &balance, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	var err error
	if a.InitialBalance, err = fromNumeric(initial); err != nil {
		return Account{}, err
	}
	if a.Balance, err = fromNumeric(balance); err != nil {
		return Account{}, err
	}
	return a, nil
}

func (r *txRepository) UpdateAccount(ctx context.Context, a Account) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE accounts SET name=$2, balance=$3::numeric, updated_at=$4 WHERE id=$1`, a.ID, a.Name, toNumeric(a.Balance), a.UpdatedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *txRepository) DeleteAccount(ctx context.Context, id string) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM transactions WHERE account_id=$1`, id); err != nil {
		return err
	}
	cmd, err := r.tx.Exec(ctx, `DELETE FROM accounts WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *txRepository) InsertTransaction(ctx context.Context, t Transaction) (Transaction, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO transactions (id, account_id, category_id, kind, amount, description, occurred_at, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5::numeric,$6,$7,$8,$9) RETURNING seq`,
		t.ID, t.AccountID, t.CategoryID, string(t.Kind), toNumeric(t.Amount), t.Description, t.Date, t.CreatedAt, t.UpdatedAt)
	if err := row.Scan(&t.Seq); err != nil {
		if db.IsForeignKeyViolation(err) {
			return Transaction{}, fmt.Errorf("%w: %w", ErrInvalidTransaction, err)
		}
		return Transaction{}, err
	}
	return t, nil
}

func (r *txRepository) GetTransaction(ctx context.Context, id string) (Transaction, error) {
	return scanTransaction(r.tx.QueryRow(ctx, `SELECT `+transactionColumns+` `+transactionFrom+` WHERE t.id=$1`, id))
}

func (r *txRepository) UpdateTransaction(ctx context.Context, t Transaction) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE transactions SET category_id=$2, amount=$3::numeric, description=$4, occurred_at=$5, updated_at=$6 WHERE id=$1`,
		t.ID, t.CategoryID, toNumeric(t.Amount), t.Description, t.Date, t.UpdatedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func (r *txRepository) DeleteTransaction(ctx context.Context, id string) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM transactions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func (r *txRepository) ListTransactions(ctx context.Context, accountID string) ([]Transaction, error) {
	return r.queryTransactions(ctx, `SELECT `+transactionColumns+` `+transactionFrom+` WHERE t.account_id=$1 ORDER BY t.seq`, accountID)
}

func (r *txRepository) ListUserTransactions(ctx context.Context, userID string) ([]Transaction, error) {
	return r.queryTransactions(ctx, `SELECT `+transactionColumns+` `+transactionFrom+`
JOIN accounts a ON a.id = t.account_id WHERE a.user_id=$1 ORDER BY t.seq`, userID)
}

func (r *txRepository) queryTransactions(ctx context.Context, query string, args ...any) ([]Transaction, error) {
	rows, err := r.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var txs []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var t Transaction
	var kind, amount string
	err := row.Scan(&t.ID, &t.AccountID, &t.CategoryID, &t.CategoryName, &kind, &amount, &t.Description, &t.Date, &t.Seq, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrTransactionNotFound
		}
		return Transaction{}, err
	}
	t.Kind = Kind(kind)
	if t.Amount, err = fromNumeric(amount); err != nil {
		return Transaction{}, err
	}
	return t, nil
}

func (r *txRepository) SumByKind(ctx context.Context, userID string, kind Kind, from, to time.Time) (decimal.Decimal, error) {
	var total string
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(t.amount), 0)::text
FROM transactions t JOIN accounts a ON a.id = t.account_id
WHERE a.user_id=$1 AND t.kind=$2
  AND ($3::timestamptz IS NULL OR t.occurred_at >= $3)
  AND ($4::timestamptz IS NULL OR t.occurred_at < $4)`, userID, string(kind), nullTime(from), nullTime(to)).Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	return fromNumeric(total)
}

func toNumeric(d decimal.Decimal) string {
	return d.String()
}

func fromNumeric(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ledger: parse numeric %q: %w", raw, err)
	}
	return d, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
