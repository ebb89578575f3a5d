// Package memstore keeps the ledger in process memory. Records live in flat
// maps with parent-id indexes, and every unit of work runs against a private
// copy that replaces the live state only on success.
package memstore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pocketledger/pocketledger/internal/ledger"
)

// Store implements ledger.RepositoryPort.
type Store struct {
	mu    sync.Mutex
	state *state
}

type index map[string]map[string]struct{}

func (ix index) add(parent, child string) {
	set, ok := ix[parent]
	if !ok {
		set = make(map[string]struct{})
		ix[parent] = set
	}
	set[child] = struct{}{}
}

func (ix index) remove(parent, child string) {
	if set, ok := ix[parent]; ok {
		delete(set, child)
		if len(set) == 0 {
			delete(ix, parent)
		}
	}
}

func (ix index) clone() index {
	out := make(index, len(ix))
	for parent, set := range ix {
		cp := make(map[string]struct{}, len(set))
		for child := range set {
			cp[child] = struct{}{}
		}
		out[parent] = cp
	}
	return out
}

type state struct {
	users        map[string]ledger.User
	emails       map[string]string
	categories   map[string]ledger.Category
	accounts     map[string]ledger.Account
	transactions map[string]ledger.Transaction

	accountsByUser   index
	categoriesByUser index
	txByAccount      index

	accountSeq map[string]int64
	seq        int64
}

func newState() *state {
	return &state{
		users:            make(map[string]ledger.User),
		emails:           make(map[string]string),
		categories:       make(map[string]ledger.Category),
		accounts:         make(map[string]ledger.Account),
		transactions:     make(map[string]ledger.Transaction),
		accountsByUser:   make(index),
		categoriesByUser: make(index),
		txByAccount:      make(index),
		accountSeq:       make(map[string]int64),
	}
}

func cloneMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *state) clone() *state {
	return &state{
		users:            cloneMap(s.users),
		emails:           cloneMap(s.emails),
		categories:       cloneMap(s.categories),
		accounts:         cloneMap(s.accounts),
		transactions:     cloneMap(s.transactions),
		accountsByUser:   s.accountsByUser.clone(),
		categoriesByUser: s.categoriesByUser.clone(),
		txByAccount:      s.txByAccount.clone(),
		accountSeq:       cloneMap(s.accountSeq),
		seq:              s.seq,
	}
}

// New returns an empty store.
func New() *Store {
	return &Store{state: newState()}
}

// WithTx runs fn against a copy of the state and publishes it when fn succeeds.
func (s *Store) WithTx(ctx context.Context, fn func(context.Context, ledger.TxRepository) error) error {
	if s == nil {
		return errors.New("memstore: store not initialised")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.state.clone()
	if err := fn(ctx, &txRepository{st: work}); err != nil {
		return err
	}
	s.state = work
	return nil
}

type txRepository struct {
	st *state
}

var _ ledger.TxRepository = (*txRepository)(nil)

func (r *txRepository) nextSeq() int64 {
	r.st.seq++
	return r.st.seq
}

func (r *txRepository) InsertUser(ctx context.Context, user ledger.User) error {
	if _, ok := r.st.emails[user.Email]; ok {
		return ledger.ErrDuplicateEmail
	}
	r.st.users[user.ID] = user
	r.st.emails[user.Email] = user.ID
	return nil
}

func (r *txRepository) GetUser(ctx context.Context, id string) (ledger.User, error) {
	user, ok := r.st.users[id]
	if !ok {
		return ledger.User{}, ledger.ErrUserNotFound
	}
	return user, nil
}

func (r *txRepository) GetUserByEmail(ctx context.Context, email string) (ledger.User, error) {
	id, ok := r.st.emails[email]
	if !ok {
		return ledger.User{}, ledger.ErrUserNotFound
	}
	return r.GetUser(ctx, id)
}

func (r *txRepository) DeleteUser(ctx context.Context, id string) error {
	user, ok := r.st.users[id]
	if !ok {
		return ledger.ErrUserNotFound
	}
	for accountID := range r.st.accountsByUser[id] {
		if err := r.DeleteAccount(ctx, accountID); err != nil {
			return err
		}
	}
	for categoryID := range r.st.categoriesByUser[id] {
		delete(r.st.categories, categoryID)
	}
	delete(r.st.categoriesByUser, id)
	delete(r.st.emails, user.Email)
	delete(r.st.users, id)
	return nil
}

func (r *txRepository) InsertCategory(ctx context.Context, category ledger.Category) error {
	if _, ok := r.st.users[category.UserID]; !ok {
		return ledger.ErrUserNotFound
	}
	if _, err := r.FindCategoryByKey(ctx, category.UserID, category.NameKey); err == nil {
		return ledger.ErrDuplicateCategory
	}
	r.st.categories[category.ID] = category
	r.st.categoriesByUser.add(category.UserID, category.ID)
	return nil
}

func (r *txRepository) UpdateCategory(ctx context.Context, category ledger.Category) error {
	current, ok := r.st.categories[category.ID]
	if !ok {
		return ledger.ErrCategoryNotFound
	}
	if existing, err := r.FindCategoryByKey(ctx, current.UserID, category.NameKey); err == nil && existing.ID != category.ID {
		return ledger.ErrDuplicateCategory
	}
	current.Name = category.Name
	current.NameKey = category.NameKey
	current.UpdatedAt = category.UpdatedAt
	r.st.categories[category.ID] = current
	return nil
}

func (r *txRepository) GetCategory(ctx context.Context, id string) (ledger.Category, error) {
	category, ok := r.st.categories[id]
	if !ok {
		return ledger.Category{}, ledger.ErrCategoryNotFound
	}
	return category, nil
}

func (r *txRepository) FindCategoryByKey(ctx context.Context, userID, nameKey string) (ledger.Category, error) {
	for id := range r.st.categoriesByUser[userID] {
		if c := r.st.categories[id]; c.NameKey == nameKey {
			return c, nil
		}
	}
	return ledger.Category{}, ledger.ErrCategoryNotFound
}

func (r *txRepository) ListCategories(ctx context.Context, userID string) ([]ledger.Category, error) {
	out := make([]ledger.Category, 0, len(r.st.categoriesByUser[userID]))
	for id := range r.st.categoriesByUser[userID] {
		out = append(out, r.st.categories[id])
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].NameKey != out[j].NameKey {
			return out[i].NameKey < out[j].NameKey
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *txRepository) CategoryInUse(ctx context.Context, id string) (bool, error) {
	for _, t := range r.st.transactions {
		if t.CategoryID == id {
			return true, nil
		}
	}
	return false, nil
}

func (r *txRepository) DeleteCategory(ctx context.Context, id string) error {
	category, ok := r.st.categories[id]
	if !ok {
		return ledger.ErrCategoryNotFound
	}
	if inUse, _ := r.CategoryInUse(ctx, id); inUse {
		return ledger.ErrCategoryInUse
	}
	delete(r.st.categories, id)
	r.st.categoriesByUser.remove(category.UserID, id)
	return nil
}

func (r *txRepository) InsertAccount(ctx context.Context, account ledger.Account) error {
	if _, ok := r.st.users[account.UserID]; !ok {
		return ledger.ErrUserNotFound
	}
	r.st.accounts[account.ID] = account
	r.st.accountsByUser.add(account.UserID, account.ID)
	r.st.accountSeq[account.ID] = r.nextSeq()
	return nil
}

func (r *txRepository) GetAccount(ctx context.Context, id string) (ledger.Account, error) {
	account, ok := r.st.accounts[id]
	if !ok {
		return ledger.Account{}, ledger.ErrAccountNotFound
	}
	return account, nil
}

// GetAccountForUpdate needs no extra locking: WithTx already holds the store.
func (r *txRepository) GetAccountForUpdate(ctx context.Context, id string) (ledger.Account, error) {
	return r.GetAccount(ctx, id)
}

func (r *txRepository) ListAccounts(ctx context.Context, userID string) ([]ledger.Account, error) {
	out := make([]ledger.Account, 0, len(r.st.accountsByUser[userID]))
	for id := range r.st.accountsByUser[userID] {
		out = append(out, r.st.accounts[id])
	}
	r.sortAccounts(out)
	return out, nil
}

func (r *txRepository) ListAllAccounts(ctx context.Context) ([]ledger.Account, error) {
	out := make([]ledger.Account, 0, len(r.st.accounts))
	for _, a := range r.st.accounts {
		out = append(out, a)
	}
	r.sortAccounts(out)
	return out, nil
}

func (r *txRepository) sortAccounts(accounts []ledger.Account) {
	sort.Slice(accounts, func(i, j int) bool {
		return r.st.accountSeq[accounts[i].ID] < r.st.accountSeq[accounts[j].ID]
	})
}

func (r *txRepository) UpdateAccount(ctx context.Context, account ledger.Account) error {
	current, ok := r.st.accounts[account.ID]
	if !ok {
		return ledger.ErrAccountNotFound
	}
	current.Name = account.Name
	current.Balance = account.Balance
	current.UpdatedAt = account.UpdatedAt
	r.st.accounts[account.ID] = current
	return nil
}

func (r *txRepository) DeleteAccount(ctx context.Context, id string) error {
	account, ok := r.st.accounts[id]
	if !ok {
		return ledger.ErrAccountNotFound
	}
	for txID := range r.st.txByAccount[id] {
		delete(r.st.transactions, txID)
	}
	delete(r.st.txByAccount, id)
	delete(r.st.accounts, id)
	delete(r.st.accountSeq, id)
	r.st.accountsByUser.remove(account.UserID, id)
	return nil
}

func (r *txRepository) InsertTransaction(ctx context.Context, t ledger.Transaction) (ledger.Transaction, error) {
	if _, ok := r.st.accounts[t.AccountID]; !ok {
		return ledger.Transaction{}, ledger.ErrAccountNotFound
	}
	if _, ok := r.st.categories[t.CategoryID]; !ok {
		return ledger.Transaction{}, ledger.ErrCategoryNotFound
	}
	t.Seq = r.nextSeq()
	t.CategoryName = ""
	r.st.transactions[t.ID] = t
	r.st.txByAccount.add(t.AccountID, t.ID)
	return r.project(t), nil
}

func (r *txRepository) GetTransaction(ctx context.Context, id string) (ledger.Transaction, error) {
	t, ok := r.st.transactions[id]
	if !ok {
		return ledger.Transaction{}, ledger.ErrTransactionNotFound
	}
	return r.project(t), nil
}

func (r *txRepository) UpdateTransaction(ctx context.Context, t ledger.Transaction) error {
	current, ok := r.st.transactions[t.ID]
	if !ok {
		return ledger.ErrTransactionNotFound
	}
	if _, ok := r.st.categories[t.CategoryID]; !ok {
		return ledger.ErrCategoryNotFound
	}
	current.CategoryID = t.CategoryID
	current.Amount = t.Amount
	current.Description = t.Description
	current.Date = t.Date
	current.UpdatedAt = t.UpdatedAt
	r.st.transactions[t.ID] = current
	return nil
}

func (r *txRepository) DeleteTransaction(ctx context.Context, id string) error {
	t, ok := r.st.transactions[id]
	if !ok {
		return ledger.ErrTransactionNotFound
	}
	delete(r.st.transactions, id)
	r.st.txByAccount.remove(t.AccountID, id)
	return nil
}

func (r *txRepository) ListTransactions(ctx context.Context, accountID string) ([]ledger.Transaction, error) {
	out := make([]ledger.Transaction, 0, len(r.st.txByAccount[accountID]))
	for id := range r.st.txByAccount[accountID] {
		out = append(out, r.project(r.st.transactions[id]))
	}
	sortBySeq(out)
	return out, nil
}

func (r *txRepository) ListUserTransactions(ctx context.Context, userID string) ([]ledger.Transaction, error) {
	var out []ledger.Transaction
	for accountID := range r.st.accountsByUser[userID] {
		for id := range r.st.txByAccount[accountID] {
			out = append(out, r.project(r.st.transactions[id]))
		}
	}
	sortBySeq(out)
	return out, nil
}

func (r *txRepository) SumByKind(ctx context.Context, userID string, kind ledger.Kind, from, to time.Time) (decimal.Decimal, error) {
	total := decimal.Zero
	for accountID := range r.st.accountsByUser[userID] {
		for id := range r.st.txByAccount[accountID] {
			t := r.st.transactions[id]
			if t.Kind != kind {
				continue
			}
			if !from.IsZero() && t.Date.Before(from) {
				continue
			}
			if !to.IsZero() && !t.Date.Before(to) {
				continue
			}
			total = total.Add(t.Amount)
		}
	}
	return total, nil
}

func (r *txRepository) project(t ledger.Transaction) ledger.Transaction {
	if c, ok := r.st.categories[t.CategoryID]; ok {
		t.CategoryName = c.Name
	}
	return t
}

func sortBySeq(txs []ledger.Transaction) {
	sort.Slice(txs, func(i, j int) bool { return txs[i].Seq < txs[j].Seq })
}
