package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/pocketledger/pocketledger/internal/shared"
)

// DefaultCategory is a name/kind pair provisioned for every new user.
type DefaultCategory struct {
	Name string
	Kind Kind
}

// DefaultCategories lists the categories every user starts with.
var DefaultCategories = []DefaultCategory{
	{Name: "Salary", Kind: KindIncome},
	{Name: "Investments", Kind: KindIncome},
	{Name: "Freelance", Kind: KindIncome},
	{Name: "Bonuses", Kind: KindIncome},
	{Name: "Food", Kind: KindExpense},
	{Name: "Transport", Kind: KindExpense},
	{Name: "Entertainment", Kind: KindExpense},
	{Name: "Utilities", Kind: KindExpense},
	{Name: "Shopping", Kind: KindExpense},
}

// AddDefaultCategories creates the default categories the user is missing
// and returns the ones it created.
func (s *Service) AddDefaultCategories(ctx context.Context, userID string) ([]Category, error) {
	var created []Category
	err := s.mutate(ctx, "category.defaults", "", func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetUser(ctx, userID); err != nil {
			return err
		}
		var err error
		created, err = s.provisionDefaults(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(created) > 0 {
		s.committed(ctx, userID, shared.AuditLog{
			Action:   "category.defaults",
			Entity:   "user",
			EntityID: userID,
			Meta:     map[string]any{"created": len(created)},
		})
	}
	return created, nil
}

func (s *Service) provisionDefaults(ctx context.Context, tx TxRepository, userID string) ([]Category, error) {
	var created []Category
	now := s.timestamp()
	for _, def := range DefaultCategories {
		key := NameKey(def.Name)
		if _, err := tx.FindCategoryByKey(ctx, userID, key); err == nil {
			continue
		} else if !errors.Is(err, ErrCategoryNotFound) {
			return nil, err
		}
		category := Category{
			ID:        uuid.NewString(),
			UserID:    userID,
			Name:      def.Name,
			NameKey:   key,
			Kind:      def.Kind,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.InsertCategory(ctx, category); err != nil {
			return nil, err
		}
		created = append(created, category)
	}
	return created, nil
}

// AddCategory creates a category for the user. Names are unique per user,
// compared case-insensitively.
func (s *Service) AddCategory(ctx context.Context, userID, name string, kind Kind) (Category, error) {
	clean, err := validateCategoryName(name)
	if err != nil {
		return Category{}, err
	}
	if !kind.Valid() {
		return Category{}, fmt.Errorf("%w: kind must be INCOME or EXPENSE", ErrInvalidCategory)
	}
	now := s.timestamp()
	category := Category{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      clean,
		NameKey:   NameKey(clean),
		Kind:      kind,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = s.mutate(ctx, "category.add", "", func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetUser(ctx, userID); err != nil {
			return err
		}
		if err := ensureCategoryNameFree(ctx, tx, userID, category.NameKey, ""); err != nil {
			return err
		}
		return tx.InsertCategory(ctx, category)
	})
	if err != nil {
		return Category{}, err
	}
	s.committed(ctx, userID, shared.AuditLog{
		Action:   "category.add",
		Entity:   "category",
		EntityID: category.ID,
		Meta:     map[string]any{"name": category.Name, "kind": string(category.Kind)},
	})
	return category, nil
}

// EditCategory renames a category. The kind cannot change.
func (s *Service) EditCategory(ctx context.Context, userID, categoryID, newName string) (Category, error) {
	clean, err := validateCategoryName(newName)
	if err != nil {
		return Category{}, err
	}
	var category Category
	err = s.mutate(ctx, "category.edit", "", func(ctx context.Context, tx TxRepository) error {
		current, err := ownedCategory(ctx, tx, userID, categoryID)
		if err != nil {
			return err
		}
		key := NameKey(clean)
		if err := ensureCategoryNameFree(ctx, tx, userID, key, current.ID); err != nil {
			return err
		}
		current.Name = clean
		current.NameKey = key
		current.UpdatedAt = s.timestamp()
		if err := tx.UpdateCategory(ctx, current); err != nil {
			return err
		}
		category = current
		return nil
	})
	if err != nil {
		return Category{}, err
	}
	s.committed(ctx, userID, shared.AuditLog{
		Action:   "category.edit",
		Entity:   "category",
		EntityID: category.ID,
		Meta:     map[string]any{"name": category.Name},
	})
	return category, nil
}

// DeleteCategory removes a category the user owns and no transaction uses.
func (s *Service) DeleteCategory(ctx context.Context, userID, categoryID string) error {
	err := s.mutate(ctx, "category.delete", "", func(ctx context.Context, tx TxRepository) error {
		if _, err := ownedCategory(ctx, tx, userID, categoryID); err != nil {
			return err
		}
		inUse, err := tx.CategoryInUse(ctx, categoryID)
		if err != nil {
			return err
		}
		if inUse {
			return ErrCategoryInUse
		}
		return tx.DeleteCategory(ctx, categoryID)
	})
	if err != nil {
		return err
	}
	s.committed(ctx, userID, shared.AuditLog{Action: "category.delete", Entity: "category", EntityID: categoryID})
	return nil
}

// GetCategory returns a category the user owns.
func (s *Service) GetCategory(ctx context.Context, userID, categoryID string) (Category, error) {
	var category Category
	err := s.read(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		category, err = ownedCategory(ctx, tx, userID, categoryID)
		return err
	})
	return category, err
}

// ListCategories returns the user's categories sorted by name, optionally
// restricted to one kind. An empty kind lists both.
func (s *Service) ListCategories(ctx context.Context, userID string, kind Kind) ([]Category, error) {
	if kind != "" && !kind.Valid() {
		return nil, fmt.Errorf("%w: kind must be INCOME or EXPENSE", ErrInvalidCategory)
	}
	var categories []Category
	err := s.read(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetUser(ctx, userID); err != nil {
			return err
		}
		all, err := tx.ListCategories(ctx, userID)
		if err != nil {
			return err
		}
		for _, c := range all {
			if kind == "" || c.Kind == kind {
				categories = append(categories, c)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(categories, func(i, j int) bool { return categories[i].NameKey < categories[j].NameKey })
	return categories, nil
}

func ownedCategory(ctx context.Context, tx TxRepository, userID, categoryID string) (Category, error) {
	category, err := tx.GetCategory(ctx, categoryID)
	if err != nil {
		return Category{}, err
	}
	if category.UserID != userID {
		return Category{}, ErrNotAuthorized
	}
	return category, nil
}

func ensureCategoryNameFree(ctx context.Context, tx TxRepository, userID, key, selfID string) error {
	existing, err := tx.FindCategoryByKey(ctx, userID, key)
	if err == nil {
		if existing.ID == selfID {
			return nil
		}
		return fmt.Errorf("%w: %q", ErrDuplicateCategory, existing.Name)
	}
	if errors.Is(err, ErrCategoryNotFound) {
		return nil
	}
	return err
}
