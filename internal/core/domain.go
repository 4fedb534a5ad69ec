package core

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// DateLayout is the on-disk and on-wire representation of a transaction date.
const DateLayout = "2006-01-02"

// MaxDescriptionLen is counted in characters, not bytes.
const MaxDescriptionLen = 200

type (
	TransactionType string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Transaction struct {
		ID          int64
		Amount      Money
		Type        TransactionType
		CategoryID  int64
		Description string
		Date        Date
		CreatedAt   time.Time

		// Joined from categories for display only.
		CategoryName  string
		CategoryIcon  string
		CategoryColor string
	}

	Category struct {
		ID    int64
		Name  string
		Type  TransactionType
		Icon  string
		Color string
	}
)

var (
	ErrInvalidType          = errors.New("invalid transaction type")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidDate          = errors.New("invalid date")
	ErrMissingCategory      = errors.New("missing category")
	ErrDescriptionTooLong   = errors.New("description too long (max 200 characters)")
	ErrEmptyName            = errors.New("empty category name")
	ErrNotFound             = errors.New("not found")
	ErrCategoryTypeMismatch = errors.New("category type does not match transaction type")
)

// ParseTransactionType normalizes s and reports whether it names a known type.
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToLower(strings.TrimSpace(s)))
	if err := t.Validate(); err != nil {
		return "", err
	}
	return t, nil
}

func (t TransactionType) Validate() error {
	switch t {
	case Income, Expense:
		return nil
	default:
		return ErrInvalidType
	}
}

func (t TransactionType) String() string {
	return string(t)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts YYYY-MM-DD only.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// Today returns the current date in UTC.
func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), int(now.Month()), now.Day())
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 || m.Cents > MaxAmountCents {
		return ErrInvalidAmount
	}
	return nil
}

func (t Transaction) Validate() error {
	if err := t.Type.Validate(); err != nil {
		return err
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if utf8.RuneCountInString(t.Description) > MaxDescriptionLen {
		return ErrDescriptionTooLong
	}
	// Last: import validates a row before resolving its category.
	if t.CategoryID <= 0 {
		return ErrMissingCategory
	}
	return nil
}

// TruncateDescription cuts s to MaxDescriptionLen characters.
func TruncateDescription(s string) string {
	if utf8.RuneCountInString(s) <= MaxDescriptionLen {
		return s
	}
	return string([]rune(s)[:MaxDescriptionLen])
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	return c.Type.Validate()
}

// DefaultCategories is the set seeded into an empty database.
func DefaultCategories() []Category {
	return []Category{
		{Name: "Food & Dining", Type: Expense, Icon: "restaurant", Color: "#FF6B6B"},
		{Name: "Transportation", Type: Expense, Icon: "car", Color: "#4ECDC4"},
		{Name: "Shopping", Type: Expense, Icon: "bag", Color: "#45B7D1"},
		{Name: "Entertainment", Type: Expense, Icon: "film", Color: "#96CEB4"},
		{Name: "Utilities", Type: Expense, Icon: "flash", Color: "#FFA07A"},
		{Name: "Healthcare", Type: Expense, Icon: "medical", Color: "#DDA0DD"},
		{Name: "Salary", Type: Income, Icon: "briefcase", Color: "#FFEAA7"},
		{Name: "Freelance", Type: Income, Icon: "laptop", Color: "#98D8C8"},
		{Name: "Investment", Type: Income, Icon: "trending-up", Color: "#F7DC6F"},
	}
}

// FallbackCategory builds the category created when an import row names an
// unknown category.
func FallbackCategory(name string, t TransactionType) Category {
	c := Category{Name: strings.TrimSpace(name), Type: t}
	if t == Income {
		c.Icon, c.Color = "trending-up", "#4CAF50"
	} else {
		c.Icon, c.Color = "remove-circle", "#F44336"
	}
	return c
}
