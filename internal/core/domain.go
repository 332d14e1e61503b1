package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  CategoryType = "income"
	Expense CategoryType = "expense"
)

type (
	CategoryType string

	// Date is a calendar date without a time component. It crosses the API
	// boundary as a plain YYYY-MM-DD string.
	Date struct {
		time.Time
	}

	// Category owns the name and type; the copies embedded in Transaction are
	// a read projection refreshed whenever the category is reloaded.
	Category struct {
		ID        string       `json:"id"`
		Name      string       `json:"name"`
		Type      CategoryType `json:"type"`
		CreatedAt time.Time    `json:"createdAt"`
	}

	Transaction struct {
		ID           string       `json:"id"`
		CategoryID   string       `json:"categoryId"`
		CategoryName string       `json:"categoryName"`
		CategoryType CategoryType `json:"categoryType"`
		AmountCents  int64        `json:"amount"`
		Description  string       `json:"description"`
		Date         Date         `json:"date"`
		CreatedAt    time.Time    `json:"createdAt"`
		UpdatedAt    time.Time    `json:"updatedAt"`
	}

	// User is the owner account behind the current session.
	User struct {
		ID        string    `json:"id"`
		Email     string    `json:"email"`
		Name      string    `json:"name"`
		Verified  bool      `json:"verified"`
		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
	}

	// MonthlySummary aggregates a year or a single month. Month is 0 when the
	// summary covers the whole year.
	MonthlySummary struct {
		Year         int   `json:"year"`
		Month        int   `json:"month,omitempty"`
		IncomeCents  int64 `json:"income"`
		ExpenseCents int64 `json:"expense"`
		BalanceCents int64 `json:"balance"`
	}

	CategoryTotal struct {
		CategoryID   string `json:"categoryId"`
		CategoryName string `json:"categoryName"`
		TotalCents   int64  `json:"total"`
		Count        int    `json:"count"`
	}

	// CategoryAggregation partitions per-category totals for a period into
	// income and expense groups.
	CategoryAggregation struct {
		Year    int             `json:"year"`
		Month   int             `json:"month,omitempty"`
		Income  []CategoryTotal `json:"income"`
		Expense []CategoryTotal `json:"expense"`
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidType      = errors.New("invalid category type")
	ErrEmptyCategory    = errors.New("empty category")
	ErrEmptyDescription = errors.New("empty description")
)

const dateLayout = "2006-01-02"

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (ct CategoryType) Validate() error {
	switch ct {
	case Income, Expense:
		return nil
	default:
		return ErrInvalidType
	}
}

// Signed returns the amount with the direction implied by the embedded
// category type: negative for expenses, positive for income. The stored
// amount itself is always positive.
func (t Transaction) Signed() int64 {
	if t.CategoryType == Expense {
		return -t.AmountCents
	}
	return t.AmountCents
}
