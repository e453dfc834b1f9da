package core

import (
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

const (
	DefaultCategoryIcon  = "📝"
	DefaultCategoryColor = "#3b82f6"

	maxCategoryName = 50
	maxDescription  = 200
	maxNote         = 500
)

type (
	TransactionType string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	User struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		Email     string    `json:"email"`
		CreatedAt time.Time `json:"createdAt,omitempty"`
	}

	Category struct {
		ID        string          `json:"_id"`
		Name      string          `json:"name"`
		Type      TransactionType `json:"type"`
		Icon      string          `json:"icon"`
		Color     string          `json:"color"`
		CreatedAt time.Time       `json:"createdAt,omitempty"`
	}

	CategoryInput struct {
		Name  string          `json:"name"`
		Type  TransactionType `json:"type"`
		Icon  string          `json:"icon"`
		Color string          `json:"color"`
	}

	// CategoryRef is the category a transaction points at. The API sends
	// either the bare id or the populated category document.
	CategoryRef struct {
		ID       string
		Category *Category
	}

	Transaction struct {
		ID          string          `json:"_id"`
		Amount      Money           `json:"amount"`
		Type        TransactionType `json:"type"`
		Category    CategoryRef     `json:"category"`
		Description string          `json:"description"`
		Note        string          `json:"note"`
		Date        Date            `json:"date"`
		CreatedAt   time.Time       `json:"createdAt,omitempty"`
	}

	TransactionInput struct {
		Amount      Money           `json:"amount"`
		Type        TransactionType `json:"type"`
		Category    string          `json:"category"`
		Description string          `json:"description"`
		Note        string          `json:"note"`
		Date        Date            `json:"date"`
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidType        = errors.New("type must be income or expense")
	ErrInvalidDate        = errors.New("invalid date")
	ErrEmptyName          = errors.New("name is required")
	ErrNameTooLong        = errors.New("name too long (max 50 characters)")
	ErrInvalidColor       = errors.New("color must be a hex value like #3b82f6")
	ErrEmptyCategory      = errors.New("category is required")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
	ErrNoteTooLong        = errors.New("note too long (max 500 characters)")
	ErrInvalidPeriod      = errors.New("invalid period")
)

var hexColor = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// ParseTransactionType normalises user input. Empty and "all" yield the
// empty type, which callers treat as "no filter".
func ParseTransactionType(s string) (TransactionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return "", nil
	case string(Income):
		return Income, nil
	case string(Expense):
		return Expense, nil
	default:
		return "", ErrInvalidType
	}
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

// Sign returns "+" for income and "-" for expenses, as shown next to amounts.
func (t TransactionType) Sign() string {
	if t == Income {
		return "+"
	}
	return "-"
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a form date in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// String formats the date for form inputs.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Name returns the populated category name, or the id when the API did
// not populate the reference.
func (r CategoryRef) Name() string {
	if r.Category != nil && r.Category.Name != "" {
		return r.Category.Name
	}
	return r.ID
}

// Icon returns the category icon with the default placeholder.
func (r CategoryRef) Icon() string {
	if r.Category != nil && r.Category.Icon != "" {
		return r.Category.Icon
	}
	return DefaultCategoryIcon
}

// Normalize trims fields and fills the default icon and color.
func (in CategoryInput) Normalize() CategoryInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Icon = strings.TrimSpace(in.Icon)
	in.Color = strings.TrimSpace(in.Color)
	if in.Icon == "" {
		in.Icon = DefaultCategoryIcon
	}
	if in.Color == "" {
		in.Color = DefaultCategoryColor
	}
	return in
}

func (in CategoryInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return ErrEmptyName
	}
	if utf8.RuneCountInString(in.Name) > maxCategoryName {
		return ErrNameTooLong
	}
	if !in.Type.Valid() {
		return ErrInvalidType
	}
	if in.Color != "" && !hexColor.MatchString(in.Color) {
		return ErrInvalidColor
	}
	return nil
}

func (in TransactionInput) Validate() error {
	if err := in.Amount.Validate(); err != nil {
		return err
	}
	if !in.Type.Valid() {
		return ErrInvalidType
	}
	if strings.TrimSpace(in.Category) == "" {
		return ErrEmptyCategory
	}
	if err := in.Date.Validate(); err != nil {
		return err
	}
	if utf8.RuneCountInString(in.Description) > maxDescription {
		return ErrDescriptionTooLong
	}
	if utf8.RuneCountInString(in.Note) > maxNote {
		return ErrNoteTooLong
	}
	return nil
}

// InputFrom returns the editable form of an existing transaction.
func InputFrom(t Transaction) TransactionInput {
	return TransactionInput{
		Amount:      t.Amount,
		Type:        t.Type,
		Category:    t.Category.ID,
		Description: t.Description,
		Note:        t.Note,
		Date:        t.Date,
	}
}

// CategoryInputFrom returns the editable form of an existing category.
func CategoryInputFrom(c Category) CategoryInput {
	return CategoryInput{Name: c.Name, Type: c.Type, Icon: c.Icon, Color: c.Color}
}
