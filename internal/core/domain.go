package core

import (
	"errors"
	"strings"
	"time"
	"unicode"
)

type (
	// Method is a closed enumeration of payment methods.
	Method string

	// Tag is a closed enumeration of expense tags.
	Tag string

	// Category is a closed enumeration of expense categories.
	Category string

	Money struct {
		Cents int64
	}

	// Expense is a single expense record. Immutable once persisted.
	Expense struct {
		ID          int64
		Timestamp   time.Time
		Amount      Money
		Description string
		Method      Method
		Tag         Tag
		Category    Category
		// Installments is the total number of installments, 0 when the
		// expense was paid in one go.
		Installments int
		// InstallmentNumber is 1-based and only set on rows produced by
		// installment distribution.
		InstallmentNumber int
		Parsed            bool
	}
)

const (
	MethodPix        Method = "Pix"
	MethodCreditCard Method = "Credit Card"
	MethodDebitCard  Method = "Debit Card"
	MethodBoleto     Method = "Boleto"
)

const (
	TagPersonal  Tag = "Personal Expenses"
	TagCouple    Tag = "Couple Expenses"
	TagHousehold Tag = "Household Expenses"
)

const (
	CategoryGroceries     Category = "Groceries"
	CategoryRestaurants   Category = "Restaurants"
	CategoryTransport     Category = "Transport"
	CategoryFuel          Category = "Fuel"
	CategoryHealth        Category = "Health"
	CategoryPharmacy      Category = "Pharmacy"
	CategoryHome          Category = "Home"
	CategoryUtilities     Category = "Utilities"
	CategorySubscriptions Category = "Subscriptions"
	CategoryEntertainment Category = "Entertainment"
	CategoryClothing      Category = "Clothing"
	CategoryEducation     Category = "Education"
	CategoryTravel        Category = "Travel"
	CategoryGifts         Category = "Gifts"
	CategoryPets          Category = "Pets"
	CategoryOther         Category = "Other"
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrEmptyDescription    = errors.New("empty description")
	ErrInvalidMethod       = errors.New("invalid payment method")
	ErrInvalidTag          = errors.New("invalid tag")
	ErrInvalidCategory     = errors.New("invalid category")
	ErrInvalidInstallments = errors.New("installments must be at least 1")
)

// Methods returns all payment methods in display order.
func Methods() []Method {
	return []Method{MethodPix, MethodCreditCard, MethodDebitCard, MethodBoleto}
}

// Tags returns all tags in display order.
func Tags() []Tag {
	return []Tag{TagPersonal, TagCouple, TagHousehold}
}

// Categories returns all categories in display order.
func Categories() []Category {
	return []Category{
		CategoryGroceries, CategoryRestaurants, CategoryTransport, CategoryFuel,
		CategoryHealth, CategoryPharmacy, CategoryHome, CategoryUtilities,
		CategorySubscriptions, CategoryEntertainment, CategoryClothing,
		CategoryEducation, CategoryTravel, CategoryGifts, CategoryPets,
		CategoryOther,
	}
}

// normalizeKey lowercases, folds accents, and collapses whitespace so raw
// entry text matches canonical enum values loosely.
func normalizeKey(s string) string {
	var b strings.Builder
	lastSpace := false
	for _, r := range strings.TrimSpace(s) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		if folded, ok := accentFold[unicode.ToLower(r)]; ok {
			r = folded
		}
		if unicode.IsSpace(r) {
			if !lastSpace {
				b.WriteRune(' ')
			}
			lastSpace = true
			continue
		}
		lastSpace = false
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// accentFold maps the precomposed Latin letters that show up in entry text
// (Portuguese input is common) to their base letters.
var accentFold = map[rune]rune{
	'á': 'a', 'à': 'a', 'â': 'a', 'ã': 'a', 'ä': 'a',
	'é': 'e', 'è': 'e', 'ê': 'e', 'ë': 'e',
	'í': 'i', 'ì': 'i', 'î': 'i', 'ï': 'i',
	'ó': 'o', 'ò': 'o', 'ô': 'o', 'õ': 'o', 'ö': 'o',
	'ú': 'u', 'ù': 'u', 'û': 'u', 'ü': 'u',
	'ç': 'c', 'ñ': 'n',
}

var (
	methodsByKey    = buildIndex(Methods())
	tagsByKey       = buildIndex(Tags())
	categoriesByKey = buildIndex(Categories())
)

func buildIndex[T ~string](values []T) map[string]T {
	m := make(map[string]T, len(values))
	for _, v := range values {
		m[normalizeKey(string(v))] = v
	}
	return m
}

// ParseMethod matches raw input against the payment method enumeration,
// ignoring case, accents, and surrounding whitespace.
func ParseMethod(raw string) (Method, error) {
	if v, ok := methodsByKey[normalizeKey(raw)]; ok {
		return v, nil
	}
	return "", ErrInvalidMethod
}

// ParseTag matches raw input against the tag enumeration.
func ParseTag(raw string) (Tag, error) {
	if v, ok := tagsByKey[normalizeKey(raw)]; ok {
		return v, nil
	}
	return "", ErrInvalidTag
}

// ParseCategory matches raw input against the category enumeration.
func ParseCategory(raw string) (Category, error) {
	if v, ok := categoriesByKey[normalizeKey(raw)]; ok {
		return v, nil
	}
	return "", ErrInvalidCategory
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (e Expense) Validate() error {
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(e.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	// Enum fields must carry the canonical spelling; loose input is
	// canonicalized at the parsing boundaries, never stored.
	if v, err := ParseMethod(string(e.Method)); err != nil || v != e.Method {
		return ErrInvalidMethod
	}
	if v, err := ParseTag(string(e.Tag)); err != nil || v != e.Tag {
		return ErrInvalidTag
	}
	if v, err := ParseCategory(string(e.Category)); err != nil || v != e.Category {
		return ErrInvalidCategory
	}
	if e.Installments < 0 {
		return ErrInvalidInstallments
	}
	return nil
}
