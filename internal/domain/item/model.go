package item

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

// DefaultImage is stored when an item is created without a photo.
const DefaultImage = "default.jpg"

// Max length constants for user-editable fields.
const (
	MaxTitleLength    = 200
	MaxCategoryLength = 100
)

// Domain errors
var (
	ErrNotFound      = errors.New("item not found")
	ErrEmptyTitle    = errors.New("titulo cannot be empty")
	ErrTitleTooLong  = errors.New("titulo cannot exceed 200 characters")
	ErrInvalidPrice  = errors.New("preco must be a number")
	ErrNegativePrice = errors.New("preco cannot be negative")
	ErrCategoryLong  = errors.New("categoria cannot exceed 100 characters")
)

// Item is a single entry on the restaurant menu.
// INVARIANT: Price is finite and >= 0 once validated.
type Item struct {
	ID          string
	Title       string
	Description string // markdown, optional
	Price       float64
	Image       string // filename under the uploads directory, or DefaultImage
	Category    string // optional label, e.g. "Carnes"
	Available   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Fields carries the user-editable subset of an Item, as submitted by the admin forms.
type Fields struct {
	Title       string
	Description string
	Price       float64
	Category    string
}

// New builds an Item from submitted fields with the creation defaults applied.
// PRE: f has been parsed from a form
// POST: Available is true; Image is DefaultImage when image is empty
func New(f Fields, image string) Item {
	if image == "" {
		image = DefaultImage
	}
	return Item{
		Title:       f.Title,
		Description: f.Description,
		Price:       f.Price,
		Category:    f.Category,
		Image:       image,
		Available:   true,
	}
}

// Apply merges submitted fields onto the item. A non-empty image replaces the
// current one; an empty image keeps it.
// PRE: f has been parsed from a form
// POST: editable fields overwritten; ID, Available and CreatedAt untouched
func (i *Item) Apply(f Fields, image string) {
	i.Title = f.Title
	i.Description = f.Description
	i.Price = f.Price
	i.Category = f.Category
	if image != "" {
		i.Image = image
	}
}

// Toggle flips the availability flag.
func (i *Item) Toggle() {
	i.Available = !i.Available
}

// HasUpload reports whether the item references an uploaded file rather than the placeholder.
func (i *Item) HasUpload() bool {
	return i.Image != "" && i.Image != DefaultImage
}

// Validate checks the item's invariants.
// PRE: none
// POST: returns nil if valid, error describing the first violation otherwise
func (i *Item) Validate() error {
	if strings.TrimSpace(i.Title) == "" {
		return ErrEmptyTitle
	}
	if len(i.Title) > MaxTitleLength {
		return ErrTitleTooLong
	}
	if math.IsNaN(i.Price) || math.IsInf(i.Price, 0) {
		return ErrInvalidPrice
	}
	if i.Price < 0 {
		return ErrNegativePrice
	}
	if len(i.Category) > MaxCategoryLength {
		return ErrCategoryLong
	}
	return nil
}

// ParsePrice converts a submitted price to a float.
// Both "45.50" and "45,50" are accepted.
// PRE: none
// POST: returns the parsed value or ErrInvalidPrice
func ParsePrice(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "R$")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidPrice
	}
	s = strings.Replace(s, ",", ".", 1)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrInvalidPrice
	}
	return v, nil
}

// IsValidation reports whether err is a form validation failure rather than a storage problem.
func IsValidation(err error) bool {
	for _, target := range []error{ErrEmptyTitle, ErrTitleTooLong, ErrInvalidPrice, ErrNegativePrice, ErrCategoryLong} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
