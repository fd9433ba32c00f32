package history

import (
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/makabra/mayorista-api/internal/common"
)

const (
	previewMax   = 300
	maxPerClient = 50
	fallbackTab  = "Cliente-SinCodigo"
)

var customerKeyPattern = regexp.MustCompile(`^C-\d{5,8}$`)

// ErrInvalid marks an entry rejected before it reaches a store.
var ErrInvalid = errors.New("history: invalid order")

// Item is one line of a recorded order.
type Item struct {
	Name             string `json:"name" validate:"required,max=200"`
	Qty              int    `json:"qty" validate:"min=1"`
	UnitPriceRounded int64  `json:"unitPriceRounded" validate:"min=0"`
	SubtotalRounded  int64  `json:"subtotalRounded" validate:"min=0"`
}

// Entry is a recorded order.
type Entry struct {
	CreatedAt       time.Time `json:"createdAt"`
	OrderID         string    `json:"orderId" validate:"required,max=64"`
	CustomerKey     string    `json:"customerKey" validate:"required"`
	CustomerLabel   string    `json:"customerLabel" validate:"max=120"`
	TotalRounded    int64     `json:"totalRounded" validate:"min=0"`
	HasConsultables bool      `json:"hasConsultables"`
	Items           []Item    `json:"items" validate:"max=200,dive"`
	MessagePreview  string    `json:"messagePreview"`
}

// ValidCustomerKey reports whether key is "C-" followed by 5 to 8 digits.
func ValidCustomerKey(key string) bool {
	return customerKeyPattern.MatchString(strings.TrimSpace(key))
}

// Normalize trims fields, applies defaults, and validates e.
func Normalize(e Entry, now time.Time) (Entry, error) {
	e.OrderID = strings.TrimSpace(e.OrderID)
	e.CustomerKey = strings.TrimSpace(e.CustomerKey)
	e.CustomerLabel = strings.TrimSpace(e.CustomerLabel)
	if e.CustomerLabel == "" {
		e.CustomerLabel = e.CustomerKey
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.CreatedAt = e.CreatedAt.UTC()
	if runes := []rune(e.MessagePreview); len(runes) > previewMax {
		e.MessagePreview = string(runes[:previewMax])
	}
	if e.Items == nil {
		e.Items = []Item{}
	}

	if !ValidCustomerKey(e.CustomerKey) {
		return Entry{}, common.NewAppError("INVALID_ORDER", "customerKey must look like C-12345", http.StatusBadRequest, ErrInvalid)
	}
	if err := common.Validator().Struct(e); err != nil {
		return Entry{}, common.NewAppError("INVALID_ORDER", "invalid order", http.StatusBadRequest, errors.Join(ErrInvalid, err)).
			WithDetails(common.ValidationDetails(err))
	}
	return e, nil
}
