package delivery

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/makabra/mayorista-api/internal/cache"
	"github.com/makabra/mayorista-api/internal/common"
	"github.com/makabra/mayorista-api/internal/obs"
)

var codePattern = regexp.MustCompile(`^\d{7,8}$`)

var (
	// ErrBadCode is returned for codes that are not 7 or 8 digits.
	ErrBadCode = common.NewAppError("BAD_REQUEST", "delivery code must have 7 or 8 digits", http.StatusBadRequest, nil)
	// ErrNotFound is returned when no valid profile matches the code.
	ErrNotFound = common.NewAppError("NOT_FOUND", "delivery code not found", http.StatusNotFound, nil)
)

// Profile is a validated delivery customer.
type Profile struct {
	Code    string `json:"code" validate:"required,numeric,min=7,max=8"`
	Name    string `json:"name" validate:"required"`
	Address string `json:"address" validate:"required"`
	Phone   string `json:"phone" validate:"required"`
}

// SanitizeCode keeps only the digits of raw.
func SanitizeCode(raw string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			return r
		}
		return -1
	}, raw)
}

// ValidCode reports whether code is 7 or 8 digits.
func ValidCode(code string) bool { return codePattern.MatchString(code) }

// ProfileFrom trims e and reports whether it forms a complete profile.
func ProfileFrom(e Entry) (Profile, bool) {
	p := Profile{
		Code:    SanitizeCode(e.Code),
		Name:    strings.TrimSpace(e.Name),
		Address: strings.TrimSpace(e.Address),
		Phone:   strings.TrimSpace(e.Phone),
	}
	if !ValidCode(p.Code) || common.Validator().Struct(p) != nil {
		return Profile{}, false
	}
	return p, true
}

// Service validates delivery codes against the directory.
type Service struct {
	directory Directory
	cache     *cache.JSON
	exposePII bool
	logger    zerolog.Logger
}

// NewService constructs a Service. cache may be nil.
func NewService(directory Directory, c *cache.JSON, exposePII bool, logger zerolog.Logger) (*Service, error) {
	if directory == nil {
		return nil, errors.New("delivery: directory is required")
	}
	return &Service{
		directory: directory,
		cache:     c,
		exposePII: exposePII,
		logger:    obs.Component(logger, "delivery"),
	}, nil
}

// Validate resolves raw to a delivery profile.
func (s *Service) Validate(ctx context.Context, raw string) (Profile, error) {
	code := SanitizeCode(raw)
	masked := common.MaskTail(code, 3)
	if !ValidCode(code) {
		obs.Inc(obs.DeliveryValidationsTotal, "bad_request")
		return Profile{}, ErrBadCode
	}

	entries, err := s.entries(ctx)
	if err != nil {
		obs.Inc(obs.DeliveryValidationsTotal, "error")
		s.logger.Error().Err(err).Str("code", masked).Msg("delivery validation failed")
		return Profile{}, common.NewAppError("INTERNAL_ERROR", "could not validate the delivery code", http.StatusInternalServerError, err)
	}

	for _, e := range entries {
		if SanitizeCode(e.Code) != code {
			continue
		}
		profile, ok := ProfileFrom(e)
		if !ok {
			break
		}
		if !s.exposePII {
			profile.Phone = common.MaskTail(profile.Phone, 3)
		}
		obs.Inc(obs.DeliveryValidationsTotal, "valid")
		s.logger.Info().Str("code", masked).Msg("delivery code validated")
		return profile, nil
	}
	obs.Inc(obs.DeliveryValidationsTotal, "not_found")
	s.logger.Info().Str("code", masked).Msg("delivery code not found")
	return Profile{}, ErrNotFound
}

func (s *Service) entries(ctx context.Context) ([]Entry, error) {
	key := cache.KeyDeliveryDirectory()
	var cached []Entry
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.logger.Warn().Err(err).Msg("delivery cache read failed")
	}
	if found {
		return cached, nil
	}
	entries, err := s.directory.Load(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, entries); err != nil {
		s.logger.Warn().Err(err).Msg("delivery cache write failed")
	}
	return entries, nil
}
