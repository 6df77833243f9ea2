// Package session holds the identity of the viewer driving the chat components.
// A Session is created explicitly per HTTP request or socket connection and
// handed to the components that need it; nothing is kept in package state.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/database"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/models"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/pkg/logger"
)

var ErrUnknownKind = errors.New("unknown user kind")

// Session is the signed-in viewer. The zero value is anonymous.
type Session struct {
	UserID      string
	Kind        models.Role
	DisplayName string
	AvatarURL   string
}

// Anonymous returns a session with no user
func Anonymous() *Session {
	return &Session{}
}

func (s *Session) Authenticated() bool {
	return s != nil && s.UserID != ""
}

// HasKnownKind reports whether the session resolved to a customer, vendor or admin
func (s *Session) HasKnownKind() bool {
	return s.Authenticated() && s.Kind.Valid()
}

// Profile is the public identity of a user of any kind
type Profile struct {
	UserID      string      `json:"userId"`
	Kind        models.Role `json:"kind"`
	DisplayName string      `json:"displayName"`
	AvatarURL   string      `json:"avatarUrl"`
}

// ProfileSource is the backend the directory resolves profiles from
type ProfileSource interface {
	GetCustomer(ctx context.Context, id string) (*models.Customer, error)
	GetVendorProfile(ctx context.Context, id string) (*models.VendorProfile, error)
}

type lookupFunc func(ctx context.Context, userID string) (Profile, error)

// Directory resolves profiles with one lookup per kind and caches them in Redis when available
type Directory struct {
	lookups map[models.Role]lookupFunc
	ttl     time.Duration
	log     zerolog.Logger
}

// SupportName is shown for platform staff
const SupportName = "Overboard Support"

func NewDirectory(src ProfileSource, cacheTTL time.Duration) *Directory {
	d := &Directory{ttl: cacheTTL, log: logger.Component("session")}
	d.lookups = map[models.Role]lookupFunc{
		models.RoleCustomer: func(ctx context.Context, id string) (Profile, error) {
			c, err := src.GetCustomer(ctx, id)
			if err != nil {
				return Profile{}, err
			}
			return Profile{UserID: c.ID, Kind: models.RoleCustomer, DisplayName: c.Name, AvatarURL: c.AvatarURL}, nil
		},
		models.RoleVendor: func(ctx context.Context, id string) (Profile, error) {
			v, err := src.GetVendorProfile(ctx, id)
			if err != nil {
				return Profile{}, err
			}
			return Profile{UserID: v.ID, Kind: models.RoleVendor, DisplayName: v.BusinessName, AvatarURL: v.LogoURL}, nil
		},
		models.RoleAdmin: func(_ context.Context, id string) (Profile, error) {
			return Profile{UserID: id, Kind: models.RoleAdmin, DisplayName: SupportName}, nil
		},
	}
	return d
}

func cacheKey(kind models.Role, userID string) string {
	return fmt.Sprintf("profile:%s:%s", kind, userID)
}

// ForgetProfile drops the cached profile so the next Lookup reads the table
func ForgetProfile(ctx context.Context, kind models.Role, userID string) error {
	return database.CacheInvalidate(ctx, cacheKey(kind, userID))
}

// Lookup resolves userID in the table for kind
func (d *Directory) Lookup(ctx context.Context, kind models.Role, userID string) (Profile, error) {
	lookup, ok := d.lookups[kind]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	var p Profile
	err := database.CacheGet(ctx, cacheKey(kind, userID), &p)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, redis.Nil) {
		d.log.Warn().Err(err).Str("user_id", userID).Msg("profile cache read failed")
	}

	p, err = lookup(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	if err := database.CacheSet(ctx, cacheKey(kind, userID), p, d.ttl); err != nil {
		d.log.Warn().Err(err).Str("user_id", userID).Msg("profile cache write failed")
	}
	return p, nil
}

// Start builds the session for an authenticated user. A missing profile row does
// not fail the session; the viewer keeps their ID and kind without a display name.
func (d *Directory) Start(ctx context.Context, userID string, kind models.Role) (*Session, error) {
	if userID == "" {
		return Anonymous(), nil
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	s := &Session{UserID: userID, Kind: kind}
	p, err := d.Lookup(ctx, kind, userID)
	if err != nil {
		d.log.Warn().Err(err).Str("user_id", userID).Str("kind", string(kind)).Msg("profile lookup failed")
		return s, nil
	}
	s.DisplayName = p.DisplayName
	s.AvatarURL = p.AvatarURL
	return s, nil
}
