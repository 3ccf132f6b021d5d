// Package profile is the coordinator's one window into the persistence
// layer: read-only display-name/avatar lookups used to enrich join and
// match broadcasts. Lookups are deduplicated and must never block a join
// or hold a session lock; when the row or the database is absent the
// caller gets a placeholder.
package profile

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

type Profile struct {
	FullName  string
	AvatarURL string
}

// Provider resolves a user's display profile. Implementations fall back
// to Placeholder rather than failing.
type Provider interface {
	DisplayProfile(ctx context.Context, userID string) Profile
}

// Placeholder is what a user looks like when no profile row exists.
func Placeholder(userID string) Profile {
	return Profile{FullName: "Anonymous", AvatarURL: "/avatars/default.png"}
}

const lookupTimeout = 2 * time.Second

type row struct {
	UserID    string `gorm:"column:user_id;primaryKey"`
	FullName  string `gorm:"column:full_name"`
	AvatarURL string `gorm:"column:avatar_url"`
}

func (row) TableName() string { return "profiles" }

// Store reads profiles from the document database the REST layer owns.
type Store struct {
	db     *gorm.DB
	group  singleflight.Group
	logger *zap.Logger
}

func NewStore(db *gorm.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger.Named("profile")}
}

func (s *Store) DisplayProfile(ctx context.Context, userID string) Profile {
	v, err, _ := s.group.Do(userID, func() (any, error) {
		ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
		defer cancel()

		var r row
		if err := s.db.WithContext(ctx).First(&r, "user_id = ?", userID).Error; err != nil {
			return nil, err
		}
		return Profile{FullName: r.FullName, AvatarURL: r.AvatarURL}, nil
	})
	if err != nil {
		if ctx.Err() == nil && err != gorm.ErrRecordNotFound {
			s.logger.Warn("profile lookup failed", zap.String("user", userID), zap.Error(err))
		}
		return Placeholder(userID)
	}
	return v.(Profile)
}

// Static serves fixed profiles from memory; used when no database is
// configured and throughout the tests.
type Static map[string]Profile

func (s Static) DisplayProfile(_ context.Context, userID string) Profile {
	if p, ok := s[userID]; ok {
		return p
	}
	return Placeholder(userID)
}
