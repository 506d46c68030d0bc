package repos

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/PR1MKO/iktato-backend/internal/logger"
	"github.com/PR1MKO/iktato-backend/internal/types"
)

// ErrDuplicateKey reports that an idempotency key was already claimed.
var ErrDuplicateKey = errors.New("idempotency key already claimed")

type IdempotencyRepo interface {
	// Claim prunes expired tokens and inserts the new one. The unique index
	// on key is the serialization point: a constraint violation means the
	// operation already ran.
	Claim(ctx context.Context, tx *gorm.DB, token *types.IdempotencyToken, ttl time.Duration) error
}

type idempotencyRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewIdempotencyRepo(db *gorm.DB, baseLog *logger.Logger) IdempotencyRepo {
	repoLog := baseLog.With("repo", "IdempotencyRepo")
	return &idempotencyRepo{db: db, log: repoLog}
}

func (ir *idempotencyRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return ir.db
}

func (ir *idempotencyRepo) Claim(ctx context.Context, tx *gorm.DB, token *types.IdempotencyToken, ttl time.Duration) error {
	conn := ir.conn(tx).WithContext(ctx)
	expiry := token.CreatedAt.Add(-ttl)
	if err := conn.
		Where("created_at < ?", expiry).
		Delete(&types.IdempotencyToken{}).Error; err != nil {
		return err
	}
	if err := conn.Create(token).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		return err
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed")
}
