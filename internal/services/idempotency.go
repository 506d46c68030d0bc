package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/PR1MKO/iktato-backend/internal/logger"
	"github.com/PR1MKO/iktato-backend/internal/repos"
	"github.com/PR1MKO/iktato-backend/internal/timeutil"
	"github.com/PR1MKO/iktato-backend/internal/types"
)

// IdempotencyService guards side-effecting POSTs. Claim must be called inside
// the same transaction as the side effect so a rollback releases the key.
type IdempotencyService interface {
	ComputeKey(endpoint string, userID, caseID uint, body map[string]string, extra string) string
	Claim(ctx context.Context, tx *gorm.DB, key, route string, userID, caseID uint) error
}

type idempotencyService struct {
	db   *gorm.DB
	log  *logger.Logger
	repo repos.IdempotencyRepo
	ttl  time.Duration
}

func NewIdempotencyService(db *gorm.DB, log *logger.Logger, repo repos.IdempotencyRepo, ttl time.Duration) IdempotencyService {
	serviceLog := log.With("service", "IdempotencyService")
	if ttl <= 0 {
		ttl = 300 * time.Second
	}
	return &idempotencyService{
		db:   db,
		log:  serviceLog,
		repo: repo,
		ttl:  ttl,
	}
}

// ComputeKey hashes endpoint|user_id|case_id|canonicalized_body|extra. The
// body is canonicalized as compact JSON with sorted keys so that form field
// order never changes the key.
func (is *idempotencyService) ComputeKey(endpoint string, userID, caseID uint, body map[string]string, extra string) string {
	keys := make([]string, 0, len(body))
	for k := range body {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var canon strings.Builder
	canon.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			canon.WriteByte(',')
		}
		kj, _ := json.Marshal(k)
		vj, _ := json.Marshal(body[k])
		canon.Write(kj)
		canon.WriteByte(':')
		canon.Write(vj)
	}
	canon.WriteByte('}')

	payload := fmt.Sprintf("%s|%d|%d|%s|%s", endpoint, userID, caseID, canon.String(), extra)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

func (is *idempotencyService) Claim(ctx context.Context, tx *gorm.DB, key, route string, userID, caseID uint) error {
	token := &types.IdempotencyToken{
		Key:       key,
		Route:     route,
		CreatedAt: timeutil.NowUTC(),
	}
	if userID != 0 {
		token.UserID = &userID
	}
	if caseID != 0 {
		token.CaseID = &caseID
	}
	err := is.repo.Claim(ctx, tx, token, is.ttl)
	if errors.Is(err, repos.ErrDuplicateKey) {
		is.log.Info("idempotency replay", "route", route, "user_id", userID, "case_id", caseID)
		return fmt.Errorf("route %s: %w", route, ErrDuplicate)
	}
	return err
}
