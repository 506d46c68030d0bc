package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/PR1MKO/iktato-backend/internal/actor"
	"github.com/PR1MKO/iktato-backend/internal/logger"
	"github.com/PR1MKO/iktato-backend/internal/repos"
	"github.com/PR1MKO/iktato-backend/internal/roles"
	"github.com/PR1MKO/iktato-backend/internal/timeutil"
	"github.com/PR1MKO/iktato-backend/internal/types"
)

type AuthService interface {
	RegisterUser(ctx context.Context, username, password, fullName, screenName, role string) (*types.User, error)
	Login(ctx context.Context, username, password string) (string, *types.User, error)
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
	AcknowledgeCookies(ctx context.Context, userID uint) error
	AccessTTL() time.Duration
}

type authService struct {
	db           *gorm.DB
	log          *logger.Logger
	userRepo     repos.UserRepo
	jwtSecretKey string
	accessTTL    time.Duration
}

func NewAuthService(db *gorm.DB, log *logger.Logger, userRepo repos.UserRepo, jwtSecretKey string, accessTTL time.Duration) AuthService {
	serviceLog := log.With("service", "AuthService")
	return &authService{
		db:           db,
		log:          serviceLog,
		userRepo:     userRepo,
		jwtSecretKey: jwtSecretKey,
		accessTTL:    accessTTL,
	}
}

func (as *authService) AccessTTL() time.Duration {
	return as.accessTTL
}

func (as *authService) RegisterUser(ctx context.Context, username, password, fullName, screenName, role string) (*types.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, fmt.Errorf("username and password are required: %w", ErrValidation)
	}
	canonical := roles.Canonicalize(role)
	if !roles.Known(canonical) {
		return nil, fmt.Errorf("unknown role %q: %w", role, ErrValidation)
	}
	exists, err := as.userRepo.UsernameExists(ctx, nil, username)
	if err != nil {
		return nil, fmt.Errorf("checking username: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("username %q taken: %w", username, ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	user := &types.User{
		Username:     username,
		FullName:     strings.TrimSpace(fullName),
		ScreenName:   strings.TrimSpace(screenName),
		PasswordHash: string(hash),
		Role:         string(canonical),
	}
	if err := as.userRepo.Create(ctx, nil, user); err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	as.log.Info("user registered", "username", username, "role", canonical)
	return user, nil
}

func (as *authService) Login(ctx context.Context, username, password string) (string, *types.User, error) {
	user, err := as.userRepo.GetByUsername(ctx, nil, strings.TrimSpace(username))
	if err != nil {
		return "", nil, fmt.Errorf("looking up user: %w", err)
	}
	if user == nil {
		return "", nil, fmt.Errorf("invalid credentials: %w", ErrForbidden)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, fmt.Errorf("invalid credentials: %w", ErrForbidden)
	}
	token, err := as.generateAccessToken(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func (as *authService) generateAccessToken(user *types.User) (string, error) {
	now := timeutil.NowUTC()
	claims := jwt.MapClaims{
		"sub":  fmt.Sprintf("%d", user.ID),
		"usr":  user.Username,
		"role": user.Role,
		"iat":  now.Unix(),
		"exp":  now.Add(as.accessTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(as.jwtSecretKey))
	if err != nil {
		return "", fmt.Errorf("signing access token: %w", err)
	}
	return signed, nil
}

// SetContextFromToken validates the bearer token, loads the user and threads
// the Actor into the context. Role canonicalization happens here, at the
// authentication boundary, so downstream code only ever sees canonical roles.
func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	parsed, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(as.jwtSecretKey), nil
	})
	if err != nil || !parsed.Valid {
		return ctx, fmt.Errorf("invalid token: %w", ErrForbidden)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return ctx, fmt.Errorf("invalid token claims: %w", ErrForbidden)
	}
	sub, _ := claims["sub"].(string)
	var userID uint
	if _, err := fmt.Sscanf(sub, "%d", &userID); err != nil || userID == 0 {
		return ctx, fmt.Errorf("invalid token subject: %w", ErrForbidden)
	}
	user, err := as.userRepo.GetByID(ctx, nil, userID)
	if err != nil {
		return ctx, fmt.Errorf("loading token user: %w", err)
	}
	if user == nil {
		return ctx, fmt.Errorf("token user %d missing: %w", userID, ErrForbidden)
	}
	act := actor.Actor{
		UserID:     user.ID,
		Username:   user.Username,
		ScreenName: user.ScreenName,
		FullName:   user.FullName,
		Role:       string(roles.Canonicalize(user.Role)),
	}
	return actor.WithActor(ctx, act), nil
}

func (as *authService) AcknowledgeCookies(ctx context.Context, userID uint) error {
	user, err := as.userRepo.GetByID(ctx, nil, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("user %d: %w", userID, ErrNotFound)
	}
	if user.CookieAckAt != nil {
		return nil
	}
	now := timeutil.NowUTC()
	user.CookieAckAt = &now
	return as.userRepo.Save(ctx, nil, user)
}
