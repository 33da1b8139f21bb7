package services

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jmallard/penpal/internal/errs"
	"github.com/jmallard/penpal/internal/logging"
	"github.com/jmallard/penpal/internal/models"
)

const (
	minPasswordLength = 10
	minUsernameLength = 3
)

var emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)

type RegisterParams struct {
	Email    string
	Username string
	Password string
}

// AuthServiceInterface is the account lifecycle as consumed by handlers.
type AuthServiceInterface interface {
	Register(ctx context.Context, params RegisterParams) (*models.User, string, error)
	Login(ctx context.Context, email, password string) (*models.User, string, error)
	Profile(ctx context.Context, userID string) (*models.User, error)
}

// AuthService registers accounts under the identity reservation protocol
// and authenticates logins.
type AuthService struct {
	users  *UserService
	index  *IdentityIndex
	tokens TokenServiceInterface
	logger *logging.Logger
}

func NewAuthService(users *UserService, index *IdentityIndex, tokens TokenServiceInterface, logger *logging.Logger) *AuthService {
	if logger == nil {
		logger = logging.Default
	}
	return &AuthService{users: users, index: index, tokens: tokens, logger: logger}
}

// Register creates an account. The email reservation is taken first, then
// the username; a failure at any later step releases what was already
// reserved so the identifiers become available again.
func (s *AuthService) Register(ctx context.Context, params RegisterParams) (*models.User, string, error) {
	email := strings.ToLower(strings.TrimSpace(params.Email))
	username := strings.TrimSpace(params.Username)

	if !emailPattern.MatchString(email) {
		return nil, "", errs.Validation("a valid email is required")
	}
	if len([]rune(username)) < minUsernameLength {
		return nil, "", errs.Validation("username must be at least 3 characters")
	}
	if len(params.Password) < minPasswordLength {
		return nil, "", errs.Validation("password must be at least 10 characters")
	}

	salt, hash, err := HashPassword(params.Password)
	if err != nil {
		return nil, "", errs.Internal(err)
	}

	userID := uuid.NewString()

	committed, holder, err := s.index.ReserveEmail(ctx, email, userID)
	if err != nil {
		return nil, "", errs.Internal(err)
	}
	if !committed {
		s.logger.Debug("email already reserved", map[string]interface{}{"holder": holder})
		return nil, "", errs.ErrEmailTaken
	}

	committed, holder, err = s.index.ReserveUsername(ctx, username, userID)
	if err != nil {
		s.release(ctx, email, "")
		return nil, "", errs.Internal(err)
	}
	if !committed {
		s.release(ctx, email, "")
		s.logger.Debug("username already reserved", map[string]interface{}{"holder": holder})
		return nil, "", errs.ErrUsernameTaken
	}

	user, err := s.users.CreateWithID(ctx, userID, models.CreateUserParams{
		Email:        email,
		Username:     username,
		Salt:         salt,
		PasswordHash: hash,
	})
	if err != nil {
		s.release(ctx, email, username)
		return nil, "", errs.Internal(err)
	}

	token, err := s.tokens.Issue(user.ID, user.Email, user.Username)
	if err != nil {
		return nil, "", errs.Internal(err)
	}

	s.logger.Info("user registered", map[string]interface{}{"user_id": user.ID})
	return user, token, nil
}

// release frees reservations best-effort. A leaked reservation only blocks
// the identifier until an operator clears it, so failures are logged, not
// propagated.
func (s *AuthService) release(ctx context.Context, email, username string) {
	if email != "" {
		if err := s.index.ReleaseEmail(ctx, email); err != nil {
			s.logger.Warn("failed to release email reservation", map[string]interface{}{"error": err.Error()})
		}
	}
	if username != "" {
		if err := s.index.ReleaseUsername(ctx, username); err != nil {
			s.logger.Warn("failed to release username reservation", map[string]interface{}{"error": err.Error()})
		}
	}
}

// Login authenticates an email/password pair. Unknown accounts and wrong
// passwords are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, "", errs.Validation("email and password are required")
	}

	userID, found, err := s.index.LookupEmail(ctx, email)
	if err != nil {
		return nil, "", errs.Internal(err)
	}
	if !found {
		return nil, "", errs.ErrInvalidCredentials
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, "", errs.ErrInvalidCredentials
	}

	if !VerifyPassword(password, user.Salt, user.PasswordHash) {
		return nil, "", errs.ErrInvalidCredentials
	}

	now := time.Now()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("failed to stamp last login", map[string]interface{}{"user_id": user.ID, "error": err.Error()})
	} else {
		stamp := models.Timestamp(now)
		user.LastLoginAt = &stamp
	}

	token, err := s.tokens.Issue(user.ID, user.Email, user.Username)
	if err != nil {
		return nil, "", errs.Internal(err)
	}

	s.logger.Info("user logged in", map[string]interface{}{"user_id": user.ID})
	return user, token, nil
}

func (s *AuthService) Profile(ctx context.Context, userID string) (*models.User, error) {
	return s.users.GetByID(ctx, userID)
}
