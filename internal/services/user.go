package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmallard/penpal/internal/errs"
	"github.com/jmallard/penpal/internal/models"
	"github.com/jmallard/penpal/internal/store"
)

const (
	usersPath = "users"

	// searchLimit caps each prefix scan of the directory.
	searchLimit = 10

	// minSearchChars is the shortest query worth scanning for.
	minSearchChars = 2

	// prefixUpperBound sorts after every string sharing the queried prefix,
	// turning an inclusive range into a prefix match.
	prefixUpperBound = ""
)

// UserServiceInterface is the user directory as consumed by handlers and
// the other services.
type UserServiceInterface interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	Search(ctx context.Context, query string) ([]models.User, error)
}

type UserService struct {
	store store.Store
}

func NewUserService(st store.Store) *UserService {
	return &UserService{store: st}
}

// CreateWithID writes a new account document under a caller-chosen id. The
// id is chosen before the identity reservations so the index entries can
// point at it.
func (s *UserService) CreateWithID(ctx context.Context, id string, params models.CreateUserParams) (*models.User, error) {
	user := &models.User{
		ID:            id,
		Email:         strings.ToLower(strings.TrimSpace(params.Email)),
		Username:      strings.TrimSpace(params.Username),
		UsernameLower: strings.ToLower(strings.TrimSpace(params.Username)),
		Salt:          params.Salt,
		PasswordHash:  params.PasswordHash,
		CreatedAt:     models.Timestamp(time.Now()),
	}
	if err := s.store.Write(ctx, store.Join(usersPath, id), user); err != nil {
		return nil, fmt.Errorf("writing user %s: %w", id, err)
	}
	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	raw, found, err := s.store.Read(ctx, store.Join(usersPath, id))
	if err != nil {
		return nil, fmt.Errorf("reading user %s: %w", id, err)
	}
	if !found {
		return nil, errs.ErrUserNotFound
	}
	return decodeUser(id, raw)
}

// UpdateLastLogin stamps the account's last successful login.
func (s *UserService) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return s.store.Update(ctx, store.Join(usersPath, id), map[string]any{
		"lastLoginAt": models.Timestamp(at),
	})
}

// Search matches users whose username or email starts with the query,
// case-insensitively. Queries shorter than two characters return nothing.
func (s *UserService) Search(ctx context.Context, query string) ([]models.User, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if len([]rune(q)) < minSearchChars {
		return nil, nil
	}

	upper := q + prefixUpperBound
	opts := store.RangeOptions{Start: &q, End: &upper, Limit: searchLimit}

	byUsername, err := s.store.RangeQuery(ctx, usersPath, "usernameLower", opts)
	if err != nil {
		return nil, fmt.Errorf("searching users by username: %w", err)
	}
	byEmail, err := s.store.RangeQuery(ctx, usersPath, "email", opts)
	if err != nil {
		return nil, fmt.Errorf("searching users by email: %w", err)
	}

	seen := make(map[string]bool)
	results := make([]models.User, 0, len(byUsername)+len(byEmail))
	for _, doc := range append(byUsername, byEmail...) {
		if seen[doc.Key] {
			continue
		}
		seen[doc.Key] = true
		user, err := decodeUser(doc.Key, doc.Value)
		if err != nil {
			return nil, err
		}
		results = append(results, *user)
	}
	return results, nil
}

func decodeUser(id string, raw json.RawMessage) (*models.User, error) {
	var user models.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, fmt.Errorf("decoding user %s: %w", id, err)
	}
	user.ID = id
	return &user, nil
}
