package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jmallard/penpal/internal/logging"
	"github.com/jmallard/penpal/internal/store"
)

const (
	emailIndexPath    = "emailIndex"
	usernameIndexPath = "usernameIndex"
)

// pathUnsafeReplacer maps the characters the document store forbids in keys
// to underscores. Collisions after replacement are treated as the same
// identity, which is the conservative direction for uniqueness.
var pathUnsafeReplacer = strings.NewReplacer(
	".", "_",
	"#", "_",
	"$", "_",
	"[", "_",
	"]", "_",
	"/", "_",
)

// NormalizeKey folds an email or username into its index key: trimmed,
// lowercased, store-unsafe characters replaced.
func NormalizeKey(raw string) string {
	return pathUnsafeReplacer.Replace(strings.ToLower(strings.TrimSpace(raw)))
}

// IdentityIndex enforces email and username uniqueness with conditional
// writes against dedicated index documents. It also serves reverse lookups,
// falling back to a scan of the user directory for accounts that predate
// the index.
type IdentityIndex struct {
	store  store.Store
	logger *logging.Logger
}

func NewIdentityIndex(st store.Store, logger *logging.Logger) *IdentityIndex {
	if logger == nil {
		logger = logging.Default
	}
	return &IdentityIndex{store: st, logger: logger}
}

// ReserveEmail claims email for userID. committed is false when another
// account already holds it; holder then carries the owning user id.
func (ix *IdentityIndex) ReserveEmail(ctx context.Context, email, userID string) (committed bool, holder string, err error) {
	return ix.reserve(ctx, store.Join(emailIndexPath, NormalizeKey(email)), userID)
}

// ReserveUsername claims username for userID.
func (ix *IdentityIndex) ReserveUsername(ctx context.Context, username, userID string) (committed bool, holder string, err error) {
	return ix.reserve(ctx, store.Join(usernameIndexPath, NormalizeKey(username)), userID)
}

func (ix *IdentityIndex) reserve(ctx context.Context, path, userID string) (bool, string, error) {
	committed, current, err := ix.store.ConditionalSet(ctx, path, userID)
	if err != nil {
		return false, "", fmt.Errorf("reserving %s: %w", path, err)
	}
	if committed {
		return true, "", nil
	}
	var holder string
	if err := json.Unmarshal(current, &holder); err != nil {
		return false, "", fmt.Errorf("decoding %s reservation: %w", path, err)
	}
	return false, holder, nil
}

// ReleaseEmail frees a reservation taken by a registration that could not
// complete.
func (ix *IdentityIndex) ReleaseEmail(ctx context.Context, email string) error {
	return ix.store.Delete(ctx, store.Join(emailIndexPath, NormalizeKey(email)))
}

func (ix *IdentityIndex) ReleaseUsername(ctx context.Context, username string) error {
	return ix.store.Delete(ctx, store.Join(usernameIndexPath, NormalizeKey(username)))
}

// LookupEmail resolves an email to a user id via the index, scanning the
// user directory when the index has no entry.
func (ix *IdentityIndex) LookupEmail(ctx context.Context, email string) (string, bool, error) {
	return ix.lookup(ctx, emailIndexPath, NormalizeKey(email), "email", strings.ToLower(strings.TrimSpace(email)))
}

// LookupUsername resolves a username to a user id.
func (ix *IdentityIndex) LookupUsername(ctx context.Context, username string) (string, bool, error) {
	return ix.lookup(ctx, usernameIndexPath, NormalizeKey(username), "usernameLower", strings.ToLower(strings.TrimSpace(username)))
}

func (ix *IdentityIndex) lookup(ctx context.Context, indexPath, key, field, fieldValue string) (string, bool, error) {
	raw, found, err := ix.store.Read(ctx, store.Join(indexPath, key))
	if err != nil {
		return "", false, fmt.Errorf("reading %s index: %w", indexPath, err)
	}
	if found {
		var userID string
		if err := json.Unmarshal(raw, &userID); err != nil {
			return "", false, fmt.Errorf("decoding %s index entry: %w", indexPath, err)
		}
		return userID, true, nil
	}

	// Legacy fallback: accounts written before the index existed are only
	// reachable through the raw field.
	docs, err := ix.store.RangeQuery(ctx, usersPath, field, store.RangeOptions{Start: &fieldValue, End: &fieldValue, Limit: 1})
	if err != nil {
		return "", false, fmt.Errorf("scanning users by %s: %w", field, err)
	}
	if len(docs) == 0 {
		return "", false, nil
	}

	userID := docs[0].Key
	// Backfill so the next lookup is a point read. Losing the race or
	// failing here is harmless; the scan found the account either way.
	if committed, _, err := ix.store.ConditionalSet(ctx, store.Join(indexPath, key), userID); err != nil {
		ix.logger.Warn("index backfill failed", map[string]interface{}{"index": indexPath, "error": err.Error()})
	} else if committed {
		ix.logger.Debug("backfilled index entry", map[string]interface{}{"index": indexPath, "user_id": userID})
	}
	return userID, true, nil
}
