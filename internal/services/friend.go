package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jmallard/penpal/internal/errs"
	"github.com/jmallard/penpal/internal/logging"
	"github.com/jmallard/penpal/internal/models"
	"github.com/jmallard/penpal/internal/store"
)

const (
	friendRequestsPath = "friendRequests"
	requestIndexPath   = "requestIndex"
	friendsPath        = "friends"
)

// SendRequestOutcome reports what SendRequest actually did; at most one of
// the flags is set. All three flagged outcomes are successes from the
// caller's point of view.
type SendRequestOutcome struct {
	RequestID      string
	AlreadyFriends bool
	AlreadyPending bool
	AutoAccepted   bool
}

// RespondOutcome reports an accept or decline. AlreadyProcessed means the
// request had already reached a terminal state; the stored status wins.
type RespondOutcome struct {
	Status           models.FriendRequestStatus
	AlreadyProcessed bool
}

// PendingRequest is a request joined with the counterparty's directory
// entry for display.
type PendingRequest struct {
	Request models.FriendRequest
	User    *models.User
}

// FriendServiceInterface is the friendship surface consumed by handlers
// and the chat boundary.
type FriendServiceInterface interface {
	SendRequest(ctx context.Context, from, to string) (*SendRequestOutcome, error)
	Accept(ctx context.Context, requestID, actingUserID string) (*RespondOutcome, error)
	Decline(ctx context.Context, requestID, actingUserID string) (*RespondOutcome, error)
	ListIncoming(ctx context.Context, userID string) ([]PendingRequest, error)
	ListOutgoing(ctx context.Context, userID string) ([]PendingRequest, error)
	Friends(ctx context.Context, userID string) ([]models.User, error)
	AreFriends(ctx context.Context, userA, userB string) (bool, error)
	SearchUsers(ctx context.Context, selfID, query string) ([]models.UserSearchResult, error)
}

type FriendService struct {
	store  store.Store
	users  *UserService
	logger *logging.Logger
}

func NewFriendService(st store.Store, users *UserService, logger *logging.Logger) *FriendService {
	if logger == nil {
		logger = logging.Default
	}
	return &FriendService{store: st, users: users, logger: logger}
}

// friendSet reads one side's adjacency document.
func (s *FriendService) friendSet(ctx context.Context, userID string) (map[string]bool, error) {
	raw, found, err := s.store.Read(ctx, store.Join(friendsPath, userID))
	if err != nil {
		return nil, fmt.Errorf("reading friends of %s: %w", userID, err)
	}
	if !found {
		return map[string]bool{}, nil
	}
	var set map[string]bool
	if err := json.Unmarshal(raw, &set); err != nil {
		return nil, fmt.Errorf("decoding friends of %s: %w", userID, err)
	}
	return set, nil
}

// AreFriends checks both adjacency directions. The two edge writes on
// accept are not atomic, so a crash can leave one side missing; either
// direction present counts as friends.
func (s *FriendService) AreFriends(ctx context.Context, userA, userB string) (bool, error) {
	setA, err := s.friendSet(ctx, userA)
	if err != nil {
		return false, err
	}
	if setA[userB] {
		return true, nil
	}
	setB, err := s.friendSet(ctx, userB)
	if err != nil {
		return false, err
	}
	return setB[userA], nil
}

func (s *FriendService) getRequest(ctx context.Context, requestID string) (*models.FriendRequest, bool, error) {
	raw, found, err := s.store.Read(ctx, store.Join(friendRequestsPath, requestID))
	if err != nil {
		return nil, false, fmt.Errorf("reading request %s: %w", requestID, err)
	}
	if !found {
		return nil, false, nil
	}
	var req models.FriendRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, false, fmt.Errorf("decoding request %s: %w", requestID, err)
	}
	req.ID = requestID
	return &req, true, nil
}

// SendRequest creates a pending request from one user to another. A single
// conditional write on the pair's index entry decides races: concurrent
// same-direction sends collapse to one pending request, and a send that
// crosses an existing request in the opposite direction accepts it instead
// of creating a duplicate.
func (s *FriendService) SendRequest(ctx context.Context, from, to string) (*SendRequestOutcome, error) {
	if from == to {
		return nil, errs.ErrSelfRequest
	}
	if _, err := s.users.GetByID(ctx, to); err != nil {
		return nil, err
	}

	friends, err := s.AreFriends(ctx, from, to)
	if err != nil {
		return nil, errs.Internal(err)
	}
	if friends {
		return &SendRequestOutcome{AlreadyFriends: true}, nil
	}

	pairKey := models.PairKey(from, to)
	requestID := uuid.NewString()

	committed, current, err := s.store.ConditionalSet(ctx, store.Join(requestIndexPath, pairKey), requestID)
	if err != nil {
		return nil, errs.Internal(err)
	}
	if committed {
		req := models.FriendRequest{
			From:      from,
			To:        to,
			Status:    models.FriendRequestPending,
			CreatedAt: models.Timestamp(time.Now()),
			PairKey:   pairKey,
		}
		if err := s.store.Write(ctx, store.Join(friendRequestsPath, requestID), req); err != nil {
			if relErr := s.store.Delete(ctx, store.Join(requestIndexPath, pairKey)); relErr != nil {
				s.logger.Warn("failed to release pair reservation", map[string]interface{}{"pair_key": pairKey, "error": relErr.Error()})
			}
			return nil, errs.Internal(fmt.Errorf("writing request: %w", err))
		}
		s.logger.Info("friend request sent", map[string]interface{}{"request_id": requestID, "from": from, "to": to})
		return &SendRequestOutcome{RequestID: requestID}, nil
	}

	// Lost the reservation: resolve against the request it points at.
	var existingID string
	if err := json.Unmarshal(current, &existingID); err != nil {
		return nil, errs.Internal(fmt.Errorf("decoding pair reservation %s: %w", pairKey, err))
	}

	existing, found, err := s.getRequest(ctx, existingID)
	if err != nil {
		return nil, errs.Internal(err)
	}
	if !found {
		// The winner holds the reservation but has not written the request
		// document yet. Treat it as already in flight.
		return &SendRequestOutcome{AlreadyPending: true, RequestID: existingID}, nil
	}

	switch {
	case existing.Status == models.FriendRequestPending && existing.From == from:
		return &SendRequestOutcome{AlreadyPending: true, RequestID: existing.ID}, nil
	case existing.Status == models.FriendRequestPending && existing.To == from:
		// The other user asked first; this send is the answer.
		outcome, err := s.respond(ctx, existing, from, models.FriendRequestAccepted)
		if err != nil {
			return nil, err
		}
		if outcome.AlreadyProcessed && outcome.Status != models.FriendRequestAccepted {
			return &SendRequestOutcome{AlreadyPending: true, RequestID: existing.ID}, nil
		}
		return &SendRequestOutcome{AutoAccepted: true, RequestID: existing.ID}, nil
	case existing.Status == models.FriendRequestAccepted:
		return &SendRequestOutcome{AlreadyFriends: true, RequestID: existing.ID}, nil
	default:
		// A terminal request left its reservation behind (crash between the
		// transition and the release). Clear it and try once more.
		if err := s.store.Delete(ctx, store.Join(requestIndexPath, pairKey)); err != nil {
			return nil, errs.Internal(fmt.Errorf("clearing stale reservation: %w", err))
		}
		s.logger.Warn("cleared stale pair reservation", map[string]interface{}{"pair_key": pairKey, "request_id": existingID})
		return s.SendRequest(ctx, from, to)
	}
}

func (s *FriendService) Accept(ctx context.Context, requestID, actingUserID string) (*RespondOutcome, error) {
	return s.loadAndRespond(ctx, requestID, actingUserID, models.FriendRequestAccepted)
}

func (s *FriendService) Decline(ctx context.Context, requestID, actingUserID string) (*RespondOutcome, error) {
	return s.loadAndRespond(ctx, requestID, actingUserID, models.FriendRequestDeclined)
}

func (s *FriendService) loadAndRespond(ctx context.Context, requestID, actingUserID string, to models.FriendRequestStatus) (*RespondOutcome, error) {
	req, found, err := s.getRequest(ctx, requestID)
	if err != nil {
		return nil, errs.Internal(err)
	}
	if !found {
		return nil, errs.ErrRequestNotFound
	}
	if req.To != actingUserID {
		return nil, errs.ErrNotRecipient
	}
	return s.respond(ctx, req, actingUserID, to)
}

// respond moves a pending request to a terminal state. Responding to a
// request that already reached one is reported, not failed, so retries and
// double-clicks are harmless.
func (s *FriendService) respond(ctx context.Context, req *models.FriendRequest, actingUserID string, to models.FriendRequestStatus) (*RespondOutcome, error) {
	if !req.Status.CanTransition(to) {
		return &RespondOutcome{Status: req.Status, AlreadyProcessed: true}, nil
	}

	respondedAt := models.Timestamp(time.Now())
	err := s.store.Update(ctx, store.Join(friendRequestsPath, req.ID), map[string]any{
		"status":      to,
		"respondedAt": respondedAt,
	})
	if err != nil {
		return nil, errs.Internal(fmt.Errorf("updating request %s: %w", req.ID, err))
	}

	if to == models.FriendRequestAccepted {
		if err := s.markFriendship(ctx, req.From, req.To); err != nil {
			return nil, errs.Internal(err)
		}
	}

	// Release the pair reservation so a later request between the two users
	// is possible again (after a decline) and the index does not accumulate
	// terminal entries.
	pairKey := req.PairKey
	if pairKey == "" {
		pairKey = models.PairKey(req.From, req.To)
	}
	if err := s.store.Delete(ctx, store.Join(requestIndexPath, pairKey)); err != nil {
		s.logger.Warn("failed to release pair reservation", map[string]interface{}{"pair_key": pairKey, "error": err.Error()})
	}

	s.logger.Info("friend request resolved", map[string]interface{}{"request_id": req.ID, "status": string(to), "acting_user": actingUserID})
	return &RespondOutcome{Status: to}, nil
}

// markFriendship writes both adjacency edges. The writes are separate
// documents, so a failure between them is repaired by AreFriends reading
// either direction.
func (s *FriendService) markFriendship(ctx context.Context, userA, userB string) error {
	if err := s.store.Update(ctx, store.Join(friendsPath, userA), map[string]any{userB: true}); err != nil {
		return fmt.Errorf("marking friendship for %s: %w", userA, err)
	}
	if err := s.store.Update(ctx, store.Join(friendsPath, userB), map[string]any{userA: true}); err != nil {
		return fmt.Errorf("marking friendship for %s: %w", userB, err)
	}
	return nil
}

// ListIncoming returns the pending requests addressed to userID, newest
// first, joined with the sender's profile.
func (s *FriendService) ListIncoming(ctx context.Context, userID string) ([]PendingRequest, error) {
	return s.listPending(ctx, "to", userID, func(r models.FriendRequest) string { return r.From })
}

// ListOutgoing returns the pending requests userID has sent.
func (s *FriendService) ListOutgoing(ctx context.Context, userID string) ([]PendingRequest, error) {
	return s.listPending(ctx, "from", userID, func(r models.FriendRequest) string { return r.To })
}

func (s *FriendService) listPending(ctx context.Context, field, userID string, counterparty func(models.FriendRequest) string) ([]PendingRequest, error) {
	docs, err := s.store.RangeQuery(ctx, friendRequestsPath, field, store.RangeOptions{Start: &userID, End: &userID})
	if err != nil {
		return nil, errs.Internal(fmt.Errorf("listing requests by %s: %w", field, err))
	}

	out := make([]PendingRequest, 0, len(docs))
	for _, doc := range docs {
		var req models.FriendRequest
		if err := json.Unmarshal(doc.Value, &req); err != nil {
			return nil, errs.Internal(fmt.Errorf("decoding request %s: %w", doc.Key, err))
		}
		req.ID = doc.Key
		if req.Status != models.FriendRequestPending {
			continue
		}
		user, err := s.users.GetByID(ctx, counterparty(req))
		if err != nil {
			// A request pointing at a deleted account is display noise, not
			// an error.
			s.logger.Warn("skipping request with missing counterparty", map[string]interface{}{"request_id": req.ID})
			continue
		}
		out = append(out, PendingRequest{Request: req, User: user})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Request.CreatedAt > out[j].Request.CreatedAt
	})
	return out, nil
}

// Friends returns userID's friends sorted by username.
func (s *FriendService) Friends(ctx context.Context, userID string) ([]models.User, error) {
	set, err := s.friendSet(ctx, userID)
	if err != nil {
		return nil, errs.Internal(err)
	}

	out := make([]models.User, 0, len(set))
	for friendID := range set {
		if !set[friendID] {
			continue
		}
		user, err := s.users.GetByID(ctx, friendID)
		if err != nil {
			s.logger.Warn("skipping missing friend", map[string]interface{}{"friend_id": friendID})
			continue
		}
		out = append(out, *user)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].UsernameLower < out[j].UsernameLower
	})
	return out, nil
}

// SearchUsers runs a directory search and tags each hit with its
// relationship to the searching user. Friendship wins over any request
// record, since an accepted request may survive with stale state.
func (s *FriendService) SearchUsers(ctx context.Context, selfID, query string) ([]models.UserSearchResult, error) {
	matches, err := s.users.Search(ctx, query)
	if err != nil {
		return nil, errs.Internal(err)
	}
	if len(matches) == 0 {
		return []models.UserSearchResult{}, nil
	}

	friends, err := s.friendSet(ctx, selfID)
	if err != nil {
		return nil, errs.Internal(err)
	}
	incoming, err := s.ListIncoming(ctx, selfID)
	if err != nil {
		return nil, err
	}
	outgoing, err := s.ListOutgoing(ctx, selfID)
	if err != nil {
		return nil, err
	}

	incomingFrom := make(map[string]bool, len(incoming))
	for _, pr := range incoming {
		incomingFrom[pr.Request.From] = true
	}
	outgoingTo := make(map[string]bool, len(outgoing))
	for _, pr := range outgoing {
		outgoingTo[pr.Request.To] = true
	}

	results := make([]models.UserSearchResult, 0, len(matches))
	for _, user := range matches {
		if user.ID == selfID {
			continue
		}
		rel := models.RelationshipNone
		switch {
		case friends[user.ID]:
			rel = models.RelationshipFriend
		case incomingFrom[user.ID]:
			rel = models.RelationshipIncoming
		case outgoingTo[user.ID]:
			rel = models.RelationshipOutgoing
		}
		results = append(results, models.UserSearchResult{
			ID:           user.ID,
			Username:     user.Username,
			Email:        user.Email,
			Relationship: rel,
		})
	}
	return results, nil
}
