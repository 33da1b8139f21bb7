package models

import (
	"sort"
	"strings"
)

type FriendRequestStatus string

const (
	FriendRequestPending  FriendRequestStatus = "pending"
	FriendRequestAccepted FriendRequestStatus = "accepted"
	FriendRequestDeclined FriendRequestStatus = "declined"
)

func (s FriendRequestStatus) Valid() bool {
	switch s {
	case FriendRequestPending, FriendRequestAccepted, FriendRequestDeclined:
		return true
	}
	return false
}

// statusTransitions is the closed transition table: pending moves once to a
// terminal state, terminal states never move.
var statusTransitions = map[FriendRequestStatus][]FriendRequestStatus{
	FriendRequestPending: {FriendRequestAccepted, FriendRequestDeclined},
}

func (s FriendRequestStatus) CanTransition(to FriendRequestStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

type FriendRequest struct {
	ID          string              `json:"-"`
	From        string              `json:"from"`
	To          string              `json:"to"`
	Status      FriendRequestStatus `json:"status"`
	CreatedAt   string              `json:"createdAt"`
	RespondedAt *string             `json:"respondedAt"`
	PairKey     string              `json:"pairKey"`
}

// PairKey is the order-independent identifier for a user pair, used to find
// any request between the two regardless of direction.
func PairKey(userA, userB string) string {
	pair := []string{userA, userB}
	sort.Strings(pair)
	return strings.Join(pair, ":")
}
