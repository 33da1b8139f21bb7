package models

// User is the stored account record. Field names match the document layout,
// not the API; handlers expose their own response shapes.
type User struct {
	ID            string  `json:"-"`
	Email         string  `json:"email"`
	Username      string  `json:"username"`
	UsernameLower string  `json:"usernameLower"`
	Salt          string  `json:"salt"`
	PasswordHash  string  `json:"passwordHash"`
	CreatedAt     string  `json:"createdAt"`
	LastLoginAt   *string `json:"lastLoginAt"`
}

type CreateUserParams struct {
	Email        string
	Username     string
	Salt         string
	PasswordHash string
}

// Relationship tags a search result relative to the searching user.
// Friendship always wins over stale request records.
type Relationship string

const (
	RelationshipFriend   Relationship = "friend"
	RelationshipIncoming Relationship = "incoming-request"
	RelationshipOutgoing Relationship = "outgoing-request"
	RelationshipNone     Relationship = "none"
)

type UserSearchResult struct {
	ID           string       `json:"id"`
	Username     string       `json:"username"`
	Email        string       `json:"email"`
	Relationship Relationship `json:"relationship"`
}
