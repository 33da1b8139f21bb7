package errs

var (
	ErrEmailTaken         = New(CodeEmailTaken, "an account with this email already exists")
	ErrUsernameTaken      = New(CodeUsernameTaken, "username is already taken")
	ErrUserNotFound       = New(CodeUserNotFound, "user not found")
	ErrInvalidCredentials = New(CodeUnauthenticated, "invalid credentials")

	ErrSelfRequest     = New(CodeSelfRequest, "cannot send a friend request to yourself")
	ErrRequestNotFound = New(CodeRequestNotFound, "friend request not found")
	ErrNotRecipient    = New(CodeNotRecipient, "only the recipient can respond to this request")
	ErrNotFriends      = New(CodeNotFriends, "you can only chat with friends")

	ErrConversationNotFound   = New(CodeConversationNotFound, "conversation not found")
	ErrMessageBodyRequired    = New(CodeMessageBodyRequired, "message body required")
	ErrInvalidImage           = New(CodeInvalidImage, "image payload is not valid")
	ErrImageTooLarge          = New(CodeImageTooLarge, "image exceeds the maximum allowed size")
	ErrUnsupportedMessageType = New(CodeUnsupportedMessageType, "unsupported message type")
)
