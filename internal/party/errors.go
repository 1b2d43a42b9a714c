package party

// NoticeError is a command failure surfaced to the commanding connection as a
// notice message. Texts are part of the client contract.
type NoticeError struct {
	Text string
}

func (e *NoticeError) Error() string { return e.Text }

var (
	errInvitedNotFound  = &NoticeError{Text: "The invited player doesn't exist"}
	errInvitingNotFound = &NoticeError{Text: "The inviting player doesn't exist"}
	errKickedNotFound   = &NoticeError{Text: "The kicked player doesn't exist"}
	errAlreadyInParty   = &NoticeError{Text: "You are already in a party"}
	errSelfInvite       = &NoticeError{Text: "You can't invite yourself to a party"}
	errTooManyInvites   = &NoticeError{Text: "You are sending invites too quickly"}
)
