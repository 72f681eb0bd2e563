package model

// ErrorKind classifies a DomainError so callers can map it to an outcome
// without matching on messages.
type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindNotFound
	KindConflict
	KindAuthentication
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindAuthentication:
		return "authentication"
	default:
		return "unknown"
	}
}

// DomainError represents a domain error for accounts and tasks.
type DomainError struct {
	Kind    ErrorKind
	Message string
}

func (e DomainError) Error() string {
	return e.Message
}

// Is reports whether target is the kind-only sentinel for e's kind, so that
// errors.Is(ErrTaskNotFound, ErrNotFound) holds.
func (e DomainError) Is(target error) bool {
	t, ok := target.(DomainError)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// Kind-only sentinels for errors.Is.
var (
	ErrValidation     = DomainError{Kind: KindValidation}
	ErrNotFound       = DomainError{Kind: KindNotFound}
	ErrConflict       = DomainError{Kind: KindConflict}
	ErrAuthentication = DomainError{Kind: KindAuthentication}
)

var (
	ErrRequiredFields     = DomainError{Kind: KindValidation, Message: "Required fields missing"}
	ErrInvalidDate        = DomainError{Kind: KindValidation, Message: "startDate and deadline must be dates (YYYY-MM-DD or RFC 3339)"}
	ErrInvalidStatus      = DomainError{Kind: KindValidation, Message: "status must be one of pending, in-progress, completed"}
	ErrInvalidPriority    = DomainError{Kind: KindValidation, Message: "priority must be one of low, medium, high"}
	ErrInvalidEmail       = DomainError{Kind: KindValidation, Message: "invalid email format"}
	ErrPasswordTooShort   = DomainError{Kind: KindValidation, Message: "password must be at least 6 characters"}
	ErrPasswordTooLong    = DomainError{Kind: KindValidation, Message: "password must be at most 72 bytes"}
	ErrUserNotFound       = DomainError{Kind: KindNotFound, Message: "User not found"}
	ErrTaskNotFound       = DomainError{Kind: KindNotFound, Message: "Task not found"}
	ErrUsernameTaken      = DomainError{Kind: KindConflict, Message: "username already exists"}
	ErrEmailTaken         = DomainError{Kind: KindConflict, Message: "email already exists"}
	ErrAccountExists      = DomainError{Kind: KindConflict, Message: "account already exists"}
	ErrConcurrentUpdate   = DomainError{Kind: KindConflict, Message: "account was modified concurrently, reload and retry"}
	ErrInvalidCredentials = DomainError{Kind: KindAuthentication, Message: "Invalid credentials"}
)
