package auth

import "errors"

// Kind classifies authentication failures so callers can branch without
// string sniffing. The set is closed.
type Kind string

const (
	KindNoSession           Kind = "NoSession"
	KindNoToken             Kind = "NoToken"
	KindInteractionRequired Kind = "InteractionRequired"
	KindProviderError       Kind = "ProviderError"
)

// Error is the tagged authentication error.
type Error struct {
	Kind   Kind
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Detail
}

// KindOf returns the Kind of err, or "" if err is not an auth error.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// IsInteractionRequired reports whether err means the user must
// re-authenticate interactively.
func IsInteractionRequired(err error) bool {
	return KindOf(err) == KindInteractionRequired
}
