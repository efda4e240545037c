package typesystem

import "fmt"

// MismatchError is returned when two types cannot be related.
type MismatchError struct {
	Msg string
}

func (e *MismatchError) Error() string {
	return e.Msg
}

func errUnify(t1, t2 TypeRef) error {
	return &MismatchError{Msg: fmt.Sprintf("cannot unify %s with %s", t1, t2)}
}

func errUnifyMsg(t1, t2 TypeRef, msg string) error {
	return &MismatchError{Msg: fmt.Sprintf("%s: %s vs %s", msg, t1, t2)}
}

func errMismatch(msg string) error {
	return &MismatchError{Msg: msg}
}

func errUnifyContext(ctx string, err error) error {
	return fmt.Errorf("in %s: %w", ctx, err)
}
