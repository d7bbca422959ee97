package campaign

import (
	"errors"
	"fmt"

	"github.com/garnizeh/talentmail/internal/ats"
)

var (
	// ErrConfig means a required setting, such as the test recipient or a
	// template id, is missing.
	ErrConfig = errors.New("configuration error")
	// ErrAuth means the ATS integration is not authorized or its token refresh failed.
	ErrAuth = errors.New("ats not authorized")
	// ErrInvalidState means a transition was attempted from the wrong state.
	ErrInvalidState = errors.New("invalid state")
	// ErrNoMaterial means the source pool was empty at generate time.
	ErrNoMaterial = errors.New("no campaign material")
	// ErrNoRecipients means the opt-in list was empty at send time.
	ErrNoRecipients = errors.New("no recipients")
)

// Result is the outcome of a workflow action. Failures carry the classified
// error in Err so callers can map it.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Err     error  `json:"-"`
}

func ok(msg string, data any) Result {
	return Result{Success: true, Message: msg, Data: data}
}

func failed(err error, data any) Result {
	err = classify(err)
	return Result{Success: false, Message: err.Error(), Data: data, Err: err}
}

// classify folds ATS authorization failures into ErrAuth.
func classify(err error) error {
	if err == nil || errors.Is(err, ErrAuth) {
		return err
	}
	if errors.Is(err, ats.ErrNotAuthorized) {
		return fmt.Errorf("%w: %w", ErrAuth, err)
	}
	return err
}
