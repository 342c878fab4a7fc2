package pool

import (
	"errors"
	"fmt"

	"github.com/sasyevadam01/sl-enterprise-sub002/core/request"
)

// ErrAlreadyTaken is the specific conflict returned when a take call loses
// the claim race. It unwraps to request.ErrConflict.
var ErrAlreadyTaken = fmt.Errorf("request already taken: %w", request.ErrConflict)

// ErrValidation is returned when the caller omitted or malformed a
// required input field.
var ErrValidation = errors.New("invalid input")

// ErrNotOwner is returned when a release or complete comes from an
// operator the request is not assigned to.
var ErrNotOwner = errors.New("request assigned to another operator")

// ErrInvalidState is returned when the operation is not valid for the
// request's current status.
var ErrInvalidState = errors.New("operation invalid for current request status")

// ErrCodeMismatch is returned when the supplied confirmation code does not
// match the one on the request. The request state is unchanged.
var ErrCodeMismatch = errors.New("confirmation code mismatch")
