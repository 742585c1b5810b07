package token

import "errors"

var (
	// ErrUnauthorized indicates the caller does not hold the minter role.
	ErrUnauthorized = errors.New("token: caller lacks minter role")
	// ErrInvalidReceiver indicates the recipient is the zero address.
	ErrInvalidReceiver = errors.New("token: invalid receiver")
	// ErrInvalidAmount indicates a nil or negative amount.
	ErrInvalidAmount = errors.New("token: invalid amount")
	// ErrInsufficientBalance indicates the sender balance cannot cover the move.
	ErrInsufficientBalance = errors.New("token: insufficient balance")
	// ErrInsufficientAllowance indicates the spender allowance cannot cover the move.
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")

	errNilState = errors.New("token: state not configured")
)
