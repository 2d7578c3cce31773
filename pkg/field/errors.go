package field

import "errors"

// Errors returned by this package. They are sentinel values so callers can
// use errors.Is.
var (
	// ErrDivByZero is returned by Div and Inverse when the divisor/operand is zero.
	ErrDivByZero = errors.New("field: division by zero")
	// ErrOverflow is returned when a conversion from a wider type cannot fit the modulus.
	ErrOverflow = errors.New("field: value overflows modulus")
	// ErrInvalidDigits is returned when parsing a decimal/hex string fails.
	ErrInvalidDigits = errors.New("field: invalid digit string")
	// ErrModuloMismatch is returned by the encoded->typed bridge when tags differ.
	ErrModuloMismatch = errors.New("field: modulus tag mismatch")
	// ErrValueLength is returned by the encoded->typed bridge when the byte count is wrong.
	ErrValueLength = errors.New("field: wrong encoded value length")
	// ErrNotSafePrime is returned by the safe-prime-only dispatcher for non-safe-prime tags.
	ErrNotSafePrime = errors.New("field: modulus is not a safe prime")
)
