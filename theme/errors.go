package theme

import "errors"

var (
	// ErrUnknownTheme is returned when a theme id is not registered.
	ErrUnknownTheme = errors.New("theme: unknown theme")

	// ErrInvalidToken is returned when a token value is not a safe CSS
	// colour or gradient, or the token name is not in the catalogue.
	ErrInvalidToken = errors.New("theme: invalid token")

	// ErrInvalidSheet is returned by Sheet.Validate.
	ErrInvalidSheet = errors.New("theme: invalid sheet")
)
