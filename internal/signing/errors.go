package signing

import (
	"errors"
	"fmt"
)

var (
	// ErrConfigurationMissing is returned when a required CI secret or the keystore blob is absent.
	ErrConfigurationMissing = errors.New("signing configuration missing")
	// ErrInvalidKeystore is returned when the keystore blob cannot be decoded into keystore bytes.
	ErrInvalidKeystore = errors.New("keystore blob is not valid base64")
	// ErrInvalidProperties is returned when an existing keystore properties file cannot be read.
	ErrInvalidProperties = errors.New("keystore properties file is invalid")
	// ErrIncompleteCredentials is returned by consumers that need all four signing fields.
	ErrIncompleteCredentials = errors.New("signing credentials are incomplete")
)

// MissingError names the secret that was not provided.
type MissingError struct {
	Item string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("%s secret not found", e.Item)
}

// Unwrap lets errors.Is match ErrConfigurationMissing.
func (e *MissingError) Unwrap() error {
	return ErrConfigurationMissing
}

func missing(item string) error {
	return &MissingError{Item: item}
}
