package validation

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// UsernameRegex validates account name format
	UsernameRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

	// PhoneRegex validates phone number format
	PhoneRegex = regexp.MustCompile(`^\+?[0-9 ()-]{6,20}$`)
)

// ValidateUsername validates account name
func ValidateUsername(username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("username is required")
	}
	if len(username) < 3 {
		return fmt.Errorf("username must be at least 3 characters")
	}
	if len(username) > 50 {
		return fmt.Errorf("username is too long (max 50 characters)")
	}
	if !UsernameRegex.MatchString(username) {
		return fmt.Errorf("username contains invalid characters (only letters, numbers, ., _, - allowed)")
	}
	return nil
}

// ValidatePassword validates password
func ValidatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("password is required")
	}
	if len(password) < 6 {
		return fmt.Errorf("password must be at least 6 characters")
	}
	if len(password) > 128 {
		return fmt.Errorf("password is too long (max 128 characters)")
	}
	return nil
}

// ValidateName validates a display name component
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("name is required")
	}
	if len(name) > 100 {
		return fmt.Errorf("name is too long (max 100 characters)")
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("name contains invalid characters")
	}
	return nil
}

// ValidatePhoneNumber validates phone number format. Empty is allowed.
func ValidatePhoneNumber(phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil
	}
	if !PhoneRegex.MatchString(phone) {
		return fmt.Errorf("invalid phone number format")
	}
	return nil
}

// ValidateAttachment validates an attachment's name, media type and content
func ValidateAttachment(name, mediaType, contentBase64 string, maxBytes int64) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("attachment name is required")
	}
	if len(name) > 255 {
		return fmt.Errorf("attachment name is too long (max 255 characters)")
	}
	if mediaType == "" || !strings.Contains(mediaType, "/") {
		return fmt.Errorf("invalid attachment media type")
	}
	if contentBase64 == "" {
		return fmt.Errorf("attachment content is required")
	}
	decodedLen := base64.StdEncoding.DecodedLen(len(contentBase64))
	if maxBytes > 0 && int64(decodedLen) > maxBytes {
		return fmt.Errorf("attachment is too large (max %d bytes)", maxBytes)
	}
	if _, err := base64.StdEncoding.DecodeString(contentBase64); err != nil {
		return fmt.Errorf("attachment content is not valid base64")
	}
	return nil
}
