/*
Package randx provides functions for generating cryptographically secure random numbers and unique identifiers.

It is used for chat message ids, mock provider identities and the random passwords given to
accounts created through social sign-in.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

const (
	// Base62Chars defines the character set used for Base62 encoding (0-9, A-Z, a-z).
	Base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// Base62Len is the total number of characters in the Base62 character set (62).
	Base62Len = int64(len(Base62Chars))

	// SecretLength is the length of generated throwaway passwords.
	SecretLength = 22
)

// Base62 generates a Base62 string of the given length using crypto/rand.
func Base62(length int) (string, error) {
	result := make([]byte, length)

	for i := range length {
		num, err := rand.Int(rand.Reader, big.NewInt(Base62Len))
		if err != nil {
			return "", fmt.Errorf("failed to generate random number for base62 string: %v", err)
		}

		result[i] = Base62Chars[num.Int64()]
	}

	return string(result), nil
}

// Number returns a uniformly random integer in [0, limit).
func Number(limit int64) (int64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(limit))
	if err != nil {
		return 0, fmt.Errorf("failed to generate random number: %v", err)
	}
	return n.Int64(), nil
}

// Secret returns a random password for accounts that never sign in with one.
func Secret() (string, error) {
	return Base62(SecretLength)
}

// MessageID generates a standard UUID v4 string to serve as a unique identifier for a message.
func MessageID() string {
	return uuid.New().String()
}
