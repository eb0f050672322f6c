package anonymize

import (
	"crypto/rand"
	"fmt"
)

// SaltSource records where a salt came from
type SaltSource int

const (
	// SourceEnvProvided marks a salt supplied by the caller (e.g. read from
	// an environment variable by the CLI)
	SourceEnvProvided SaltSource = iota
	// SourceGenerated marks a salt generated for this process
	SourceGenerated
)

func (s SaltSource) String() string {
	if s == SourceGenerated {
		return "generated"
	}
	return "env-provided"
}

// Salt is the secret mixed into every hash input. It is threaded explicitly
// through the engine; there is no process-wide salt state.
type Salt struct {
	Value  []byte
	Source SaltSource
}

// NewSalt wraps a caller-provided salt string
func NewSalt(value string) Salt {
	return Salt{Value: []byte(value), Source: SourceEnvProvided}
}

// GenerateSalt creates a random 32-byte salt
func GenerateSalt() (Salt, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return Salt{}, fmt.Errorf("failed to generate salt: %w", err)
	}
	// Hex-encode so the salt survives being round-tripped through env vars
	encoded := fmt.Sprintf("%x", buf)
	return Salt{Value: []byte(encoded), Source: SourceGenerated}, nil
}

// StrengthScore classifies salt strength
type StrengthScore int

const (
	StrengthWeak StrengthScore = iota
	StrengthModerate
	StrengthStrong
)

func (s StrengthScore) String() string {
	switch s {
	case StrengthStrong:
		return "strong"
	case StrengthModerate:
		return "moderate"
	default:
		return "weak"
	}
}

// EvaluateStrength scores a salt from its length and character-class
// diversity. Under 16 bytes is always weak; 32 bytes or more with at least
// three character classes is strong; everything in between is moderate.
func EvaluateStrength(salt Salt) StrengthScore {
	length := len(salt.Value)
	if length < 16 {
		return StrengthWeak
	}

	var lower, upper, digit, other bool
	for _, b := range salt.Value {
		switch {
		case b >= 'a' && b <= 'z':
			lower = true
		case b >= 'A' && b <= 'Z':
			upper = true
		case b >= '0' && b <= '9':
			digit = true
		default:
			other = true
		}
	}

	classes := 0
	for _, present := range []bool{lower, upper, digit, other} {
		if present {
			classes++
		}
	}

	if length >= 32 && classes >= 3 {
		return StrengthStrong
	}
	return StrengthModerate
}

// IsAcceptable reports whether a salt score may be used for hashing. In
// strict mode a weak salt is rejected; otherwise anything passes (the engine
// logs a warning for weak salts).
func IsAcceptable(score StrengthScore, strict bool) bool {
	if strict {
		return score > StrengthWeak
	}
	return true
}
