package anonymize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
)

// TokenVault owns the bidirectional mapping between original values and
// opaque tokens for one anonymization run. The mapping is injective (distinct
// values never share a token) and total (every tokenized value has exactly
// one entry). Insert-if-absent is atomic under the vault lock, so concurrent
// tokenization of overlapping values across columns stays consistent.
type TokenVault struct {
	mu      sync.RWMutex
	prefix  string
	counter int
	tokens  map[string]string // value hash -> token
	values  map[string]string // token -> original value
}

// VaultEntry is one persisted vault mapping
type VaultEntry struct {
	ValueHash string `json:"value_hash" db:"value_hash"`
	Token     string `json:"token" db:"token"`
	Value     string `json:"value" db:"original_value"`
}

// NewTokenVault creates an empty vault. An empty prefix defaults to "TOK_".
func NewTokenVault(prefix string) *TokenVault {
	if prefix == "" {
		prefix = "TOK_"
	}
	return &TokenVault{
		prefix: prefix,
		tokens: make(map[string]string),
		values: make(map[string]string),
	}
}

// Tokenize returns the token for a value, generating and recording a new one
// on first sight
func (v *TokenVault) Tokenize(value string) string {
	key := hashKey(value)

	v.mu.RLock()
	token, ok := v.tokens[key]
	v.mu.RUnlock()
	if ok {
		return token
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	// Re-check under the write lock
	if token, ok := v.tokens[key]; ok {
		return token
	}

	v.counter++
	token = fmt.Sprintf("%s%08d", v.prefix, v.counter)
	v.tokens[key] = token
	v.values[token] = value
	return token
}

// Detokenize recovers the original value for a token issued by this vault
func (v *TokenVault) Detokenize(token string) (string, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	value, ok := v.values[token]
	if !ok {
		return "", &DetokenizeError{Token: token}
	}
	return value, nil
}

// Len returns the number of vault entries
func (v *TokenVault) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.values)
}

// Entries snapshots the vault for persistence
func (v *TokenVault) Entries() []VaultEntry {
	v.mu.RLock()
	defer v.mu.RUnlock()

	entries := make([]VaultEntry, 0, len(v.tokens))
	for key, token := range v.tokens {
		entries = append(entries, VaultEntry{
			ValueHash: key,
			Token:     token,
			Value:     v.values[token],
		})
	}
	return entries
}

// Restore loads persisted entries into the vault, advancing the token counter
// past every restored sequential token
func (v *TokenVault) Restore(entries []VaultEntry) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, e := range entries {
		if existing, ok := v.tokens[e.ValueHash]; ok && existing != e.Token {
			return fmt.Errorf("vault restore conflict: hash %s maps to both %s and %s",
				e.ValueHash, existing, e.Token)
		}
		v.tokens[e.ValueHash] = e.Token
		v.values[e.Token] = e.Value

		var n int
		if _, err := fmt.Sscanf(e.Token, v.prefix+"%d", &n); err == nil && n > v.counter {
			v.counter = n
		}
	}
	return nil
}

// hashKey derives the vault lookup key for a value
func hashKey(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
