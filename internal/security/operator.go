package security

import (
	"golang.org/x/crypto/bcrypt"
)

// OperatorKey verifies the shared key operators use for administrative
// triggers when they do not hold an admin token.
type OperatorKey struct {
	hash []byte
}

// NewOperatorKey takes the bcrypt hash of the key. An empty hash disables
// operator keys entirely.
func NewOperatorKey(hash string) *OperatorKey {
	return &OperatorKey{hash: []byte(hash)}
}

func (k *OperatorKey) Enabled() bool {
	return k != nil && len(k.hash) > 0
}

func (k *OperatorKey) Verify(key string) bool {
	if !k.Enabled() || key == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(k.hash, []byte(key)) == nil
}

// HashOperatorKey produces the value stored in admin.operator_key_hash.
func HashOperatorKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
