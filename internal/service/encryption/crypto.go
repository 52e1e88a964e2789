package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/scrypt"

	"hotel-ops-backend/internal/domain"
)

const (
	// DefaultCost - параметр N для scrypt
	DefaultCost = 1 << 15

	saltSize = 16
	keySize  = 32

	// maxCachedKeys ограничивает кэш производных ключей
	maxCachedKeys = 1024
)

// Vault шифрует и расшифровывает наборы секретов провайдеров.
// Ключ выводится через scrypt из общего секрета и случайной соли каждого набора.
type Vault struct {
	secret []byte
	cost   int

	mu   sync.Mutex
	keys map[string][]byte
}

// Option настраивает Vault
type Option func(*Vault)

// WithCost задает параметр N для scrypt (степень двойки)
func WithCost(n int) Option {
	return func(v *Vault) {
		if n > 1 && n&(n-1) == 0 {
			v.cost = n
		}
	}
}

// NewVault создает Vault с заданным секретом процесса
func NewVault(secret string, opts ...Option) *Vault {
	v := &Vault{
		secret: []byte(secret),
		cost:   DefaultCost,
		keys:   make(map[string][]byte),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Encrypt сериализует набор секретов и шифрует его AES-256-GCM
func (v *Vault) Encrypt(bundle domain.CredentialBundle) (domain.EncryptedCredentials, error) {
	plaintext, err := json.Marshal(bundle)
	if err != nil {
		return domain.EncryptedCredentials{}, fmt.Errorf("failed to marshal credentials: %w", err)
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return domain.EncryptedCredentials{}, fmt.Errorf("failed to generate salt: %w", err)
	}

	gcm, err := v.aead(salt)
	if err != nil {
		return domain.EncryptedCredentials{}, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return domain.EncryptedCredentials{}, fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	return domain.EncryptedCredentials{
		Encrypted: hex.EncodeToString(ciphertext),
		IV:        hex.EncodeToString(nonce),
		Salt:      hex.EncodeToString(salt),
	}, nil
}

// Decrypt расшифровывает набор секретов. Любое повреждение данных дает domain.ErrDecryption.
func (v *Vault) Decrypt(enc domain.EncryptedCredentials) (domain.CredentialBundle, error) {
	if enc.IV == "" {
		return nil, fmt.Errorf("%w: missing iv", domain.ErrDecryption)
	}
	if enc.Salt == "" {
		return nil, fmt.Errorf("%w: missing salt", domain.ErrDecryption)
	}

	nonce, err := hex.DecodeString(enc.IV)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed iv", domain.ErrDecryption)
	}
	salt, err := hex.DecodeString(enc.Salt)
	if err != nil || len(salt) != saltSize {
		return nil, fmt.Errorf("%w: malformed salt", domain.ErrDecryption)
	}
	ciphertext, err := hex.DecodeString(enc.Encrypted)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed ciphertext", domain.ErrDecryption)
	}

	gcm, err := v.aead(salt)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("%w: malformed iv", domain.ErrDecryption)
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecryption, err)
	}

	var bundle domain.CredentialBundle
	if err := json.Unmarshal(plaintext, &bundle); err != nil {
		return nil, fmt.Errorf("%w: invalid bundle", domain.ErrDecryption)
	}

	return bundle, nil
}

// Redact заменяет все значения набора на "***"
func Redact(bundle domain.CredentialBundle) map[string]string {
	out := make(map[string]string, len(bundle))
	for k := range bundle {
		out[k] = "***"
	}
	return out
}

func (v *Vault) aead(salt []byte) (cipher.AEAD, error) {
	key, err := v.deriveKey(salt)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return gcm, nil
}

// deriveKey кэширует ключи по соли: scrypt намеренно медленный
func (v *Vault) deriveKey(salt []byte) ([]byte, error) {
	cacheKey := string(salt)

	v.mu.Lock()
	key, ok := v.keys[cacheKey]
	v.mu.Unlock()
	if ok {
		return key, nil
	}

	key, err := scrypt.Key(v.secret, salt, v.cost, 8, 1, keySize)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}

	v.mu.Lock()
	if len(v.keys) >= maxCachedKeys {
		for k := range v.keys {
			delete(v.keys, k)
			break
		}
	}
	v.keys[cacheKey] = key
	v.mu.Unlock()

	return key, nil
}
