// Package keyring provides secure storage for gateway access keys.
// It uses the system keyring when available, falling back to
// encrypted local file storage when not.
package keyring

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/yllada/cilpea-vpn/common"
	"github.com/zalando/go-keyring"
	"golang.org/x/crypto/argon2"
)

const (
	// serviceName is the identifier used in the system keyring.
	serviceName = "cilpea-vpn"

	// Argon2id parameters for the local file key.
	kdfTime    = 1
	kdfMemory  = 64 * 1024
	kdfThreads = 4
	kdfKeyLen  = 32
)

// Common errors returned by keyring operations.
var (
	ErrNotFound     = common.ErrCredentialsNotFound
	ErrEmptyProfile = errors.New("profile ID cannot be empty")
	ErrEmptySecret  = errors.New("secret cannot be empty")
)

// Store keeps one secret per gateway profile. It implements
// common.CredentialStore and is safe for concurrent use.
type Store struct {
	dir  string
	once sync.Once

	mu       sync.RWMutex
	useLocal bool
	local    map[string]string
	file     string
	key      []byte
}

var (
	defaultStore *Store
	defaultOnce  sync.Once
)

// Default returns the process-wide store rooted in the config directory.
func Default() *Store {
	defaultOnce.Do(func() {
		defaultStore = New("")
	})
	return defaultStore
}

// New returns a store whose encrypted fallback file lives in dir.
// An empty dir selects the application config directory. The backend is
// chosen on first use.
func New(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) init() {
	s.once.Do(func() {
		// Try system keyring first
		testKey := serviceName + "-test-init"
		if err := keyring.Set(serviceName, testKey, "test"); err == nil {
			_ = keyring.Delete(serviceName, testKey)
			return
		}
		common.LogDebug("System keyring unavailable, using encrypted file storage")
		s.initLocal()
	})
}

// initLocal switches to file storage. Callers hold no lock.
func (s *Store) initLocal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.useLocal {
		return
	}

	dir := s.dir
	if dir == "" {
		var err error
		if dir, err = common.GetConfigDir(); err != nil {
			dir = filepath.Join(os.TempDir(), common.ConfigDirName)
		}
	}
	_ = os.MkdirAll(dir, 0700)

	s.file = filepath.Join(dir, common.CredentialsFileName)
	s.key = deriveKey()
	s.local = make(map[string]string)
	s.useLocal = true
	s.loadLocal()
}

// deriveKey builds the file key from machine-specific data.
func deriveKey() []byte {
	hostname, _ := os.Hostname()
	keyData := fmt.Sprintf("%s-%s-%s-%d", serviceName, hostname, getMachineID(), os.Getuid())
	return argon2.IDKey([]byte(keyData), []byte(common.AppID), kdfTime, kdfMemory, kdfThreads, kdfKeyLen)
}

func getMachineID() string {
	data, err := os.ReadFile("/etc/machine-id")
	if err == nil {
		return strings.TrimSpace(string(data))
	}
	return "default-machine-id"
}

func (s *Store) loadLocal() {
	data, err := os.ReadFile(s.file)
	if err != nil {
		return
	}

	decrypted, err := decrypt(s.key, data)
	if err != nil {
		common.LogWarn("Ignoring unreadable credentials file: %v", err)
		return
	}

	_ = json.Unmarshal(decrypted, &s.local)
}

// saveLocal persists the map. Callers hold s.mu.
func (s *Store) saveLocal() error {
	data, err := json.Marshal(s.local)
	if err != nil {
		return err
	}

	encrypted, err := encrypt(s.key, data)
	if err != nil {
		return err
	}

	if err := os.WriteFile(s.file, encrypted, 0600); err != nil {
		return fmt.Errorf("%w: %v", common.ErrCredentialStorage, err)
	}
	return nil
}

func encrypt(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)
	return []byte(base64.StdEncoding.EncodeToString(ciphertext)), nil
}

func decrypt(key, data []byte) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(string(data))
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

func (s *Store) isLocal() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.useLocal
}

// Backend names the active storage backend: "system" or "file".
func (s *Store) Backend() string {
	s.init()
	if s.isLocal() {
		return "file"
	}
	return "system"
}

// Store saves the secret for a gateway profile.
func (s *Store) Store(profileID, secret string) error {
	if profileID == "" {
		return ErrEmptyProfile
	}
	if secret == "" {
		return ErrEmptySecret
	}
	s.init()

	if !s.isLocal() {
		err := keyring.Set(serviceName, profileID, secret)
		if err == nil {
			return nil
		}
		common.LogWarn("System keyring write failed, falling back to file storage: %v", err)
		s.initLocal()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.local[profileID] = secret
	return s.saveLocal()
}

// Get retrieves the secret for a gateway profile.
func (s *Store) Get(profileID string) (string, error) {
	if profileID == "" {
		return "", ErrEmptyProfile
	}
	s.init()

	if !s.isLocal() {
		secret, err := keyring.Get(serviceName, profileID)
		if err == nil {
			return secret, nil
		}
		if !errors.Is(err, keyring.ErrNotFound) {
			common.LogDebug("System keyring read failed: %v", err)
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if secret, ok := s.local[profileID]; ok {
		return secret, nil
	}
	return "", ErrNotFound
}

// Delete removes the secret for a gateway profile. Deleting a missing
// secret is not an error.
func (s *Store) Delete(profileID string) error {
	if profileID == "" {
		return ErrEmptyProfile
	}
	s.init()

	if !s.isLocal() {
		if err := keyring.Delete(serviceName, profileID); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			common.LogDebug("System keyring delete failed: %v", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.local[profileID]; !ok {
		return nil
	}
	delete(s.local, profileID)
	return s.saveLocal()
}

// Exists checks if a secret exists for a gateway profile.
func (s *Store) Exists(profileID string) bool {
	_, err := s.Get(profileID)
	return err == nil
}
