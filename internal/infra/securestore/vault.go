// Package securestore provides the per-device secure key-value slot.
package securestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/dgraph-io/badger/v3"
	"github.com/dgraph-io/badger/v3/options"

	"github.com/yndnr/tokpass/internal/core/domain"
	"github.com/yndnr/tokpass/internal/telemetry/logger"
)

// Badger key layout.
const (
	slotPrefix     = "slot/"
	metaMode       = "meta/mode"
	metaCipher     = "meta/cipher"
	metaSalt       = "meta/salt"
	metaCheck      = "meta/check"
	checkSlot      = "\x00check"
	checkValue     = "tokpass"
	modeDevice     = "device"
	modePassphrase = "passphrase"

	deviceKeyFile = "device.key"
	dataDir       = "data"
)

// VaultConfig configures a Vault.
type VaultConfig struct {
	// Dir holds the Badger data directory and the device key.
	Dir string

	// Passphrase, when set, derives the vault key with Argon2id instead of
	// using the device key file.
	Passphrase []byte

	// Cipher selects the AEAD. Empty picks one for the host; an existing
	// vault keeps the cipher it was created with.
	Cipher CipherType

	// SyncWrites fsyncs after every write.
	SyncWrites bool
}

// DefaultVaultConfig returns the default vault configuration.
func DefaultVaultConfig(dir string) VaultConfig {
	return VaultConfig{
		Dir:        dir,
		SyncWrites: true,
	}
}

// ErrVaultLocked is returned by OpenVault when another process holds the
// vault directory.
var ErrVaultLocked = errors.New("securestore: vault is in use by another process")

// isLockError reports whether err is Badger's directory lock failure. Badger
// wraps it with pkg/errors, so only the message identifies it.
func isLockError(err error) bool {
	return strings.Contains(err.Error(), "Cannot acquire directory lock")
}

// Vault is a Storage backed by Badger whose values are sealed with an AEAD.
type Vault struct {
	db     *badger.DB
	sealer *sealer
	logger logger.Logger
	closed atomic.Bool
}

// OpenVault opens (or creates) the vault in cfg.Dir.
func OpenVault(cfg VaultConfig, log logger.Logger) (*Vault, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("securestore: dir is required")
	}
	if log == nil {
		log = logger.Default()
	}
	log = log.With("component", "vault")

	if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("securestore: create dir: %w", err)
	}

	opts := badger.DefaultOptions(filepath.Join(cfg.Dir, dataDir)).
		WithLogger(&badgerLogger{logger: log}).
		WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithCompression(options.None).
		WithMemTableSize(4 << 20).
		WithValueThreshold(1 << 10).
		WithValueLogFileSize(16 << 20).
		WithBlockCacheSize(1 << 20)

	db, err := badger.Open(opts)
	if err != nil {
		if isLockError(err) {
			return nil, fmt.Errorf("%w: %v", ErrVaultLocked, err)
		}
		return nil, fmt.Errorf("securestore: open db: %w", err)
	}

	v := &Vault{db: db, logger: log}
	if err := v.unlock(cfg); err != nil {
		db.Close()
		return nil, err
	}

	log.Debug("vault opened", "dir", cfg.Dir, "cipher", string(v.sealer.kind))
	return v, nil
}

// unlock derives the vault key and checks it against the stored check value.
func (v *Vault) unlock(cfg VaultConfig) error {
	mode := modeDevice
	if len(cfg.Passphrase) > 0 {
		mode = modePassphrase
	}

	meta, err := v.readMeta()
	if err != nil {
		return err
	}
	fresh := meta[metaMode] == nil

	if !fresh && string(meta[metaMode]) != mode {
		return fmt.Errorf("securestore: vault was created in %s mode, configured for %s", meta[metaMode], mode)
	}

	kind := cfg.Cipher
	if stored := CipherType(meta[metaCipher]); stored != "" {
		if kind != CipherAuto && kind != stored {
			return fmt.Errorf("securestore: vault uses %s, configured for %s", stored, kind)
		}
		kind = stored
	}

	var key []byte
	salt := meta[metaSalt]
	switch mode {
	case modePassphrase:
		if salt == nil {
			if salt, err = randomBytes(saltLen); err != nil {
				return fmt.Errorf("securestore: salt: %w", err)
			}
		}
		key, err = deriveFromPassphrase(cfg.Passphrase, salt)
	default:
		var deviceKey []byte
		deviceKey, err = loadOrCreateDeviceKey(filepath.Join(cfg.Dir, deviceKeyFile), fresh)
		if err == nil {
			key, err = deriveFromDeviceKey(deviceKey)
			zero(deviceKey)
		}
	}
	if err != nil {
		return err
	}
	defer zero(key)

	s, err := newSealer(key, kind)
	if err != nil {
		return err
	}
	v.sealer = s

	if !fresh {
		if _, err := s.open(checkSlot, meta[metaCheck]); err != nil {
			return fmt.Errorf("securestore: unlock vault: %w", err)
		}
		return nil
	}

	check, err := s.seal(checkSlot, []byte(checkValue))
	if err != nil {
		return err
	}
	return v.db.Update(func(txn *badger.Txn) error {
		entries := map[string][]byte{
			metaMode:   []byte(mode),
			metaCipher: []byte(s.kind),
			metaCheck:  check,
		}
		if mode == modePassphrase {
			entries[metaSalt] = salt
		}
		for k, val := range entries {
			if err := txn.Set([]byte(k), val); err != nil {
				return err
			}
		}
		return nil
	})
}

func (v *Vault) readMeta() (map[string][]byte, error) {
	meta := make(map[string][]byte)
	err := v.db.View(func(txn *badger.Txn) error {
		for _, k := range []string{metaMode, metaCipher, metaSalt, metaCheck} {
			item, err := txn.Get([]byte(k))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if meta[k], err = item.ValueCopy(nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("securestore: read meta: %w", err)
	}
	return meta, nil
}

// loadOrCreateDeviceKey reads the device key, creating it only for a fresh
// vault. A missing key for an existing vault means its contents are lost.
func loadOrCreateDeviceKey(path string, create bool) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		return data, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("securestore: read device key: %w", err)
	}
	if !create {
		return nil, fmt.Errorf("securestore: device key %s missing for existing vault", path)
	}

	key, err := randomBytes(vaultKeyLen)
	if err != nil {
		return nil, fmt.Errorf("securestore: generate device key: %w", err)
	}
	if err := os.WriteFile(path, key, 0o600); err != nil {
		return nil, fmt.Errorf("securestore: write device key: %w", err)
	}
	return key, nil
}

// Get returns the value stored under key.
func (v *Vault) Get(ctx context.Context, key string) (string, bool, error) {
	if v.closed.Load() {
		return "", false, domain.ErrStorageClosed
	}

	var sealed []byte
	err := v.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(slotPrefix + key))
		if err != nil {
			return err
		}
		sealed, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("securestore: get %s: %w", key, err)
	}

	plaintext, err := v.sealer.open(key, sealed)
	if err != nil {
		return "", false, fmt.Errorf("securestore: get %s: %w", key, err)
	}
	return string(plaintext), true, nil
}

// Set stores value under key.
func (v *Vault) Set(ctx context.Context, key, value string) error {
	if v.closed.Load() {
		return domain.ErrStorageClosed
	}

	sealed, err := v.sealer.seal(key, []byte(value))
	if err != nil {
		return err
	}
	err = v.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(slotPrefix+key), sealed)
	})
	if err != nil {
		return fmt.Errorf("securestore: set %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Badger deletes are tombstones, so absent keys are fine.
func (v *Vault) Delete(ctx context.Context, key string) error {
	if v.closed.Load() {
		return domain.ErrStorageClosed
	}

	err := v.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(slotPrefix + key))
	})
	if err != nil {
		return fmt.Errorf("securestore: delete %s: %w", key, err)
	}
	return nil
}

// Cipher returns the AEAD in use.
func (v *Vault) Cipher() CipherType {
	return v.sealer.kind
}

// Close closes the vault. Calling Close twice is a no-op.
func (v *Vault) Close() error {
	if !v.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := v.db.Close(); err != nil {
		return fmt.Errorf("securestore: close db: %w", err)
	}
	v.logger.Debug("vault closed")
	return nil
}

// badgerLogger adapts logger.Logger to Badger's Logger interface.
// Badger is chatty at info level, so its info lines are demoted to debug.
type badgerLogger struct {
	logger logger.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
