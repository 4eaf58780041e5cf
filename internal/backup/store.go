package backup

import (
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	bolt "go.etcd.io/bbolt"
	"gopkg.in/op/go-logging.v1"

	"confide/internal/crypto"
	"confide/internal/domain"
	"confide/internal/util/memzero"
)

var keypairsBucket = []byte("keypairs")

// ErrNotFound is returned when no backup exists for the user.
var ErrNotFound = errors.New("no backup for user")

// record is the plaintext structure sealed inside an envelope.
type record struct {
	Version   int    `cbor:"version"`
	UserID    string `cbor:"user_id"`
	Public    []byte `cbor:"public"`
	Private   []byte `cbor:"private"`
	CreatedAt int64  `cbor:"created_at"` // epoch ms
}

// Store persists passphrase-sealed key pair backups in a bolt database.
type Store struct {
	db  *bolt.DB
	log *logging.Logger
}

// Open creates or opens the backup database at path.
func Open(path string, log *logging.Logger) (*Store, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("backup: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(keypairsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("backup: init %s: %w", path, err)
	}
	return &Store{db: db, log: log}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Backup seals kp under passphrase and stores it for userID, replacing any
// prior backup.
func (s *Store) Backup(userID string, kp domain.KeyPair, passphrase string) error {
	if userID == "" {
		return fmt.Errorf("backup: empty user id")
	}
	if !crypto.VerifyKeyPair(kp) {
		return fmt.Errorf("backup: key pair fails verification")
	}

	raw, err := cbor.Marshal(record{
		Version:   1,
		UserID:    userID,
		Public:    kp.Public.Slice(),
		Private:   kp.Private.Slice(),
		CreatedAt: time.Now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("backup: encode: %w", err)
	}
	defer memzero.Zero(raw)

	N, r, p := scryptParamsDefault()
	blob, err := seal(passphrase, raw, N, r, p)
	if err != nil {
		return fmt.Errorf("backup: seal: %w", err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(keypairsBucket).Put([]byte(userID), blob)
	})
	if err != nil {
		return fmt.Errorf("backup: store: %w", err)
	}
	s.log.Debugf("key pair backed up for %q", userID)
	return nil
}

// Restore opens the backup for userID with passphrase and returns the key
// pair after verifying it.
func (s *Store) Restore(userID, passphrase string) (domain.KeyPair, error) {
	blob, err := s.ExportRaw(userID)
	if err != nil {
		return domain.KeyPair{}, err
	}
	return unseal(blob, passphrase)
}

// Delete removes the backup for userID. Unknown users are a no-op.
func (s *Store) Delete(userID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(keypairsBucket).Delete([]byte(userID))
	})
}

// ExportRaw returns the sealed blob for userID, suitable for copying to
// external media. The blob stays protected by its passphrase.
func (s *Store) ExportRaw(userID string) ([]byte, error) {
	var blob []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(keypairsBucket).Get([]byte(userID))
		if v == nil {
			return ErrNotFound
		}
		// Copy; bolt memory is only valid inside the transaction.
		blob = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return blob, nil
}

// ImportRaw installs a sealed blob for userID after checking that
// passphrase opens it and that it holds a consistent key pair.
func (s *Store) ImportRaw(userID string, blob []byte, passphrase string) error {
	if userID == "" {
		return fmt.Errorf("backup: empty user id")
	}
	if _, err := unseal(blob, passphrase); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(keypairsBucket).Put([]byte(userID), blob)
	})
	if err != nil {
		return fmt.Errorf("backup: store: %w", err)
	}
	s.log.Debugf("key pair backup imported for %q", userID)
	return nil
}

// unseal opens a sealed blob and validates the key pair inside it.
func unseal(blob []byte, passphrase string) (domain.KeyPair, error) {
	raw, err := open(passphrase, blob)
	if err != nil {
		return domain.KeyPair{}, err
	}
	defer memzero.Zero(raw)

	var rec record
	if err := cbor.Unmarshal(raw, &rec); err != nil {
		return domain.KeyPair{}, fmt.Errorf("backup: decode: %w", err)
	}
	if len(rec.Public) != 32 || len(rec.Private) != 32 {
		return domain.KeyPair{}, fmt.Errorf("backup: malformed key material")
	}
	kp := domain.KeyPair{
		Public:  domain.MustPublicKey(rec.Public),
		Private: domain.MustPrivateKey(rec.Private),
	}
	memzero.Zero(rec.Private)
	if !crypto.VerifyKeyPair(kp) {
		return domain.KeyPair{}, fmt.Errorf("backup: restored key pair fails verification")
	}
	return kp, nil
}
