package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/systmms/dsconf/pkg/secretstore"
)

// OverrideFileName is the override database kept in each scope root.
const OverrideFileName = "settings.db"

var overridesBucket = []byte("overrides")

// Override value type tags.
const (
	TypeString  = "string"
	TypeInt     = "int"
	TypeFloat   = "float"
	TypeBool    = "bool"
	TypeMapping = "mapping"
)

// ErrUnsupportedType is returned when storing a value that is not a
// string, integer, float, bool or mapping.
var ErrUnsupportedType = errors.New("unsupported override value type")

type overrideRecord struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// OverrideStore persists typed settings that win over every file layer.
// The database is opened per operation so several processes can share it.
type OverrideStore struct {
	path  string
	scope secretstore.Priority
}

// OpenOverrideStore creates dir/settings.db when needed.
func OpenOverrideStore(dir string, scope secretstore.Priority) (*OverrideStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create override directory %s: %w", dir, err)
	}
	s := &OverrideStore{path: filepath.Join(dir, OverrideFileName), scope: scope}

	err := s.update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(overridesBucket)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the database file.
func (s *OverrideStore) Path() string {
	return s.path
}

// Scope returns USER or APPLICATION.
func (s *OverrideStore) Scope() secretstore.Priority {
	return s.scope
}

// Get returns the value stored under key with its original type.
func (s *OverrideStore) Get(key string) (interface{}, bool, error) {
	var raw []byte
	err := s.view(func(tx *bolt.Tx) error {
		if b := tx.Bucket(overridesBucket); b != nil {
			if v := b.Get([]byte(key)); v != nil {
				raw = append([]byte(nil), v...)
			}
		}
		return nil
	})
	if err != nil || raw == nil {
		return nil, false, err
	}

	value, err := decodeOverride(raw)
	if err != nil {
		return nil, false, fmt.Errorf("override %s: %w", key, err)
	}
	return value, true, nil
}

// Put stores value under key, replacing any previous value.
func (s *OverrideStore) Put(key string, value interface{}) error {
	raw, err := encodeOverride(value)
	if err != nil {
		return fmt.Errorf("override %s: %w", key, err)
	}
	return s.update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(overridesBucket)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), raw)
	})
}

// Delete removes key. Missing keys are ignored.
func (s *OverrideStore) Delete(key string) error {
	return s.update(func(tx *bolt.Tx) error {
		b := tx.Bucket(overridesBucket)
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
}

// Keys returns every stored key in sorted order.
func (s *OverrideStore) Keys() ([]string, error) {
	var keys []string
	err := s.view(func(tx *bolt.Tx) error {
		b := tx.Bucket(overridesBucket)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	sort.Strings(keys)
	return keys, err
}

func (s *OverrideStore) view(fn func(*bolt.Tx) error) error {
	db, err := bolt.Open(s.path, 0o600, &bolt.Options{Timeout: time.Second, ReadOnly: true})
	if err != nil {
		return fmt.Errorf("failed to open override store %s: %w", s.path, err)
	}
	defer db.Close()
	return db.View(fn)
}

func (s *OverrideStore) update(fn func(*bolt.Tx) error) error {
	db, err := bolt.Open(s.path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return fmt.Errorf("failed to open override store %s: %w", s.path, err)
	}
	defer db.Close()
	return db.Update(fn)
}

func encodeOverride(value interface{}) ([]byte, error) {
	var typ string
	switch v := value.(type) {
	case string:
		typ = TypeString
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		typ = TypeInt
	case float32, float64:
		typ = TypeFloat
	case bool:
		typ = TypeBool
	case map[string]interface{}:
		typ = TypeMapping
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedType, v)
	}

	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(overrideRecord{Type: typ, Value: data})
}

func decodeOverride(raw []byte) (interface{}, error) {
	var rec overrideRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}

	var err error
	switch rec.Type {
	case TypeString:
		var v string
		err = json.Unmarshal(rec.Value, &v)
		return v, err
	case TypeInt:
		var v int
		err = json.Unmarshal(rec.Value, &v)
		return v, err
	case TypeFloat:
		var v float64
		err = json.Unmarshal(rec.Value, &v)
		return v, err
	case TypeBool:
		var v bool
		err = json.Unmarshal(rec.Value, &v)
		return v, err
	case TypeMapping:
		var v map[string]interface{}
		err = json.Unmarshal(rec.Value, &v)
		return v, err
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, rec.Type)
}
