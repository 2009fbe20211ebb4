// Package bolt is a storage.Store backed by a BoltDB file.
package bolt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Comcast/xcall/storage"
	"github.com/Comcast/xcall/util"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

// Bucket is the name of the bucket that holds the libraries.
var Bucket = []byte("libraries")

// NotOpen is returned by operations on a Store that isn't open.
var NotOpen = errors.New("bolt storage isn't open")

type Store struct {
	Debug    bool
	filename string
	db       *bolt.DB
}

func NewStore(filename string) (*Store, error) {
	if filename == "" {
		return nil, errors.New("no filename for bolt storage")
	}
	return &Store{
		filename: filename,
	}, nil
}

func (s *Store) Open(ctx context.Context) error {
	opts := &bolt.Options{
		Timeout: time.Second,
	}

	db, err := bolt.Open(s.filename, 0644, opts)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.filename, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(Bucket)
		return err
	})
	if err != nil {
		db.Close()
		return err
	}
	s.db = db
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) logf(op, name string) {
	if s.Debug {
		util.Logger().Debug("bolt storage", zap.String("op", op), zap.String("library", name))
	}
}

func (s *Store) Put(ctx context.Context, lib *storage.Library) error {
	s.logf("Put", lib.Name)
	if s.db == nil {
		return NotOpen
	}
	if err := storage.CheckName(lib.Name); err != nil {
		return err
	}

	l := *lib
	if l.Updated.IsZero() {
		l.Updated = time.Now().UTC()
	}
	js, err := json.Marshal(&l)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(Bucket).Put([]byte(l.Name), js)
	})
}

func (s *Store) Get(ctx context.Context, name string) (*storage.Library, error) {
	s.logf("Get", name)
	if s.db == nil {
		return nil, NotOpen
	}
	var lib *storage.Library
	err := s.db.View(func(tx *bolt.Tx) error {
		bs := tx.Bucket(Bucket).Get([]byte(name))
		if bs == nil {
			return fmt.Errorf("%s: %w", name, storage.NotFound)
		}
		lib = &storage.Library{}
		return json.Unmarshal(bs, lib)
	})
	if err != nil {
		return nil, err
	}
	return lib, nil
}

func (s *Store) List(ctx context.Context) ([]string, error) {
	s.logf("List", "")
	if s.db == nil {
		return nil, NotOpen
	}
	acc := make([]string, 0, 32)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(Bucket).Cursor()
		// Keys come back in byte order.
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			acc = append(acc, string(k))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

func (s *Store) Rem(ctx context.Context, name string) error {
	s.logf("Rem", name)
	if s.db == nil {
		return NotOpen
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(Bucket).Delete([]byte(name))
	})
}
