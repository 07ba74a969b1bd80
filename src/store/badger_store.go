package store

import (
	"os"
	"time"

	"github.com/dgraph-io/badger"
	"github.com/sirupsen/logrus"
	"github.com/swiftcashproject/swiftnode/src/chain"
	cm "github.com/swiftcashproject/swiftnode/src/common"
)

const (
	snapshotPrefix = "snapshot"
	dumpTimeSuffix = "time"
)

// BadgerStore keeps the latest framed snapshots in a badger database. Entries
// use the same framing as the snapshot files so both are checked alike.
type BadgerStore struct {
	db     *badger.DB
	path   string
	net    [4]byte
	logger *logrus.Entry
}

// NewBadgerStore opens, or creates, the database at path.
func NewBadgerStore(path string, params *chain.Params, logger *logrus.Entry) (*BadgerStore, error) {
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}
	if err := os.MkdirAll(path, 0700); err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(path).
		WithSyncWrites(false).
		WithTruncate(true).
		WithLogger(logger.WithField("prefix", "badger"))

	handle, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &BadgerStore{
		db:     handle,
		path:   path,
		net:    params.Net,
		logger: logger,
	}, nil
}

// StorePath returns the database directory.
func (s *BadgerStore) StorePath() string {
	return s.path
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// Put stores in under magic, along with the time of the write.
func (s *BadgerStore) Put(magic string, in interface{}) error {
	data, err := encodeSnapshot(magic, s.net, in)
	if err != nil {
		return err
	}
	stamp, err := time.Now().UTC().MarshalBinary()
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(snapshotKey(magic), data); err != nil {
			return err
		}
		return txn.Set(dumpTimeKey(magic), stamp)
	})
}

// Get decodes the snapshot stored under magic into out. A missing entry is
// reported as a KeyNotFound StoreErr.
func (s *BadgerStore) Get(magic string, out interface{}) (ReadResult, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(snapshotKey(magic))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return FileError, mapError(err, "Snapshot", magic)
	}
	return decodeSnapshot(data, magic, s.net, out), nil
}

// DumpTime returns when the snapshot under magic was last written.
func (s *BadgerStore) DumpTime(magic string) (time.Time, error) {
	var t time.Time
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(dumpTimeKey(magic))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return t.UnmarshalBinary(val)
		})
	})
	if err != nil {
		return time.Time{}, mapError(err, "DumpTime", magic)
	}
	return t, nil
}

func snapshotKey(magic string) []byte {
	return []byte(snapshotPrefix + "_" + magic)
}

func dumpTimeKey(magic string) []byte {
	return []byte(snapshotPrefix + "_" + magic + "_" + dumpTimeSuffix)
}

func mapError(err error, name, key string) error {
	if isDBKeyNotFound(err) {
		return cm.NewStoreErr(name, cm.KeyNotFound, key)
	}
	return err
}

func isDBKeyNotFound(err error) bool {
	return err == badger.ErrKeyNotFound
}
