package bondstore

import (
	"github.com/pkg/errors"
	"github.com/rigado/bthost"
	"github.com/rigado/bthost/gap"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const bondPrefix = "bond:"

// LevelStore keeps one LevelDB record per bond.
type LevelStore struct {
	db *leveldb.DB
}

// OpenLevelStore opens or creates the database at path.
func OpenLevelStore(path string) (*LevelStore, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	return &LevelStore{db: db}, nil
}

// NewLevelStore opens a database over stor, e.g. storage.NewMemStorage().
func NewLevelStore(stor storage.Storage) (*LevelStore, error) {
	db, err := leveldb.Open(stor, nil)
	if err != nil {
		return nil, errors.Wrap(err, "open bond database")
	}
	return &LevelStore{db: db}, nil
}

func levelKey(id bthost.PeerID) []byte {
	return []byte(bondPrefix + key(id))
}

func (s *LevelStore) Save(bd gap.BondingData) error {
	if err := validate(bd); err != nil {
		return err
	}
	data, err := json.Marshal(bd)
	if err != nil {
		return errors.Wrap(err, "encode bond")
	}
	return errors.Wrap(s.db.Put(levelKey(bd.Identifier), data, &opt.WriteOptions{Sync: true}), "write bond")
}

func (s *LevelStore) Load() ([]gap.BondingData, error) {
	iter := s.db.NewIterator(util.BytesPrefix([]byte(bondPrefix)), nil)
	defer iter.Release()

	var out []gap.BondingData
	for iter.Next() {
		var bd gap.BondingData
		if err := json.Unmarshal(iter.Value(), &bd); err != nil {
			return nil, errors.Wrapf(err, "parse %s", iter.Key())
		}
		out = append(out, bd)
	}
	return out, errors.Wrap(iter.Error(), "iterate bonds")
}

func (s *LevelStore) Delete(id bthost.PeerID) error {
	return errors.Wrap(s.db.Delete(levelKey(id), nil), "delete bond")
}

func (s *LevelStore) Close() error {
	return s.db.Close()
}
