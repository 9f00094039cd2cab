package bondstore

import (
	"io/ioutil"
	"os"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/rigado/bthost"
	"github.com/rigado/bthost/gap"
)

// FileStore keeps every bond in one JSON file, rewritten on each change.
type FileStore struct {
	filename string
	lock     sync.RWMutex
}

func NewFileStore(filename string) *FileStore {
	return &FileStore{filename: filename}
}

func (fs *FileStore) Save(bd gap.BondingData) error {
	if err := validate(bd); err != nil {
		return err
	}
	fs.lock.Lock()
	defer fs.lock.Unlock()

	bonds, err := fs.loadExisting()
	if err != nil {
		return err
	}
	bonds[key(bd.Identifier)] = bd
	return fs.storeBonds(bonds)
}

func (fs *FileStore) Load() ([]gap.BondingData, error) {
	fs.lock.RLock()
	defer fs.lock.RUnlock()

	bonds, err := fs.loadExisting()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(bonds))
	for k := range bonds {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]gap.BondingData, 0, len(keys))
	for _, k := range keys {
		out = append(out, bonds[k])
	}
	return out, nil
}

func (fs *FileStore) Delete(id bthost.PeerID) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	bonds, err := fs.loadExisting()
	if err != nil {
		return err
	}
	if _, ok := bonds[key(id)]; !ok {
		return nil
	}
	delete(bonds, key(id))
	return fs.storeBonds(bonds)
}

// Clear removes the file.
func (fs *FileStore) Clear() error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	err := os.Remove(fs.filename)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (fs *FileStore) Close() error { return nil }

func (fs *FileStore) loadExisting() (map[string]gap.BondingData, error) {
	in, err := ioutil.ReadFile(fs.filename)
	if os.IsNotExist(err) {
		return map[string]gap.BondingData{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read bonds")
	}

	bonds := map[string]gap.BondingData{}
	if len(in) == 0 {
		return bonds, nil
	}
	if err := json.Unmarshal(in, &bonds); err != nil {
		return nil, errors.Wrapf(err, "parse %s", fs.filename)
	}
	return bonds, nil
}

func (fs *FileStore) storeBonds(bonds map[string]gap.BondingData) error {
	out, err := json.Marshal(bonds)
	if err != nil {
		return errors.Wrap(err, "encode bonds")
	}
	// Key material: owner only.
	return errors.Wrap(ioutil.WriteFile(fs.filename, out, 0600), "write bonds")
}
