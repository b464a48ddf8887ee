package fakeuserrepo

import (
	"maps"
	"sync"

	"github.com/jrsteele09/go-priority-dashboard/users"
)

var _ users.Repo = (*FakeUserRepo)(nil)

type FakeUserRepo struct {
	users   map[string]string
	loadErr error
	lock    sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users: make(map[string]string),
	}
}

func (ur *FakeUserRepo) Upsert(username, password string) {
	ur.lock.Lock()
	defer ur.lock.Unlock()
	ur.users[username] = password
}

func (ur *FakeUserRepo) Delete(username string) {
	ur.lock.Lock()
	defer ur.lock.Unlock()
	delete(ur.users, username)
}

// FailWith makes subsequent loads return err. Pass nil to recover.
func (ur *FakeUserRepo) FailWith(err error) {
	ur.lock.Lock()
	defer ur.lock.Unlock()
	ur.loadErr = err
}

func (ur *FakeUserRepo) Load() (map[string]string, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	if ur.loadErr != nil {
		return nil, ur.loadErr
	}
	return maps.Clone(ur.users), nil
}
