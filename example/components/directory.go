package components

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// User is one entry of the directory shown by <user-box>.
type User struct {
	ID        string
	Name      string
	Online    bool
	UpdatedAt time.Time
}

// Directory is an in-memory user directory.
type Directory struct {
	mu     sync.RWMutex
	users  map[string]*User
	nextID int
}

// NewDirectory creates a directory with sample users.
func NewDirectory() *Directory {
	d := &Directory{
		users:  make(map[string]*User),
		nextID: 1,
	}

	d.Add("Ada Lovelace")
	d.Add("Grace Hopper")
	d.Add("Ken Thompson")

	return d
}

// Add creates a user and returns its ID.
func (d *Directory) Add(name string) string {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := fmt.Sprintf("user-%d", d.nextID)
	d.nextID++
	d.users[id] = &User{ID: id, Name: name, UpdatedAt: time.Now()}
	return id
}

// Get returns a copy of the user with id.
func (d *Directory) Get(id string) (User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[id]
	if !ok {
		return User{}, false
	}
	return *u, true
}

// Rename changes a user's name.
func (d *Directory) Rename(id, name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.users[id]
	if !ok {
		return false
	}
	u.Name = name
	u.UpdatedAt = time.Now()
	return true
}

// SetOnline marks a user as connected or not.
func (d *Directory) SetOnline(id string, online bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.users[id]
	if !ok {
		return false
	}
	u.Online = online
	u.UpdatedAt = time.Now()
	return true
}

// List returns all users ordered by ID.
func (d *Directory) List() []User {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]User, 0, len(d.users))
	for _, u := range d.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type directoryKey struct{}

// WithDirectory returns a copy of ctx carrying d.
func WithDirectory(ctx context.Context, d *Directory) context.Context {
	return context.WithValue(ctx, directoryKey{}, d)
}

// DirectoryFrom returns the directory stored by WithDirectory.
func DirectoryFrom(ctx context.Context) (*Directory, bool) {
	d, ok := ctx.Value(directoryKey{}).(*Directory)
	return d, ok && d != nil
}
