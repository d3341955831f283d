package components

import (
	"context"
	"fmt"

	"github.com/pthm/wcx"
)

// UserBox shows one directory user. Renaming in the browser renames the
// user in the directory, and the user is marked online while an instance
// is attached.
type UserBox struct {
	userID string
	name   string
	dir    *Directory
}

// Name returns the displayed name.
func (b *UserBox) Name() string {
	return b.name
}

// SetName is the change listener of the name property.
func (b *UserBox) SetName(name string) {
	b.name = name
	if b.dir != nil {
		b.dir.Rename(b.userID, name)
	}
}

// Detach marks the user offline.
func (b *UserBox) Detach(ctx context.Context) error {
	if b.dir != nil {
		b.dir.SetOnline(b.userID, false)
	}
	return nil
}

//wcx:export
func NewUserBoxExporter() (*wcx.Exporter[UserBox], error) {
	e, err := wcx.NewExporter[UserBox]("user-box", nil)
	if err != nil {
		return nil, err
	}
	e.Sensitive().Template("frontend/user-box.html")

	userID, err := wcx.AddProperty(e, "user-id", "")
	if err != nil {
		return nil, err
	}
	userID.ReadOnly()

	name, err := wcx.AddProperty(e, "name", "anonymous")
	if err != nil {
		return nil, err
	}
	name.OnChange((*UserBox).SetName)

	online, err := wcx.AddProperty(e, "online", false)
	if err != nil {
		return nil, err
	}
	online.ReadOnly()

	e.ConfigureInstance(func(ctx context.Context, inst *wcx.Instance[UserBox]) error {
		b := inst.Component()
		if v, ok := inst.Property("user-id"); ok {
			b.userID, _ = v.(string)
		}
		dir, ok := DirectoryFrom(ctx)
		if !ok || b.userID == "" {
			return nil
		}

		u, ok := dir.Get(b.userID)
		if !ok {
			return fmt.Errorf("unknown user %q", b.userID)
		}
		b.dir = dir
		b.name = u.Name
		dir.SetOnline(u.ID, true)

		if err := inst.SetProperty("name", u.Name); err != nil {
			return err
		}
		return inst.SetProperty("online", true)
	})
	return e, nil
}
