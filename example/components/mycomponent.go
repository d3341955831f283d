package components

import (
	"context"

	"github.com/pthm/wcx"
)

// milestone is the interval at which MyComponent fires a "milestone" event.
const milestone = 10

// MyComponent is a click counter. The browser owns count; the server
// announces every tenth click.
type MyComponent struct {
	label string
	count int
	fire  func(name string, detail any) error
}

// Count returns the current count.
func (c *MyComponent) Count() int {
	return c.count
}

func (c *MyComponent) setCount(n int) {
	c.count = n
	if c.fire != nil && n > 0 && n%milestone == 0 {
		_ = c.fire("milestone", map[string]int{"count": n})
	}
}

//wcx:export
func NewMyComponentExporter() (*wcx.Exporter[MyComponent], error) {
	e, err := wcx.NewExporter[MyComponent]("my-component", nil)
	if err != nil {
		return nil, err
	}

	label, err := wcx.AddProperty(e, "label", "Clicks")
	if err != nil {
		return nil, err
	}
	label.OnChange(func(c *MyComponent, v string) { c.label = v })

	count, err := wcx.AddProperty(e, "count", 0)
	if err != nil {
		return nil, err
	}
	count.OnChange((*MyComponent).setCount)

	e.ConfigureInstance(func(ctx context.Context, inst *wcx.Instance[MyComponent]) error {
		inst.Component().fire = inst.FireEvent
		return nil
	})
	return e, nil
}
