package models

import "github.com/google/uuid"

// Builder assembles a Component. A uuid is generated when none is set.
type Builder struct {
	c Component
}

func NewBuilder(t ComponentType, key string) *Builder {
	return &Builder{c: Component{Type: t, Key: key}}
}

func (b *Builder) SetUUID(id string) *Builder {
	b.c.UUID = id
	return b
}

func (b *Builder) SetName(name string) *Builder {
	b.c.Name = name
	return b
}

func (b *Builder) SetPath(path string) *Builder {
	b.c.Path = path
	return b
}

func (b *Builder) AddChildren(children ...*Component) *Builder {
	b.c.Children = append(b.c.Children, children...)
	return b
}

func (b *Builder) Build() *Component {
	c := b.c
	if c.UUID == "" {
		c.UUID = uuid.NewString()
	}
	c.Children = append([]*Component(nil), b.c.Children...)
	return &c
}
