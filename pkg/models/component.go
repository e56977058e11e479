package models

import (
	"errors"
	"fmt"
)

type ComponentType string

const (
	ComponentTypeProject     ComponentType = "PROJECT"
	ComponentTypeModule      ComponentType = "MODULE"
	ComponentTypeDirectory   ComponentType = "DIRECTORY"
	ComponentTypeFile        ComponentType = "FILE"
	ComponentTypeView        ComponentType = "VIEW"
	ComponentTypeSubview     ComponentType = "SUBVIEW"
	ComponentTypeProjectView ComponentType = "PROJECT_VIEW"
)

// Valid reports whether t is one of the known component types.
func (t ComponentType) Valid() bool {
	switch t {
	case ComponentTypeProject, ComponentTypeModule, ComponentTypeDirectory, ComponentTypeFile,
		ComponentTypeView, ComponentTypeSubview, ComponentTypeProjectView:
		return true
	}
	return false
}

// IsViewType is true for the view family (views, subviews and project references inside views).
func (t ComponentType) IsViewType() bool {
	return t == ComponentTypeView || t == ComponentTypeSubview || t == ComponentTypeProjectView
}

// IsRootType is true for the types allowed at the root of an analysis tree.
func (t ComponentType) IsRootType() bool {
	return t == ComponentTypeProject || t == ComponentTypeView
}

// Component is a node of an analysis tree. Trees are built upstream and never
// mutated while a pipeline run holds them.
type Component struct {
	UUID     string        `json:"uuid"`
	Key      string        `json:"key"`
	Name     string        `json:"name,omitempty"`
	Path     string        `json:"path,omitempty"`
	Type     ComponentType `json:"type"`
	Children []*Component  `json:"children,omitempty"`
}

var (
	ErrInvalidRootType = errors.New("root component must be a PROJECT or a VIEW")
	ErrEmptyUUID       = errors.New("component uuid is empty")
	ErrDuplicateUUID   = errors.New("duplicate component uuid")
	ErrCycle           = errors.New("component tree contains a cycle")
	ErrUnknownType     = errors.New("unknown component type")
)

// DisplayName returns Name, falling back to Key.
func (c *Component) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Key
}

// Walk visits c and its descendants depth-first, parents before children.
// Returning false from fn skips the children of that component.
func (c *Component) Walk(fn func(c *Component, parent *Component) bool) {
	walk(c, nil, fn)
}

func walk(c, parent *Component, fn func(*Component, *Component) bool) {
	if c == nil || !fn(c, parent) {
		return
	}
	for _, child := range c.Children {
		walk(child, c, fn)
	}
}

// Validate checks the invariants of a root component: root type, non-empty and
// unique uuids, known types, no cycles.
func (c *Component) Validate() error {
	if c == nil {
		return errors.New("nil component")
	}
	if !c.Type.IsRootType() {
		return fmt.Errorf("%w: got %s", ErrInvalidRootType, c.Type)
	}

	seen := make(map[string]struct{})
	onPath := make(map[*Component]bool)

	var visit func(n *Component) error
	visit = func(n *Component) error {
		if onPath[n] {
			return fmt.Errorf("%w at %q", ErrCycle, n.Key)
		}
		if n.UUID == "" {
			return fmt.Errorf("%w: key %q", ErrEmptyUUID, n.Key)
		}
		if !n.Type.Valid() {
			return fmt.Errorf("%w %q: key %q", ErrUnknownType, n.Type, n.Key)
		}
		if _, dup := seen[n.UUID]; dup {
			return fmt.Errorf("%w %q", ErrDuplicateUUID, n.UUID)
		}
		seen[n.UUID] = struct{}{}

		onPath[n] = true
		for _, child := range n.Children {
			if child == nil {
				continue
			}
			if err := visit(child); err != nil {
				return err
			}
		}
		onPath[n] = false
		return nil
	}
	return visit(c)
}

// FlatComponent is a component row with its position in the tree, used for persistence.
type FlatComponent struct {
	UUID       string
	ParentUUID string
	Key        string
	Name       string
	Path       string
	Type       ComponentType
	Depth      int
}

// Flatten returns every component of the tree in pre-order. Depth of the root is 0.
func (c *Component) Flatten() []FlatComponent {
	depth := map[*Component]int{}
	var rows []FlatComponent
	c.Walk(func(n, parent *Component) bool {
		row := FlatComponent{
			UUID: n.UUID,
			Key:  n.Key,
			Name: n.DisplayName(),
			Path: n.Path,
			Type: n.Type,
		}
		if parent != nil {
			row.ParentUUID = parent.UUID
			row.Depth = depth[parent] + 1
		}
		depth[n] = row.Depth
		rows = append(rows, row)
		return true
	})
	return rows
}
