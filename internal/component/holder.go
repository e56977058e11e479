// Package component holds the analysis tree for the duration of one pipeline run.
package component

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/maraichr/ceindex/pkg/models"
)

var (
	ErrRootNotSet     = errors.New("tree root has not been set")
	ErrRootAlreadySet = errors.New("tree root has already been set")
	ErrNilRoot        = errors.New("tree root cannot be nil")
	ErrInvalidTree    = errors.New("invalid component tree")
)

type tree struct {
	root   *models.Component
	byUUID map[string]*models.Component
}

// TreeRootHolder is a write-once cell for the root of an analysis tree.
// Readers may call Root concurrently once SetRoot has returned.
type TreeRootHolder struct {
	tree atomic.Pointer[tree]
}

func NewTreeRootHolder() *TreeRootHolder {
	return &TreeRootHolder{}
}

// SetRoot validates and publishes the tree. It can succeed only once.
func (h *TreeRootHolder) SetRoot(root *models.Component) error {
	if root == nil {
		return ErrNilRoot
	}
	if h.tree.Load() != nil {
		return ErrRootAlreadySet
	}
	if err := root.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTree, err)
	}

	t := &tree{root: root, byUUID: make(map[string]*models.Component)}
	root.Walk(func(c, _ *models.Component) bool {
		t.byUUID[c.UUID] = c
		return true
	})

	if !h.tree.CompareAndSwap(nil, t) {
		return ErrRootAlreadySet
	}
	return nil
}

// Root returns the root component, or ErrRootNotSet.
func (h *TreeRootHolder) Root() (*models.Component, error) {
	t := h.tree.Load()
	if t == nil {
		return nil, ErrRootNotSet
	}
	return t.root, nil
}

func (h *TreeRootHolder) IsSet() bool {
	return h.tree.Load() != nil
}

// ComponentByUUID looks a component up anywhere in the tree.
func (h *TreeRootHolder) ComponentByUUID(id string) (*models.Component, bool) {
	t := h.tree.Load()
	if t == nil {
		return nil, false
	}
	c, ok := t.byUUID[id]
	return c, ok
}

// Size is the number of components in the tree, 0 when unset.
func (h *TreeRootHolder) Size() int {
	t := h.tree.Load()
	if t == nil {
		return 0
	}
	return len(t.byUUID)
}
