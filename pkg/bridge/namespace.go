package bridge

import (
	"errors"
	"fmt"
)

// Namespace partitions the backing store. Keys in different namespaces
// never collide, even when textually identical.
type Namespace string

const (
	NamespaceWindow     Namespace = "window"
	NamespaceLayout     Namespace = "layout"
	NamespaceWindowList Namespace = "windowlist"
	NamespaceSurface    Namespace = "surface"
)

// ErrUnknownNamespace is returned for a namespace a component cannot bind to.
var ErrUnknownNamespace = errors.New("unknown namespace")

// Namespaces lists every namespace the bridge writes to.
var Namespaces = []Namespace{NamespaceWindow, NamespaceLayout, NamespaceWindowList, NamespaceSurface}

// ParseNamespace validates a namespace name.
func ParseNamespace(name string) (Namespace, error) {
	for _, ns := range Namespaces {
		if string(ns) == name {
			return ns, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownNamespace, name)
}
