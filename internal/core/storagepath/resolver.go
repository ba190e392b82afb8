// Package storagepath maps server-side storage paths onto the portal's flat
// static file namespace.
//
// Every path resolves to <root>/<basename>. Directory components are dropped,
// so two server paths with the same basename resolve to the same URL;
// ResolveAll reports such collisions instead of hiding them, along with paths
// that have no file name at all.
package storagepath

import (
	"fmt"
	"slices"
	"strings"

	"github.com/kirillkom/formpack-portal/internal/core/domain"
)

const DefaultRoot = "/storage"

type Resolver struct {
	root string
}

// New returns a resolver for the given URL root. An empty root falls back to
// DefaultRoot; trailing slashes are dropped.
func New(root string) Resolver {
	root = strings.TrimRight(strings.TrimSpace(root), "/")
	if root == "" {
		root = DefaultRoot
	}
	return Resolver{root: root}
}

func (r Resolver) Root() string {
	if r.root == "" {
		return DefaultRoot
	}
	return r.root
}

// Basename returns the last path component. Both '/' and '\' separate
// components.
func Basename(path string) string {
	idx := strings.LastIndexAny(path, `/\`)
	return path[idx+1:]
}

// Resolve rewrites a server path to <root>/<basename>. Paths whose basename is
// empty, "." or ".." are rejected.
func (r Resolver) Resolve(path string) (string, error) {
	name := Basename(strings.TrimSpace(path))
	switch name {
	case "", ".", "..":
		return "", domain.WrapError(domain.ErrInvalidPath, "resolve storage path", fmt.Errorf("no file name in %q", path))
	}
	return r.Root() + "/" + name, nil
}

// ResolveAll resolves paths in order. An invalid path resolves to "" and is
// listed in the report's Unresolved; the rest of the batch is unaffected.
// Basenames shared by distinct sources are reported as collisions.
func (r Resolver) ResolveAll(paths []string) ([]string, domain.PathReport) {
	out := make([]string, 0, len(paths))
	sources := make(map[string][]string, len(paths))
	var order []string
	var report domain.PathReport

	for _, path := range paths {
		resolved, err := r.Resolve(path)
		if err != nil {
			out = append(out, "")
			report.Unresolved = append(report.Unresolved, path)
			continue
		}
		out = append(out, resolved)

		name := Basename(strings.TrimSpace(path))
		if _, seen := sources[name]; !seen {
			order = append(order, name)
		}
		if !slices.Contains(sources[name], path) {
			sources[name] = append(sources[name], path)
		}
	}

	for _, name := range order {
		if len(sources[name]) > 1 {
			report.Collisions = append(report.Collisions, domain.PathCollision{Basename: name, Sources: sources[name]})
		}
	}
	return out, report
}

