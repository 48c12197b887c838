// Package ancestry resolves which recognized top-level service an instance
// lives under and the chain of named ancestors between them.
package ancestry

import "rbxtract/internal/rbxml"

// Base directory tags, the four first-level folders of the output tree.
const (
	DirServer    = "server"
	DirClient    = "client"
	DirShared    = "shared"
	DirWorkspace = "workspace"
)

// serviceDirs maps recognized service names to their base directory tag.
// Matching is exact and case-sensitive.
var serviceDirs = map[string]string{
	"ServerScriptService": DirServer,
	"ServerStorage":       DirServer,
	"ReplicatedStorage":   DirShared,
	"StarterPlayer":       DirClient,
	"StarterGui":          DirClient,
	"Workspace":           DirWorkspace,
}

// ServiceDir returns the base directory tag for a recognized service name.
func ServiceDir(service string) (string, bool) {
	dir, ok := serviceDirs[service]
	return dir, ok
}

// BaseDirs returns the four base directory tags in their fixed order.
func BaseDirs() []string {
	return []string{DirServer, DirClient, DirShared, DirWorkspace}
}

// Resolver answers ancestry queries against one parsed document. The parent
// index is built once up front; the source format only encodes downward
// edges, and rebuilding the index per query would be quadratic.
type Resolver struct {
	parent map[*rbxml.Item]*rbxml.Item
}

// NewResolver builds the parent index for doc in one pass.
func NewResolver(doc *rbxml.Document) *Resolver {
	parent := make(map[*rbxml.Item]*rbxml.Item)
	for _, it := range doc.All() {
		for _, child := range it.Items {
			parent[child] = it
		}
	}
	return &Resolver{parent: parent}
}

// Resolve walks upward from it, collecting the name of every named ancestor
// including it itself, until a collected name matches a recognized service or
// the root is reached. On a match it returns the service name and the
// collected names in top-down order with the service removed; the item's own
// name, when present, is the final segment. Unnamed ancestors contribute no
// segment but do not stop the walk. A missing parent entry is the root
// sentinel, so termination is guaranteed.
func (r *Resolver) Resolve(it *rbxml.Item) (service string, path []string, ok bool) {
	var names []string
	for cur := it; cur != nil; cur = r.parent[cur] {
		name, named := cur.Name()
		if !named {
			continue
		}
		names = append(names, name)
		if _, isService := serviceDirs[name]; isService {
			path = make([]string, 0, len(names)-1)
			for i := len(names) - 2; i >= 0; i-- {
				path = append(path, names[i])
			}
			return name, path, true
		}
	}
	return "", nil, false
}
