package backup

import (
	"fmt"
	"path"
	"sort"
	"strings"

	doublestar "github.com/bmatcuk/doublestar/v4"
	"github.com/thinkparq/ibackup-go/common/filesystem"
)

// Query selects manifest entries. Empty fields match everything. All conditions must hold for an
// entry to be selected.
type Query struct {
	// App restricts results to one application. It is canonicalized with AppDomain and compared
	// exactly.
	App string
	// Domain matches entries whose domain contains the string.
	Domain string
	// RelativePath matches entries whose relative path contains the string.
	RelativePath string
	// Glob is a doublestar pattern matched against the relative path.
	Glob string
	// Kind defaults to KindFile when left unset. Use KindAny to select every kind.
	Kind EntryKind
	// Filter is an optional compiled filesystem.CompileFilter expression.
	Filter filesystem.EntryFilter
}

func (q Query) Validate() error {
	if q.Glob != "" && !doublestar.ValidatePattern(q.Glob) {
		return fmt.Errorf("invalid glob pattern %q", q.Glob)
	}
	switch q.Kind {
	case KindUnknown, KindAny, KindFile, KindDirectory, KindSymlink:
	default:
		return fmt.Errorf("invalid entry kind %d", q.Kind)
	}
	return nil
}

func (q Query) kind() EntryKind {
	if q.Kind == KindUnknown {
		return KindFile
	}
	return q.Kind
}

func (q Query) match(e Entry) (bool, error) {
	if kind := q.kind(); kind != KindAny && e.Kind != kind {
		return false, nil
	}
	if q.App != "" && e.Domain != AppDomain(q.App) {
		return false, nil
	}
	if q.Domain != "" && !strings.Contains(e.Domain, q.Domain) {
		return false, nil
	}
	if q.RelativePath != "" && !strings.Contains(e.RelativePath, q.RelativePath) {
		return false, nil
	}
	if q.Glob != "" {
		if ok, err := doublestar.Match(q.Glob, e.RelativePath); err != nil || !ok {
			return false, err
		}
	}
	return filesystem.ApplyFilter(e.info(), q.Filter)
}

// Find returns the entries matching q sorted by domain then relative path.
func (m *Manifest) Find(q Query) ([]Entry, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	var out []Entry
	for _, e := range m.entries {
		ok, err := q.match(e)
		if err != nil {
			return nil, fmt.Errorf("unable to evaluate query for %q: %w", Identity(e.Domain, e.RelativePath), err)
		}
		if ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// TreeNode is one element of the relative path hierarchy of a domain.
type TreeNode struct {
	Name string
	// Relative path of the node within its domain.
	Path string
	// Entry is nil for intermediate directories the manifest does not record.
	Entry    *Entry
	Children []*TreeNode
}

// Tree builds the relative path hierarchy of one application or domain. The root node has an empty
// path and children are sorted by name.
func (m *Manifest) Tree(appID string) (*TreeNode, error) {
	domain := AppDomain(appID)
	root := &TreeNode{Name: domain}
	nodes := map[string]*TreeNode{"": root}

	var getNode func(p string) *TreeNode
	getNode = func(p string) *TreeNode {
		if n, ok := nodes[p]; ok {
			return n
		}
		parentPath := path.Dir(p)
		if parentPath == "." {
			parentPath = ""
		}
		parent := getNode(parentPath)
		n := &TreeNode{Name: path.Base(p), Path: p}
		parent.Children = append(parent.Children, n)
		nodes[p] = n
		return n
	}

	found := false
	for _, entry := range m.entries {
		e := &entry
		if e.Domain != domain {
			continue
		}
		found = true
		if e.RelativePath == "" {
			// The domain root itself.
			root.Entry = e
			continue
		}
		getNode(e.RelativePath).Entry = e
	}
	if !found {
		return nil, &EntryNotFoundError{DeviceID: m.device.ID, Domain: domain}
	}

	var sortChildren func(n *TreeNode)
	sortChildren = func(n *TreeNode) {
		sort.Slice(n.Children, func(i, j int) bool {
			return n.Children[i].Name < n.Children[j].Name
		})
		for _, c := range n.Children {
			sortChildren(c)
		}
	}
	sortChildren(root)
	return root, nil
}
