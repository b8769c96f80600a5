// Package vfs implements the desktop's fake file system: a tree of folders
// and text files held in memory and persisted as a single JSON blob in the
// key-value store after every mutation.
package vfs

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ispwin/ispwin/internal/logging"
	"github.com/ispwin/ispwin/internal/storage"
)

// StoreKey is the store key holding the serialized tree.
const StoreKey = "ispwin-files"

const rootKey = "/"

var (
	ErrNotFound    = errors.New("no such file or folder")
	ErrInvalidPath = errors.New("invalid path")
	ErrNotFolder   = errors.New("not a folder")
)

var logger = logging.New("vfs")

// NodeType tags a node.
type NodeType string

const (
	TypeFolder NodeType = "folder"
	TypeFile   NodeType = "file"
)

// Node is one entry of the tree.
type Node struct {
	Type     NodeType         `json:"type"`
	Children map[string]*Node `json:"children,omitempty"`
	Content  string           `json:"content,omitempty"`
}

// IsFolder reports whether n is a folder.
func (n *Node) IsFolder() bool {
	return n != nil && n.Type == TypeFolder
}

// Entry describes a node to callers without exposing the tree.
type Entry struct {
	Name    string   `json:"name"`
	Type    NodeType `json:"type"`
	Content string   `json:"content,omitempty"`
}

// FS is the fake file system. It is safe for concurrent use within a
// process; across processes the last writer wins.
type FS struct {
	store storage.Store

	mu   sync.RWMutex
	root *Node
}

// New loads the tree from store, falling back to the seed tree when the key
// is absent or unreadable.
func New(store storage.Store) *FS {
	fs := &FS{store: store}
	root, err := fs.load()
	if err != nil {
		logger.Warn("failed to read file tree, using seed", "err", err)
	}
	fs.root = root
	return fs
}

// Seed returns the tree a fresh desktop starts with.
func Seed() *Node {
	return &Node{Type: TypeFolder, Children: map[string]*Node{
		"Documents": {Type: TypeFolder, Children: map[string]*Node{
			"notes.txt": {Type: TypeFile, Content: "Welcome to ispwin OS\n\nThis is a sample file."},
		}},
		"Readme.txt": {Type: TypeFile, Content: "ispwin OS - demo file"},
	}}
}

// load reads the tree from the store. A missing or corrupt blob yields the
// seed; only a failing store is reported.
func (fs *FS) load() (*Node, error) {
	raw, ok, err := fs.store.Get(StoreKey)
	if err != nil {
		return Seed(), err
	}
	if !ok {
		return Seed(), nil
	}

	var blob map[string]*Node
	if err := json.Unmarshal([]byte(raw), &blob); err != nil {
		logger.Warn("corrupt file tree, using seed", "err", err)
		return Seed(), nil
	}
	root := blob[rootKey]
	if !root.IsFolder() {
		logger.Warn("file tree has no root folder, using seed")
		return Seed(), nil
	}
	normalize(root)
	return root, nil
}

// normalize gives every folder a non-nil children map.
func normalize(n *Node) {
	if n.Type != TypeFolder {
		return
	}
	if n.Children == nil {
		n.Children = make(map[string]*Node)
	}
	for name, child := range n.Children {
		if child == nil {
			delete(n.Children, name)
			continue
		}
		normalize(child)
	}
}

// save writes the whole tree. Callers hold fs.mu.
func (fs *FS) save() error {
	data, err := json.Marshal(map[string]*Node{rootKey: fs.root})
	if err != nil {
		return fmt.Errorf("failed to encode file tree: %w", err)
	}
	if err := fs.store.Set(StoreKey, string(data)); err != nil {
		return fmt.Errorf("failed to persist file tree: %w", err)
	}
	return nil
}

// Reload discards the in-memory tree and reads it again from the store.
// The current tree is kept when the store cannot be read.
func (fs *FS) Reload() error {
	root, err := fs.load()
	if err != nil {
		return fmt.Errorf("failed to reload file tree: %w", err)
	}
	fs.mu.Lock()
	fs.root = root
	fs.mu.Unlock()
	return nil
}

// Split breaks path into its non-empty segments.
func Split(path string) []string {
	return strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
}

// Join builds a clean absolute path from segments.
func Join(parts ...string) string {
	var segs []string
	for _, p := range parts {
		segs = append(segs, Split(p)...)
	}
	return "/" + strings.Join(segs, "/")
}

// Parent returns the folder containing path. The root is its own parent.
func Parent(path string) string {
	segs := Split(path)
	if len(segs) == 0 {
		return "/"
	}
	return Join(segs[:len(segs)-1]...)
}

// Base returns the last segment of path, or "/" for the root.
func Base(path string) string {
	segs := Split(path)
	if len(segs) == 0 {
		return "/"
	}
	return segs[len(segs)-1]
}

func (fs *FS) lookup(path string) *Node {
	node := fs.root
	for _, seg := range Split(path) {
		if !node.IsFolder() {
			return nil
		}
		next, ok := node.Children[seg]
		if !ok {
			return nil
		}
		node = next
	}
	return node
}

// List returns the entries of the folder at path sorted by name.
func (fs *FS) List(path string) ([]Entry, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	node := fs.lookup(path)
	if !node.IsFolder() {
		return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	}

	entries := make([]Entry, 0, len(node.Children))
	for name, child := range node.Children {
		entries = append(entries, Entry{Name: name, Type: child.Type, Content: child.Content})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// ReadFile returns the content of the file at path.
func (fs *FS) ReadFile(path string) (string, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	node := fs.lookup(path)
	if node == nil || node.Type != TypeFile {
		return "", fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	return node.Content, nil
}

// Stat describes the node at path.
func (fs *FS) Stat(path string) (Entry, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	node := fs.lookup(path)
	if node == nil {
		return Entry{}, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	return Entry{Name: Base(path), Type: node.Type, Content: node.Content}, nil
}

// folderAt walks segs from the root, creating missing folders. Callers hold
// fs.mu for writing.
func (fs *FS) folderAt(segs []string) (*Node, error) {
	node := fs.root
	for i, seg := range segs {
		next, ok := node.Children[seg]
		if !ok {
			next = &Node{Type: TypeFolder, Children: make(map[string]*Node)}
			node.Children[seg] = next
		} else if !next.IsFolder() {
			return nil, fmt.Errorf("%s: %w", Join(segs[:i+1]...), ErrNotFolder)
		}
		node = next
	}
	return node, nil
}

// WriteFile stores content at path, creating missing ancestor folders. Any
// node already at path is replaced, folders included.
func (fs *FS) WriteFile(path, content string) error {
	segs := Split(path)
	if len(segs) == 0 {
		return fmt.Errorf("%q: %w", path, ErrInvalidPath)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	parent, err := fs.folderAt(segs[:len(segs)-1])
	if err != nil {
		return err
	}
	name := segs[len(segs)-1]
	if prev, ok := parent.Children[name]; ok && prev.IsFolder() {
		logger.Debug("replacing folder with file", "path", Join(segs...))
	}
	parent.Children[name] = &Node{Type: TypeFile, Content: content}
	return fs.save()
}

// Mkdir creates the folder at path and any missing ancestors. Creating an
// existing folder is a no-op.
func (fs *FS) Mkdir(path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, err := fs.folderAt(Split(path)); err != nil {
		return err
	}
	return fs.save()
}
