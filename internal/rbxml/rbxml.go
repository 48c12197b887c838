// Package rbxml parses Roblox .rbxlx place files into an in-memory Item tree.
package rbxml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Script classes recognized by the extractor.
const (
	ClassScript       = "Script"
	ClassLocalScript  = "LocalScript"
	ClassModuleScript = "ModuleScript"
	ClassFolder       = "Folder"
)

// Document is a parsed place file.
type Document struct {
	Items []*Item `xml:"Item"`
}

// Item is one instance node. Children appear in document order.
type Item struct {
	Class      string     `xml:"class,attr"`
	Properties properties `xml:"Properties"`
	Items      []*Item    `xml:"Item"`
}

type properties struct {
	Strings          []property `xml:"string"`
	ProtectedStrings []property `xml:"ProtectedString"`
}

type property struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

// Name returns the value of the Name property. The second return is false
// when the property is absent or empty; such items are invisible to the
// extractor but their children are still walked.
func (it *Item) Name() (string, bool) {
	for _, p := range it.Properties.Strings {
		if p.Name == "Name" {
			return p.Value, p.Value != ""
		}
	}
	return "", false
}

// Source returns the Lua source payload of a script item, or "" when the
// Source property is absent or empty.
func (it *Item) Source() string {
	for _, p := range it.Properties.ProtectedStrings {
		if p.Name == "Source" {
			return p.Value
		}
	}
	return ""
}

// IsScript reports whether class names one of the three script classes.
func IsScript(class string) bool {
	switch class {
	case ClassScript, ClassLocalScript, ClassModuleScript:
		return true
	}
	return false
}

// All returns every item in the document in preorder (document) traversal.
func (d *Document) All() []*Item {
	var items []*Item
	var visit func(it *Item)
	visit = func(it *Item) {
		items = append(items, it)
		for _, child := range it.Items {
			visit(child)
		}
	}
	for _, it := range d.Items {
		visit(it)
	}
	return items
}

// Parse decodes a place file from r. The reader must yield plain XML;
// Open handles compressed inputs.
func Parse(r io.Reader) (*Document, error) {
	var doc Document
	dec := xml.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing place XML: %w", err)
	}
	return &doc, nil
}

// Open reads and parses the place file at path. Inputs compressed with gzip
// or zstd are detected by magic bytes and decompressed transparently, so
// archived place files need no explicit unpack step.
func Open(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading place file: %w", err)
	}
	data, err = decompress(data)
	if err != nil {
		return nil, fmt.Errorf("decompressing %s: %w", path, err)
	}
	return Parse(bytes.NewReader(data))
}

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

func decompress(data []byte) ([]byte, error) {
	switch {
	case bytes.HasPrefix(data, gzipMagic):
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return io.ReadAll(zr)
	case bytes.HasPrefix(data, zstdMagic):
		zr, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return io.ReadAll(zr)
	default:
		return data, nil
	}
}
