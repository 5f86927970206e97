package imf

import (
	"encoding/xml"
	"io"
	"regexp"
	"strings"
)

// AssetLocator maps one asset UUID to its resolved, absolute URI.
type AssetLocator struct {
	UUID UUID
	URI  string
}

// AssetLocatorMap is the flat, combined result of parsing one or more Asset
// Map documents. Lookup is linear, since N is small in practice (§3).
type AssetLocatorMap struct {
	locators []AssetLocator
}

// Append adds locators not already present (by UUID); the first entry for a
// given UUID wins, matching the declared-order, first-wins rule for
// duplicate UUIDs across Asset Maps (§4.3).
func (m *AssetLocatorMap) Append(locators []AssetLocator) {
	for _, l := range locators {
		if _, ok := m.lookup(l.UUID); ok {
			continue
		}
		m.locators = append(m.locators, l)
	}
}

func (m *AssetLocatorMap) lookup(id UUID) (*AssetLocator, bool) {
	for i := range m.locators {
		if m.locators[i].UUID == id {
			return &m.locators[i], true
		}
	}
	return nil, false
}

// Resolve implements the resource resolver (§4.4): a linear scan by UUID,
// returning InvalidData if no locator exists for the referenced id.
func (m *AssetLocatorMap) Resolve(id UUID) (*AssetLocator, error) {
	if l, ok := m.lookup(id); ok {
		return l, nil
	}
	return nil, invalidData("resolve asset", id.String(), nil)
}

// Len reports the number of distinct assets currently known.
func (m *AssetLocatorMap) Len() int { return len(m.locators) }

var windowsAbsPath = regexp.MustCompile(`^([A-Za-z]:[\\/]|\\\\)`)

func isURL(p string) bool          { return strings.Contains(p, "://") }
func isPosixAbsPath(p string) bool { return strings.HasPrefix(p, "/") }
func isWindowsAbsPath(p string) bool {
	return windowsAbsPath.MatchString(p)
}

// dirName returns the directory component of a path or URI, scheme-agnostic:
// everything up to (not including) the final path separator.
func dirName(uri string) string {
	idx := strings.LastIndexByte(uri, '/')
	if idx < 0 {
		return "."
	}
	return uri[:idx]
}

// appendPathComponent joins a base directory and a relative path component.
func appendPathComponent(base, component string) string {
	if base == "" {
		return component
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(component, "/")
}

// resolvePath implements the §4.3 Path-to-absolute-URI rule.
func resolvePath(baseDir, p string) string {
	if isURL(p) || isPosixAbsPath(p) || isWindowsAbsPath(p) {
		return p
	}
	return appendPathComponent(baseDir, p)
}

// ParseAssetMap parses a single AssetMap document into a slice of
// AssetLocators, resolving relative Path entries against docURL's own
// directory. Only the first Chunk of each Asset's ChunkList is honored;
// additional chunks are ignored without a warning.
func ParseAssetMap(r io.Reader, docURL string) ([]AssetLocator, error) {
	var root element
	if err := xml.NewDecoder(r).Decode(&root); err != nil {
		return nil, invalidData("parse asset map", "AssetMap", err)
	}
	if root.XMLName.Local != "AssetMap" {
		return nil, invalidData("parse asset map", "root element "+root.XMLName.Local, nil)
	}

	assetList, ok := firstChildByName(root, "AssetList")
	if !ok {
		return nil, invalidData("parse asset map", "AssetList", nil)
	}

	baseDir := dirName(docURL)
	var locators []AssetLocator
	for _, asset := range assetList.Children {
		if asset.XMLName.Local != "Asset" {
			continue
		}

		idEl, ok := firstChildByName(asset, "Id")
		if !ok {
			return nil, invalidData("parse asset map", "Asset/Id", nil)
		}
		id, err := readUUID(idEl.Text)
		if err != nil {
			return nil, invalidData("parse asset map", "Asset/Id", err)
		}

		chunkList, ok := firstChildByName(asset, "ChunkList")
		if !ok {
			return nil, invalidData("parse asset map", "Asset/ChunkList", nil)
		}
		chunk, ok := firstChildByName(chunkList, "Chunk")
		if !ok {
			return nil, invalidData("parse asset map", "Asset/ChunkList/Chunk", nil)
		}
		pathEl, ok := firstChildByName(chunk, "Path")
		if !ok {
			return nil, invalidData("parse asset map", "Asset/ChunkList/Chunk/Path", nil)
		}

		locators = append(locators, AssetLocator{
			UUID: id,
			URI:  resolvePath(baseDir, pathEl.Text),
		})
	}

	return locators, nil
}
