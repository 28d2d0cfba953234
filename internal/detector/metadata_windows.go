//go:build windows

package detector

import (
	"context"
	"debug/pe"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

// rtVersion is the RT_VERSION resource type ID.
const rtVersion = 16

var errNoVersionResource = errors.New("no VS_VERSIONINFO resource")

// peMetadataAdapter reads ProductName/FileDescription directly from a PE
// executable's VS_VERSIONINFO resource, per §4.3 Phase 1. No example
// repository in the corpus performs PE resource extraction, so this piece
// uses debug/pe plus a manual resource-table walk instead of a third-party
// library (see DESIGN.md).
type peMetadataAdapter struct{}

// NewDefaultMetadataAdapter returns the platform's metadata adapter.
func NewDefaultMetadataAdapter() MetadataAdapter {
	return peMetadataAdapter{}
}

func (peMetadataAdapter) Read(ctx context.Context, exePath string) (Metadata, error) {
	type result struct {
		meta Metadata
		err  error
	}
	done := make(chan result, 1)
	go func() {
		meta, err := readPEMetadata(exePath)
		done <- result{meta, err}
	}()

	select {
	case r := <-done:
		return r.meta, r.err
	case <-ctx.Done():
		return Metadata{}, ctx.Err()
	case <-time.After(4 * time.Second):
		return Metadata{}, fmt.Errorf("reading version metadata from %s: timed out", exePath)
	}
}

func readPEMetadata(exePath string) (Metadata, error) {
	f, err := pe.Open(exePath)
	if err != nil {
		return Metadata{}, fmt.Errorf("opening %s: %w", exePath, err)
	}
	defer f.Close()

	section := f.Section(".rsrc")
	if section == nil {
		return Metadata{}, nil
	}

	raw, err := io.ReadAll(boundedReader(section.Open()))
	if err != nil {
		return Metadata{}, fmt.Errorf("reading .rsrc from %s: %w", exePath, err)
	}

	versionData, err := extractVersionResource(raw, section.VirtualAddress)
	if err != nil {
		return Metadata{}, nil // absent version resource is not a hard failure
	}

	root, _ := parseVersionBlock(versionData)
	strs := collectVersionStrings(root)
	return Metadata{
		ProductName:     strs["ProductName"],
		FileDescription: strs["FileDescription"],
	}, nil
}

// resDirEntry is one IMAGE_RESOURCE_DIRECTORY_ENTRY, with the name-ID
// union collapsed to its numeric ID (named entries, which only appear for
// string-table sub-languages the version resource never uses, are not
// followed).
type resDirEntry struct {
	id     uint32
	offset uint32
	isDir  bool
}

// readResDir parses the IMAGE_RESOURCE_DIRECTORY at offset within rsrcData
// and returns its entries.
func readResDir(rsrcData []byte, offset uint32) ([]resDirEntry, error) {
	if int(offset)+16 > len(rsrcData) {
		return nil, errors.New("resource directory header out of bounds")
	}
	named := binary.LittleEndian.Uint16(rsrcData[offset+12 : offset+14])
	ids := binary.LittleEndian.Uint16(rsrcData[offset+14 : offset+16])
	total := int(named) + int(ids)

	entryBase := offset + 16
	entries := make([]resDirEntry, 0, total)
	for i := 0; i < total; i++ {
		eOff := entryBase + uint32(i*8)
		if int(eOff)+8 > len(rsrcData) {
			break
		}
		nameField := binary.LittleEndian.Uint32(rsrcData[eOff : eOff+4])
		dataField := binary.LittleEndian.Uint32(rsrcData[eOff+4 : eOff+8])
		entries = append(entries, resDirEntry{
			id:     nameField &^ 0x80000000,
			offset: dataField &^ 0x80000000,
			isDir:  dataField&0x80000000 != 0,
		})
	}
	return entries, nil
}

// extractVersionResource walks type -> name -> language resource
// directories to find the single RT_VERSION leaf and returns its raw
// VS_VERSIONINFO bytes.
func extractVersionResource(rsrcData []byte, sectionVA uint32) ([]byte, error) {
	typeEntries, err := readResDir(rsrcData, 0)
	if err != nil {
		return nil, err
	}

	var versionEntry *resDirEntry
	for _, e := range typeEntries {
		if e.id == rtVersion && e.isDir {
			ee := e
			versionEntry = &ee
			break
		}
	}
	if versionEntry == nil {
		return nil, errNoVersionResource
	}

	nameEntries, err := readResDir(rsrcData, versionEntry.offset)
	if err != nil || len(nameEntries) == 0 || !nameEntries[0].isDir {
		return nil, errNoVersionResource
	}

	langEntries, err := readResDir(rsrcData, nameEntries[0].offset)
	if err != nil || len(langEntries) == 0 || langEntries[0].isDir {
		return nil, errNoVersionResource
	}

	dataOff := langEntries[0].offset
	if int(dataOff)+16 > len(rsrcData) {
		return nil, errNoVersionResource
	}
	dataRVA := binary.LittleEndian.Uint32(rsrcData[dataOff : dataOff+4])
	size := binary.LittleEndian.Uint32(rsrcData[dataOff+4 : dataOff+8])

	if dataRVA < sectionVA {
		return nil, errNoVersionResource
	}
	start := dataRVA - sectionVA
	if int(start)+int(size) > len(rsrcData) {
		return nil, errNoVersionResource
	}
	return rsrcData[start : start+size], nil
}

// vsBlock is one VS_VERSIONINFO-family block: a header, an optional leaf
// text value, and nested children. VS_VERSIONINFO, StringFileInfo,
// StringTable, and String are all the same physical layout, so one
// recursive parser handles all of them.
type vsBlock struct {
	key      string
	value    string
	children []vsBlock
}

func align4(n int) int { return (n + 3) &^ 3 }

// readUTF16CString reads a null-terminated UTF-16LE string starting at
// offset and returns it along with the offset just past the terminator.
func readUTF16CString(data []byte, offset int) (string, int) {
	var runes []rune
	pos := offset
	for pos+1 < len(data) {
		u := binary.LittleEndian.Uint16(data[pos : pos+2])
		pos += 2
		if u == 0 {
			break
		}
		runes = append(runes, rune(u))
	}
	return string(runes), pos
}

// parseVersionBlock parses one block starting at the head of data and
// returns it along with the block's total declared length (its wLength).
func parseVersionBlock(data []byte) (vsBlock, int) {
	if len(data) < 6 {
		return vsBlock{}, len(data)
	}
	wLength := int(binary.LittleEndian.Uint16(data[0:2]))
	wValueLength := int(binary.LittleEndian.Uint16(data[2:4]))
	wType := int(binary.LittleEndian.Uint16(data[4:6]))
	if wLength <= 0 || wLength > len(data) {
		wLength = len(data)
	}
	block := data[:wLength]

	key, keyEnd := readUTF16CString(block, 6)
	pos := align4(keyEnd)

	var value string
	if wValueLength > 0 && pos < len(block) {
		if wType == 1 {
			value, _ = readUTF16CString(block, pos)
			pos = align4(pos + (wValueLength * 2))
		} else {
			pos = align4(pos + wValueLength)
		}
	}

	var children []vsBlock
	for pos+6 <= len(block) {
		child, consumed := parseVersionBlock(block[pos:])
		if consumed <= 0 {
			break
		}
		children = append(children, child)
		pos = align4(pos + consumed)
	}

	return vsBlock{key: key, value: value, children: children}, wLength
}

// collectVersionStrings descends VS_VERSIONINFO -> StringFileInfo ->
// StringTable -> String, returning a flat key/value map of the leaf
// strings (ProductName, FileDescription, and friends).
func collectVersionStrings(root vsBlock) map[string]string {
	out := make(map[string]string)
	for _, child := range root.children {
		if child.key != "StringFileInfo" || len(child.children) == 0 {
			continue
		}
		table := child.children[0]
		for _, leaf := range table.children {
			out[leaf.key] = leaf.value
		}
	}
	return out
}
