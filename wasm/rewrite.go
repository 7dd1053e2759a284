package wasm

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/wippyai/wasm-embed/wasm/internal/binary"
)

// ImportTarget names the registered owner module and export an import entry
// should resolve against.
type ImportTarget struct {
	Module string
	Name   string
}

// RewriteImports returns a copy of bin whose i-th import entry points at
// targets[i] instead of its declared two-level name. Import descriptors and
// all other sections are preserved byte for byte, so custom sections that
// reference offsets inside them stay intact.
//
// The target count must match the module's import count exactly.
func RewriteImports(bin []byte, targets []ImportTarget) ([]byte, error) {
	if len(bin) < 8 || !bytes.Equal(bin[:8], magicVersion) {
		return nil, errors.New("wasm: not a module binary (bad magic or version)")
	}
	if len(targets) == 0 {
		return bin, nil
	}

	idx := 8
	result := make([]byte, 0, len(bin)+32)
	result = append(result, bin[:idx]...)

	found := false
	for idx < len(bin) {
		sectionID := bin[idx]
		idx++

		sectionSize, n := binary.ULEB128(bin[idx:])
		sectionSizeBytes := bin[idx : idx+n]
		idx += n

		sectionStart := idx
		sectionEnd := idx + int(sectionSize)
		if sectionEnd > len(bin) {
			return nil, errors.New("wasm: truncated section")
		}

		if sectionID == sectionImport {
			rewritten, err := rewriteImportSection(bin[sectionStart:sectionEnd], targets)
			if err != nil {
				return nil, err
			}
			result = append(result, sectionID)
			result = binary.AppendULEB128(result, uint32(len(rewritten)))
			result = append(result, rewritten...)
			found = true
		} else {
			result = append(result, sectionID)
			result = append(result, sectionSizeBytes...)
			result = append(result, bin[sectionStart:sectionEnd]...)
		}
		idx = sectionEnd
	}

	if !found {
		return nil, errors.New("wasm: module has no import section")
	}
	return result, nil
}

func rewriteImportSection(section []byte, targets []ImportTarget) ([]byte, error) {
	result := make([]byte, 0, len(section)+32)
	idx := 0

	numImports, n := binary.ULEB128(section[idx:])
	result = append(result, section[idx:idx+n]...)
	idx += n

	if int(numImports) != len(targets) {
		return nil, fmt.Errorf("wasm: %d import entries, %d targets", numImports, len(targets))
	}

	for i := uint32(0); i < numImports; i++ {
		// Replace the two-level name.
		modNameLen, n := binary.ULEB128(section[idx:])
		idx += n + int(modNameLen)
		importNameLen, n := binary.ULEB128(section[idx:])
		idx += n + int(importNameLen)
		if idx > len(section) {
			return nil, errors.New("wasm: truncated import entry")
		}

		target := targets[i]
		result = binary.AppendULEB128(result, uint32(len(target.Module)))
		result = append(result, target.Module...)
		result = binary.AppendULEB128(result, uint32(len(target.Name)))
		result = append(result, target.Name...)

		// Copy the descriptor verbatim.
		if idx >= len(section) {
			return nil, errors.New("wasm: truncated import entry")
		}
		kind := section[idx]
		result = append(result, kind)
		idx++

		switch kind {
		case 0x00: // func: type index
			_, n := binary.ULEB128(section[idx:])
			result = append(result, section[idx:idx+n]...)
			idx += n
		case 0x01: // table: elem type + limits
			result = append(result, section[idx])
			idx++
			var err error
			idx, result, err = copyLimits(section, idx, result)
			if err != nil {
				return nil, err
			}
		case 0x02: // memory: limits
			var err error
			idx, result, err = copyLimits(section, idx, result)
			if err != nil {
				return nil, err
			}
		case 0x03: // global: valtype + mutability
			if idx+2 > len(section) {
				return nil, errors.New("wasm: truncated import entry")
			}
			result = append(result, section[idx:idx+2]...)
			idx += 2
		default:
			return nil, fmt.Errorf("wasm: unknown import kind 0x%02x", kind)
		}
	}

	return result, nil
}

func copyLimits(section []byte, idx int, result []byte) (int, []byte, error) {
	if idx >= len(section) {
		return idx, nil, errors.New("wasm: truncated limits")
	}
	flag := section[idx]
	result = append(result, flag)
	idx++

	_, n := binary.ULEB128(section[idx:])
	result = append(result, section[idx:idx+n]...)
	idx += n
	if flag&0x01 != 0 {
		_, n := binary.ULEB128(section[idx:])
		result = append(result, section[idx:idx+n]...)
		idx += n
	}
	if idx > len(section) {
		return idx, nil, errors.New("wasm: truncated limits")
	}
	return idx, result, nil
}
