package page

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Data page layout (spec.md 4.3/4.6): a slotted page. Rows are appended
// forward from dataHeaderSize, each prefixed with its own 2-byte length;
// a directory of 2-byte row-start offsets grows backward from the end of
// the page, one entry per row slot (a deleted slot is tombstoned with
// slotDeleted rather than compacted away).
//
// Slot pointers can be tombstoned independently of the forward data
// region they point into.
const (
	dataHeaderSize = 6 // type(1) + reserved(1) + rowCount(2) + freeStart(2)
	slotSize       = 2
)

const slotDeleted = 0xFFFF

// ErrDataPageFull is returned by AddRow when the page has no room left
// for another row; space held by tombstoned slots is not reclaimed.
var ErrDataPageFull = errors.New("page: data page full")

// ErrRowDeleted is returned by GetRow for a tombstoned slot.
var ErrRowDeleted = errors.New("page: row slot is deleted")

// InitDataPage stamps a freshly allocated page as an empty data page.
func InitDataPage(p *Page) {
	p.SetType(TypeData)
	putRowCount(p, 0)
	putFreeStart(p, dataHeaderSize)
}

func rowCount(p *Page) int   { return int(binary.LittleEndian.Uint16(p.Data[2:4])) }
func putRowCount(p *Page, n int) { binary.LittleEndian.PutUint16(p.Data[2:4], uint16(n)) }
func freeStart(p *Page) int  { return int(binary.LittleEndian.Uint16(p.Data[4:6])) }
func putFreeStart(p *Page, off int) { binary.LittleEndian.PutUint16(p.Data[4:6], uint16(off)) }

func directoryOffset(p *Page, slot int) int { return len(p.Data) - slotSize*(slot+1) }

// RowCount returns the number of row slots on the page, including any
// tombstoned ones.
func RowCount(p *Page) int { return rowCount(p) }

// FreeSpace reports how many bytes are available for another row's
// length-prefixed payload plus its directory entry.
func FreeSpace(p *Page) int {
	return directoryOffset(p, rowCount(p)-1) - freeStart(p)
}

// AddRow appends data as a new row slot and returns its slot index.
func AddRow(p *Page, data []byte) (int, error) {
	n := rowCount(p)
	need := slotSize + 2 + len(data)
	if directoryOffset(p, n) - freeStart(p) < need {
		return 0, ErrDataPageFull
	}

	start := freeStart(p)
	binary.LittleEndian.PutUint16(p.Data[start:start+2], uint16(len(data)))
	copy(p.Data[start+2:start+2+len(data)], data)
	putFreeStart(p, start+2+len(data))

	binary.LittleEndian.PutUint16(p.Data[directoryOffset(p, n):directoryOffset(p, n)+2], uint16(start))
	putRowCount(p, n+1)
	return n, nil
}

// GetRow returns the row bytes stored at slot, or ErrRowDeleted if the
// slot was tombstoned by DeleteRow.
func GetRow(p *Page, slot int) ([]byte, error) {
	if slot < 0 || slot >= rowCount(p) {
		return nil, fmt.Errorf("page: row slot %d out of range (have %d)", slot, rowCount(p))
	}
	start := int(binary.LittleEndian.Uint16(p.Data[directoryOffset(p, slot) : directoryOffset(p, slot)+2]))
	if start == slotDeleted {
		return nil, ErrRowDeleted
	}
	length := int(binary.LittleEndian.Uint16(p.Data[start : start+2]))
	out := make([]byte, length)
	copy(out, p.Data[start+2:start+2+length])
	return out, nil
}

// DeleteRow tombstones slot without reclaiming its bytes; the page is not
// compacted (spec.md: sparse pages are tolerated between compactions).
func DeleteRow(p *Page, slot int) error {
	if slot < 0 || slot >= rowCount(p) {
		return fmt.Errorf("page: row slot %d out of range (have %d)", slot, rowCount(p))
	}
	off := directoryOffset(p, slot)
	binary.LittleEndian.PutUint16(p.Data[off:off+2], slotDeleted)
	return nil
}

// UpdateRowInPlace overwrites slot's bytes and rewrites its length prefix
// to len(data); it only succeeds when data is no longer than the slot's
// current stored length, so after a shrinking update the slot can only
// grow back to the new, shorter length. Callers fall back to delete+AddRow (on any
// page with room) when the new encoding has grown, which changes the
// row's row-id.
func UpdateRowInPlace(p *Page, slot int, data []byte) (bool, error) {
	if slot < 0 || slot >= rowCount(p) {
		return false, fmt.Errorf("page: row slot %d out of range (have %d)", slot, rowCount(p))
	}
	start := int(binary.LittleEndian.Uint16(p.Data[directoryOffset(p, slot) : directoryOffset(p, slot)+2]))
	if start == slotDeleted {
		return false, ErrRowDeleted
	}
	capacity := int(binary.LittleEndian.Uint16(p.Data[start : start+2]))
	if len(data) > capacity {
		return false, nil
	}
	binary.LittleEndian.PutUint16(p.Data[start:start+2], uint16(len(data)))
	copy(p.Data[start+2:start+2+len(data)], data)
	return true, nil
}

// Rows returns every non-deleted row's slot index and bytes, in slot
// order.
func Rows(p *Page) ([]int, [][]byte, error) {
	var slots []int
	var rows [][]byte
	for i := 0; i < rowCount(p); i++ {
		b, err := GetRow(p, i)
		if err == ErrRowDeleted {
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		slots = append(slots, i)
		rows = append(rows, b)
	}
	return slots, rows, nil
}
