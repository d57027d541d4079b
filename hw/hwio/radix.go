package hwio

import "fmt"

// radixTree routes 16-bit addresses to the io object mapped there. Lookup
// goes through two levels of 256 entries (pages allocated on first use);
// the flat mapping list exists so that removal works on whole mappings:
// unmapping any address of a mapping removes all of it.
type radixTree struct {
	pages    [256]*[256]any
	mappings []radixRange
}

type radixRange struct {
	begin, end uint16
	io         any
}

func (t *radixTree) Search(addr uint16) any {
	page := t.pages[addr>>8]
	if page == nil {
		return nil
	}
	return page[addr&0xFF]
}

// InsertRange maps [begin, end] (inclusive) to io. Mapping over an already
// mapped address is an error.
func (t *radixTree) InsertRange(begin, end uint16, io any) error {
	if begin > end {
		return fmt.Errorf("invalid range %04x-%04x", begin, end)
	}
	for addr := uint32(begin); addr <= uint32(end); addr++ {
		if t.Search(uint16(addr)) != nil {
			return fmt.Errorf("range %04x-%04x overlaps mapping at %04x", begin, end, addr)
		}
	}
	for addr := uint32(begin); addr <= uint32(end); addr++ {
		pn := addr >> 8
		if t.pages[pn] == nil {
			t.pages[pn] = new([256]any)
		}
		t.pages[pn][addr&0xFF] = io
	}
	t.mappings = append(t.mappings, radixRange{begin: begin, end: end, io: io})
	return nil
}

// RemoveRange unmaps every mapping that intersects [begin, end] (inclusive),
// in full, even if it only partially overlaps the given range.
func (t *radixTree) RemoveRange(begin, end uint16) {
	kept := t.mappings[:0]
	for _, m := range t.mappings {
		if m.begin > end || m.end < begin {
			kept = append(kept, m)
			continue
		}
		for addr := uint32(m.begin); addr <= uint32(m.end); addr++ {
			page := t.pages[addr>>8]
			if page != nil {
				page[addr&0xFF] = nil
			}
		}
	}
	t.mappings = kept
}
