package snapshot

import "fortio.org/safecast"

// StringTable interns the text of a snapshot so that repeated strings, such
// as a formula filled down a column, are written once. id 0 is always the
// empty string.
type StringTable struct {
	ids     map[string]uint32
	strings []string
}

func NewStringTable() *StringTable {
	return &StringTable{
		ids:     map[string]uint32{"": 0},
		strings: []string{""},
	}
}

// tableFrom wraps a decoded string list.
func tableFrom(strings []string) *StringTable {
	if len(strings) == 0 {
		return NewStringTable()
	}
	st := &StringTable{ids: make(map[string]uint32, len(strings)), strings: strings}
	for i, s := range strings {
		if _, dup := st.ids[s]; !dup {
			st.ids[s] = uint32(i)
		}
	}
	return st
}

// Intern returns the id of s, adding it on first use.
func (st *StringTable) Intern(s string) (uint32, error) {
	if id, ok := st.ids[s]; ok {
		return id, nil
	}
	id, err := safecast.Conv[uint32](len(st.strings))
	if err != nil {
		return 0, err
	}
	st.ids[s] = id
	st.strings = append(st.strings, s)
	return id, nil
}

// Lookup returns the string with the given id.
func (st *StringTable) Lookup(id uint32) (string, bool) {
	if int(id) >= len(st.strings) {
		return "", false
	}
	return st.strings[id], true
}

// Count returns the number of distinct strings, including the empty one.
func (st *StringTable) Count() int {
	return len(st.strings)
}

// Strings returns the table in id order.
func (st *StringTable) Strings() []string {
	return st.strings
}
