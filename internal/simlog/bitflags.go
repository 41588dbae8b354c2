package simlog

import (
	"bytes"
	"fmt"
)

// A BitflagChoice renders a multi-bit field that holds exactly one of a set
// of values, like the access-mode bits of open(2) flags.
type BitflagChoice struct {
	Mask   int
	Values map[int]string
}

// A BitflagValue names a single flag bit.
type BitflagValue struct {
	Value int
	Name  string
}

// BitflagFormatter renders an integer of or-ed flags as "A|B|C" for logs,
// consuming choices first, then single flags; leftover unnamed bits are
// printed numerically so nothing is silently dropped.
type BitflagFormatter struct {
	Choices []BitflagChoice
	Flags   []BitflagValue
}

func (f *BitflagFormatter) Format(value int) string {
	var buf bytes.Buffer
	sep := func() {
		if buf.Len() > 0 {
			buf.WriteString("|")
		}
	}
	for _, choice := range f.Choices {
		masked := value & choice.Mask
		value ^= masked
		sep()
		if got, ok := choice.Values[masked]; ok {
			buf.WriteString(got)
		} else {
			fmt.Fprintf(&buf, "%d", masked)
		}
	}
	for _, flag := range f.Flags {
		if value&flag.Value == flag.Value {
			value ^= flag.Value
			sep()
			buf.WriteString(flag.Name)
		}
	}
	if value != 0 {
		sep()
		fmt.Fprintf(&buf, "%d", value)
	}
	return buf.String()
}
