package textwell

import (
	"fmt"

	"github.com/worldnine/textwell-mcp/config"
	"github.com/worldnine/textwell-mcp/internal/common"
)

// Mode selects how Textwell applies the text.
type Mode int

const (
	ModeReplace Mode = iota
	ModeInsert
	ModeAdd
)

// Modes lists every mode in schema order.
var Modes = [...]Mode{ModeReplace, ModeInsert, ModeAdd}

func (m Mode) String() string {
	switch m {
	case ModeReplace:
		return "replace"
	case ModeInsert:
		return "insert"
	case ModeAdd:
		return "add"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// PastTense is used in the confirmation message.
func (m Mode) PastTense() string {
	switch m {
	case ModeReplace:
		return "replaced"
	case ModeInsert:
		return "inserted"
	case ModeAdd:
		return "added"
	default:
		return m.String()
	}
}

// ParseMode maps a tool argument to a Mode. The empty string is replace.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "replace":
		return ModeReplace, nil
	case "insert":
		return ModeInsert, nil
	case "add":
		return ModeAdd, nil
	default:
		return 0, fmt.Errorf("%w: mode must be one of replace, insert, add; got %q", common.ErrInvalidInput, s)
	}
}

func modeNames() []string {
	names := make([]string, len(Modes))
	for i, m := range Modes {
		names[i] = m.String()
	}
	return names
}

// ModeMapping holds a URL template for every Mode plus the action import
// endpoint. It can only be built complete, so lookups never miss.
type ModeMapping struct {
	templates    [len(Modes)]string
	importAction string
}

func NewModeMapping(paths config.PathsConfig) (*ModeMapping, error) {
	m := &ModeMapping{importAction: paths.ImportAction}
	m.templates[ModeReplace] = paths.Replace
	m.templates[ModeInsert] = paths.Insert
	m.templates[ModeAdd] = paths.Add

	for _, mode := range Modes {
		if m.templates[mode] == "" {
			return nil, fmt.Errorf("%w: no URL template for mode %s", common.ErrInvalidInput, mode)
		}
	}
	if m.importAction == "" {
		return nil, fmt.Errorf("%w: no URL template for importAction", common.ErrInvalidInput)
	}
	return m, nil
}

func (m *ModeMapping) URLFor(mode Mode) string {
	return m.templates[mode]
}

func (m *ModeMapping) ImportAction() string {
	return m.importAction
}
