package model

import "fmt"

// Metadata tags a contents entry in a node, as a file mode would
type Metadata uint8

const (
	// Normal contents (default)
	Normal Metadata = iota
	// Executable contents
	Executable
)

// DefaultMetadata is applied when writing contents without explicit metadata
const DefaultMetadata = Normal

func (m Metadata) String() string {
	switch m {
	case Normal:
		return "normal"
	case Executable:
		return "exec"
	default:
		return fmt.Sprintf("metadata(%d)", uint8(m))
	}
}

// ParseMetadata from its string representation
func ParseMetadata(s string) (Metadata, error) {
	switch s {
	case "", "normal":
		return Normal, nil
	case "exec", "executable":
		return Executable, nil
	default:
		return Normal, fmt.Errorf("unknown metadata %q", s)
	}
}
