package vm

import (
	"fmt"
	"strconv"
)

// HexU32 to lazy-format integer attributes for logging
type HexU32 uint32

func (v HexU32) String() string {
	return fmt.Sprintf("%08x", uint32(v))
}

func (v HexU32) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *HexU32) UnmarshalText(text []byte) error {
	out, err := strconv.ParseUint(string(text), 16, 32)
	if err != nil {
		return fmt.Errorf("invalid hex u32 %q: %w", text, err)
	}
	*v = HexU32(out)
	return nil
}
