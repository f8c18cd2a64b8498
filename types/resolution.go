package types

import (
	"fmt"
)

type Resolution struct {
	Width  uint32 `yaml:"width"`
	Height uint32 `yaml:"height"`
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

func (r *Resolution) Parse(s string) error {
	_, err := fmt.Sscanf(s, "%dx%d", &r.Width, &r.Height)
	if err != nil {
		return fmt.Errorf("unable to parse resolution '%s': %w", s, err)
	}
	return nil
}

func (r Resolution) IsZero() bool {
	return r.Width == 0 || r.Height == 0
}

// RGB24Size returns the size in bytes of a packed RGB24 image
// of this resolution (row-major, no padding).
func (r Resolution) RGB24Size() uint64 {
	return uint64(r.Width) * uint64(r.Height) * 3
}
