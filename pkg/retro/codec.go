package retro

import (
	"encoding/binary"
	"fmt"

	"github.com/yourusername/awari/pkg/storage"
)

var (
	// Compact is the two byte record: the value, then the stable flag in
	// bit 7 and the dependency count in bits 0-6.
	Compact storage.Codec[State] = compactCodec{}
	// Wide is the six byte record: a little endian uint32 variant tag
	// (0 unstable, 1 stable), the value and the dependency count.
	Wide storage.Codec[State] = wideCodec{}
)

const stableBit = 0x80

type compactCodec struct{}

func (compactCodec) Size() int { return 2 }

func (compactCodec) Encode(dst []byte, s State) {
	dst[0] = byte(s.value)
	if s.stable {
		dst[1] = stableBit
	} else {
		dst[1] = s.deps & (stableBit - 1)
	}
}

func (compactCodec) Decode(src []byte) (State, error) {
	if src[1]&stableBit != 0 {
		if src[1] != stableBit {
			return State{}, fmt.Errorf("stable record carries dependency count %d", src[1]&^stableBit)
		}
		return Stable(int8(src[0])), nil
	}
	return Unstable(int8(src[0]), src[1]), nil
}

type wideCodec struct{}

func (wideCodec) Size() int { return 6 }

func (wideCodec) Encode(dst []byte, s State) {
	var tag uint32
	if s.stable {
		tag = 1
	}
	binary.LittleEndian.PutUint32(dst, tag)
	dst[4] = byte(s.value)
	dst[5] = s.deps
}

func (wideCodec) Decode(src []byte) (State, error) {
	switch tag := binary.LittleEndian.Uint32(src); tag {
	case 0:
		return Unstable(int8(src[4]), src[5]), nil
	case 1:
		return Stable(int8(src[4])), nil
	default:
		return State{}, fmt.Errorf("unknown state tag %d", tag)
	}
}

// CodecByName returns the record format called "compact" or "wide".
func CodecByName(name string) (storage.Codec[State], error) {
	switch name {
	case "compact", "":
		return Compact, nil
	case "wide":
		return Wide, nil
	}
	return nil, fmt.Errorf("unknown record format %q", name)
}
