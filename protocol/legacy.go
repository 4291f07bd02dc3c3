package protocol

import (
	"strconv"
	"unicode/utf16"
)

// LegacyPingByte is the single unframed byte an old client sends as a status
// probe. It is only recognized in the Handshake state and must be peeked
// before any varint decoding is attempted.
const LegacyPingByte = 0xFE

const legacyResponseByte = 0xFF

// LegacyStatus is the data echoed to a legacy status probe.
type LegacyStatus struct {
	ProtocolVersion int32
	VersionName     string
	MOTD            string
	OnlinePlayers   int
	MaxPlayers      int
}

// EncodeLegacyStatus builds the fixed-format legacy response: byte 0xFF, a
// big-endian u16 code-unit count, then the UTF-16 body "§1" NUL proto NUL
// version NUL motd NUL online NUL max, one big-endian u16 per code unit.
func EncodeLegacyStatus(s LegacyStatus) []byte {
	body := "§1\x00" +
		strconv.FormatInt(int64(s.ProtocolVersion), 10) + "\x00" +
		s.VersionName + "\x00" +
		s.MOTD + "\x00" +
		strconv.Itoa(s.OnlinePlayers) + "\x00" +
		strconv.Itoa(s.MaxPlayers)

	units := utf16.Encode([]rune(body))

	b := NewBuffer()
	b.WriteUint8(legacyResponseByte)
	b.WriteUint16(uint16(len(units)))

	for _, u := range units {
		b.WriteUint16(u)
	}

	return b.Bytes()
}
