package app

import "crypto/rand"

const (
	roomCodeLength  = 6
	roomCodeLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// newRoomCode returns a short shareable code. Rejection sampling keeps the
// distribution uniform over the alphabet.
func newRoomCode() string {
	const max = byte(255 - (256 % len(roomCodeLetters)))

	out := make([]byte, 0, roomCodeLength)
	buf := make([]byte, roomCodeLength*2)

	for {
		if _, err := rand.Read(buf); err != nil {
			panic(err)
		}
		for _, b := range buf {
			if b <= max {
				out = append(out, roomCodeLetters[int(b)%len(roomCodeLetters)])
				if len(out) == roomCodeLength {
					return string(out)
				}
			}
		}
	}
}
