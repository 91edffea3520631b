package card

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

var ErrEmptyUID = errors.New("card uid is empty")

// UID is the identifier a reader returns for a presented card.
type UID []byte

// String renders the uid as uppercase hex, two digits per byte with the
// leading zero kept and no separators: [0x04 0xA1] is "04A1".
func (uid UID) String() string {
	return strings.ToUpper(hex.EncodeToString(uid))
}

// ParseUID is the inverse of String. Case is ignored, as are surrounding
// space and ':', ' ' or '-' separators.
func ParseUID(text string) (UID, error) {
	cleaned := strings.NewReplacer(":", "", " ", "", "-", "").Replace(strings.TrimSpace(text))
	if cleaned == "" {
		return nil, ErrEmptyUID
	}
	uid, err := hex.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("parsing card uid %q: %w", text, err)
	}
	return UID(uid), nil
}
