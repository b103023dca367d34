package models

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"time"
)

// Entity IDs are application-generated strings, never store-generated
// numeric keys, so the same value can act as the join key in all four
// stores. Format: <prefix>_<base36 millis>_<6 random base36 chars>.

var kindPrefix = map[EntityKind]string{
	KindIncidents: "inc",
	KindUsers:     "usr",
	KindResources: "res",
}

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewEntityID mints a fresh, time-sortable ID for the given entity kind
func NewEntityID(kind EntityKind) (string, error) {
	prefix, ok := kindPrefix[kind]
	if !ok {
		return "", fmt.Errorf("entity kind %q has no id prefix", kind)
	}

	suffix := make([]byte, 6)
	for i := range suffix {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(idAlphabet))))
		if err != nil {
			return "", fmt.Errorf("id generation failed: %w", err)
		}
		suffix[i] = idAlphabet[n.Int64()]
	}

	ts := strconv.FormatInt(time.Now().UnixMilli(), 36)
	return fmt.Sprintf("%s_%s_%s", prefix, ts, suffix), nil
}
