package generate

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/zeebo/blake3"
)

const (
	idKeyContext = "mobility-cli 2024 subscriber id key"
	idLength     = 12
	runSaltBytes = 32
)

// IDHasher derives irreversible subscriber identifiers. The key mixes a secret salt
// with the salt rotation epoch of the run start, so identifiers change every rotation
// period but stay stable within one. The seed never enters the key: it is published
// with every dataset.
type IDHasher struct {
	key [32]byte
}

// NewIDHasher builds a hasher for a run starting at start. An empty salt is rejected;
// use RunSalt to draw one that lives only for the current process.
func NewIDHasher(salt string, start time.Time, rotationDays int) (*IDHasher, error) {
	if salt == "" {
		return nil, eris.New("generate: id salt is required")
	}

	var epoch int64
	if rotationDays > 0 {
		epoch = start.Unix() / 86400 / int64(rotationDays)
	}

	material := make([]byte, 0, len(salt)+8)
	material = append(material, salt...)
	material = binary.LittleEndian.AppendUint64(material, uint64(epoch))

	h := &IDHasher{}
	blake3.DeriveKey(idKeyContext, material, h.key[:])
	return h, nil
}

// RunSalt returns a random salt that is never persisted. Identifiers keyed with it
// cannot be reproduced by a later run.
func RunSalt() (string, error) {
	buf := make([]byte, runSaltBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", eris.Wrap(err, "generate: draw run salt")
	}
	return hex.EncodeToString(buf), nil
}

// ID returns the identifier of the user at index.
func (h *IDHasher) ID(index int) string {
	hasher, err := blake3.NewKeyed(h.key[:])
	if err != nil {
		panic("generate: blake3 keyed hash initialization failed: " + err.Error())
	}
	_, _ = hasher.WriteString("user_" + strconv.Itoa(index))
	return hex.EncodeToString(hasher.Sum(nil))[:idLength]
}
