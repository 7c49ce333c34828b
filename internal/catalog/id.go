package catalog

import (
	"encoding/hex"
	"strconv"
	"time"

	"golang.org/x/crypto/sha3"
)

// assetID derives an address-shaped id: 0x followed by the first 40 hex
// digits of keccak256(title + creator + unix millis). A non-zero nonce is
// mixed in to step past collisions.
func assetID(title, creator string, at time.Time, nonce int) string {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(title))
	h.Write([]byte(creator))
	h.Write([]byte(strconv.FormatInt(at.UnixMilli(), 10)))
	if nonce > 0 {
		h.Write([]byte{':'})
		h.Write([]byte(strconv.Itoa(nonce)))
	}
	sum := hex.EncodeToString(h.Sum(nil))
	return "0x" + sum[:40]
}
