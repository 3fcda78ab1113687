package layeredge

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"

	"github.com/flemzord/edgecycle/internal/node"
)

// signer signs messages on behalf of one wallet.
type signer struct {
	key     *secp256k1.PrivateKey
	address string
}

// newSigner parses a hex private key, with or without the 0x prefix.
func newSigner(credential string) (*signer, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(credential), "0x")
	b, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: not hex", node.ErrInvalidKey)
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("%w: got %d bytes, want 32", node.ErrInvalidKey, len(b))
	}

	var scalar secp256k1.ModNScalar
	if overflow := scalar.SetByteSlice(b); overflow || scalar.IsZero() {
		return nil, fmt.Errorf("%w: out of range", node.ErrInvalidKey)
	}
	key := secp256k1.NewPrivateKey(&scalar)

	return &signer{
		key:     key,
		address: addressOf(key.PubKey()),
	}, nil
}

func keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// addressOf derives the checksummed account address of pub.
func addressOf(pub *secp256k1.PublicKey) string {
	uncompressed := pub.SerializeUncompressed()
	return checksumAddress(keccak256(uncompressed[1:])[12:])
}

// checksumAddress renders a 20-byte address with mixed-case checksum.
func checksumAddress(addr []byte) string {
	lower := hex.EncodeToString(addr)
	hash := keccak256([]byte(lower))

	var b strings.Builder
	b.Grow(2 + len(lower))
	b.WriteString("0x")
	for i, c := range lower {
		nibble := hash[i/2]
		if i%2 == 0 {
			nibble >>= 4
		}
		if c >= 'a' && nibble&0x0f >= 8 {
			c -= 'a' - 'A'
		}
		b.WriteRune(c)
	}
	return b.String()
}

// personalHash returns the prefixed message hash used by personal_sign.
func personalHash(msg string) []byte {
	prefix := "\x19Ethereum Signed Message:\n" + strconv.Itoa(len(msg))
	return keccak256([]byte(prefix), []byte(msg))
}

// sign returns the 0x-prefixed r||s||v signature of msg, v in {27, 28}.
func (s *signer) sign(msg string) string {
	compact := ecdsa.SignCompact(s.key, personalHash(msg), false)
	out := make([]byte, 65)
	copy(out, compact[1:])
	out[64] = compact[0]
	return "0x" + hex.EncodeToString(out)
}
