// Package marketaddr derives deterministic market identifiers. The same
// (creator, question, dataType, endTime, salt) tuple always yields the same
// address, so callers can precompute a market's identity before submitting
// the creation request.
package marketaddr

import (
	"encoding/binary"
	"encoding/hex"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/oraclebet/oraclebet/internal/domain"
)

// fieldSep keeps adjacent variable-length fields from colliding
// ("ab"+"c" vs "a"+"bc").
const fieldSep = byte(0x1f)

// Derive computes the deterministic market address as the keccak256 of the
// creation tuple, hex-encoded with a 0x prefix.
func Derive(creator, question string, dt domain.DataType, endTimeUnix int64, salt string) string {
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(endTimeUnix))

	buf := make([]byte, 0, len(creator)+len(question)+len(dt)+len(salt)+12)
	buf = append(buf, creator...)
	buf = append(buf, fieldSep)
	buf = append(buf, question...)
	buf = append(buf, fieldSep)
	buf = append(buf, dt...)
	buf = append(buf, fieldSep)
	buf = append(buf, ts[:]...)
	buf = append(buf, fieldSep)
	buf = append(buf, salt...)

	return "0x" + hex.EncodeToString(ethcrypto.Keccak256(buf))
}

// ResultKey computes the cache key for a (dataType, question) pair.
func ResultKey(dt domain.DataType, question string) string {
	buf := make([]byte, 0, len(dt)+len(question)+1)
	buf = append(buf, dt...)
	buf = append(buf, fieldSep)
	buf = append(buf, question...)
	return hex.EncodeToString(ethcrypto.Keccak256(buf))
}
