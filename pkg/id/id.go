// Package id generates trade and position identifiers.
//
// Identifiers are ULIDs: they sort by creation time, which keeps journal
// rows and the account's trade list ordered without an extra column.
package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu      sync.Mutex
	entropy io.Reader
)

func init() {
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	entropy = ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)
}

// New returns an identifier stamped with the current time.
func New() string {
	return At(time.Now())
}

// At returns an identifier stamped with t. Identifiers produced in the
// same millisecond are still strictly increasing.
func At(t time.Time) string {
	mu.Lock()
	defer mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(t.UTC()), entropy)
	if err != nil {
		// Only happens when the monotonic entropy overflows inside one ms.
		panic(err)
	}
	return id.String()
}

// Time extracts the creation time from an identifier made by New or At.
func Time(s string) (time.Time, error) {
	u, err := ulid.ParseStrict(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(u.Time()).UTC(), nil
}
