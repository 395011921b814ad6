// Package config resolves the two process-wide identity knobs fastsend
// reads from the environment: a device id used to disambiguate concurrent
// generators, and a random value used to obscure it. Both are read once
// per process and memoized, matching the original's lazy_static globals.
//
// Grounded on original_source/src/lib.rs (the RV and DEVICE_ID
// lazy_static! blocks).
package config

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"math/bits"
	"os"
	"strconv"
	"sync"
)

var (
	rvOnce sync.Once
	rv     uint8

	deviceOnce sync.Once
	deviceID   uint8
	hasDevice  bool
)

// RandomValue returns the process-wide obfuscation byte. It is read from
// FASTSEND_RANDOM_VALUE if that parses as a uint8; otherwise it is drawn
// once from the OS CSPRNG. Multi-device deployments that rely on DeviceID
// to disambiguate generators must set FASTSEND_RANDOM_VALUE explicitly,
// or two processes started independently can land on different RVs and
// therefore different obfuscated device ids for the same raw id.
func RandomValue() uint8 {
	rvOnce.Do(func() {
		if v, ok := os.LookupEnv("FASTSEND_RANDOM_VALUE"); ok {
			if n, err := strconv.ParseUint(v, 10, 8); err == nil {
				rv = uint8(n)
				return
			}
		}
		rv = randomByte()
	})
	return rv
}

func randomByte() uint8 {
	n, err := rand.Int(rand.Reader, big.NewInt(256))
	if err != nil {
		panic(fmt.Errorf("config: read random byte from OS CSPRNG: %w", err))
	}
	return uint8(n.Int64())
}

// DeviceID returns the configured device id and whether one was
// configured at all. When FASTSEND_DEVICE_ID is unset or unparsable, ok
// is false and callers (pkg/token) fall back to a process-id-derived
// value instead.
//
// The returned id is the raw env value folded three times through
// rotate-left-3-then-xor-with-RandomValue, matching the original's
// three-pass obfuscation exactly.
func DeviceID() (uint8, bool) {
	deviceOnce.Do(func() {
		v, ok := os.LookupEnv("FASTSEND_DEVICE_ID")
		if !ok {
			return
		}
		n, err := strconv.ParseUint(v, 10, 8)
		if err != nil {
			return
		}

		id := uint8(n)
		r := RandomValue()
		for i := 0; i < 3; i++ {
			id = bits.RotateLeft8(id, 3) ^ r
		}

		deviceID = id
		hasDevice = true
	})
	return deviceID, hasDevice
}
