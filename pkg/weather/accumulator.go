package weather

import "encoding/hex"

// TemperatureHandle is the characteristic value handle on which the
// station indicates its indoor and channel 1-3 temperature/humidity data.
const TemperatureHandle uint16 = 0x0017

const type1Marker = '8'

// Accumulator collects the two halves of one read cycle. It is owned by a
// single monitor cycle and is not safe for concurrent use.
type Accumulator struct {
	type0 *string
	type1 *string
}

// Accumulate stores a notification payload if it belongs to the
// temperature characteristic. A newer payload of the same type replaces
// the previous one.
func (a *Accumulator) Accumulate(handle uint16, data []byte) bool {
	if handle != TemperatureHandle || len(data) == 0 {
		return false
	}
	payload := hex.EncodeToString(data)
	if payload[0] == type1Marker {
		a.type1 = &payload
	} else {
		a.type0 = &payload
	}
	return true
}

// Complete reports whether both payload types have been received.
func (a *Accumulator) Complete() bool {
	return a.type0 != nil && a.type1 != nil
}

// TryDecode decodes the pair once both halves are present. ok is false
// while one of them is still missing.
func (a *Accumulator) TryDecode() (registers RegisterMap, ok bool, err error) {
	if !a.Complete() {
		return nil, false, nil
	}
	registers, err = Decode(*a.type0, *a.type1)
	if err != nil {
		return nil, false, err
	}
	return registers, true, nil
}

// Reset discards both payloads so the next cycle starts empty.
func (a *Accumulator) Reset() {
	a.type0 = nil
	a.type1 = nil
}
