package weather

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// PayloadLength is the minimum number of hex characters of a type0 or
// type1 notification payload.
const PayloadLength = 40

const (
	TemperatureTrend = "temperature_trend"
	HumidityTrend    = "humidity_trend"
)

var (
	ErrMalformedPayload = errors.New("malformed payload")
	ErrDomain           = errors.New("value outside of the formula domain")
)

// RegisterMap maps a register name to its raw hex value. Temperature
// registers are 4 hex characters, humidity and trend registers 2.
type RegisterMap map[string]string

// register describes where a field lives inside a payload. A swapped
// register is assembled from the high byte at [offset+2:offset+4]
// followed by the low byte at [offset:offset+2].
type register struct {
	name    string
	offset  int
	swapped bool
}

var type0Registers = []register{
	{TemperatureField(Indoor), 2, true},
	{TemperatureField(Outdoor1), 6, true},
	{TemperatureField(Outdoor2), 10, true},
	{TemperatureField(Outdoor3), 14, true},
	{HumidityField(Indoor), 18, false},
	{HumidityField(Outdoor1), 20, false},
	{HumidityField(Outdoor2), 22, false},
	{HumidityField(Outdoor3), 24, false},
	{TemperatureTrend, 26, false},
	{HumidityTrend, 28, false},
	{HumidityField(Indoor) + maxSuffix, 30, false},
	{HumidityField(Indoor) + minSuffix, 32, false},
	{HumidityField(Outdoor1) + maxSuffix, 34, false},
	{HumidityField(Outdoor1) + minSuffix, 36, false},
	{HumidityField(Outdoor2) + maxSuffix, 38, false},
}

// Channel-2 humidity min is carried by type1 while its max sits at the
// end of type0.
var type1Registers = []register{
	{HumidityField(Outdoor2) + minSuffix, 2, false},
	{HumidityField(Outdoor3) + maxSuffix, 4, false},
	{HumidityField(Outdoor3) + minSuffix, 6, false},
	{TemperatureField(Indoor) + maxSuffix, 8, true},
	{TemperatureField(Indoor) + minSuffix, 12, true},
	{TemperatureField(Outdoor1) + maxSuffix, 16, true},
	{TemperatureField(Outdoor1) + minSuffix, 20, true},
	{TemperatureField(Outdoor2) + maxSuffix, 24, true},
	{TemperatureField(Outdoor2) + minSuffix, 28, true},
	{TemperatureField(Outdoor3) + maxSuffix, 32, true},
	{TemperatureField(Outdoor3) + minSuffix, 36, true},
}

// Decode expands a type0/type1 payload pair into its named registers.
func Decode(type0, type1 string) (RegisterMap, error) {
	if err := checkPayload("type0", type0); err != nil {
		return nil, err
	}
	if err := checkPayload("type1", type1); err != nil {
		return nil, err
	}

	registers := make(RegisterMap, len(type0Registers)+len(type1Registers))
	expand(registers, strings.ToUpper(type0), type0Registers)
	expand(registers, strings.ToUpper(type1), type1Registers)
	return registers, nil
}

func checkPayload(kind, payload string) error {
	if len(payload) < PayloadLength {
		return errors.Wrapf(ErrMalformedPayload, "%s payload has %d hex characters, need %d", kind, len(payload), PayloadLength)
	}
	if _, err := hex.DecodeString(payload[:PayloadLength]); err != nil {
		return errors.Wrapf(ErrMalformedPayload, "%s payload: %v", kind, err)
	}
	return nil
}

func expand(registers RegisterMap, payload string, layout []register) {
	for _, r := range layout {
		if r.swapped {
			registers[r.name] = payload[r.offset+2:r.offset+4] + payload[r.offset:r.offset+2]
			continue
		}
		registers[r.name] = payload[r.offset : r.offset+2]
	}
}

// ToSigned16 reads a hex register as a two's-complement 16-bit value.
func ToSigned16(value string) (int, error) {
	raw, err := strconv.ParseUint(value, 16, 16)
	if err != nil {
		return 0, errors.Wrapf(ErrMalformedPayload, "register %q", value)
	}
	signed := int(raw)
	if signed >= 0x8000 {
		signed -= 0x10000
	}
	return signed, nil
}

// Value returns the signed value of a named register.
func (r RegisterMap) Value(name string) (int, bool, error) {
	raw, ok := r[name]
	if !ok {
		return 0, false, nil
	}
	value, err := ToSigned16(raw)
	if err != nil {
		return 0, true, errors.Wrap(err, name)
	}
	return value, true, nil
}

// Trends returns the raw temperature and humidity trend registers.
func (r RegisterMap) Trends() (temperature, humidity int, ok bool) {
	t, okT, errT := r.Value(TemperatureTrend)
	h, okH, errH := r.Value(HumidityTrend)
	if !okT || !okH || errT != nil || errH != nil {
		return 0, 0, false
	}
	return t, h, true
}
