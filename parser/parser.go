// Package parser decodes the length-type-value records shared by LE
// advertising data and BR/EDR extended inquiry responses.
package parser

import (
	"encoding/binary"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rigado/bthost/sliceops"
)

var ErrEmptyOrNilPdu = errors.New("nil/empty pdu")

// https://www.bluetooth.com/specifications/assigned-numbers/generic-access-profile
var types = struct {
	flags       byte
	uuid16inc   byte
	uuid16comp  byte
	uuid32inc   byte
	uuid32comp  byte
	uuid128inc  byte
	uuid128comp byte
	sol16       byte
	sol32       byte
	sol128      byte
	svc16       byte
	svc32       byte
	svc128      byte
	nameshort   byte
	namecomp    byte
	txpwr       byte
	appearance  byte
	mfgdata     byte
}{
	flags:       0x01,
	uuid16inc:   0x02,
	uuid16comp:  0x03,
	uuid32inc:   0x04,
	uuid32comp:  0x05,
	uuid128inc:  0x06,
	uuid128comp: 0x07,
	sol16:       0x14,
	sol32:       0x1f,
	sol128:      0x15,
	svc16:       0x16,
	svc32:       0x20,
	svc128:      0x21,
	nameshort:   0x08,
	namecomp:    0x09,
	txpwr:       0x0a,
	appearance:  0x19,
	mfgdata:     0xff,
}

type field int

const (
	fieldFlags field = iota
	fieldServices
	fieldSolicited
	fieldServiceData
	fieldShortName
	fieldCompleteName
	fieldTxPower
	fieldAppearance
	fieldManufacturerData
)

type pduRecord struct {
	arrayElementSz int
	minSz          int
	svcDataUUIDSz  int
	field          field
}

var pduDecodeMap = map[byte]pduRecord{
	types.uuid16inc:   {2, 2, 0, fieldServices},
	types.uuid16comp:  {2, 2, 0, fieldServices},
	types.uuid32inc:   {4, 4, 0, fieldServices},
	types.uuid32comp:  {4, 4, 0, fieldServices},
	types.uuid128inc:  {16, 16, 0, fieldServices},
	types.uuid128comp: {16, 16, 0, fieldServices},
	types.sol16:       {2, 2, 0, fieldSolicited},
	types.sol32:       {4, 4, 0, fieldSolicited},
	types.sol128:      {16, 16, 0, fieldSolicited},
	types.svc16:       {0, 2, 2, fieldServiceData},
	types.svc32:       {0, 4, 4, fieldServiceData},
	types.svc128:      {0, 16, 16, fieldServiceData},
	types.namecomp:    {0, 1, 0, fieldCompleteName},
	types.nameshort:   {0, 1, 0, fieldShortName},
	types.txpwr:       {0, 1, 0, fieldTxPower},
	types.appearance:  {0, 2, 0, fieldAppearance},
	types.mfgdata:     {0, 2, 0, fieldManufacturerData},
	types.flags:       {0, 1, 0, fieldFlags},
}

// Data is the decoded content of an advertising or EIR payload. Fields
// absent from the payload keep their zero value, pointers stay nil.
type Data struct {
	Flags        *uint8
	LocalName    string
	NameComplete bool
	TxPower      *int8
	Appearance   *uint16

	Services         []uuid.UUID
	Solicited        []uuid.UUID
	ServiceData      map[uuid.UUID][]byte
	ManufacturerData []byte
}

// baseUUID is the Bluetooth Base UUID 00000000-0000-1000-8000-00805F9B34FB.
var baseUUID = uuid.UUID{0, 0, 0, 0, 0, 0, 0x10, 0x00, 0x80, 0x00, 0x00, 0x80, 0x5F, 0x9B, 0x34, 0xFB}

// UUIDFromBytes converts a 2, 4 or 16 octet little-endian UUID, as carried
// in Bluetooth PDUs, to a 128 bit UUID.
func UUIDFromBytes(b []byte) (uuid.UUID, error) {
	switch len(b) {
	case 2:
		u := baseUUID
		binary.BigEndian.PutUint16(u[2:], binary.LittleEndian.Uint16(b))
		return u, nil
	case 4:
		u := baseUUID
		binary.BigEndian.PutUint32(u[0:], binary.LittleEndian.Uint32(b))
		return u, nil
	case 16:
		return uuid.FromBytes(sliceops.SwapBuf(b))
	default:
		return uuid.Nil, errors.Errorf("invalid uuid length %d", len(b))
	}
}

// UUID16 returns the 16 bit assigned number of u, if u is a short UUID.
func UUID16(u uuid.UUID) (uint16, bool) {
	v := u
	v[2], v[3] = 0, 0
	if v != baseUUID {
		return 0, false
	}
	return binary.BigEndian.Uint16(u[2:]), true
}

func getArray(size int, bytes []byte) ([]uuid.UUID, error) {
	//valid size?
	if size <= 0 {
		return nil, errors.New("invalid size")
	}

	//bytes empty/nil?
	if len(bytes) == 0 {
		return nil, errors.New("nil/empty bytes")
	}

	//any remainder?
	count := len(bytes) / size
	rem := len(bytes) % size
	if rem != 0 || count == 0 {
		return nil, errors.New("incorrect size")
	}

	arr := make([]uuid.UUID, 0, count)
	for j := 0; j < len(bytes); j += size {
		u, err := UUIDFromBytes(bytes[j:(j + size)])
		if err != nil {
			return nil, err
		}
		arr = append(arr, u)
	}

	return arr, nil
}

// Parse decodes pdu. Unknown record types are skipped. A malformed record
// stops decoding; the records decoded so far are returned with the error.
func Parse(pdu []byte) (*Data, error) {
	if len(pdu) == 0 {
		return nil, ErrEmptyOrNilPdu
	}

	d := &Data{}
	for i := 0; (i + 1) < len(pdu); {
		//length @ offset 0
		//type @ offset 1
		//data @ 1 - (length-1)
		length := int(pdu[i])
		typ := pdu[i+1]

		// zero length terminates the significant part (EIR is zero padded)
		if length == 0 {
			break
		}

		//do we have all the bytes for the payload?
		if (i + length) >= len(pdu) {
			return d, errors.Errorf("buffer overflow: want %v, have %v, idx %v", i+length, len(pdu), i)
		}

		start := i + 2
		end := start + length - 1
		bytes := make([]byte, len(pdu[start:end]))
		copy(bytes, pdu[start:end])

		if dec, ok := pduDecodeMap[typ]; ok && len(bytes) != 0 {
			if err := d.decode(dec, bytes); err != nil {
				return d, errors.Wrapf(err, "adv type 0x%02x, idx %v", typ, i)
			}
		}

		i += length + 1
	}

	return d, nil
}

func (d *Data) decode(dec pduRecord, bytes []byte) error {
	//have min length?
	if dec.minSz > len(bytes) {
		return errors.Errorf("min length %v, have %v", dec.minSz, len(bytes))
	}

	//expecting array?
	if dec.arrayElementSz > 0 {
		arr, err := getArray(dec.arrayElementSz, bytes)
		if err != nil {
			return err
		}
		if dec.field == fieldSolicited {
			d.Solicited = append(d.Solicited, arr...)
		} else {
			d.Services = append(d.Services, arr...)
		}
		return nil
	}

	switch dec.field {
	case fieldServiceData:
		su, err := UUIDFromBytes(bytes[:dec.svcDataUUIDSz])
		if err != nil {
			return err
		}
		if d.ServiceData == nil {
			d.ServiceData = make(map[uuid.UUID][]byte)
		}
		d.ServiceData[su] = append(d.ServiceData[su], bytes[dec.svcDataUUIDSz:]...)

	case fieldCompleteName:
		d.LocalName = string(bytes)
		d.NameComplete = true

	case fieldShortName:
		// a complete name wins regardless of order
		if !d.NameComplete {
			d.LocalName = string(bytes)
		}

	case fieldFlags:
		f := bytes[0]
		d.Flags = &f

	case fieldTxPower:
		p := int8(bytes[0])
		d.TxPower = &p

	case fieldAppearance:
		a := binary.LittleEndian.Uint16(bytes)
		d.Appearance = &a

	case fieldManufacturerData:
		if d.ManufacturerData == nil {
			d.ManufacturerData = bytes
		} else {
			//mfg data contains the company id again in the scan response
			//strip that out
			d.ManufacturerData = append(d.ManufacturerData, bytes[2:]...)
		}
	}
	return nil
}
