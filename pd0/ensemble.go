package pd0

import (
	"encoding/binary"
	"fmt"
	"strings"
)

const (
	// HeaderID is the byte repeated twice at the start of every ensemble.
	HeaderID byte = 0x7F

	// MaxDataTypes bounds the offset table. Real instruments emit fewer than 16.
	MaxDataTypes = 32

	// ChecksumLen is the size of the trailing checksum.
	ChecksumLen = 2

	fixedHeaderLen = 6
)

var signature = []byte{HeaderID, HeaderID}

// Well-known data-type IDs. Other IDs are carried through untouched.
const (
	IDFixedLeader    uint16 = 0x0000
	IDVariableLeader uint16 = 0x0080
	IDVelocity       uint16 = 0x0100
	IDCorrelation    uint16 = 0x0200
	IDEchoIntensity  uint16 = 0x0300
	IDPercentGood    uint16 = 0x0400
	IDStatus         uint16 = 0x0500
	IDBottomTrack    uint16 = 0x0600
)

var dataTypeNames = map[uint16]string{
	IDFixedLeader:    "fixed_leader",
	IDVariableLeader: "variable_leader",
	IDVelocity:       "velocity",
	IDCorrelation:    "correlation",
	IDEchoIntensity:  "echo_intensity",
	IDPercentGood:    "percent_good",
	IDStatus:         "status",
	IDBottomTrack:    "bottom_track",
}

// Header is the fixed part of an ensemble plus its offset table.
type Header struct {
	ID           byte
	DataSource   byte
	NumBytes     uint16
	Spare        byte
	NumDataTypes uint8
	Offsets      []uint16
}

// DataType locates one record inside the ensemble.
type DataType struct {
	ID     uint16
	Offset int
	Length int
}

// Name returns the conventional name for the record ID, or "" when unknown.
func (d DataType) Name() string {
	return dataTypeNames[d.ID]
}

// Ensemble is one validated frame. Raw is a private copy of the frame
// including the checksum; it is never modified after decoding.
type Ensemble struct {
	Header    Header
	DataTypes []DataType
	Checksum  uint16
	Raw       []byte
}

// Len returns the frame length including the checksum.
func (e *Ensemble) Len() int {
	return len(e.Raw)
}

// Record returns the bytes of the first record with the given ID.
func (e *Ensemble) Record(id uint16) ([]byte, bool) {
	for _, dt := range e.DataTypes {
		if dt.ID == id {
			return e.Raw[dt.Offset : dt.Offset+dt.Length], true
		}
	}
	return nil, false
}

func (e *Ensemble) String() string {
	ids := make([]string, len(e.DataTypes))
	for i, dt := range e.DataTypes {
		ids[i] = fmt.Sprintf("0x%04X", dt.ID)
	}
	return fmt.Sprintf("PD0{bytes=%d types=[%s] checksum=0x%04X}",
		e.Len(), strings.Join(ids, " "), e.Checksum)
}

// Summary is the JSON view of an ensemble published downstream.
type Summary struct {
	NumBytes  int               `json:"num_bytes"`
	Checksum  uint16            `json:"checksum"`
	DataTypes []DataTypeSummary `json:"data_types"`
}

// DataTypeSummary describes one record in a Summary.
type DataTypeSummary struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Offset int    `json:"offset"`
	Length int    `json:"length"`
}

// Summary returns the structural view of the ensemble.
func (e *Ensemble) Summary() Summary {
	s := Summary{
		NumBytes:  e.Len(),
		Checksum:  e.Checksum,
		DataTypes: make([]DataTypeSummary, len(e.DataTypes)),
	}
	for i, dt := range e.DataTypes {
		s.DataTypes[i] = DataTypeSummary{
			ID:     fmt.Sprintf("0x%04X", dt.ID),
			Name:   dt.Name(),
			Offset: dt.Offset,
			Length: dt.Length,
		}
	}
	return s
}

// checksum sums b modulo 65536.
func checksum(b []byte) uint16 {
	var sum uint16
	for _, c := range b {
		sum += uint16(c)
	}
	return sum
}

func le16(b []byte) uint16 {
	return binary.LittleEndian.Uint16(b)
}
