// Package cmd defines the HCI commands sent by the host stack. The command
// structs in cmd_gen.go are marshaled field by field in little-endian order.
package cmd

import (
	"bytes"
	"encoding/binary"
	"io"
)

type command interface {
	OpCode() int
	Len() int
	Marshal([]byte) error
}

type commandRP interface {
	Unmarshal(b []byte) error
}

func marshal(c command, b []byte) error {
	buf := bytes.NewBuffer(b)
	buf.Reset()
	if buf.Cap() < c.Len() {
		return io.ErrShortBuffer
	}
	return binary.Write(buf, binary.LittleEndian, c)
}

func unmarshal(c commandRP, b []byte) error {
	buf := bytes.NewBuffer(b)
	return binary.Read(buf, binary.LittleEndian, c)
}

// Bytes marshals c into a freshly allocated buffer.
func Bytes(c command) ([]byte, error) {
	b := make([]byte, c.Len())
	if err := c.Marshal(b); err != nil {
		return nil, err
	}
	return b, nil
}

// SynchronousConnectionParameters are the parameters shared by Enhanced
// Setup Synchronous Connection and Enhanced Accept Synchronous Connection
// Request [Vol 4, Part E, 7.1.45].
type SynchronousConnectionParameters struct {
	TransmitBandwidth                 uint32
	ReceiveBandwidth                  uint32
	TransmitCodingFormat              [5]byte
	ReceiveCodingFormat               [5]byte
	TransmitCodecFrameSize            uint16
	ReceiveCodecFrameSize             uint16
	InputBandwidth                    uint32
	OutputBandwidth                   uint32
	InputCodingFormat                 [5]byte
	OutputCodingFormat                [5]byte
	InputCodedDataSize                uint16
	OutputCodedDataSize               uint16
	InputPCMDataFormat                uint8
	OutputPCMDataFormat               uint8
	InputPCMSamplePayloadMSBPosition  uint8
	OutputPCMSamplePayloadMSBPosition uint8
	InputDataPath                     uint8
	OutputDataPath                    uint8
	InputTransportUnitSize            uint8
	OutputTransportUnitSize           uint8
	MaxLatency                        uint16
	PacketTypes                       uint16
	RetransmissionEffort              uint8
}

// SynchronousConnectionParametersLen is the marshaled size of SynchronousConnectionParameters.
const SynchronousConnectionParametersLen = 57

// Packet type bits of SynchronousConnectionParameters.PacketTypes. The EDR
// bits are "shall not be used" flags, so an unset bit allows the type.
const (
	SCOPacketHV1    uint16 = 1 << 0
	SCOPacketHV2    uint16 = 1 << 1
	SCOPacketHV3    uint16 = 1 << 2
	SCOPacketEV3    uint16 = 1 << 3
	SCOPacketEV4    uint16 = 1 << 4
	SCOPacketEV5    uint16 = 1 << 5
	SCOPacketNo2EV3 uint16 = 1 << 6
	SCOPacketNo3EV3 uint16 = 1 << 7
	SCOPacketNo2EV5 uint16 = 1 << 8
	SCOPacketNo3EV5 uint16 = 1 << 9

	SCOPacketsSCO  = SCOPacketHV1 | SCOPacketHV2 | SCOPacketHV3
	SCOPacketsESCO = SCOPacketEV3 | SCOPacketEV4 | SCOPacketEV5
	SCOPacketsEDR  = SCOPacketNo2EV3 | SCOPacketNo3EV3 | SCOPacketNo2EV5 | SCOPacketNo3EV5
)

// SupportsSCO reports whether the parameters allow an SCO link.
func (p SynchronousConnectionParameters) SupportsSCO() bool {
	return p.PacketTypes&SCOPacketsSCO != 0
}

// SupportsESCO reports whether the parameters allow an eSCO link.
func (p SynchronousConnectionParameters) SupportsESCO() bool {
	return p.PacketTypes&SCOPacketsESCO != 0 || p.PacketTypes&SCOPacketsEDR != SCOPacketsEDR
}
