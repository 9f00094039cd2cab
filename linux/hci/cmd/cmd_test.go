package cmd

import (
	"bytes"
	"testing"
)

func TestMarshalLECreateConnection(t *testing.T) {
	c := &LECreateConnection{
		LEScanInterval:     0x0060,
		LEScanWindow:       0x0030,
		PeerAddressType:    0x01,
		PeerAddress:        [6]byte{1, 2, 3, 4, 5, 6},
		OwnAddressType:     0x01,
		ConnIntervalMin:    0x0018,
		ConnIntervalMax:    0x0028,
		SupervisionTimeout: 0x01f4,
	}
	b, err := Bytes(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := []byte{
		0x60, 0x00, 0x30, 0x00, 0x00, 0x01,
		1, 2, 3, 4, 5, 6,
		0x01, 0x18, 0x00, 0x28, 0x00, 0x00, 0x00, 0xf4, 0x01,
		0x00, 0x00, 0x00, 0x00,
	}
	if !bytes.Equal(b, want) {
		t.Fatalf("got % x\nwant % x", b, want)
	}
	if c.OpCode() != 0x200D {
		t.Fatalf("opcode %04x", c.OpCode())
	}
}

func TestSynchronousCommandLengths(t *testing.T) {
	setup := &EnhancedSetupSynchronousConnection{ConnectionHandle: 0x0001}
	b, err := Bytes(setup)
	if err != nil || len(b) != 2+SynchronousConnectionParametersLen {
		t.Fatalf("setup: %d %v", len(b), err)
	}

	accept := &EnhancedAcceptSynchronousConnectionRequest{}
	b, err = Bytes(accept)
	if err != nil || len(b) != 6+SynchronousConnectionParametersLen {
		t.Fatalf("accept: %d %v", len(b), err)
	}
}

func TestShortBuffer(t *testing.T) {
	if err := (&Disconnect{}).Marshal(make([]byte, 1)); err == nil {
		t.Fatalf("expected short buffer error")
	}
}

func TestPacketTypeSupport(t *testing.T) {
	p := SynchronousConnectionParameters{PacketTypes: SCOPacketHV3 | SCOPacketsEDR}
	if !p.SupportsSCO() || p.SupportsESCO() {
		t.Fatalf("HV3 only parameters misclassified")
	}
	p.PacketTypes = SCOPacketEV3 | SCOPacketsEDR
	if p.SupportsSCO() || !p.SupportsESCO() {
		t.Fatalf("EV3 only parameters misclassified")
	}
}

func TestUnmarshalReadBDADDR(t *testing.T) {
	rp := ReadBDADDRRP{}
	if err := rp.Unmarshal([]byte{0x00, 1, 2, 3, 4, 5, 6}); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rp.BDADDR != [6]byte{1, 2, 3, 4, 5, 6} {
		t.Fatalf("addr %x", rp.BDADDR)
	}
}
