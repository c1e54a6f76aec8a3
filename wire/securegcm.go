package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// GcmMetadata is securegcm.proto's GcmMetadata, carried as the Header's
// public_metadata (spec.md §4.3).
type GcmMetadata struct {
	Type    int32
	Version int32
}

func (m *GcmMetadata) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Type))
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Version))
	return b
}

func UnmarshalGcmMetadata(buf []byte) (*GcmMetadata, error) {
	m := &GcmMetadata{}
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return nil, fmt.Errorf("wire: GcmMetadata: bad tag: %w", protowire.ParseError(n))
		}
		buf = buf[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: GcmMetadata.type: %w", protowire.ParseError(n))
			}
			m.Type = int32(v)
			buf = buf[n:]
		case 2:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: GcmMetadata.version: %w", protowire.ParseError(n))
			}
			m.Version = int32(v)
			buf = buf[n:]
		default:
			n, err := skipField(buf, typ)
			if err != nil {
				return nil, err
			}
			buf = buf[n:]
		}
	}
	return m, nil
}

// DeviceToDeviceMessage is securegcm.proto's DeviceToDeviceMessage: the
// innermost layer of the post-handshake channel (spec.md §4.3), wrapping the
// per-message sequence counter around the plaintext offline frame bytes.
type DeviceToDeviceMessage struct {
	SequenceNumber int32
	Message        []byte
}

func (d *DeviceToDeviceMessage) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(uint32(d.SequenceNumber)))
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, d.Message)
	return b
}

func UnmarshalDeviceToDeviceMessage(buf []byte) (*DeviceToDeviceMessage, error) {
	d := &DeviceToDeviceMessage{}
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return nil, fmt.Errorf("wire: DeviceToDeviceMessage: bad tag: %w", protowire.ParseError(n))
		}
		buf = buf[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: DeviceToDeviceMessage.sequence_number: %w", protowire.ParseError(n))
			}
			d.SequenceNumber = int32(uint32(v))
			buf = buf[n:]
		case 2:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: DeviceToDeviceMessage.message: %w", protowire.ParseError(n))
			}
			d.Message = append([]byte(nil), v...)
			buf = buf[n:]
		default:
			n, err := skipField(buf, typ)
			if err != nil {
				return nil, err
			}
			buf = buf[n:]
		}
	}
	return d, nil
}
