package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// OfflineFrame.Version.
const OfflineFrameVersionV1 = 1

// V1Frame.Type (offline_wire_formats.proto), per spec.md §4.2.
const (
	V1FrameTypeConnectionRequest  = 1
	V1FrameTypeConnectionResponse = 2
	V1FrameTypePayloadTransfer    = 3
	V1FrameTypeKeepAlive          = 6
	V1FrameTypeDisconnection      = 7
	V1FrameTypePairedKeyEncryption = 8
)

// PayloadTransferFrame.PacketType.
const PacketTypeData = 1

// PayloadType.
const (
	PayloadTypeUnknown = 0
	PayloadTypeBytes   = 1
	PayloadTypeFile    = 2
	PayloadTypeStream  = 3
)

// PayloadTransferFrame chunk flags (spec.md §4.2): bit 0 is last-chunk.
const PayloadChunkFlagLastChunk = 1

// OfflineFrame is the outermost offline-layer envelope (spec.md §4.2).
type OfflineFrame struct {
	Version int32
	V1      *V1Frame
}

func (f *OfflineFrame) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(f.Version))
	if f.V1 != nil {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, f.V1.Marshal())
	}
	return b
}

func UnmarshalOfflineFrame(buf []byte) (*OfflineFrame, error) {
	f := &OfflineFrame{}
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return nil, fmt.Errorf("wire: OfflineFrame: bad tag: %w", protowire.ParseError(n))
		}
		buf = buf[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: OfflineFrame.version: %w", protowire.ParseError(n))
			}
			f.Version = int32(v)
			buf = buf[n:]
		case 2:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: OfflineFrame.v1: %w", protowire.ParseError(n))
			}
			v1, err := UnmarshalV1Frame(v)
			if err != nil {
				return nil, err
			}
			f.V1 = v1
			buf = buf[n:]
		default:
			n, err := skipField(buf, typ)
			if err != nil {
				return nil, err
			}
			buf = buf[n:]
		}
	}
	return f, nil
}

// V1Frame holds exactly one of the populated sub-messages per Type.
type V1Frame struct {
	Type               int32
	ConnectionRequest  *ConnectionRequest
	ConnectionResponse *OfflineConnectionResponse
	PayloadTransfer    *PayloadTransferFrame
	PairedKeyEncryption []byte // opaque; neither marshaled nor decoded (the session layer sends PairedKeyEncryption as a sharing Frame inside a PayloadTransfer)
}

func (v *V1Frame) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(v.Type))
	if v.ConnectionRequest != nil {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, v.ConnectionRequest.Marshal())
	}
	if v.ConnectionResponse != nil {
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendBytes(b, v.ConnectionResponse.Marshal())
	}
	if v.PayloadTransfer != nil {
		b = protowire.AppendTag(b, 4, protowire.BytesType)
		b = protowire.AppendBytes(b, v.PayloadTransfer.Marshal())
	}
	return b
}

func UnmarshalV1Frame(buf []byte) (*V1Frame, error) {
	v := &V1Frame{}
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return nil, fmt.Errorf("wire: V1Frame: bad tag: %w", protowire.ParseError(n))
		}
		buf = buf[n:]
		switch num {
		case 1:
			x, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: V1Frame.type: %w", protowire.ParseError(n))
			}
			v.Type = int32(x)
			buf = buf[n:]
		case 2:
			x, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: V1Frame.connection_request: %w", protowire.ParseError(n))
			}
			cr, err := UnmarshalConnectionRequest(x)
			if err != nil {
				return nil, err
			}
			v.ConnectionRequest = cr
			buf = buf[n:]
		case 3:
			x, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: V1Frame.connection_response: %w", protowire.ParseError(n))
			}
			cresp, err := UnmarshalOfflineConnectionResponse(x)
			if err != nil {
				return nil, err
			}
			v.ConnectionResponse = cresp
			buf = buf[n:]
		case 4:
			x, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: V1Frame.payload_transfer: %w", protowire.ParseError(n))
			}
			pt, err := UnmarshalPayloadTransferFrame(x)
			if err != nil {
				return nil, err
			}
			v.PayloadTransfer = pt
			buf = buf[n:]
		default:
			n, err := skipField(buf, typ)
			if err != nil {
				return nil, err
			}
			buf = buf[n:]
		}
	}
	return v, nil
}

// ConnectionRequest carries the endpoint identity used by the remote-device
// name/icon resolution in package endpoint.
type ConnectionRequest struct {
	Endpoint1ID  string
	EndpointName string
	EndpointInfo []byte
}

func (c *ConnectionRequest) Marshal() []byte {
	var b []byte
	if c.Endpoint1ID != "" {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, []byte(c.Endpoint1ID))
	}
	if c.EndpointName != "" {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, []byte(c.EndpointName))
	}
	if len(c.EndpointInfo) > 0 {
		b = protowire.AppendTag(b, 4, protowire.BytesType)
		b = protowire.AppendBytes(b, c.EndpointInfo)
	}
	return b
}

func UnmarshalConnectionRequest(buf []byte) (*ConnectionRequest, error) {
	c := &ConnectionRequest{}
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return nil, fmt.Errorf("wire: ConnectionRequest: bad tag: %w", protowire.ParseError(n))
		}
		buf = buf[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: ConnectionRequest.endpoint_id: %w", protowire.ParseError(n))
			}
			c.Endpoint1ID = string(v)
			buf = buf[n:]
		case 2:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: ConnectionRequest.endpoint_name: %w", protowire.ParseError(n))
			}
			c.EndpointName = string(v)
			buf = buf[n:]
		case 4:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: ConnectionRequest.endpoint_info: %w", protowire.ParseError(n))
			}
			c.EndpointInfo = append([]byte(nil), v...)
			buf = buf[n:]
		default:
			n, err := skipField(buf, typ)
			if err != nil {
				return nil, err
			}
			buf = buf[n:]
		}
	}
	return c, nil
}

// OfflineConnectionResponse is the offline-layer ConnectionResponse (always
// accepted in this system, spec.md §4.1 step 9 happens one layer up in the
// sharing ConnectionResponseFrame; this one is the transport-level ack).
// OsInfo is hardcoded to Linux regardless of host platform (spec.md §9 Open
// Questions: preserve the constant).
type OfflineConnectionResponse struct {
	Status int32
	OsInfo int32
}

// OfflineConnectionResponseOsInfoLinux is the only OsInfo value this system
// ever sends (spec.md §9).
const OfflineConnectionResponseOsInfoLinux = 1

func (c *OfflineConnectionResponse) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(c.Status))
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(c.OsInfo))
	return b
}

func UnmarshalOfflineConnectionResponse(buf []byte) (*OfflineConnectionResponse, error) {
	c := &OfflineConnectionResponse{}
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return nil, fmt.Errorf("wire: OfflineConnectionResponse: bad tag: %w", protowire.ParseError(n))
		}
		buf = buf[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: OfflineConnectionResponse.status: %w", protowire.ParseError(n))
			}
			c.Status = int32(v)
			buf = buf[n:]
		case 2:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: OfflineConnectionResponse.os_info: %w", protowire.ParseError(n))
			}
			c.OsInfo = int32(v)
			buf = buf[n:]
		default:
			n, err := skipField(buf, typ)
			if err != nil {
				return nil, err
			}
			buf = buf[n:]
		}
	}
	return c, nil
}

// PayloadHeader is PayloadTransferFrame.PayloadHeader.
type PayloadHeader struct {
	ID          int64
	Type        int32
	TotalSize   int64
	IsSensitive bool
	FileName    string
}

// PayloadChunk is PayloadTransferFrame.PayloadChunk.
type PayloadChunk struct {
	Offset int64
	Flags  int32
	Body   []byte
}

// PayloadTransferFrame is spec.md §4.2's chunked payload envelope.
type PayloadTransferFrame struct {
	PacketType int32
	Header     *PayloadHeader
	Chunk      *PayloadChunk
}

func (p *PayloadTransferFrame) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(p.PacketType))
	if p.Header != nil {
		var hb []byte
		hb = protowire.AppendTag(hb, 1, protowire.VarintType)
		hb = protowire.AppendVarint(hb, uint64(uint64(p.Header.ID)))
		hb = protowire.AppendTag(hb, 2, protowire.VarintType)
		hb = protowire.AppendVarint(hb, uint64(p.Header.Type))
		hb = protowire.AppendTag(hb, 3, protowire.VarintType)
		hb = protowire.AppendVarint(hb, uint64(p.Header.TotalSize))
		if p.Header.IsSensitive {
			hb = protowire.AppendTag(hb, 5, protowire.VarintType)
			hb = protowire.AppendVarint(hb, 1)
		}
		if p.Header.FileName != "" {
			hb = protowire.AppendTag(hb, 6, protowire.BytesType)
			hb = protowire.AppendBytes(hb, []byte(p.Header.FileName))
		}
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, hb)
	}
	if p.Chunk != nil {
		var cb []byte
		cb = protowire.AppendTag(cb, 1, protowire.VarintType)
		cb = protowire.AppendVarint(cb, uint64(p.Chunk.Offset))
		cb = protowire.AppendTag(cb, 2, protowire.BytesType)
		cb = protowire.AppendBytes(cb, p.Chunk.Body)
		cb = protowire.AppendTag(cb, 3, protowire.VarintType)
		cb = protowire.AppendVarint(cb, uint64(p.Chunk.Flags))
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendBytes(b, cb)
	}
	return b
}

func UnmarshalPayloadTransferFrame(buf []byte) (*PayloadTransferFrame, error) {
	p := &PayloadTransferFrame{}
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return nil, fmt.Errorf("wire: PayloadTransferFrame: bad tag: %w", protowire.ParseError(n))
		}
		buf = buf[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: PayloadTransferFrame.packet_type: %w", protowire.ParseError(n))
			}
			p.PacketType = int32(v)
			buf = buf[n:]
		case 2:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: PayloadTransferFrame.payload_header: %w", protowire.ParseError(n))
			}
			h, err := unmarshalPayloadHeader(v)
			if err != nil {
				return nil, err
			}
			p.Header = h
			buf = buf[n:]
		case 3:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: PayloadTransferFrame.payload_chunk: %w", protowire.ParseError(n))
			}
			c, err := unmarshalPayloadChunk(v)
			if err != nil {
				return nil, err
			}
			p.Chunk = c
			buf = buf[n:]
		default:
			n, err := skipField(buf, typ)
			if err != nil {
				return nil, err
			}
			buf = buf[n:]
		}
	}
	return p, nil
}

func unmarshalPayloadHeader(buf []byte) (*PayloadHeader, error) {
	h := &PayloadHeader{}
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return nil, fmt.Errorf("wire: PayloadHeader: bad tag: %w", protowire.ParseError(n))
		}
		buf = buf[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: PayloadHeader.id: %w", protowire.ParseError(n))
			}
			h.ID = int64(v)
			buf = buf[n:]
		case 2:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: PayloadHeader.type: %w", protowire.ParseError(n))
			}
			h.Type = int32(v)
			buf = buf[n:]
		case 3:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: PayloadHeader.total_size: %w", protowire.ParseError(n))
			}
			h.TotalSize = int64(v)
			buf = buf[n:]
		case 5:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: PayloadHeader.is_sensitive: %w", protowire.ParseError(n))
			}
			h.IsSensitive = v != 0
			buf = buf[n:]
		case 6:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: PayloadHeader.file_name: %w", protowire.ParseError(n))
			}
			h.FileName = string(v)
			buf = buf[n:]
		default:
			n, err := skipField(buf, typ)
			if err != nil {
				return nil, err
			}
			buf = buf[n:]
		}
	}
	return h, nil
}

func unmarshalPayloadChunk(buf []byte) (*PayloadChunk, error) {
	c := &PayloadChunk{}
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return nil, fmt.Errorf("wire: PayloadChunk: bad tag: %w", protowire.ParseError(n))
		}
		buf = buf[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: PayloadChunk.offset: %w", protowire.ParseError(n))
			}
			c.Offset = int64(v)
			buf = buf[n:]
		case 2:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: PayloadChunk.body: %w", protowire.ParseError(n))
			}
			c.Body = append([]byte(nil), v...)
			buf = buf[n:]
		case 3:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: PayloadChunk.flags: %w", protowire.ParseError(n))
			}
			c.Flags = int32(v)
			buf = buf[n:]
		default:
			n, err := skipField(buf, typ)
			if err != nil {
				return nil, err
			}
			buf = buf[n:]
		}
	}
	return c, nil
}
