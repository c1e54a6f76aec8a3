// Package wire hand-marshals the protobuf messages from spec.md §4.2/§4.3
// using google.golang.org/protobuf/encoding/protowire directly, since full
// protoc codegen isn't available here. Field numbers and enum values are a
// reconstruction of Google's securemessage/securegcm/ukey2/Nearby schemas,
// not a transcription of the .proto files, and have not been checked
// against them; both ends of this package agree with each other, but
// interoperability with other implementations is not established.
package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// EncScheme/SigScheme mirror securemessage.proto's EncryptionScheme and
// SignatureScheme enums; this system only ever uses the AES_256_CBC /
// HMAC_SHA256 pair (spec.md §4.3).
const (
	EncSchemeAES256CBC   = 2
	SigSchemeHMACSHA256  = 2
)

// GcmMetadataType mirrors securegcm.proto's GcmMetadata.Type; only
// DEVICE_TO_DEVICE_MESSAGE is used post-handshake.
const GcmMetadataTypeDeviceToDevice = 4

// Header is securemessage.proto's Header message, restricted to the fields
// this system populates.
type Header struct {
	SignatureScheme   int32
	EncryptionScheme  int32
	IV                []byte
	PublicMetadata    []byte // serialized GcmMetadata
}

func (h *Header) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(h.SignatureScheme))
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(h.EncryptionScheme))
	if len(h.PublicMetadata) > 0 {
		b = protowire.AppendTag(b, 5, protowire.BytesType)
		b = protowire.AppendBytes(b, h.PublicMetadata)
	}
	if len(h.IV) > 0 {
		b = protowire.AppendTag(b, 7, protowire.BytesType)
		b = protowire.AppendBytes(b, h.IV)
	}
	return b
}

func UnmarshalHeader(buf []byte) (*Header, error) {
	h := &Header{}
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return nil, fmt.Errorf("wire: Header: bad tag: %w", protowire.ParseError(n))
		}
		buf = buf[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: Header.signature_scheme: %w", protowire.ParseError(n))
			}
			h.SignatureScheme = int32(v)
			buf = buf[n:]
		case 2:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: Header.encryption_scheme: %w", protowire.ParseError(n))
			}
			h.EncryptionScheme = int32(v)
			buf = buf[n:]
		case 5:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: Header.public_metadata: %w", protowire.ParseError(n))
			}
			h.PublicMetadata = append([]byte(nil), v...)
			buf = buf[n:]
		case 7:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: Header.iv: %w", protowire.ParseError(n))
			}
			h.IV = append([]byte(nil), v...)
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

// HeaderAndBody is securemessage.proto's HeaderAndBody message.
type HeaderAndBody struct {
	Header []byte // serialized Header
	Body   []byte
}

func (hb *HeaderAndBody) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, hb.Header)
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, hb.Body)
	return b
}

func UnmarshalHeaderAndBody(buf []byte) (*HeaderAndBody, error) {
	hb := &HeaderAndBody{}
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return nil, fmt.Errorf("wire: HeaderAndBody: bad tag: %w", protowire.ParseError(n))
		}
		buf = buf[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: HeaderAndBody.header: %w", protowire.ParseError(n))
			}
			hb.Header = append([]byte(nil), v...)
			buf = buf[n:]
		case 2:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: HeaderAndBody.body: %w", protowire.ParseError(n))
			}
			hb.Body = append([]byte(nil), v...)
			buf = buf[n:]
		default:
			n, err := skipField(buf, typ)
			if err != nil {
				return nil, err
			}
			buf = buf[n:]
		}
	}
	return hb, nil
}

// SecureMessage is securemessage.proto's top-level SecureMessage message.
type SecureMessage struct {
	HeaderAndBody []byte // serialized HeaderAndBody
	Signature     []byte
}

func (sm *SecureMessage) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, sm.HeaderAndBody)
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, sm.Signature)
	return b
}

func UnmarshalSecureMessage(buf []byte) (*SecureMessage, error) {
	sm := &SecureMessage{}
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return nil, fmt.Errorf("wire: SecureMessage: bad tag: %w", protowire.ParseError(n))
		}
		buf = buf[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: SecureMessage.header_and_body: %w", protowire.ParseError(n))
			}
			sm.HeaderAndBody = append([]byte(nil), v...)
			buf = buf[n:]
		case 2:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: SecureMessage.signature: %w", protowire.ParseError(n))
			}
			sm.Signature = append([]byte(nil), v...)
			buf = buf[n:]
		default:
			n, err := skipField(buf, typ)
			if err != nil {
				return nil, err
			}
			buf = buf[n:]
		}
	}
	return sm, nil
}

// skipField consumes and discards one field's value of the given wire type,
// used by every Unmarshal* to tolerate unknown fields (forward compat, as
// any real protobuf parser does).
func skipField(buf []byte, typ protowire.Type) (int, error) {
	n := protowire.ConsumeFieldValue(0, typ, buf)
	if n < 0 {
		return 0, fmt.Errorf("wire: skip unknown field: %w", protowire.ParseError(n))
	}
	return n, nil
}
