package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Ukey2Message.MessageType (ukey.proto): the envelope every handshake step
// is wrapped in before the 4-byte length-prefixed frame (spec.md §4.1).
const (
	Ukey2MessageTypeAlert        = 1
	Ukey2MessageTypeClientInit   = 2
	Ukey2MessageTypeServerInit   = 3
	Ukey2MessageTypeClientFinish = 4
)

// Ukey2HandshakeCipher: this system only offers/accepts P256_SHA512
// (spec.md §4.1 step 2).
const Ukey2HandshakeCipherP256SHA512 = 100

// GenericPublicKeyType.
const GenericPublicKeyTypeEcP256 = 1

// Ukey2Alert.Type: the specific handshake failure reported back to the
// peer before terminating (spec.md §7 "Protocol fatal").
const (
	AlertTypeBadVersion         = 1
	AlertTypeBadRandom          = 2
	AlertTypeBadHandshakeCipher = 3
	AlertTypeBadNextProtocol    = 4
	AlertTypeBadMessage         = 5
	AlertTypeIncorrectCommitment = 6
)

type Ukey2Message struct {
	MessageType int32
	MessageData []byte
}

func (m *Ukey2Message) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.MessageType))
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, m.MessageData)
	return b
}

func UnmarshalUkey2Message(buf []byte) (*Ukey2Message, error) {
	m := &Ukey2Message{}
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return nil, fmt.Errorf("wire: Ukey2Message: bad tag: %w", protowire.ParseError(n))
		}
		buf = buf[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: Ukey2Message.message_type: %w", protowire.ParseError(n))
			}
			m.MessageType = int32(v)
			buf = buf[n:]
		case 2:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: Ukey2Message.message_data: %w", protowire.ParseError(n))
			}
			m.MessageData = append([]byte(nil), v...)
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

// CipherCommitment is Ukey2ClientInit.CipherCommitment.
type CipherCommitment struct {
	HandshakeCipher int32
	Commitment      []byte
}

type Ukey2ClientInit struct {
	Version            int32
	Random             []byte
	CipherCommitments  []CipherCommitment
	NextProtocol       string
}

func (c *Ukey2ClientInit) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(c.Version))
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, c.Random)
	for _, cc := range c.CipherCommitments {
		var cb []byte
		cb = protowire.AppendTag(cb, 1, protowire.VarintType)
		cb = protowire.AppendVarint(cb, uint64(cc.HandshakeCipher))
		cb = protowire.AppendTag(cb, 2, protowire.BytesType)
		cb = protowire.AppendBytes(cb, cc.Commitment)
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendBytes(b, cb)
	}
	b = protowire.AppendTag(b, 4, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte(c.NextProtocol))
	return b
}

func UnmarshalUkey2ClientInit(buf []byte) (*Ukey2ClientInit, error) {
	c := &Ukey2ClientInit{}
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return nil, fmt.Errorf("wire: Ukey2ClientInit: bad tag: %w", protowire.ParseError(n))
		}
		buf = buf[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: Ukey2ClientInit.version: %w", protowire.ParseError(n))
			}
			c.Version = int32(v)
			buf = buf[n:]
		case 2:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: Ukey2ClientInit.random: %w", protowire.ParseError(n))
			}
			c.Random = append([]byte(nil), v...)
			buf = buf[n:]
		case 3:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: Ukey2ClientInit.cipher_commitments: %w", protowire.ParseError(n))
			}
			cc, err := unmarshalCipherCommitment(v)
			if err != nil {
				return nil, err
			}
			c.CipherCommitments = append(c.CipherCommitments, *cc)
			buf = buf[n:]
		case 4:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: Ukey2ClientInit.next_protocol: %w", protowire.ParseError(n))
			}
			c.NextProtocol = string(v)
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

func unmarshalCipherCommitment(buf []byte) (*CipherCommitment, error) {
	cc := &CipherCommitment{}
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return nil, fmt.Errorf("wire: CipherCommitment: bad tag: %w", protowire.ParseError(n))
		}
		buf = buf[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: CipherCommitment.handshake_cipher: %w", protowire.ParseError(n))
			}
			cc.HandshakeCipher = int32(v)
			buf = buf[n:]
		case 2:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: CipherCommitment.commitment: %w", protowire.ParseError(n))
			}
			cc.Commitment = append([]byte(nil), v...)
			buf = buf[n:]
		default:
			n, err := skipField(buf, typ)
			if err != nil {
				return nil, err
			}
			buf = buf[n:]
		}
	}
	return cc, nil
}

type Ukey2ServerInit struct {
	Version         int32
	Random          []byte
	HandshakeCipher int32
	PublicKey       []byte // serialized GenericPublicKey
}

func (s *Ukey2ServerInit) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(s.Version))
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, s.Random)
	b = protowire.AppendTag(b, 3, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(s.HandshakeCipher))
	b = protowire.AppendTag(b, 4, protowire.BytesType)
	b = protowire.AppendBytes(b, s.PublicKey)
	return b
}

func UnmarshalUkey2ServerInit(buf []byte) (*Ukey2ServerInit, error) {
	s := &Ukey2ServerInit{}
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return nil, fmt.Errorf("wire: Ukey2ServerInit: bad tag: %w", protowire.ParseError(n))
		}
		buf = buf[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: Ukey2ServerInit.version: %w", protowire.ParseError(n))
			}
			s.Version = int32(v)
			buf = buf[n:]
		case 2:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: Ukey2ServerInit.random: %w", protowire.ParseError(n))
			}
			s.Random = append([]byte(nil), v...)
			buf = buf[n:]
		case 3:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: Ukey2ServerInit.handshake_cipher: %w", protowire.ParseError(n))
			}
			s.HandshakeCipher = int32(v)
			buf = buf[n:]
		case 4:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: Ukey2ServerInit.public_key: %w", protowire.ParseError(n))
			}
			s.PublicKey = append([]byte(nil), v...)
			buf = buf[n:]
		default:
			n, err := skipField(buf, typ)
			if err != nil {
				return nil, err
			}
			buf = buf[n:]
		}
	}
	return s, nil
}

type Ukey2ClientFinish struct {
	PublicKey []byte // serialized GenericPublicKey
}

func (c *Ukey2ClientFinish) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, c.PublicKey)
	return b
}

func UnmarshalUkey2ClientFinish(buf []byte) (*Ukey2ClientFinish, error) {
	c := &Ukey2ClientFinish{}
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return nil, fmt.Errorf("wire: Ukey2ClientFinish: bad tag: %w", protowire.ParseError(n))
		}
		buf = buf[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: Ukey2ClientFinish.public_key: %w", protowire.ParseError(n))
			}
			c.PublicKey = append([]byte(nil), v...)
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

type Ukey2Alert struct {
	Type         int32
	ErrorMessage string
}

func (a *Ukey2Alert) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(a.Type))
	if a.ErrorMessage != "" {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, []byte(a.ErrorMessage))
	}
	return b
}

func UnmarshalUkey2Alert(buf []byte) (*Ukey2Alert, error) {
	a := &Ukey2Alert{}
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return nil, fmt.Errorf("wire: Ukey2Alert: bad tag: %w", protowire.ParseError(n))
		}
		buf = buf[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: Ukey2Alert.type: %w", protowire.ParseError(n))
			}
			a.Type = int32(v)
			buf = buf[n:]
		case 2:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: Ukey2Alert.error_message: %w", protowire.ParseError(n))
			}
			a.ErrorMessage = string(v)
			buf = buf[n:]
		default:
			n, err := skipField(buf, typ)
			if err != nil {
				return nil, err
			}
			buf = buf[n:]
		}
	}
	return a, nil
}

// EcP256PublicKey is GenericPublicKey.EcP256PublicKey: the signed
// big-endian X/Y coordinates (spec.md §4.1 step 2).
type EcP256PublicKey struct {
	X []byte
	Y []byte
}

type GenericPublicKey struct {
	Type    int32
	EcP256  *EcP256PublicKey
}

func (k *GenericPublicKey) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(k.Type))
	if k.EcP256 != nil {
		var eb []byte
		eb = protowire.AppendTag(eb, 1, protowire.BytesType)
		eb = protowire.AppendBytes(eb, k.EcP256.X)
		eb = protowire.AppendTag(eb, 2, protowire.BytesType)
		eb = protowire.AppendBytes(eb, k.EcP256.Y)
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, eb)
	}
	return b
}

func UnmarshalGenericPublicKey(buf []byte) (*GenericPublicKey, error) {
	k := &GenericPublicKey{}
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return nil, fmt.Errorf("wire: GenericPublicKey: bad tag: %w", protowire.ParseError(n))
		}
		buf = buf[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: GenericPublicKey.type: %w", protowire.ParseError(n))
			}
			k.Type = int32(v)
			buf = buf[n:]
		case 2:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: GenericPublicKey.ec_p256_public_key: %w", protowire.ParseError(n))
			}
			ec, err := unmarshalEcP256(v)
			if err != nil {
				return nil, err
			}
			k.EcP256 = ec
			buf = buf[n:]
		default:
			n, err := skipField(buf, typ)
			if err != nil {
				return nil, err
			}
			buf = buf[n:]
		}
	}
	return k, nil
}

func unmarshalEcP256(buf []byte) (*EcP256PublicKey, error) {
	ec := &EcP256PublicKey{}
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return nil, fmt.Errorf("wire: EcP256PublicKey: bad tag: %w", protowire.ParseError(n))
		}
		buf = buf[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: EcP256PublicKey.x: %w", protowire.ParseError(n))
			}
			ec.X = append([]byte(nil), v...)
			buf = buf[n:]
		case 2:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: EcP256PublicKey.y: %w", protowire.ParseError(n))
			}
			ec.Y = append([]byte(nil), v...)
			buf = buf[n:]
		default:
			n, err := skipField(buf, typ)
			if err != nil {
				return nil, err
			}
			buf = buf[n:]
		}
	}
	return ec, nil
}
