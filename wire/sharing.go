package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Sharing-layer V1Frame.Type (spec.md §4.2): the frame carried inside an
// offline PayloadTransferFrame's Bytes payload once the handshake is done.
const (
	SharingFrameTypePairedKeyEncryption = 1
	SharingFrameTypePairedKeyResult     = 2
	SharingFrameTypeIntroduction        = 3
	SharingFrameTypeResponse            = 4
	SharingFrameTypeCancel              = 5
)

// ConnectionResponseFrame.Status (spec.md §4.2).
const (
	ConnectionStatusUnknown                   = 0
	ConnectionStatusAccept                    = 1
	ConnectionStatusReject                    = 2
	ConnectionStatusNotEnoughSpace            = 3
	ConnectionStatusUnsupportedAttachmentType = 4
	ConnectionStatusTimedOut                  = 5
)

// PairedKeyResultFrame.Status: this system never completes pairing
// (spec.md Non-goals), so outbound always sends Unable.
const (
	PairedKeyResultUnknown = 0
	PairedKeyResultSuccess = 1
	PairedKeyResultFail    = 2
	PairedKeyResultUnable  = 3
)

// TextMetadata.Type (spec.md §7 scenario 3: Url).
const (
	TextTypeUnknown     = 0
	TextTypeText        = 1
	TextTypeUrl         = 2
	TextTypeAddress     = 3
	TextTypePhoneNumber = 4
)

// FileMetadata.Type.
const (
	FileTypeUnknown = 0
	FileTypeImage   = 1
	FileTypeVideo   = 2
	FileTypeApp     = 3
	FileTypeAudio   = 4
)

// WifiCredentialsMetadata.SecurityType (spec.md §7 scenario 4).
const (
	WifiSecurityUnknown = 0
	WifiSecurityOpen    = 1
	WifiSecurityWpaPsk  = 2
	WifiSecurityWep     = 3
)

// Frame is the sharing layer's top-level envelope.
type Frame struct {
	Version int32
	V1      *SharingV1Frame
}

func (f *Frame) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(f.Version))
	if f.V1 != nil {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, f.V1.Marshal())
	}
	return b
}

func UnmarshalFrame(buf []byte) (*Frame, error) {
	f := &Frame{}
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return nil, fmt.Errorf("wire: sharing Frame: bad tag: %w", protowire.ParseError(n))
		}
		buf = buf[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: sharing Frame.version: %w", protowire.ParseError(n))
			}
			f.Version = int32(v)
			buf = buf[n:]
		case 2:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: sharing Frame.v1: %w", protowire.ParseError(n))
			}
			v1, err := UnmarshalSharingV1Frame(v)
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

type SharingV1Frame struct {
	Type                int32
	Introduction        *IntroductionFrame
	ConnectionResponse  *ConnectionResponseFrame
	PairedKeyEncryption *PairedKeyEncryptionFrame
	PairedKeyResult     *PairedKeyResultFrame
}

func (v *SharingV1Frame) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(v.Type))
	if v.Introduction != nil {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, v.Introduction.Marshal())
	}
	if v.ConnectionResponse != nil {
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendBytes(b, v.ConnectionResponse.Marshal())
	}
	if v.PairedKeyEncryption != nil {
		b = protowire.AppendTag(b, 4, protowire.BytesType)
		b = protowire.AppendBytes(b, v.PairedKeyEncryption.Marshal())
	}
	if v.PairedKeyResult != nil {
		b = protowire.AppendTag(b, 5, protowire.BytesType)
		b = protowire.AppendBytes(b, v.PairedKeyResult.Marshal())
	}
	return b
}

func UnmarshalSharingV1Frame(buf []byte) (*SharingV1Frame, error) {
	v := &SharingV1Frame{}
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return nil, fmt.Errorf("wire: SharingV1Frame: bad tag: %w", protowire.ParseError(n))
		}
		buf = buf[n:]
		switch num {
		case 1:
			x, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: SharingV1Frame.type: %w", protowire.ParseError(n))
			}
			v.Type = int32(x)
			buf = buf[n:]
		case 2:
			x, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: SharingV1Frame.introduction: %w", protowire.ParseError(n))
			}
			intro, err := UnmarshalIntroductionFrame(x)
			if err != nil {
				return nil, err
			}
			v.Introduction = intro
			buf = buf[n:]
		case 3:
			x, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: SharingV1Frame.connection_response: %w", protowire.ParseError(n))
			}
			cr, err := UnmarshalConnectionResponseFrame(x)
			if err != nil {
				return nil, err
			}
			v.ConnectionResponse = cr
			buf = buf[n:]
		case 4:
			x, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: SharingV1Frame.paired_key_encryption: %w", protowire.ParseError(n))
			}
			pke, err := UnmarshalPairedKeyEncryptionFrame(x)
			if err != nil {
				return nil, err
			}
			v.PairedKeyEncryption = pke
			buf = buf[n:]
		case 5:
			x, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: SharingV1Frame.paired_key_result: %w", protowire.ParseError(n))
			}
			pkr, err := UnmarshalPairedKeyResultFrame(x)
			if err != nil {
				return nil, err
			}
			v.PairedKeyResult = pkr
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

// FileMetadata is IntroductionFrame.FileMetadata.
type FileMetadata struct {
	Name      string
	Type      int32
	PayloadID int64
	Size      int64
	MimeType  string
}

// TextMetadata is IntroductionFrame.TextMetadata.
type TextMetadata struct {
	TextTitle string
	Type      int32
	PayloadID int64
	Size      int64
}

// WifiCredentialsMetadata is IntroductionFrame.WifiCredentialsMetadata.
type WifiCredentialsMetadata struct {
	SSID         string
	SecurityType int32
	PayloadID    int64
}

// IntroductionFrame classifies exactly one populated metadata kind per
// transfer (spec.md §4.1 step 7).
type IntroductionFrame struct {
	FileMetadata  []FileMetadata
	TextMetadata  []TextMetadata
	WifiMetadata  []WifiCredentialsMetadata
}

func (f *IntroductionFrame) Marshal() []byte {
	var b []byte
	for _, fm := range f.FileMetadata {
		var fb []byte
		fb = protowire.AppendTag(fb, 1, protowire.BytesType)
		fb = protowire.AppendBytes(fb, []byte(fm.Name))
		fb = protowire.AppendTag(fb, 2, protowire.VarintType)
		fb = protowire.AppendVarint(fb, uint64(fm.Type))
		fb = protowire.AppendTag(fb, 3, protowire.VarintType)
		fb = protowire.AppendVarint(fb, uint64(fm.PayloadID))
		fb = protowire.AppendTag(fb, 4, protowire.VarintType)
		fb = protowire.AppendVarint(fb, uint64(fm.Size))
		if fm.MimeType != "" {
			fb = protowire.AppendTag(fb, 6, protowire.BytesType)
			fb = protowire.AppendBytes(fb, []byte(fm.MimeType))
		}
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, fb)
	}
	for _, tm := range f.TextMetadata {
		var tb []byte
		tb = protowire.AppendTag(tb, 1, protowire.BytesType)
		tb = protowire.AppendBytes(tb, []byte(tm.TextTitle))
		tb = protowire.AppendTag(tb, 2, protowire.VarintType)
		tb = protowire.AppendVarint(tb, uint64(tm.Type))
		tb = protowire.AppendTag(tb, 3, protowire.VarintType)
		tb = protowire.AppendVarint(tb, uint64(tm.PayloadID))
		tb = protowire.AppendTag(tb, 4, protowire.VarintType)
		tb = protowire.AppendVarint(tb, uint64(tm.Size))
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, tb)
	}
	for _, wm := range f.WifiMetadata {
		var wb []byte
		wb = protowire.AppendTag(wb, 1, protowire.BytesType)
		wb = protowire.AppendBytes(wb, []byte(wm.SSID))
		wb = protowire.AppendTag(wb, 2, protowire.VarintType)
		wb = protowire.AppendVarint(wb, uint64(wm.SecurityType))
		wb = protowire.AppendTag(wb, 3, protowire.VarintType)
		wb = protowire.AppendVarint(wb, uint64(wm.PayloadID))
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendBytes(b, wb)
	}
	return b
}

func UnmarshalIntroductionFrame(buf []byte) (*IntroductionFrame, error) {
	f := &IntroductionFrame{}
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return nil, fmt.Errorf("wire: IntroductionFrame: bad tag: %w", protowire.ParseError(n))
		}
		buf = buf[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: IntroductionFrame.file_metadata: %w", protowire.ParseError(n))
			}
			fm, err := unmarshalFileMetadata(v)
			if err != nil {
				return nil, err
			}
			f.FileMetadata = append(f.FileMetadata, *fm)
			buf = buf[n:]
		case 2:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: IntroductionFrame.text_metadata: %w", protowire.ParseError(n))
			}
			tm, err := unmarshalTextMetadata(v)
			if err != nil {
				return nil, err
			}
			f.TextMetadata = append(f.TextMetadata, *tm)
			buf = buf[n:]
		case 3:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: IntroductionFrame.wifi_credentials_metadata: %w", protowire.ParseError(n))
			}
			wm, err := unmarshalWifiMetadata(v)
			if err != nil {
				return nil, err
			}
			f.WifiMetadata = append(f.WifiMetadata, *wm)
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

func unmarshalFileMetadata(buf []byte) (*FileMetadata, error) {
	fm := &FileMetadata{}
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return nil, fmt.Errorf("wire: FileMetadata: bad tag: %w", protowire.ParseError(n))
		}
		buf = buf[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: FileMetadata.name: %w", protowire.ParseError(n))
			}
			fm.Name = string(v)
			buf = buf[n:]
		case 2:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: FileMetadata.type: %w", protowire.ParseError(n))
			}
			fm.Type = int32(v)
			buf = buf[n:]
		case 3:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: FileMetadata.payload_id: %w", protowire.ParseError(n))
			}
			fm.PayloadID = int64(v)
			buf = buf[n:]
		case 4:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: FileMetadata.size: %w", protowire.ParseError(n))
			}
			fm.Size = int64(v)
			buf = buf[n:]
		case 6:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: FileMetadata.mime_type: %w", protowire.ParseError(n))
			}
			fm.MimeType = string(v)
			buf = buf[n:]
		default:
			n, err := skipField(buf, typ)
			if err != nil {
				return nil, err
			}
			buf = buf[n:]
		}
	}
	return fm, nil
}

func unmarshalTextMetadata(buf []byte) (*TextMetadata, error) {
	tm := &TextMetadata{}
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return nil, fmt.Errorf("wire: TextMetadata: bad tag: %w", protowire.ParseError(n))
		}
		buf = buf[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: TextMetadata.text_title: %w", protowire.ParseError(n))
			}
			tm.TextTitle = string(v)
			buf = buf[n:]
		case 2:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: TextMetadata.type: %w", protowire.ParseError(n))
			}
			tm.Type = int32(v)
			buf = buf[n:]
		case 3:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: TextMetadata.payload_id: %w", protowire.ParseError(n))
			}
			tm.PayloadID = int64(v)
			buf = buf[n:]
		case 4:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: TextMetadata.size: %w", protowire.ParseError(n))
			}
			tm.Size = int64(v)
			buf = buf[n:]
		default:
			n, err := skipField(buf, typ)
			if err != nil {
				return nil, err
			}
			buf = buf[n:]
		}
	}
	return tm, nil
}

func unmarshalWifiMetadata(buf []byte) (*WifiCredentialsMetadata, error) {
	wm := &WifiCredentialsMetadata{}
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return nil, fmt.Errorf("wire: WifiCredentialsMetadata: bad tag: %w", protowire.ParseError(n))
		}
		buf = buf[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: WifiCredentialsMetadata.ssid: %w", protowire.ParseError(n))
			}
			wm.SSID = string(v)
			buf = buf[n:]
		case 2:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: WifiCredentialsMetadata.security_type: %w", protowire.ParseError(n))
			}
			wm.SecurityType = int32(v)
			buf = buf[n:]
		case 3:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: WifiCredentialsMetadata.payload_id: %w", protowire.ParseError(n))
			}
			wm.PayloadID = int64(v)
			buf = buf[n:]
		default:
			n, err := skipField(buf, typ)
			if err != nil {
				return nil, err
			}
			buf = buf[n:]
		}
	}
	return wm, nil
}

// ConnectionResponseFrame is the sharing-layer consent response
// (spec.md §4.1 step 9): Accept/Reject/NotEnoughSpace/... .
type ConnectionResponseFrame struct {
	Status int32
}

func (c *ConnectionResponseFrame) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(c.Status))
	return b
}

func UnmarshalConnectionResponseFrame(buf []byte) (*ConnectionResponseFrame, error) {
	c := &ConnectionResponseFrame{}
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return nil, fmt.Errorf("wire: ConnectionResponseFrame: bad tag: %w", protowire.ParseError(n))
		}
		buf = buf[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: ConnectionResponseFrame.status: %w", protowire.ParseError(n))
			}
			c.Status = int32(v)
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

// PairedKeyEncryptionFrame carries a device's unpairable key hash (spec.md
// §4.1 step 5/6); both the inbound and outbound roles send one. This system
// never has a stored pairing, so the hash is always freshly random.
type PairedKeyEncryptionFrame struct {
	SecretIDHash []byte
	SignedData   []byte
}

func (p *PairedKeyEncryptionFrame) Marshal() []byte {
	var b []byte
	if len(p.SecretIDHash) > 0 {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, p.SecretIDHash)
	}
	if len(p.SignedData) > 0 {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, p.SignedData)
	}
	return b
}

func UnmarshalPairedKeyEncryptionFrame(buf []byte) (*PairedKeyEncryptionFrame, error) {
	p := &PairedKeyEncryptionFrame{}
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return nil, fmt.Errorf("wire: PairedKeyEncryptionFrame: bad tag: %w", protowire.ParseError(n))
		}
		buf = buf[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: PairedKeyEncryptionFrame.secret_id_hash: %w", protowire.ParseError(n))
			}
			p.SecretIDHash = append([]byte(nil), v...)
			buf = buf[n:]
		case 2:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: PairedKeyEncryptionFrame.signed_data: %w", protowire.ParseError(n))
			}
			p.SignedData = append([]byte(nil), v...)
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

// PairedKeyResultFrame is always sent/expected as Unable by this system,
// matching spec.md's Non-goal of no server-side pairing.
type PairedKeyResultFrame struct {
	Status int32
}

func (p *PairedKeyResultFrame) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(p.Status))
	return b
}

func UnmarshalPairedKeyResultFrame(buf []byte) (*PairedKeyResultFrame, error) {
	p := &PairedKeyResultFrame{}
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return nil, fmt.Errorf("wire: PairedKeyResultFrame: bad tag: %w", protowire.ParseError(n))
		}
		buf = buf[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, fmt.Errorf("wire: PairedKeyResultFrame.status: %w", protowire.ParseError(n))
			}
			p.Status = int32(v)
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
