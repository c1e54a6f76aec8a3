package session

import "fmt"

// securityTypeName maps wire.WifiCredentialsMetadata.SecurityType to the
// string spec.md §4.1 says to surface for any security type this system
// doesn't otherwise special-case.
var securityTypeName = map[int32]string{
	0: "Unknown",
	1: "Open",
	2: "WpaPsk",
	3: "Wep",
}

// parseWifiPassword decodes the Wi-Fi password payload bytes per spec.md
// §4.1: not a plain UTF-8 string. Requires len(b) >= 4 and b[len-2]==0x10;
// b[1] is the password length; the password is b[2:2+b[1]]. The final byte
// (b[len-1]) is discarded — its meaning is an open question (spec.md §9).
func parseWifiPassword(b []byte, securityType int32) (string, error) {
	switch securityType {
	case 1: // Open
		return "", nil
	case 2, 3: // WpaPsk, Wep
		// fall through to byte-layout parsing below
	default:
		if name, ok := securityTypeName[securityType]; ok {
			return name, nil
		}
		return fmt.Sprintf("Unknown(%d)", securityType), nil
	}
	if len(b) < 4 {
		return "", fmt.Errorf("session: wifi password payload shorter than 4 bytes")
	}
	if b[len(b)-2] != 0x10 {
		return "", fmt.Errorf("session: wifi password payload missing 0x10 marker")
	}
	pwLen := int(b[1])
	if 2+pwLen > len(b) {
		return "", fmt.Errorf("session: wifi password length exceeds payload")
	}
	return string(b[2 : 2+pwLen]), nil
}
