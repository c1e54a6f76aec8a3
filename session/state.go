// Package session implements the per-connection transfer state machine
// (spec.md §4.1): the UKEY2 handshake, the offline/sharing frame protocol,
// and the encrypted payload exchange, for both the inbound (server) and
// outbound (client) roles.
package session

// State is one node of the 15+ state machine shared by inbound and outbound
// sessions (spec.md §4.1); only a subset applies to either role.
type State int

const (
	Initial State = iota
	ReceivedConnectionRequest
	SentUkeyServerInit
	ReceivedUkeyClientFinish
	SentConnectionResponse
	SentUkeyClientInit
	SentUkeyClientFinish
	SentPairedKeyEncryption
	SentPairedKeyResult
	ReceivedPairedKeyResult
	WaitingForUserConsent
	ReceivingFiles
	SentIntroduction
	SendingFiles
	Finished
	Rejected
	Cancelled
	Disconnected
)

func (s State) String() string {
	switch s {
	case Initial:
		return "Initial"
	case ReceivedConnectionRequest:
		return "ReceivedConnectionRequest"
	case SentUkeyServerInit:
		return "SentUkeyServerInit"
	case ReceivedUkeyClientFinish:
		return "ReceivedUkeyClientFinish"
	case SentConnectionResponse:
		return "SentConnectionResponse"
	case SentUkeyClientInit:
		return "SentUkeyClientInit"
	case SentUkeyClientFinish:
		return "SentUkeyClientFinish"
	case SentPairedKeyEncryption:
		return "SentPairedKeyEncryption"
	case SentPairedKeyResult:
		return "SentPairedKeyResult"
	case ReceivedPairedKeyResult:
		return "ReceivedPairedKeyResult"
	case WaitingForUserConsent:
		return "WaitingForUserConsent"
	case ReceivingFiles:
		return "ReceivingFiles"
	case SentIntroduction:
		return "SentIntroduction"
	case SendingFiles:
		return "SendingFiles"
	case Finished:
		return "Finished"
	case Rejected:
		return "Rejected"
	case Cancelled:
		return "Cancelled"
	case Disconnected:
		return "Disconnected"
	default:
		return "Unknown"
	}
}

// Terminal reports whether a state closes the socket and releases
// resources (spec.md §4.1).
func (s State) Terminal() bool {
	switch s {
	case Finished, Rejected, Cancelled, Disconnected:
		return true
	default:
		return false
	}
}
