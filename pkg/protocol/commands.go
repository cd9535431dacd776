package protocol

import (
	"github.com/ethpandaops/levin/pkg/levin"
)

// Base of the command id ranges.
const (
	AdminCommandBase      uint32 = 1000
	CryptonoteCommandBase uint32 = 2000
)

// Administrative commands, answered by the peer.
var (
	Handshake    = levin.Command[HandshakeRequest, HandshakeResponse]{ID: AdminCommandBase + 1, Name: "handshake"}
	TimedSync    = levin.Command[TimedSyncRequest, TimedSyncResponse]{ID: AdminCommandBase + 2, Name: "timed_sync"}
	Ping         = levin.Command[PingRequest, PingResponse]{ID: AdminCommandBase + 3, Name: "ping"}
	SupportFlags = levin.Command[SupportFlagsRequest, SupportFlagsResponse]{ID: AdminCommandBase + 7, Name: "support_flags"}
)

// Block and transaction notifications.
var (
	NotifyNewBlock               = levin.Notification[NewBlock]{ID: CryptonoteCommandBase + 1, Name: "new_block"}
	NotifyNewTransactions        = levin.Notification[NewTransactions]{ID: CryptonoteCommandBase + 2, Name: "new_transactions"}
	NotifyRequestGetObjects      = levin.Notification[RequestGetObjects]{ID: CryptonoteCommandBase + 3, Name: "request_get_objects"}
	NotifyResponseGetObjects     = levin.Notification[ResponseGetObjects]{ID: CryptonoteCommandBase + 4, Name: "response_get_objects"}
	NotifyRequestChain           = levin.Notification[RequestChain]{ID: CryptonoteCommandBase + 6, Name: "request_chain"}
	NotifyResponseChainEntry     = levin.Notification[ResponseChainEntry]{ID: CryptonoteCommandBase + 7, Name: "response_chain_entry"}
	NotifyNewFluffyBlock         = levin.Notification[NewFluffyBlock]{ID: CryptonoteCommandBase + 8, Name: "new_fluffy_block"}
	NotifyRequestFluffyMissingTx = levin.Notification[RequestFluffyMissingTx]{ID: CryptonoteCommandBase + 9, Name: "request_fluffy_missing_tx"}
)

// CommandName returns the name of a known command id.
func CommandName(id uint32) string {
	switch id {
	case Handshake.ID:
		return Handshake.Name
	case TimedSync.ID:
		return TimedSync.Name
	case Ping.ID:
		return Ping.Name
	case SupportFlags.ID:
		return SupportFlags.Name
	case NotifyNewBlock.ID:
		return NotifyNewBlock.Name
	case NotifyNewTransactions.ID:
		return NotifyNewTransactions.Name
	case NotifyRequestGetObjects.ID:
		return NotifyRequestGetObjects.Name
	case NotifyResponseGetObjects.ID:
		return NotifyResponseGetObjects.Name
	case NotifyRequestChain.ID:
		return NotifyRequestChain.Name
	case NotifyResponseChainEntry.ID:
		return NotifyResponseChainEntry.Name
	case NotifyNewFluffyBlock.ID:
		return NotifyNewFluffyBlock.Name
	case NotifyRequestFluffyMissingTx.ID:
		return NotifyRequestFluffyMissingTx.Name
	default:
		return "unknown"
	}
}
