package sync

// PacketID numbers the ETH/63-66 and PAR/1-2 (warp) wire packets ChainSync
// speaks. Values match the devp2p subprotocol's message-id space so a
// transport layer can pass the byte straight through from the wire.
type PacketID uint8

const (
	StatusPacket                       PacketID = 0x00
	NewBlockHashesPacket                PacketID = 0x01
	TransactionsPacket                  PacketID = 0x02
	GetBlockHeadersPacket                PacketID = 0x03
	BlockHeadersPacket                  PacketID = 0x04
	GetBlockBodiesPacket                PacketID = 0x05
	BlockBodiesPacket                   PacketID = 0x06
	NewBlockPacket                      PacketID = 0x07
	GetNodeDataPacket                   PacketID = 0x0d
	NodeDataPacket                      PacketID = 0x0e
	GetReceiptsPacket                   PacketID = 0x0f
	ReceiptsPacket                      PacketID = 0x10
	NewPooledTransactionHashesPacket    PacketID = 0x08
	GetPooledTransactionsPacket         PacketID = 0x09
	PooledTransactionsPacket            PacketID = 0x0a

	// Warp (PAR) snapshot packets live outside the ETH id space in the real
	// protocol (a separate subprotocol offset); kept contiguous here since
	// this package only ever sees the already-demultiplexed packet id.
	GetSnapshotManifestPacket PacketID = 0x11
	SnapshotManifestPacket    PacketID = 0x12
	GetSnapshotDataPacket     PacketID = 0x13
	SnapshotDataPacket        PacketID = 0x14
)

func (p PacketID) String() string {
	switch p {
	case StatusPacket:
		return "Status"
	case NewBlockHashesPacket:
		return "NewBlockHashes"
	case TransactionsPacket:
		return "Transactions"
	case GetBlockHeadersPacket:
		return "GetBlockHeaders"
	case BlockHeadersPacket:
		return "BlockHeaders"
	case GetBlockBodiesPacket:
		return "GetBlockBodies"
	case BlockBodiesPacket:
		return "BlockBodies"
	case NewBlockPacket:
		return "NewBlock"
	case GetNodeDataPacket:
		return "GetNodeData"
	case NodeDataPacket:
		return "NodeData"
	case GetReceiptsPacket:
		return "GetReceipts"
	case ReceiptsPacket:
		return "Receipts"
	case NewPooledTransactionHashesPacket:
		return "NewPooledTransactionHashes"
	case GetPooledTransactionsPacket:
		return "GetPooledTransactions"
	case PooledTransactionsPacket:
		return "PooledTransactions"
	case GetSnapshotManifestPacket:
		return "GetSnapshotManifest"
	case SnapshotManifestPacket:
		return "SnapshotManifest"
	case GetSnapshotDataPacket:
		return "GetSnapshotData"
	case SnapshotDataPacket:
		return "SnapshotData"
	default:
		return "Unknown"
	}
}

// per-kind send caps, spec.md §4.E.
const (
	MaxHeadersToSend  = 512
	MaxBodiesToSend   = 256
	MaxReceiptsToSend = 256
	MaxNodeDataToSend = 1024
	// PayloadSoftLimit bounds the encoded size of a single supply-side
	// response; once exceeded the current item is still included (an
	// in-flight item is never truncated) but no further items are added.
	PayloadSoftLimit = 5 * 1024 * 1024
)
