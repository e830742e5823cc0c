package api

const (
	// PingEndpoint is the endpoint for checking the API status
	PingEndpoint = "/ping"
	// TransactionsEndpoint is the endpoint for submitting a transaction
	TransactionsEndpoint = "/transactions"
	// TransactionEndpoint is the endpoint to get the status of a transaction
	TransactionURLParam = "txId"
	TransactionEndpoint = "/transactions/{" + TransactionURLParam + "}"
	// AccumulatorEndpoint is the endpoint to get the current accumulator
	// snapshot
	AccumulatorEndpoint = "/accumulator"
	// PathEndpoint is the endpoint to get the membership path of a
	// commitment by its position
	PositionURLParam = "position"
	PathEndpoint     = "/accumulator/paths/{" + PositionURLParam + "}"
	// AnchorEndpoint is the endpoint to check whether a root is a valid anchor
	RootURLParam   = "root"
	AnchorEndpoint = "/anchors/{" + RootURLParam + "}"
	// NullifierEndpoint is the endpoint to get the spent status of a
	// nullifier with its proof
	NullifierURLParam = "nullifier"
	NullifierEndpoint = "/nullifiers/{" + NullifierURLParam + "}"
)
