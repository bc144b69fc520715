package models

// Transaction directions as stored by the transactions collaborator.
const (
	DirectionOutgoing = "OUTGOING"
	DirectionIncoming = "INCOMING"
)
