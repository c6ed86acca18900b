package domain

// ShareLink statuses. Deletion is modelled as row absence, not a status.
const (
	ShareStatusPending  = "pending"
	ShareStatusApproved = "approved"
)

// Presentational kinds for a removed ShareLink. Every one of them is a delete.
const (
	RemovalRejected     = "rejected"
	RemovalCancelled    = "cancelled"
	RemovalDisconnected = "disconnected"
)

// Position stream states surfaced to the user.
const (
	PositionOK               = "ok"
	PositionPermissionDenied = "permission_denied"
	PositionUnavailable      = "unavailable"
	PositionTimeout          = "timeout"
)

const DefaultDisplayName = "Anonymous"

// Notification types pushed over FCM.
const (
	NotifyShareRequested = "SHARE_REQUESTED"
	NotifyShareApproved  = "SHARE_APPROVED"
)
