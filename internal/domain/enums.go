package domain

type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionOnBreak   SessionStatus = "on_break"
	SessionCompleted SessionStatus = "completed"
)

type TargetKind string

const (
	TargetTimeEvent TargetKind = "time_event"
	TargetSnapshot  TargetKind = "aggregate_snapshot"
)

type OperationKind string

const (
	OpCreate OperationKind = "create"
	OpUpdate OperationKind = "update"
	OpDelete OperationKind = "delete"
)
