package redis

const (
	// KeyEpoch holds the persisted epoch clock position
	KeyEpoch = "railmeter:state:epoch"
	// KeyUptime holds the uptime ledger snapshot
	KeyUptime = "railmeter:state:uptime"
	// KeyLifecycle holds the lifecycle manager snapshot
	KeyLifecycle = "railmeter:state:lifecycle"
	// KeyPayments holds the payments ledger snapshot
	KeyPayments = "railmeter:state:payments"
)
