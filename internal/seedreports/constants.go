package seedreports

import "time"

// Worker configuration constants.
const (
	workerChannelMultiplier = 2
)

// Submission retry constants. The service throttles per device, so a
// throttled report just waits for the bucket to refill and goes again.
const (
	throttleRetryDelay = 200 * time.Millisecond
	maxSubmitAttempts  = 300
)

// Drain polling constants.
const (
	drainPollInterval = 250 * time.Millisecond
	drainSettleDelay  = time.Second
	drainTimeout      = 2 * time.Minute
)

// duplicateSampleStride picks every Nth report for the duplicate
// resubmission check.
const duplicateSampleStride = 100

const percentageMultiplier = 100
