package port

import "time"

type PurchaseMetrics interface {
	ObservePurchase(outcome string, duration time.Duration)
	ObserveCompensation(resource string, ok bool)
	ObserveEventPublish(ok bool)
}
