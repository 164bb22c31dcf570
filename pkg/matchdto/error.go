package matchdto

import "fmt"

// DeliveryError is returned when a webhook answers with a non-2xx status.
type DeliveryError struct {
	Status    int
	Body      string
	Retryable bool
}

func (e DeliveryError) Error() string {
	return fmt.Sprintf("webhook error: status=%d body=%s", e.Status, e.Body)
}
