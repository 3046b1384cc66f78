package booking

import (
	"context"
	"log"

	"github.com/iliyamo/bookmyseat/internal/model"
)

// Publisher receives every ledger record after its transaction committed.
// PublishConcluded runs on the request path and must not wait on a broker.
type Publisher interface {
	PublishConcluded(ctx context.Context, rec model.BookingRecord) error
}

// Announce hands committed records to pub.  Failures are logged only: the
// ledger row is already durable.
func Announce(ctx context.Context, pub Publisher, recs []model.BookingRecord) {
	if pub == nil {
		return
	}
	for _, rec := range recs {
		if err := pub.PublishConcluded(ctx, rec); err != nil {
			log.Printf("booking: publish %s for %s/%s failed: %v", rec.Status, rec.SeatNumber, rec.RollNumber, err)
		}
	}
}
