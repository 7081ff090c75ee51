package businessflow

import (
	"context"
	"log"

	"github.com/amirphl/kargo/app/services"
)

// notifyContact sends message by email when an address is known, otherwise by SMS.
// Delivery is best effort: failures are logged and never reach the caller.
func notifyContact(ctx context.Context, notifier services.NotificationService, email, phone *string, subject, message string) bool {
	if notifier == nil {
		return false
	}
	var err error
	switch {
	case email != nil && *email != "":
		err = notifier.SendEmail(ctx, *email, subject, message)
	case phone != nil && *phone != "":
		err = notifier.SendSMS(ctx, *phone, message)
	default:
		return false
	}
	if err != nil {
		log.Printf(`{"level":"warn","op":"notify","subject":%q,"error":%q}`, subject, err.Error())
		return false
	}
	return true
}
