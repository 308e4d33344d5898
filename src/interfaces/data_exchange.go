package interfaces

import "github.com/bsouthga/gop-primary-twitter-fun/src/models"

// -----------------------------------------------------------------------------
// IDataExchanger defines the interface for sharing data with external
// subscribers (Server/Push).
// -----------------------------------------------------------------------------

type IDataExchanger interface {

	// -----------------------------------------------------------------------------

	// Broadcast pushes one typed message to every active subscriber.
	Broadcast(msg *models.MEnvelope)

	// -----------------------------------------------------------------------------

	// SubscriberCount reports the current number of active subscribers.
	SubscriberCount() int

	// -----------------------------------------------------------------------------

	// Start the server
	Start() error

	// -----------------------------------------------------------------------------

	// Stop the server gracefully
	Stop() error
}
