package realtime

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const sendBufferSize = 32

// Subscription is the in-memory state of one topic subscription held by a
// connection. Its ID matches the durable store record.
type Subscription struct {
	ID     string
	Topic  string
	Params SubscriptionParams
}

// Connection is a live client connection. The Send channel is drained by
// the transport's write loop; the registry closes it on disconnect.
type Connection struct {
	ID        string
	Username  string
	CreatedAt time.Time
	Send      chan any

	subscriptions map[string]*Subscription
}

// NewConnection builds a connection with an empty subscription set.
// An empty username means the connection is anonymous.
func NewConnection(id, username string) *Connection {
	return &Connection{
		ID:            id,
		Username:      username,
		CreatedAt:     time.Now().UTC(),
		Send:          make(chan any, sendBufferSize),
		subscriptions: make(map[string]*Subscription),
	}
}

// GenerateConnectionID returns a fresh opaque connection id.
func GenerateConnectionID() string {
	id := uuid.New()
	return fmt.Sprintf("client_%x", id[:6])
}
