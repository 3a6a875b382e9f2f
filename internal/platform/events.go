package platform

// Event is anything a handle reports through its EventHandler
type Event interface {
	isEvent()
}

// QRIssued carries a new pairing code
type QRIssued struct {
	Code string
}

// Authenticated means pairing succeeded or a stored session was accepted
type Authenticated struct{}

// AuthFailure means pairing or session restore was rejected
type AuthFailure struct {
	Message string
}

// Ready means the session is fully connected
type Ready struct{}

// Disconnected means the platform ended the session
type Disconnected struct {
	Reason string
}

// Fatal means the handle is unusable and must be replaced
type Fatal struct {
	Err error
}

// MessageReceived carries a new inbound or outbound message
type MessageReceived struct {
	Message RawMessage
	Chat    *RawChat
	Contact *RawContact
}

// AckChanged carries a new ack level for a message
type AckChanged struct {
	MessageID string
	ChatID    string
	Ack       int
}

func (QRIssued) isEvent()        {}
func (Authenticated) isEvent()   {}
func (AuthFailure) isEvent()     {}
func (Ready) isEvent()           {}
func (Disconnected) isEvent()    {}
func (Fatal) isEvent()           {}
func (MessageReceived) isEvent() {}
func (AckChanged) isEvent()      {}
