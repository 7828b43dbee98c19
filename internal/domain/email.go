package domain

// Email is an outbound message produced by account flows.
type Email struct {
	To      string
	Subject string
	Body    string
}
