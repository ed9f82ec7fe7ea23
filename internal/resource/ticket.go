package resource

// Status is the lifecycle state of a provider operation.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusRunning Status = "RUNNING"
	StatusDone    Status = "DONE"
)

// Warning is a non-fatal message attached to a finished operation.
type Warning struct {
	Code    string `json:"code" yaml:"code"`
	Message string `json:"message" yaml:"message"`
}

// Ticket is a pending long-running operation returned by an insert or update.
type Ticket struct {
	ID        string
	Kind      Kind
	Name      string
	Status    Status
	TargetRef string
	// Location is the provider scope the operation must be refreshed in
	// (empty for global operations).
	Location string

	ErrorCode    string
	ErrorMessage string
	Warnings     []Warning
}

// Done reports whether the operation reached a terminal state.
func (t Ticket) Done() bool {
	return t.Status == StatusDone
}

// Failed reports whether a terminal operation carries an error.
func (t Ticket) Failed() bool {
	return t.Done() && (t.ErrorCode != "" || t.ErrorMessage != "")
}

// Handle returns the identity of the operation's target.
func (t Ticket) Handle() Handle {
	return Handle{Kind: t.Kind, Name: t.Name, Ref: t.TargetRef}
}
