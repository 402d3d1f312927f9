package orders

type Status string

const (
	StatusNew        Status = "New"
	StatusInProgress Status = "In Progress"
	StatusReady      Status = "Ready"
	StatusCompleted  Status = "Completed"
)

// ParseStatus accepts exactly the four defined statuses. There is no
// adjacency rule: staff may move an order to any defined status, in
// either direction, to correct a misclick.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusNew, StatusInProgress, StatusReady, StatusCompleted:
		return Status(s), nil
	}
	return "", ErrInvalidStatus
}

// Fulfilled reports whether the order counts toward sales stats.
func (s Status) Fulfilled() bool {
	return s == StatusReady || s == StatusCompleted
}
