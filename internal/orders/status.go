package orders

type Status string

const (
	StatusFilling    Status = "filling"
	StatusNew        Status = "new"
	StatusDiscussion Status = "discussion"
	StatusRejected   Status = "rejected"
	StatusCompleted  Status = "completed"
)

var validNext = map[Status]map[Status]bool{
	StatusFilling:    {StatusNew: true, StatusRejected: true},
	StatusNew:        {StatusDiscussion: true, StatusRejected: true, StatusCompleted: true},
	StatusDiscussion: {StatusRejected: true, StatusCompleted: true},
	StatusRejected:   {},
	StatusCompleted:  {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}
