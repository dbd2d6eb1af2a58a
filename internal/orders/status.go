package orders

type Status string

const (
	StatusCreated Status = "created"
	StatusDeleted Status = "deleted"
)

// Orders never change in place: created may only move to deleted, and deleted is terminal.
var validNext = map[Status]map[Status]bool{
	StatusCreated: {StatusDeleted: true},
	StatusDeleted: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}
