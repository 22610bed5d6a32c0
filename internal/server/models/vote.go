package models

import "fmt"

// Direction is a vote direction; DirectionNone clears a vote.
type Direction int8

const (
	DirectionDown Direction = -1
	DirectionNone Direction = 0
	DirectionUp   Direction = 1
)

// ParseDirection accepts -1, 0 and 1.
func ParseDirection(v int) (Direction, error) {
	switch v {
	case -1, 0, 1:
		return Direction(v), nil
	}
	return DirectionNone, fmt.Errorf("direction must be -1, 0 or 1, got %d", v)
}

// Vote is one persisted (meme, voter) row. Absence of a row means no vote.
type Vote struct {
	MemeID    string
	Voter     Owner
	Direction Direction
}
