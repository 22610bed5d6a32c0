// Package models defines server-side data models persisted in the database.
package models

import (
	"database/sql"
	"errors"
	"fmt"
)

// OwnerKind discriminates Owner.
type OwnerKind uint8

const (
	ownerInvalid OwnerKind = iota
	OwnerUser
	OwnerAgent
)

func (k OwnerKind) String() string {
	switch k {
	case OwnerUser:
		return "user"
	case OwnerAgent:
		return "agent"
	}
	return "invalid"
}

// ErrInvalidOwner is returned when persisted columns do not describe exactly
// one owner.
var ErrInvalidOwner = errors.New("invalid owner")

// Owner is either a human user or an agent, never both and never neither.
// Build it with UserOwner or AgentOwner; the zero value is invalid.
type Owner struct {
	kind OwnerKind
	id   string
}

func UserOwner(id string) Owner  { return Owner{kind: OwnerUser, id: id} }
func AgentOwner(id string) Owner { return Owner{kind: OwnerAgent, id: id} }

func (o Owner) Kind() OwnerKind { return o.kind }
func (o Owner) ID() string      { return o.id }
func (o Owner) IsUser() bool    { return o.kind == OwnerUser }
func (o Owner) IsAgent() bool   { return o.kind == OwnerAgent }

// Valid reports whether o was built by a constructor with a non-empty id.
func (o Owner) Valid() bool {
	return o.kind != ownerInvalid && o.id != ""
}

// String is "user:<id>" or "agent:<id>"; it doubles as the rate-limit identity.
func (o Owner) String() string {
	return o.kind.String() + ":" + o.id
}

// Columns splits o into the (user_id, agent_id) column pair.
func (o Owner) Columns() (userID, agentID sql.NullString) {
	switch o.kind {
	case OwnerUser:
		userID = sql.NullString{String: o.id, Valid: true}
	case OwnerAgent:
		agentID = sql.NullString{String: o.id, Valid: true}
	}
	return userID, agentID
}

// OwnerFromColumns is the inverse of Columns.
func OwnerFromColumns(userID, agentID sql.NullString) (Owner, error) {
	switch {
	case userID.Valid && !agentID.Valid:
		return UserOwner(userID.String), nil
	case agentID.Valid && !userID.Valid:
		return AgentOwner(agentID.String), nil
	}
	return Owner{}, fmt.Errorf("%w: user_id=%v agent_id=%v", ErrInvalidOwner, userID.Valid, agentID.Valid)
}
