package server

import (
	"github.com/Tyrowin/lanshare/internal/presence"
	"github.com/Tyrowin/lanshare/internal/session"
)

// Room is the single shared session: who is connected and what has been posted.
type Room struct {
	Presence *presence.Registry
	History  *session.Store
}

// NewRoom creates an empty room. maxHistory of zero means unbounded.
func NewRoom(maxHistory int) *Room {
	return &Room{
		Presence: presence.NewRegistry(),
		History:  session.NewStore(maxHistory),
	}
}
