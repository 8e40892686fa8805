package model

import "time"

// Room — помещение, за которым закреплён арендатор.
type Room struct {
	ID       int64  `json:"id,omitempty"`
	Number   string `json:"number"`
	Building string `json:"building,omitempty"`
}

type User struct {
	ID          int64     `json:"id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url"`
	Phone       string    `json:"phone"`
	Role        Role      `json:"role"`
	Room        *Room     `json:"room,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Peer — собеседник в списке переписок. Ключ идентичности — id.
type Peer struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	Phone       string `json:"phone"`
	Room        *Room  `json:"room,omitempty"`
}

func (u *User) ToParty() Party {
	return Party{ID: u.ID, DisplayName: u.DisplayName, AvatarURL: u.AvatarURL, Role: u.Role}
}

func (u *User) ToPeer() Peer {
	return Peer{ID: u.ID, DisplayName: u.DisplayName, AvatarURL: u.AvatarURL, Phone: u.Phone, Room: u.Room}
}
