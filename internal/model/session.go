package model

// Session — проверенная сессия пользователя. Выдаётся внешним сервисом авторизации,
// здесь только читается.
type Session struct {
	ID     string `json:"id"`
	UserID int64  `json:"user_id"`
	Role   Role   `json:"role"`
}
