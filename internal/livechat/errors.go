package livechat

import (
	"errors"
	"fmt"
)

// ErrNoPeer возвращается операциями переписки, когда собеседник не выбран.
var ErrNoPeer = errors.New("livechat: no peer selected")

// StatusError — ответ сервера с кодом не 2xx.
type StatusError struct {
	Op      string
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: http %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: http %d: %s", e.Op, e.Status, e.Message)
}

// IsStatus сообщает, что err — ответ сервера с данным кодом.
func IsStatus(err error, status int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == status
}
