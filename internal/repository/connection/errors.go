package connection

import "errors"

var (
	ErrNotFound      = errors.New("connection not found")
	ErrAlreadyExists = errors.New("connection already exists")
)

// Info identifies which room and user a socket belongs to.
type Info struct {
	RoomId string
	UserId string
}
