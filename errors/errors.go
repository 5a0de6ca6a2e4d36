package errors

import "fmt"

var (
	ErrInvalidInput   = fmt.Errorf("invalid input")
	ErrNameTaken      = fmt.Errorf("participant name already taken")
	ErrNotFound       = fmt.Errorf("not found")
	ErrNotOwner       = fmt.Errorf("requester is not the author")
	ErrNotParticipant = fmt.Errorf("author is not a current participant")
	ErrWorkerPanic    = fmt.Errorf("worker panic")
	ErrEmptyWords     = fmt.Errorf("no words have been found")
)
