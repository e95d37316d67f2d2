package pump

import "errors"

// ErrTaken is returned when a slot's value was already consumed
var ErrTaken = errors.New("slot value already taken")
