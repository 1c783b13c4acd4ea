package sessionbroker

import "errors"

var (
	ErrCommandTimeout     = errors.New("sessionbroker: command timed out")
	ErrNoHelperForSession = errors.New("sessionbroker: no helper connected for session")
	ErrBrokerClosed       = errors.New("sessionbroker: broker is closed")
)
