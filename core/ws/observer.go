package ws

// Observer receives session lifecycle and traffic notifications.
// Implementations must be safe for concurrent use.
type Observer interface {
	SessionOpened(path string)
	SessionClosed(path string, normal bool)
	MessageReceived(path string, size int)
	MessageSent(path string, size int)
}

type nopObserver struct{}

func (nopObserver) SessionOpened(string)        {}
func (nopObserver) SessionClosed(string, bool)  {}
func (nopObserver) MessageReceived(string, int) {}
func (nopObserver) MessageSent(string, int)     {}
