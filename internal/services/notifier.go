package services

// Events pushed to connected clients so they refetch their menu and permissions.
const (
	EventGrantsChanged  = "grants.changed"
	EventAccountChanged = "account.changed"
	EventAccountDeleted = "account.deleted"
	EventMenuChanged    = "menu.changed"
)

// ChangeNotifier pushes access changes to connected clients.
type ChangeNotifier interface {
	NotifyUser(userID, event string, data any)
	NotifyAll(event string, data any)
}

type noopNotifier struct{}

func (noopNotifier) NotifyUser(string, string, any) {}
func (noopNotifier) NotifyAll(string, any)          {}

// UseNotifier routes change events to n. Call it before serving requests; nil
// disables notifications.
func (s *AccessService) UseNotifier(n ChangeNotifier) {
	if n == nil {
		n = noopNotifier{}
	}
	s.notifier = n
}

// UseNotifier routes change events from every service in the set to n.
func (s *Set) UseNotifier(n ChangeNotifier) {
	s.Access.UseNotifier(n)
}
