package domain

// Session is the live authentication state of one client. IsAuthenticated is
// true exactly when Identity is present.
type Session struct {
	ID              string    `json:"-"`
	Identity        *Identity `json:"identity"`
	IsAuthenticated bool      `json:"isAuthenticated"`
	IsLoading       bool      `json:"isLoading"`
}

// LoadingSession is the state before the store has been read.
func LoadingSession() Session {
	return Session{IsLoading: true}
}

// AnonymousSession is the resolved state with no identity.
func AnonymousSession() Session {
	return Session{}
}

// AuthenticatedSession wraps identity in a resolved session.
func AuthenticatedSession(id string, identity Identity) Session {
	return Session{ID: id, Identity: &identity, IsAuthenticated: true}
}
