package webui

import (
	"crypto/tls"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"
)

// deviceSession holds the authentication state for one device. Each session
// owns its own cookie jar so devices never see each other's cookies. The
// mutex serializes concurrent provisioning calls to the same device; calls
// to different devices do not contend.
type deviceSession struct {
	mu            sync.Mutex
	client        *http.Client
	authenticated bool
}

// SessionStore caches device sessions keyed by address for the lifetime of
// the client so repeated provisioning calls skip re-authentication.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*deviceSession
	timeout  time.Duration
}

// NewSessionStore creates an empty session store. The timeout bounds every
// HTTP request made through a session's client.
func NewSessionStore(timeout time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*deviceSession),
		timeout:  timeout,
	}
}

// get returns the session for an address, creating it on first use.
func (s *SessionStore) get(addr string) *deviceSession {
	s.mu.RLock()
	sess, ok := s.sessions[addr]
	s.mu.RUnlock()
	if ok {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok = s.sessions[addr]; ok {
		return sess
	}

	sess = &deviceSession{client: newDeviceHTTPClient(s.timeout)}
	s.sessions[addr] = sess
	return sess
}

// newDeviceHTTPClient builds an HTTP client suitable for printer embedded
// web servers: self-signed certificates are accepted and redirects are
// never followed, since a redirect status is itself a protocol signal.
func newDeviceHTTPClient(timeout time.Duration) *http.Client {
	jar, _ := cookiejar.New(nil)
	return &http.Client{
		Timeout: timeout,
		Jar:     jar,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}
