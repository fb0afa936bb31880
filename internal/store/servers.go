package store

import "github.com/eaescob/go-ircd/internal/wire"

func serverKey(name string) string { return wire.Casefold(name) }

// AddServer inserts a peer server record. Returns false if a server with
// that name is already linked (at most one live connection per name,
// spec §3 Server invariant).
func (s *Store) AddServer(srv *Server) bool {
	key := serverKey(srv.Name)
	if _, ok := s.servers.Get(key); ok {
		return false
	}
	s.servers.Set(key, srv)
	return true
}

// RemoveServer deletes a peer server record by name.
func (s *Store) RemoveServer(name string) (*Server, bool) {
	key := serverKey(name)
	srv, ok := s.servers.Get(key)
	if ok {
		s.servers.Delete(key)
	}
	return srv, ok
}

// GetServer looks up a peer server by name.
func (s *Store) GetServer(name string) (*Server, bool) {
	return s.servers.Get(serverKey(name))
}

// ListServers returns every known peer server.
func (s *Store) ListServers() []*Server {
	var out []*Server
	s.servers.Range(func(_ string, srv *Server) bool {
		out = append(out, srv)
		return true
	})
	return out
}
