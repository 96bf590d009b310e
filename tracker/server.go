package tracker

import (
	"net"
	"net/http"
	"os"

	"github.com/dimfeld/httptreemux"
	"github.com/gorilla/handlers"
	"github.com/pkg/errors"
	"github.com/unrolled/render"
)

// Server is the HTTP surface described in SPEC_FULL.md §6: a thin
// request/response layer over Index. It does not verify that a reported
// holder actually serves the file it claims; peers police that
// themselves via Remove on failure.
type Server struct {
	Index *Index
	r     *render.Render
}

// NewServer wraps idx in an http.Handler implementing the tracker's
// route surface, with access logging and panic recovery in front.
func NewServer(idx *Index) http.Handler {
	s := &Server{Index: idx, r: render.New()}
	mux := httptreemux.New()
	mux.GET("/", s.handleRoot)
	mux.GET("/peers", s.handlePeers)
	mux.POST("/add", s.handleAdd)
	mux.POST("/remove", s.handleRemove)
	mux.POST("/peer_offline", s.handlePeerOffline)
	mux.GET("/all_trackers", s.handleAllTrackers)

	return handlers.RecoveryHandler()(handlers.LoggingHandler(os.Stdout, mux))
}

func (s *Server) handleRoot(w http.ResponseWriter, req *http.Request, _ map[string]string) {
	s.r.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePeers(w http.ResponseWriter, req *http.Request, _ map[string]string) {
	filename := req.URL.Query().Get("filename")
	s.r.JSON(w, http.StatusOK, map[string]any{
		"filename": filename,
		"peers":    s.Index.GetPeers(filename),
	})
}

func (s *Server) handleAdd(w http.ResponseWriter, req *http.Request, _ map[string]string) {
	filename := req.URL.Query().Get("filename")
	if filename == "" {
		s.badRequest(w, errors.New("filename is required"))
		return
	}
	ip, err := callerIP(req)
	if err != nil {
		s.badRequest(w, err)
		return
	}
	// hash is accepted for logging/diagnostics but not required to find
	// the caller's IP; the tracker does not verify it serves the file.
	s.Index.Add(ip, filename)
	s.r.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRemove(w http.ResponseWriter, req *http.Request, _ map[string]string) {
	ip := req.URL.Query().Get("ip")
	filename := req.URL.Query().Get("filename")
	if ip == "" || filename == "" {
		s.badRequest(w, errors.New("ip and filename are required"))
		return
	}
	s.Index.Remove(ip, filename)
	s.r.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePeerOffline(w http.ResponseWriter, req *http.Request, _ map[string]string) {
	ip := req.URL.Query().Get("ip")
	if ip == "" {
		s.badRequest(w, errors.New("ip is required"))
		return
	}
	s.Index.PeerOffline(ip)
	s.r.JSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

const allTrackersSampleLimit = 100

func (s *Server) handleAllTrackers(w http.ResponseWriter, req *http.Request, _ map[string]string) {
	s.r.JSON(w, http.StatusOK, map[string]any{
		"files": s.Index.AllFiles(allTrackersSampleLimit),
	})
}

func (s *Server) badRequest(w http.ResponseWriter, err error) {
	s.r.JSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
}

// callerIP standardizes "caller IP is the holder" for /add, resolving
// Open Question 1 in favor of the HTTP client's observed address.
func callerIP(req *http.Request) (string, error) {
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return "", errors.Wrap(err, "parsing remote addr")
	}
	return host, nil
}
