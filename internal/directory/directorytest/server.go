// Package directorytest provides an in-memory room directory API for tests.
package directorytest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Request is a request observed by the server.
type Request struct {
	Method      string
	Path        string
	Query       url.Values
	ContentType string
	Body        map[string]any
}

// Server serves POST /rooms and GET /rooms from memory.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	rooms    []map[string]any
	requests []Request

	// Host and Port are assigned to every created room.
	Host string
	Port int

	createStatus int
	searchStatus int
	rawBody      []byte
}

// NewServer starts a fake directory. Close it when done.
func NewServer() *Server {
	gin.SetMode(gin.TestMode)

	s := &Server{
		Host:         "127.0.0.1",
		Port:         4000,
		createStatus: http.StatusCreated,
		searchStatus: http.StatusOK,
	}

	router := gin.New()
	router.Use(s.record)
	router.POST("/rooms", s.createRoom)
	router.GET("/rooms", s.searchRooms)

	s.Server = httptest.NewServer(router)
	return s
}

// FailCreate makes room creation answer with status.
func (s *Server) FailCreate(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createStatus = status
}

// FailSearch makes room search answer with status.
func (s *Server) FailSearch(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchStatus = status
}

// RespondWith replaces every successful response body with body.
func (s *Server) RespondWith(body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rawBody = body
}

// AddRoom stores a room exactly as given, to be returned by searches.
func (s *Server) AddRoom(room map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms = append(s.rooms, room)
}

// Requests returns the requests seen so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

func (s *Server) record(c *gin.Context) {
	req := Request{
		Method:      c.Request.Method,
		Path:        c.Request.URL.Path,
		Query:       c.Request.URL.Query(),
		ContentType: c.GetHeader("Content-Type"),
	}
	if c.Request.Method == http.MethodPost {
		var body map[string]any
		if err := c.ShouldBindJSON(&body); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		req.Body = body
		c.Set("body", body)
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	c.Next()
}

func (s *Server) createRoom(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.createStatus != http.StatusCreated {
		c.JSON(s.createStatus, gin.H{"error": "room creation refused"})
		return
	}
	if s.rawBody != nil {
		c.Data(http.StatusCreated, "application/json", s.rawBody)
		return
	}

	body := c.MustGet("body").(map[string]any)
	room := map[string]any{
		"id":     uuid.New().String(),
		"server": map[string]any{"server": s.Host, "port": s.Port},
	}
	for k, v := range body {
		if _, ok := room[k]; !ok {
			room[k] = v
		}
	}
	s.rooms = append(s.rooms, room)

	// The directory never echoes the caller's identifying fields.
	reply := make(map[string]any, len(room))
	for k, v := range room {
		switch k {
		case "application_name", "version", "password":
		default:
			reply[k] = v
		}
	}
	c.JSON(http.StatusCreated, gin.H{"result": reply})
}

func (s *Server) searchRooms(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.searchStatus != http.StatusOK {
		c.JSON(s.searchStatus, gin.H{"error": "search refused"})
		return
	}
	if s.rawBody != nil {
		c.Data(http.StatusOK, "application/json", s.rawBody)
		return
	}

	name := c.Query("name")
	version := c.Query("version")

	result := make([]json.RawMessage, 0)
	for _, room := range s.rooms {
		if room["application_name"] != name || room["version"] != version {
			continue
		}
		data, err := json.Marshal(room)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		result = append(result, data)
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}
