package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dshills/winmacro/internal/macro"
	"github.com/dshills/winmacro/internal/session"
	"github.com/dshills/winmacro/internal/store"
)

// StartRecordRequest is the optional body of POST /api/record/start.
type StartRecordRequest struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Hotkey      string `json:"hotkey"`
}

// StopRecordRequest is the optional body of POST /api/record/stop.
type StopRecordRequest struct {
	Save bool `json:"save"`
}

// StopRecordResponse describes the finished recording.
type StopRecordResponse struct {
	Macro store.Info `json:"macro"`
	// Saved is set when the recording was stored.
	Saved bool `json:"saved"`
	// Error reports a recording failure. The macro is then partial.
	Error string `json:"error,omitempty"`
}

// PlayRequest is the body of POST /api/play. Exactly one of ID and
// Record is set. Loops defaults to 1; an explicit 0 repeats until
// stopped.
type PlayRequest struct {
	ID     string        `json:"id"`
	Record *macro.Record `json:"record"`
	Loops  *int          `json:"loops"`
	Speed  float64       `json:"speed"`
}

// StopRequest is the optional body of POST /api/stop.
type StopRequest struct {
	SessionID session.ID `json:"sessionId"`
}

// bindOptional decodes a JSON body when one is present.
func bindOptional(c *gin.Context, v any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return false
	}
	return true
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.eng.Status())
}

func (s *Server) handleRecordStart(c *gin.Context) {
	var req StartRecordRequest
	if !bindOptional(c, &req) {
		return
	}
	var cat macro.Category
	if req.Category != "" {
		var err error
		if cat, err = macro.ParseCategory(req.Category); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	meta := macro.Metadata{
		Name:        req.Name,
		Category:    cat,
		Description: req.Description,
		Hotkey:      req.Hotkey,
	}
	if err := s.eng.StartRecording(c.Request.Context(), meta); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.eng.Status())
}

func (s *Server) handleRecordStop(c *gin.Context) {
	var req StopRecordRequest
	if !bindOptional(c, &req) {
		return
	}

	tl, recErr := s.eng.StopRecording()
	if tl == nil {
		s.fail(c, recErr)
		return
	}

	resp := StopRecordResponse{Macro: store.InfoOf("", tl)}
	if recErr != nil {
		resp.Error = recErr.Error()
	}
	if req.Save && tl.Len() > 0 {
		if s.repo == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "macro storage is not configured"})
			return
		}
		info, err := s.repo.Save(c.Request.Context(), tl)
		if err != nil {
			s.fail(c, err)
			return
		}
		resp.Macro = info
		resp.Saved = true
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handlePlay(c *gin.Context) {
	var req PlayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	if (req.ID == "") == (req.Record == nil) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "exactly one of id and record is required"})
		return
	}

	var tl *macro.Timeline
	var err error
	if req.Record != nil {
		tl, err = macro.Decode(req.Record)
	} else if s.repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "macro storage is not configured"})
		return
	} else {
		tl, err = s.repo.Load(c.Request.Context(), req.ID)
	}
	if err != nil {
		s.fail(c, err)
		return
	}

	loops := 1
	if req.Loops != nil {
		loops = *req.Loops
	}
	id, err := s.eng.Play(c.Request.Context(), tl, loops, req.Speed)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"sessionId": id})
}

func (s *Server) handleStop(c *gin.Context) {
	var req StopRequest
	if !bindOptional(c, &req) {
		return
	}
	if err := s.eng.Stop(req.SessionID); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "stopping"})
}

func (s *Server) handleWindows(c *gin.Context) {
	wins, err := s.eng.Windows(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, wins)
}

func (s *Server) handleListMacros(c *gin.Context) {
	var cat macro.Category
	if q := c.Query("category"); q != "" {
		var err error
		if cat, err = macro.ParseCategory(q); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	infos, err := s.repo.List(c.Request.Context(), cat)
	if err != nil {
		s.fail(c, err)
		return
	}
	if infos == nil {
		infos = []store.Info{}
	}
	c.JSON(http.StatusOK, infos)
}

func (s *Server) handleGetMacro(c *gin.Context) {
	tl, err := s.repo.Load(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, macro.Encode(tl))
}

func (s *Server) handleDeleteMacro(c *gin.Context) {
	id := c.Param("id")
	if err := s.repo.Delete(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted", "id": id})
}
