package officehours

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Raytar/officehours/models"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func (oh *OfficeHours) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(oh.log))

	corsConfig := cors.DefaultConfig()
	if oh.cfg.allowAllOrigins() {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = oh.cfg.AllowedOrigins
	}
	r.Use(cors.New(corsConfig))

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Hello from the office hours server!")
	})

	api := r.Group("/api")
	api.POST("/signup", oh.signUp)
	api.POST("/signin", oh.signIn)

	api.POST("/queue", oh.enqueue)
	api.GET("/queue", oh.listQueue)
	api.GET("/queue/length", oh.queueLength)
	api.GET("/queue/position", oh.queuePosition)
	api.POST("/queue/:number/assign", oh.assign)
	api.POST("/queue/:number/finish", oh.finish)

	api.GET("/availability", oh.listAvailability)
	api.POST("/shifts", oh.beginShift)

	r.GET("/ws", oh.serveSocket)
	return r
}

func (oh *OfficeHours) signUp(c *gin.Context) {
	var req SignUpRequest
	if !oh.bindJSON(c, &req) {
		return
	}
	student, err := oh.accounts.SignUp(c.Request.Context(), req)
	if err != nil {
		oh.replyErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, Identity{Number: student.Number, Name: student.Name, Email: student.Email})
}

func (oh *OfficeHours) signIn(c *gin.Context) {
	var req SignInRequest
	if !oh.bindJSON(c, &req) {
		return
	}
	id, err := oh.accounts.SignIn(c.Request.Context(), req)
	if err != nil {
		oh.replyErr(c, err)
		return
	}
	c.JSON(http.StatusOK, id)
}

func (oh *OfficeHours) enqueue(c *gin.Context) {
	var req EnqueueRequest
	if !oh.bindJSON(c, &req) {
		return
	}
	ticket, err := oh.coord.Enqueue(c.Request.Context(), req)
	if err != nil {
		oh.replyErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"number": ticket.Number})
}

func (oh *OfficeHours) listQueue(c *gin.Context) {
	queue, err := oh.coord.ListQueue(c.Request.Context())
	if err != nil {
		oh.replyErr(c, err)
		return
	}
	c.JSON(http.StatusOK, queue)
}

func (oh *OfficeHours) queueLength(c *gin.Context) {
	n, err := oh.coord.QueueLength(c.Request.Context())
	if err != nil {
		oh.replyErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"length": n})
}

func (oh *OfficeHours) queuePosition(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		oh.replyErr(c, fmt.Errorf("%w: email is required", models.ErrValidation))
		return
	}
	pos, err := oh.coord.Position(c.Request.Context(), email)
	if err != nil {
		oh.replyErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"position": pos})
}

type dispatchBody struct {
	Email string `json:"email"`
}

// dispatchRequest combines the ticket number in the path with the staff email
// in the body.
func (oh *OfficeHours) dispatchRequest(c *gin.Context) (DispatchRequest, bool) {
	number, err := strconv.ParseInt(c.Param("number"), 10, 64)
	if err != nil {
		oh.replyErr(c, fmt.Errorf("%w: invalid ticket number %q", models.ErrValidation, c.Param("number")))
		return DispatchRequest{}, false
	}
	var body dispatchBody
	if !oh.bindJSON(c, &body) {
		return DispatchRequest{}, false
	}
	return DispatchRequest{Number: number, Email: body.Email}, true
}

func (oh *OfficeHours) assign(c *gin.Context) {
	req, ok := oh.dispatchRequest(c)
	if !ok {
		return
	}
	result, err := oh.coord.Assign(c.Request.Context(), req)
	if err != nil {
		oh.replyErr(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (oh *OfficeHours) finish(c *gin.Context) {
	req, ok := oh.dispatchRequest(c)
	if !ok {
		return
	}
	ticket, err := oh.coord.Finish(c.Request.Context(), req)
	if err != nil {
		oh.replyErr(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

func (oh *OfficeHours) listAvailability(c *gin.Context) {
	availability, err := oh.coord.ListAvailability(c.Request.Context())
	if err != nil {
		oh.replyErr(c, err)
		return
	}
	c.JSON(http.StatusOK, availability)
}

type shiftBody struct {
	Email string `json:"email"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// shiftLayouts are the accepted shift time formats. Times without a zone are
// read in the server's local time.
var shiftLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

func parseShiftTime(field, s string) (time.Time, error) {
	for _, layout := range shiftLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %s %q is not a valid time", models.ErrValidation, field, s)
}

func (oh *OfficeHours) beginShift(c *gin.Context) {
	var body shiftBody
	if !oh.bindJSON(c, &body) {
		return
	}
	start, err := parseShiftTime("start", body.Start)
	if err != nil {
		oh.replyErr(c, err)
		return
	}
	end, err := parseShiftTime("end", body.End)
	if err != nil {
		oh.replyErr(c, err)
		return
	}
	req := ShiftRequest{Email: body.Email, Start: start, End: end}
	if err := oh.coord.BeginShift(c.Request.Context(), req); err != nil {
		oh.replyErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
