package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"pkg.aura.care/moodfeed/internal/feed"
	"pkg.aura.care/moodfeed/internal/moodlog"
)

// registerMoods POST /moods, GET /moods?limit=, POST /moods/:id/share
func (a *API) registerMoods() {
	a.router.POST("/moods", func(c *gin.Context) {
		var body moodBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		mood, err := feed.ParseMood(body.Mood)
		if err != nil {
			a.fail(c, err)
			return
		}

		l, err := a.moods.Add(c.Request.Context(), viewerOf(c), mood, body.Note)
		if err != nil {
			a.fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, l)
	})

	a.router.GET("/moods", func(c *gin.Context) {
		var param limitParam
		if err := c.ShouldBindQuery(&param); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		logs, err := a.moods.Recent(c.Request.Context(), viewerOf(c), param.or(moodlog.DefaultLimit))
		if err != nil {
			a.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, logs)
	})

	a.router.POST("/moods/:id/share", func(c *gin.Context) {
		var param entryParam
		if err := c.ShouldBindUri(&param); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		var body shareBody
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&body); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}

		e, err := a.moods.Share(c.Request.Context(), viewerOf(c), param.ID, body.AuthorName)
		if err != nil {
			a.fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, e)
	})
}
