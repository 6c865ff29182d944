package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"pkg.aura.care/moodfeed/internal/feed"
)

// registerGetFeed GET /feed?limit=
func (a *API) registerGetFeed() {
	a.router.GET("/feed", func(c *gin.Context) {
		var param limitParam
		if err := c.ShouldBindQuery(&param); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		items, err := a.feed.FetchFeed(c.Request.Context(), viewerOf(c), param.or(a.config.DefaultLimit))
		if err != nil {
			a.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, items)
	})
}

// registerGetEntry GET /entries/:id
func (a *API) registerGetEntry() {
	a.router.GET("/entries/:id", func(c *gin.Context) {
		var param entryParam
		if err := c.ShouldBindUri(&param); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		item, err := a.feed.GetEntry(c.Request.Context(), viewerOf(c), param.ID)
		if err != nil {
			a.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, item)
	})
}

// registerPostEntry POST /entries
func (a *API) registerPostEntry() {
	a.router.POST("/entries", func(c *gin.Context) {
		var body publishBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		mood, err := feed.ParseMood(body.Mood)
		if err != nil {
			a.fail(c, err)
			return
		}

		e, err := a.feed.Publish(c.Request.Context(), viewerOf(c), feed.Draft{
			Mood:       mood,
			Note:       body.Note,
			AuthorName: body.AuthorName,
		})
		if err != nil {
			a.fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, e)
	})
}

// registerSetLiked PUT /entries/:id/like, DELETE /entries/:id/like
func (a *API) registerSetLiked() {
	handler := func(liked bool) gin.HandlerFunc {
		return func(c *gin.Context) {
			var param entryParam
			if err := c.ShouldBindUri(&param); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}

			res, err := a.feed.SetLiked(c.Request.Context(), param.ID, viewerOf(c), liked)
			if err != nil {
				a.fail(c, err)
				return
			}
			c.JSON(http.StatusOK, res)
		}
	}
	a.router.PUT("/entries/:id/like", handler(true))
	a.router.DELETE("/entries/:id/like", handler(false))
}
