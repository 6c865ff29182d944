package api

type limitParam struct {
	Limit *int `form:"limit"`
}

type entryParam struct {
	ID string `uri:"id" binding:"required"`
}

type publishBody struct {
	Mood       string `json:"mood" binding:"required"`
	Note       string `json:"note"`
	AuthorName string `json:"authorName"`
}

type moodBody struct {
	Mood string `json:"mood" binding:"required"`
	Note string `json:"note"`
}

type shareBody struct {
	AuthorName string `json:"authorName"`
}

func (p limitParam) or(def int) int {
	if p.Limit == nil {
		return def
	}
	return *p.Limit
}
