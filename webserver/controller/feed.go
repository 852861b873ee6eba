package controller

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/joinguard/joinguard/common"
	"github.com/joinguard/joinguard/service"
)

func GetDecisionFeed(ctx *gin.Context) {
	var (
		str    string
		err    error
		format = strings.ToLower(ctx.Param("format"))
	)
	switch format {
	case "atom":
		str, err = service.DecisionFeed(store, service.FeedFormatAtom)
	case "rss":
		str, err = service.DecisionFeed(store, service.FeedFormatRSS)
	case "json":
		str, err = service.DecisionFeed(store, service.FeedFormatJSON)
	default:
		common.ResponseBadRequestError(ctx)
		return
	}
	if err != nil {
		common.ResponseError(ctx, err)
		return
	}
	if format == "json" {
		ctx.Header("Content-Type", "application/feed+json")
	} else {
		ctx.Header("Content-Type", "application/rss+xml")
	}
	_, _ = ctx.Writer.WriteString(str)
}
